package publish

import (
	"time"

	"github.com/google/uuid"
)

// Типы сообщений для потребителей
const (
	TypeSnapshot     = "snapshot"
	TypeAlert        = "alert"
	TypeConnectivity = "connectivity"
	TypeBuckets      = "buckets"
	TypeNotice       = "notice"
)

// Envelope: общая обертка для WebSocket и Redis. ID позволяет потребителю отбросить дубль.
type Envelope struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

func newEnvelope(kind string, data any) Envelope {
	return Envelope{
		ID:   uuid.NewString(),
		Type: kind,
		At:   time.Now().UTC(),
		Data: data,
	}
}

// BucketsPayload: данные для графиков: лента по часам и тренд по уровням риска.
type BucketsPayload struct {
	Timeline any `json:"timeline"`
	Trend    any `json:"trend"`
}
