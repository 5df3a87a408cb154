package domain

import "time"

// Alert: сигнал о новом критическом событии. Выдается ровно один раз на событие.
type Alert struct {
	ID       string      `json:"id"` // UUID для дедупликации на стороне потребителей
	Event    ThreatEvent `json:"event"`
	Tier     RiskTier    `json:"tier"`
	RaisedAt time.Time   `json:"raised_at"`
}

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice: временное уведомление (например, о сорванном цикле), исчезает само.
type Notice struct {
	Level        NoticeLevel   `json:"level"`
	Title        string        `json:"title"`
	Message      string        `json:"message"`
	DismissAfter time.Duration `json:"dismiss_after"`
}
