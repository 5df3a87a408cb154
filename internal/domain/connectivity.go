package domain

import "time"

type ConnectivityState string

const (
	StateOnline  ConnectivityState = "ONLINE"
	StateOffline ConnectivityState = "OFFLINE"
)

// ConnectivityStatus: текущее состояние связи с источником и момент последнего перехода.
type ConnectivityStatus struct {
	State     ConnectivityState `json:"state"`
	ChangedAt time.Time         `json:"changed_at"`
	Reason    string            `json:"reason,omitempty"` // Текст ошибки, уронившей связь
}

func (s ConnectivityStatus) Online() bool {
	return s.State == StateOnline
}
