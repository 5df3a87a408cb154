package domain

import (
	"fmt"
	"strings"
	"time"
)

// ThreatEvent: одно событие атаки, зафиксированное сенсором.
// Значение неизменяемо: следующий цикл опроса приносит новый срез, а не правит старый.
type ThreatEvent struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"` // Всегда нормализован (UTC), см. ParseInstant
	AttackerIP   string    `json:"attacker_ip"`
	Country      string    `json:"country,omitempty"`
	Service      string    `json:"service"`
	AttackType   string    `json:"attack_type"`
	RiskScore    int       `json:"risk_score"` // 0..10
	HoneypotID   string    `json:"honeypot_id,omitempty"`
	AttackerPort int       `json:"attacker_port,omitempty"`
}

// Tier возвращает уровень риска события.
func (e ThreatEvent) Tier() RiskTier {
	return TierOf(e.RiskScore)
}

// AttackerProfile: агрегированный профиль атакующего адреса.
type AttackerProfile struct {
	IPAddress    string    `json:"ip_address"`
	TotalAttacks int       `json:"total_attacks"`
	RiskLevel    string    `json:"risk_level"` // Метка уже посчитана на стороне API
	Country      string    `json:"country"`
	FirstSeen    time.Time `json:"first_seen,omitempty"`
	LastSeen     time.Time `json:"last_seen,omitempty"`
}

// Форматы, в которых источник присылает время без указания зоны (Python isoformat()).
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseInstant приводит строку времени к абсолютному моменту.
// Строка без зоны трактуется как UTC. Результат всегда в UTC,
// поэтому сравнение "сырых" неоднозначных значений невозможно.
func ParseInstant(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
