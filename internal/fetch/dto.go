package fetch

import (
	"fmt"
	"time"

	"github.com/xela07ax/threatwatch/internal/domain"
)

// Формы ответов удаленного API. Время приходит строкой, часто без зоны.

type threatDTO struct {
	ID           int64  `json:"id"`
	Timestamp    string `json:"timestamp"`
	HoneypotID   string `json:"honeypot_id"`
	Service      string `json:"service"`
	AttackerIP   string `json:"attacker_ip"`
	AttackerPort int    `json:"attacker_port"`
	AttackType   string `json:"attack_type"`
	RiskScore    int    `json:"risk_score"`
	Country      string `json:"country"`
}

func (d threatDTO) toDomain() (domain.ThreatEvent, error) {
	ts, err := domain.ParseInstant(d.Timestamp)
	if err != nil {
		return domain.ThreatEvent{}, fmt.Errorf("threat %d: %w", d.ID, err)
	}
	if d.RiskScore < 0 || d.RiskScore > 10 {
		return domain.ThreatEvent{}, fmt.Errorf("threat %d: risk score %d out of range", d.ID, d.RiskScore)
	}
	return domain.ThreatEvent{
		ID:           d.ID,
		Timestamp:    ts,
		AttackerIP:   d.AttackerIP,
		Country:      d.Country,
		Service:      d.Service,
		AttackType:   d.AttackType,
		RiskScore:    d.RiskScore,
		HoneypotID:   d.HoneypotID,
		AttackerPort: d.AttackerPort,
	}, nil
}

type threatPageDTO struct {
	Threats    []threatDTO `json:"threats"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}

type attackerDTO struct {
	IPAddress    string `json:"ip_address"`
	FirstSeen    string `json:"first_seen"`
	LastSeen     string `json:"last_seen"`
	TotalAttacks int    `json:"total_attacks"`
	RiskLevel    string `json:"risk_level"`
	Country      string `json:"country"`
}

func (d attackerDTO) toDomain() domain.AttackerProfile {
	return domain.AttackerProfile{
		IPAddress:    d.IPAddress,
		TotalAttacks: d.TotalAttacks,
		RiskLevel:    d.RiskLevel,
		Country:      d.Country,
		FirstSeen:    optionalInstant(d.FirstSeen),
		LastSeen:     optionalInstant(d.LastSeen),
	}
}

type attackerPageDTO struct {
	Attackers []attackerDTO `json:"attackers"`
}

type statsDTO struct {
	PeriodHours      int     `json:"period_hours"`
	TotalThreats     int     `json:"total_threats"`
	UniqueAttackers  int     `json:"unique_attackers"`
	AverageRiskScore float64 `json:"average_risk_score"`
	TopAttackTypes   []struct {
		Type  string `json:"type"`
		Count int    `json:"count"`
	} `json:"top_attack_types"`
}

func (d statsDTO) toDomain(requestedHours int) domain.StatsSnapshot {
	hours := d.PeriodHours
	if hours == 0 {
		hours = requestedHours
	}
	top := make([]domain.AttackTypeCount, 0, len(d.TopAttackTypes))
	for _, t := range d.TopAttackTypes {
		top = append(top, domain.AttackTypeCount{Type: t.Type, Count: t.Count})
	}
	return domain.StatsSnapshot{
		TotalThreats:     d.TotalThreats,
		UniqueAttackers:  d.UniqueAttackers,
		AverageRiskScore: d.AverageRiskScore,
		TopAttackTypes:   top,
		Hours:            hours,
	}
}

type healthDTO struct {
	Status string `json:"status"`
}

// Ack: ответ источника на POST.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// optionalInstant: для второстепенных полей: битое время не валит весь ответ.
func optionalInstant(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := domain.ParseInstant(raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
