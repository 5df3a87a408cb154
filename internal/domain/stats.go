package domain

import "time"

// StatsSnapshot: агрегированная статистика за окно в Hours часов.
type StatsSnapshot struct {
	TotalThreats     int               `json:"total_threats"`
	UniqueAttackers  int               `json:"unique_attackers"`
	AverageRiskScore float64           `json:"average_risk_score"`
	TopAttackTypes   []AttackTypeCount `json:"top_attack_types"` // Уже отсортирован источником
	Hours            int               `json:"hours"`
}

type AttackTypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Snapshot: согласованный результат одного цикла опроса.
// Публикуется целиком или не публикуется вовсе.
type Snapshot struct {
	Cycle       uint64            `json:"cycle"` // Монотонный номер цикла
	Stats       StatsSnapshot     `json:"stats"`
	Threats     []ThreatEvent     `json:"threats"` // Newest first
	ThreatTotal int               `json:"threat_total"`
	Attackers   []AttackerProfile `json:"attackers"`
	FetchedAt   time.Time         `json:"fetched_at"`
}

// WithStats возвращает копию среза с новой статистикой (смена диапазона).
func (s Snapshot) WithStats(stats StatsSnapshot) Snapshot {
	s.Stats = stats
	return s
}
