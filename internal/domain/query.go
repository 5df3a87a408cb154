package domain

// ThreatFilter: параметры выборки ленты событий. Пустые поля в запрос не попадают.
type ThreatFilter struct {
	Page       int
	PerPage    int
	Service    string
	AttackType string
	AttackerIP string
	StartDate  string
	EndDate    string
}

// AttackerFilter: параметры выборки профилей атакующих.
type AttackerFilter struct {
	Page      int
	PerPage   int
	RiskLevel string
}

// ThreatPage: страница ленты. Total: общее число событий в ленте на стороне источника.
type ThreatPage struct {
	Threats    []ThreatEvent `json:"threats"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	TotalPages int           `json:"total_pages"`
}

// Count: число событий ленты, по которому считается дельта новых событий.
// Если источник не прислал total, берем длину страницы.
func (p ThreatPage) Count() int {
	if p.Total > 0 {
		return p.Total
	}
	return len(p.Threats)
}
