package domain

// RiskTier: уровень риска по шкале 0..10.
type RiskTier string

const (
	TierLow      RiskTier = "low"
	TierMedium   RiskTier = "medium"
	TierHigh     RiskTier = "high"
	TierCritical RiskTier = "critical"
)

// Пороговые значения шкалы (включительно).
const (
	LowMax    = 3
	MediumMax = 6
	HighMax   = 8

	// CriticalThreshold: с этого балла новое событие поднимает тревогу.
	CriticalThreshold = 8
)

func TierOf(score int) RiskTier {
	switch {
	case score <= LowMax:
		return TierLow
	case score <= MediumMax:
		return TierMedium
	case score <= HighMax:
		return TierHigh
	default:
		return TierCritical
	}
}
