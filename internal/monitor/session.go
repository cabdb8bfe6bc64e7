package monitor

import "time"

// SessionID identifies a UTC time-of-day trading session.
type SessionID string

const (
	SessionAsian   SessionID = "ASIAN"
	SessionLondon  SessionID = "LONDON"
	SessionNewYork SessionID = "NEW_YORK"
	SessionOverlap SessionID = "OVERLAP"
)

// Volatility tiers by session.
const (
	VolatilityLow      = "LOW"
	VolatilityHigh     = "HIGH"
	VolatilityVeryHigh = "VERY_HIGH"
)

// SessionConfig holds the tuning parameters for one trading session.
type SessionConfig struct {
	ID             SessionID `json:"id"`
	Volatility     string    `json:"volatility"`
	MinScore       float64   `json:"min_score"`
	StopMultiplier float64   `json:"stop_multiplier"`
	SizeMultiplier float64   `json:"size_multiplier"`
}

// ClassifySession maps a wall-clock instant onto its session configuration.
// Hour ranges are half-open UTC intervals; the London/New York overlap window
// is checked first and wins over both.
func ClassifySession(t time.Time) SessionConfig {
	hour := t.UTC().Hour()

	switch {
	case hour >= 13 && hour < 16:
		return SessionConfig{
			ID:             SessionOverlap,
			Volatility:     VolatilityVeryHigh,
			MinScore:       45,
			StopMultiplier: 1.2,
			SizeMultiplier: 1.0,
		}
	case hour >= 7 && hour < 16:
		return SessionConfig{
			ID:             SessionLondon,
			Volatility:     VolatilityHigh,
			MinScore:       50,
			StopMultiplier: 1.5,
			SizeMultiplier: 1.0,
		}
	case hour >= 13 && hour < 22:
		return SessionConfig{
			ID:             SessionNewYork,
			Volatility:     VolatilityHigh,
			MinScore:       50,
			StopMultiplier: 1.5,
			SizeMultiplier: 1.0,
		}
	default:
		return SessionConfig{
			ID:             SessionAsian,
			Volatility:     VolatilityLow,
			MinScore:       65,
			StopMultiplier: 2.0,
			SizeMultiplier: 0.5,
		}
	}
}

// AdjustMinScore adapts a base minimum score to the session.
// ASIAN raises the base by 15 with a floor of 65; OVERLAP lowers it by 5 with
// a ceiling of 45; London and New York pass through unchanged.
func AdjustMinScore(base float64, session SessionID) float64 {
	switch session {
	case SessionAsian:
		adjusted := base + 15
		if adjusted < 65 {
			return 65
		}
		return adjusted
	case SessionOverlap:
		adjusted := base - 5
		if adjusted > 45 {
			return 45
		}
		return adjusted
	default:
		return base
	}
}

// AdjustStopMultiplier adapts a base ATR stop multiplier to the session.
func AdjustStopMultiplier(base float64, session SessionID) float64 {
	switch session {
	case SessionOverlap:
		return base * 0.8
	case SessionAsian:
		return base * 1.3
	default:
		return base
	}
}
