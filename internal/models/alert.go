package models

import "gorm.io/gorm"

// Alert urgency tiers.
const (
	UrgencyInfo    = "INFO"
	UrgencyWarning = "WARNING"
	UrgencyUrgent  = "URGENT"
)

// Alert represents a dispatched notification record.
// Rows are append-only; Dismissed is the only field mutated after creation.
type Alert struct {
	gorm.Model
	SignalID    string  `json:"signal_id"`
	Symbol      string  `json:"symbol"`
	Direction   string  `json:"direction"` // "LONG" or "SHORT"
	Score       float64 `json:"score"`
	Urgency     string  `json:"urgency"`
	Reasoning   string  `json:"reasoning"`
	TimestampMs int64   `json:"timestamp_ms"`
	Dismissed   bool    `json:"dismissed"`
}
