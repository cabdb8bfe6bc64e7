package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func utcHour(hour int) time.Time {
	return time.Date(2026, time.March, 3, hour, 30, 0, 0, time.UTC)
}

func TestClassifySession(t *testing.T) {
	tests := []struct {
		hour int
		want SessionID
	}{
		{0, SessionAsian},
		{2, SessionAsian},
		{6, SessionAsian},
		{7, SessionLondon},
		{8, SessionLondon},
		{12, SessionLondon},
		{13, SessionOverlap},
		{14, SessionOverlap},
		{15, SessionOverlap},
		{16, SessionNewYork},
		{20, SessionNewYork},
		{21, SessionNewYork},
		{22, SessionAsian},
		{23, SessionAsian},
	}

	for _, tt := range tests {
		got := ClassifySession(utcHour(tt.hour))
		assert.Equalf(t, tt.want, got.ID, "hour %d", tt.hour)
	}
}

func TestClassifySession_Parameters(t *testing.T) {
	overlap := ClassifySession(utcHour(14))
	assert.Equal(t, VolatilityVeryHigh, overlap.Volatility)
	assert.Equal(t, 45.0, overlap.MinScore)
	assert.Equal(t, 1.2, overlap.StopMultiplier)
	assert.Equal(t, 1.0, overlap.SizeMultiplier)

	london := ClassifySession(utcHour(8))
	assert.Equal(t, VolatilityHigh, london.Volatility)
	assert.Equal(t, 50.0, london.MinScore)
	assert.Equal(t, 1.5, london.StopMultiplier)

	asian := ClassifySession(utcHour(2))
	assert.Equal(t, VolatilityLow, asian.Volatility)
	assert.Equal(t, 65.0, asian.MinScore)
	assert.Equal(t, 2.0, asian.StopMultiplier)
	assert.Equal(t, 0.5, asian.SizeMultiplier)
}

func TestClassifySession_NonUTCInput(t *testing.T) {
	// 16:30 in UTC+2 is 14:30 UTC, inside the overlap window.
	loc := time.FixedZone("UTC+2", 2*60*60)
	got := ClassifySession(time.Date(2026, time.March, 3, 16, 30, 0, 0, loc))
	assert.Equal(t, SessionOverlap, got.ID)
}

func TestAdjustMinScore(t *testing.T) {
	assert.Equal(t, 65.0, AdjustMinScore(50, SessionAsian))
	assert.Equal(t, 70.0, AdjustMinScore(55, SessionAsian))
	assert.Equal(t, 65.0, AdjustMinScore(30, SessionAsian)) // floored at 65

	assert.Equal(t, 45.0, AdjustMinScore(50, SessionOverlap))
	assert.Equal(t, 43.0, AdjustMinScore(48, SessionOverlap))
	assert.Equal(t, 45.0, AdjustMinScore(70, SessionOverlap)) // clamped at 45

	assert.Equal(t, 50.0, AdjustMinScore(50, SessionLondon))
	assert.Equal(t, 50.0, AdjustMinScore(50, SessionNewYork))
}

func TestAdjustStopMultiplier(t *testing.T) {
	assert.InDelta(t, 1.2, AdjustStopMultiplier(1.5, SessionOverlap), 1e-9)
	assert.InDelta(t, 1.95, AdjustStopMultiplier(1.5, SessionAsian), 1e-9)
	assert.InDelta(t, 1.5, AdjustStopMultiplier(1.5, SessionLondon), 1e-9)
	assert.InDelta(t, 1.5, AdjustStopMultiplier(1.5, SessionNewYork), 1e-9)
}
