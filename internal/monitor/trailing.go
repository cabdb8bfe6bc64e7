package monitor

import (
	"fmt"
	"sync"

	"signal-monitor-go/internal/analysis"

	"go.uber.org/zap"
)

// Phase of a tracked signal's protective stop.
type Phase string

const (
	PhaseActive    Phase = "ACTIVE"
	PhaseBreakeven Phase = "BREAKEVEN"
	PhaseTrailing  Phase = "TRAILING"
)

// StopState is the tracked stop state for one open signal.
type StopState struct {
	SignalID    string  `json:"signal_id"`
	EntryPrice  float64 `json:"entry_price"`
	InitialStop float64 `json:"initial_stop"`
	CurrentStop float64 `json:"current_stop"`
	Direction   string  `json:"direction"`
	ATR         float64 `json:"atr"`
	TargetPrice float64 `json:"target_price"`
}

// StopUpdate is the result of applying one price update to a tracked signal.
type StopUpdate struct {
	Stop          float64 `json:"stop"`
	Moved         bool    `json:"moved"`
	ProfitPercent float64 `json:"profit_percent"`
	Phase         Phase   `json:"phase"`
}

// TrailingStopTracker owns all per-signal stop state. Stops only ever move in
// the direction that reduces risk: non-decreasing for LONG, non-increasing for
// SHORT.
type TrailingStopTracker struct {
	mu     sync.Mutex
	stops  map[string]*StopState
	logger *zap.Logger
}

// NewTrailingStopTracker creates an empty tracker.
func NewTrailingStopTracker(logger *zap.Logger) *TrailingStopTracker {
	return &TrailingStopTracker{
		stops:  make(map[string]*StopState),
		logger: logger.Named("trailing"),
	}
}

// Open starts tracking a new signal with its stop at the initial level.
func (t *TrailingStopTracker) Open(signalID string, entry, initialStop, target float64, direction string, atr float64) error {
	if signalID == "" {
		return fmt.Errorf("%w: empty signal id", ErrValidation)
	}
	if direction != analysis.DirectionLong && direction != analysis.DirectionShort {
		return fmt.Errorf("%w: direction %q", ErrValidation, direction)
	}
	if atr <= 0 {
		return fmt.Errorf("%w: atr must be positive, got %v", ErrValidation, atr)
	}
	side := sideOf(direction)
	if side*(target-entry) <= 0 {
		return fmt.Errorf("%w: target %v is not beyond entry %v for %s", ErrValidation, target, entry, direction)
	}
	if side*(entry-initialStop) <= 0 {
		return fmt.Errorf("%w: initial stop %v is not behind entry %v for %s", ErrValidation, initialStop, entry, direction)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.stops[signalID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSignal, signalID)
	}

	t.stops[signalID] = &StopState{
		SignalID:    signalID,
		EntryPrice:  entry,
		InitialStop: initialStop,
		CurrentStop: initialStop,
		Direction:   direction,
		ATR:         atr,
		TargetPrice: target,
	}

	t.logger.Info("Tracking new signal",
		zap.String("signal_id", signalID),
		zap.String("direction", direction),
		zap.Float64("entry", entry),
		zap.Float64("initial_stop", initialStop),
		zap.Float64("target", target),
	)
	return nil
}

// Update applies the latest price to a tracked signal and advances the stop
// when a trailing rule improves it. The deepest satisfied profit tier wins:
// breakeven once 30% of the target distance is reached, then locks of
// 25/50/75% of the target distance at 50/75/100% profit, with a 1.5-ATR
// volatility trail as fallback. A rule is applied only if it strictly
// improves the stop, so the ratchet invariant holds regardless of order.
func (t *TrailingStopTracker) Update(signalID string, price float64) (StopUpdate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, exists := t.stops[signalID]
	if !exists {
		return StopUpdate{}, fmt.Errorf("%w: %s", ErrUnknownSignal, signalID)
	}

	side := sideOf(state.Direction)
	profitDistance := side * (price - state.EntryPrice)
	targetDistance := side * (state.TargetPrice - state.EntryPrice)
	profitPercent := profitDistance / targetDistance * 100

	// improves reports whether a candidate stop strictly reduces risk.
	improves := func(candidate float64) bool {
		return side*(candidate-state.CurrentStop) > 0
	}
	// lockLevel is the stop that protects the given fraction of the target
	// distance.
	lockLevel := func(fraction float64) float64 {
		return state.EntryPrice + side*fraction*targetDistance
	}
	atrTrail := price - side*1.5*state.ATR

	update := StopUpdate{Stop: state.CurrentStop, ProfitPercent: profitPercent, Phase: phaseOf(state)}

	var candidate float64
	var phase Phase
	switch {
	case profitPercent >= 100 && improves(lockLevel(0.75)):
		candidate, phase = lockLevel(0.75), PhaseTrailing
	case profitPercent >= 75 && improves(lockLevel(0.5)):
		candidate, phase = lockLevel(0.5), PhaseTrailing
	case profitPercent >= 50 && improves(lockLevel(0.25)):
		candidate, phase = lockLevel(0.25), PhaseTrailing
	case profitPercent >= 30 && improves(state.EntryPrice):
		candidate, phase = state.EntryPrice, PhaseBreakeven
	case profitDistance > 1.5*state.ATR && improves(atrTrail):
		candidate, phase = atrTrail, PhaseTrailing
	default:
		return update, nil
	}

	state.CurrentStop = candidate
	update.Stop = candidate
	update.Moved = true
	update.Phase = phase

	t.logger.Info("Advanced trailing stop",
		zap.String("signal_id", signalID),
		zap.Float64("price", price),
		zap.Float64("new_stop", candidate),
		zap.Float64("profit_percent", profitPercent),
		zap.String("phase", string(phase)),
	)
	return update, nil
}

// StopOf returns the current stop for a signal, if tracked.
func (t *TrailingStopTracker) StopOf(signalID string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, exists := t.stops[signalID]
	if !exists {
		return 0, false
	}
	return state.CurrentStop, true
}

// Get returns a copy of the tracked state for a signal, if present.
func (t *TrailingStopTracker) Get(signalID string) (StopState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, exists := t.stops[signalID]
	if !exists {
		return StopState{}, false
	}
	return *state, true
}

// Close stops tracking a signal. Closing an unknown id is not an error.
func (t *TrailingStopTracker) Close(signalID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.stops[signalID]; exists {
		delete(t.stops, signalID)
		t.logger.Info("Closed tracked signal", zap.String("signal_id", signalID))
	}
}

// Snapshot returns a copy of every tracked stop state for bulk reporting.
func (t *TrailingStopTracker) Snapshot() []StopState {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := make([]StopState, 0, len(t.stops))
	for _, state := range t.stops {
		snapshot = append(snapshot, *state)
	}
	return snapshot
}

// phaseOf derives the phase from where the current stop sits relative to entry.
func phaseOf(state *StopState) Phase {
	side := sideOf(state.Direction)
	switch {
	case side*(state.CurrentStop-state.EntryPrice) > 0:
		return PhaseTrailing
	case state.CurrentStop == state.EntryPrice:
		return PhaseBreakeven
	default:
		return PhaseActive
	}
}

// sideOf maps a direction onto its arithmetic sign: +1 for LONG, -1 for SHORT.
func sideOf(direction string) float64 {
	if direction == analysis.DirectionShort {
		return -1
	}
	return 1
}
