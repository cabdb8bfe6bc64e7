package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"signal-monitor-go/internal/analysis"
	"signal-monitor-go/internal/config"
	"signal-monitor-go/internal/market"

	"go.uber.org/zap"
)

// Status is a point-in-time view of the monitor's run state.
type Status struct {
	IsRunning     bool        `json:"is_running"`
	Initialized   bool        `json:"initialized"`
	TickInterval  int         `json:"tick_interval"`
	LastTick      *time.Time  `json:"last_tick,omitempty"`
	ActiveSymbols []string    `json:"active_symbols"`
	OpenSignals   []StopState `json:"open_signals"`
}

// InitParams is the one-time construction input for the monitor run state.
type InitParams struct {
	Symbols          []string `json:"symbols"`
	TickInterval     int      `json:"tick_interval"`
	WarningThreshold *float64 `json:"warning_threshold,omitempty"`
	UrgentThreshold  *float64 `json:"urgent_threshold,omitempty"`
}

// SignalMonitor drives the periodic evaluation loop: per active symbol it
// pulls candles, invokes the analysis engine, applies session-adjusted
// thresholds, advances trailing stops and forwards qualifying candidates to
// the notification manager.
type SignalMonitor struct {
	logger        *zap.Logger
	cfg           *config.Config
	candles       market.CandleProvider
	engine        analysis.Engine
	tracker       *TrailingStopTracker
	notifications *NotificationManager
	now           func() time.Time

	mu           sync.Mutex
	initialized  bool
	running      bool
	tickInterval time.Duration
	lastTick     time.Time
	quit         chan struct{}
	done         chan struct{}
}

// NewSignalMonitor creates a monitor. Init must be called before Start.
func NewSignalMonitor(logger *zap.Logger, cfg *config.Config, candles market.CandleProvider,
	engine analysis.Engine, tracker *TrailingStopTracker, notifications *NotificationManager) *SignalMonitor {
	return &SignalMonitor{
		logger:        logger.Named("monitor"),
		cfg:           cfg,
		candles:       candles,
		engine:        engine,
		tracker:       tracker,
		notifications: notifications,
		now:           time.Now,
	}
}

// Init performs the one-time construction of preferences and run state.
// Calling it a second time fails with ErrAlreadyInitialized.
func (m *SignalMonitor) Init(params InitParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return ErrAlreadyInitialized
	}
	if params.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive", ErrValidation)
	}

	update := PreferenceUpdate{
		WarningThreshold: params.WarningThreshold,
		UrgentThreshold:  params.UrgentThreshold,
	}
	if params.Symbols != nil {
		update.ActiveSymbols = &params.Symbols
	}
	if err := m.notifications.UpdatePreferences(update); err != nil {
		return err
	}

	m.tickInterval = time.Duration(params.TickInterval) * time.Second
	m.initialized = true
	m.logger.Info("Monitor initialized",
		zap.Strings("symbols", params.Symbols),
		zap.Duration("tick_interval", m.tickInterval))
	return nil
}

// Start schedules the recurring tick loop. It fails with ErrAlreadyRunning
// when called while running; that condition is never silently ignored.
func (m *SignalMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	if m.running {
		return ErrAlreadyRunning
	}

	m.running = true
	m.quit = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(m.quit, m.done)

	m.logger.Info("Monitor started", zap.Duration("tick_interval", m.tickInterval))
	return nil
}

// Stop cancels the recurring schedule. The in-flight tick is allowed to
// complete; stopping an already-stopped monitor is a no-op.
func (m *SignalMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	quit, done := m.quit, m.done
	m.mu.Unlock()

	close(quit)
	<-done
	m.logger.Info("Monitor stopped")
}

// Status reports the current run state.
func (m *SignalMonitor) Status() Status {
	m.mu.Lock()
	status := Status{
		IsRunning:    m.running,
		Initialized:  m.initialized,
		TickInterval: int(m.tickInterval / time.Second),
	}
	if !m.lastTick.IsZero() {
		last := m.lastTick
		status.LastTick = &last
	}
	m.mu.Unlock()

	status.ActiveSymbols = m.notifications.ActiveSymbols()
	status.OpenSignals = m.tracker.Snapshot()
	return status
}

// run owns the ticker. It exits only via the quit channel, after the
// in-flight tick has completed.
func (m *SignalMonitor) run(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick fans out one unit of work per active symbol. Symbols are processed
// concurrently with no cross-symbol ordering guarantee; a failure in one
// symbol never aborts the others.
func (m *SignalMonitor) tick() {
	symbols := m.notifications.ActiveSymbols()
	if len(symbols) == 0 {
		m.logger.Debug("No active symbols, skipping tick")
	}

	timeout := time.Duration(m.cfg.Monitor.SymbolTimeout) * time.Second
	var wg sync.WaitGroup
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := m.scan(ctx, symbol); err != nil {
				// Logged and retried on the next scheduled tick.
				m.logger.Error("Symbol scan failed",
					zap.String("symbol", symbol), zap.Error(err))
			}
		}(symbol)
	}
	wg.Wait()

	m.mu.Lock()
	m.lastTick = m.now()
	m.mu.Unlock()
}

// scan runs the full evaluation pipeline for one symbol.
func (m *SignalMonitor) scan(ctx context.Context, symbol string) error {
	candles, err := m.candles.RecentCandles(ctx, symbol, m.cfg.Market.CandleLimit)
	if err != nil {
		return fmt.Errorf("candle fetch: %w", err)
	}
	if len(candles) == 0 {
		return fmt.Errorf("candle fetch: no candles returned for %s", symbol)
	}
	lastClose := candles[len(candles)-1].Close

	session := ClassifySession(m.now())

	// Advance any open trailing stop before looking at new candidates, so a
	// tick with no fresh signal still maintains protection.
	m.advanceStop(ctx, symbol, lastClose)

	result, err := m.engine.Analyze(ctx, symbol, candles)
	if err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if result.Signal == nil {
		m.logger.Debug("No candidate signal",
			zap.String("symbol", symbol),
			zap.Strings("blocking_reasons", result.BlockingReasons))
		return nil
	}

	signal := result.Signal
	minScore := AdjustMinScore(m.engine.BaseMinScore(), session.ID)
	if signal.Score < minScore {
		m.logger.Info("Candidate rejected by session threshold",
			zap.String("symbol", symbol),
			zap.String("session", string(session.ID)),
			zap.Float64("score", signal.Score),
			zap.Float64("min_score", minScore))
		return nil
	}

	m.trackSignal(ctx, symbol, signal, session)

	_, err = m.notifications.Dispatch(ctx, Candidate{
		SignalID:  symbol,
		Symbol:    symbol,
		Direction: signal.Direction,
		Score:     signal.Score,
		Reasoning: signal.Reasoning,
	})
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	return nil
}

// advanceStop updates the tracked stop for a symbol, closes it when the
// price crosses the stop or the target, and emits phase-change notices.
func (m *SignalMonitor) advanceStop(ctx context.Context, symbol string, lastClose float64) {
	state, open := m.tracker.Get(symbol)
	if !open {
		return
	}

	upd, err := m.tracker.Update(symbol, lastClose)
	if errors.Is(err, ErrUnknownSignal) {
		return // closed concurrently, nothing to do
	}
	if err != nil {
		m.logger.Error("Trailing stop update failed",
			zap.String("symbol", symbol), zap.Error(err))
		return
	}

	if upd.Moved && (upd.Phase == PhaseBreakeven || upd.Phase == PhaseTrailing) {
		if _, err := m.notifications.DispatchStopMove(ctx, symbol, symbol, state.Direction, upd); err != nil {
			m.logger.Error("Stop-move notice failed",
				zap.String("symbol", symbol), zap.Error(err))
		}
	}

	side := sideOf(state.Direction)
	switch {
	case side*(lastClose-upd.Stop) <= 0:
		m.closeSignal(ctx, symbol, state.Direction,
			fmt.Sprintf("Stopped out at %.5g (stop %.5g)", lastClose, upd.Stop))
	case upd.ProfitPercent >= 100 && side*(lastClose-state.TargetPrice) >= 0:
		m.closeSignal(ctx, symbol, state.Direction,
			fmt.Sprintf("Target %.5g reached at %.5g", state.TargetPrice, lastClose))
	}
}

// trackSignal opens trailing-stop state for a freshly accepted candidate.
// A direction flip while an entry is still open closes the stale entry and
// reopens with the new direction.
func (m *SignalMonitor) trackSignal(ctx context.Context, symbol string, signal *analysis.Signal, session SessionConfig) {
	if state, open := m.tracker.Get(symbol); open {
		if state.Direction == signal.Direction {
			return
		}
		m.logger.Warn("Signal direction flipped, closing and reopening",
			zap.String("symbol", symbol),
			zap.String("old_direction", state.Direction),
			zap.String("new_direction", signal.Direction))
		m.closeSignal(ctx, symbol, state.Direction, "Closed on direction flip")
	}

	stopDistance := AdjustStopMultiplier(m.cfg.Monitor.BaseATRMultiplier, session.ID) * signal.ATR
	initialStop := signal.EntryPrice - sideOf(signal.Direction)*stopDistance

	err := m.tracker.Open(symbol, signal.EntryPrice, initialStop, signal.TargetPrice, signal.Direction, signal.ATR)
	if err != nil {
		m.logger.Error("Failed to open trailing stop",
			zap.String("symbol", symbol), zap.Error(err))
	}
}

// closeSignal tears down tracker and dedup state for one signal and emits a
// closure notice.
func (m *SignalMonitor) closeSignal(ctx context.Context, symbol, direction, reason string) {
	m.tracker.Close(symbol)
	m.notifications.ForgetSignal(symbol)
	if _, err := m.notifications.DispatchClosure(ctx, symbol, symbol, direction, reason); err != nil {
		m.logger.Error("Closure notice failed",
			zap.String("symbol", symbol), zap.Error(err))
	}
}
