package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"signal-monitor-go/internal/analysis"
	"signal-monitor-go/internal/config"
	"signal-monitor-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// MockCandleProvider is a mock implementation of market.CandleProvider.
type MockCandleProvider struct {
	mock.Mock
}

func (m *MockCandleProvider) RecentCandles(ctx context.Context, symbol string, limit int) ([]analysis.Candle, error) {
	args := m.Called(ctx, symbol, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]analysis.Candle), args.Error(1)
}

// MockEngine is a mock implementation of analysis.Engine.
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Analyze(ctx context.Context, symbol string, candles []analysis.Candle) (analysis.Result, error) {
	args := m.Called(ctx, symbol, candles)
	return args.Get(0).(analysis.Result), args.Error(1)
}

func (m *MockEngine) BaseMinScore() float64 {
	args := m.Called()
	return args.Get(0).(float64)
}

// monitorFixture bundles a fully wired monitor with its collaborators.
type monitorFixture struct {
	monitor  *SignalMonitor
	provider *MockCandleProvider
	engine   *MockEngine
	tracker  *TrailingStopTracker
	manager  *NotificationManager
	channel  *MockNotifier
}

// setupMonitor wires a monitor over mocks, an in-memory DB and a fixed clock
// pinned inside the London session.
func setupMonitor(t *testing.T) *monitorFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.Alert{}, &models.Preference{}))

	channel := new(MockNotifier)
	defaults := Preferences{
		ActiveSymbols:    []string{"BTCUSDT", "ETHUSDT"},
		WarningThreshold: 60,
		UrgentThreshold:  80,
	}
	manager, err := NewNotificationManager(db, channel, defaults, 0, zap.NewNop())
	assert.NoError(t, err)

	cfg := &config.Config{
		Market: config.Market{CandleLimit: 50},
		Monitor: config.Monitor{
			SymbolTimeout:     5,
			BaseMinScore:      50,
			BaseATRMultiplier: 1.5,
		},
	}

	provider := new(MockCandleProvider)
	engine := new(MockEngine)
	tracker := NewTrailingStopTracker(zap.NewNop())

	m := NewSignalMonitor(zap.NewNop(), cfg, provider, engine, tracker, manager)
	m.now = func() time.Time {
		return time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC) // London
	}

	return &monitorFixture{
		monitor:  m,
		provider: provider,
		engine:   engine,
		tracker:  tracker,
		manager:  manager,
		channel:  channel,
	}
}

func testCandles(lastClose float64) []analysis.Candle {
	candles := make([]analysis.Candle, 20)
	for i := range candles {
		candles[i] = analysis.Candle{
			OpenTime: int64(i) * 60_000,
			Open:     100, High: 101, Low: 99, Close: 100, Volume: 10,
		}
	}
	candles[len(candles)-1].Close = lastClose
	return candles
}

func longSignal(score float64) *analysis.Signal {
	return &analysis.Signal{
		Direction:   analysis.DirectionLong,
		Score:       score,
		Reasoning:   "sweep of session low",
		EntryPrice:  100,
		StopPrice:   97,
		TargetPrice: 110,
		ATR:         2,
	}
}

func TestInit_Once(t *testing.T) {
	f := setupMonitor(t)

	err := f.monitor.Init(InitParams{Symbols: []string{"BTCUSDT"}, TickInterval: 60})
	assert.NoError(t, err)

	err = f.monitor.Init(InitParams{Symbols: []string{"ETHUSDT"}, TickInterval: 60})
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestInit_Validation(t *testing.T) {
	f := setupMonitor(t)

	err := f.monitor.Init(InitParams{TickInterval: 0})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStartStop_StateMachine(t *testing.T) {
	f := setupMonitor(t)

	// Start before Init is a precondition violation.
	assert.ErrorIs(t, f.monitor.Start(), ErrNotInitialized)

	assert.NoError(t, f.monitor.Init(InitParams{TickInterval: 60}))
	assert.NoError(t, f.monitor.Start())
	assert.True(t, f.monitor.Status().IsRunning)

	// Calling start twice is a caller bug worth signaling.
	assert.ErrorIs(t, f.monitor.Start(), ErrAlreadyRunning)

	f.monitor.Stop()
	assert.False(t, f.monitor.Status().IsRunning)

	// Stopping twice is a no-op, not an error.
	f.monitor.Stop()
	assert.False(t, f.monitor.Status().IsRunning)

	// The monitor can be restarted after a stop.
	assert.NoError(t, f.monitor.Start())
	f.monitor.Stop()
}

func TestTick_AcceptedSignalOpensTrackerAndDispatches(t *testing.T) {
	f := setupMonitor(t)
	f.channel.On("Send", mock.Anything, mock.Anything).Return(nil)

	f.provider.On("RecentCandles", mock.Anything, mock.Anything, 50).Return(testCandles(100), nil)
	f.engine.On("BaseMinScore").Return(50.0)
	f.engine.On("Analyze", mock.Anything, "BTCUSDT", mock.Anything).
		Return(analysis.Result{Signal: longSignal(85), HasValidSetup: true}, nil)
	f.engine.On("Analyze", mock.Anything, "ETHUSDT", mock.Anything).
		Return(analysis.Result{BlockingReasons: []string{"no sweep"}}, nil)

	f.monitor.tick()

	// London session: stop distance is base 1.5 x ATR 2 = 3 below entry.
	state, open := f.tracker.Get("BTCUSDT")
	assert.True(t, open)
	assert.Equal(t, 97.0, state.CurrentStop)
	assert.Equal(t, analysis.DirectionLong, state.Direction)

	_, open = f.tracker.Get("ETHUSDT")
	assert.False(t, open)

	history, err := f.manager.History(nil, nil)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, "BTCUSDT", history[0].Symbol)
	assert.Equal(t, models.UrgencyUrgent, history[0].Urgency)

	status := f.monitor.Status()
	assert.NotNil(t, status.LastTick)
	assert.Len(t, status.OpenSignals, 1)
}

func TestTick_SessionGateRejectsLowScore(t *testing.T) {
	f := setupMonitor(t)

	// Pin the clock to the Asian session: AdjustMinScore(50) = 65.
	f.monitor.now = func() time.Time {
		return time.Date(2026, time.March, 3, 2, 0, 0, 0, time.UTC)
	}

	f.provider.On("RecentCandles", mock.Anything, mock.Anything, 50).Return(testCandles(100), nil)
	f.engine.On("BaseMinScore").Return(50.0)
	f.engine.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(analysis.Result{Signal: longSignal(60), HasValidSetup: true}, nil)

	f.monitor.tick()

	_, open := f.tracker.Get("BTCUSDT")
	assert.False(t, open)

	history, err := f.manager.History(nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, history)
}

func TestTick_FailedSymbolDoesNotAffectOthers(t *testing.T) {
	f := setupMonitor(t)
	f.channel.On("Send", mock.Anything, mock.Anything).Return(nil)

	// BTCUSDT's upstream fetch fails, ETHUSDT succeeds.
	f.provider.On("RecentCandles", mock.Anything, "BTCUSDT", 50).
		Return(nil, errors.New("upstream unavailable"))
	f.provider.On("RecentCandles", mock.Anything, "ETHUSDT", 50).Return(testCandles(100), nil)
	f.engine.On("BaseMinScore").Return(50.0)
	f.engine.On("Analyze", mock.Anything, "ETHUSDT", mock.Anything).
		Return(analysis.Result{Signal: longSignal(85), HasValidSetup: true}, nil)

	f.monitor.tick()

	// ETHUSDT's candidate was still dispatched.
	history, err := f.manager.History(nil, nil)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, "ETHUSDT", history[0].Symbol)

	// BTCUSDT's tracker state is untouched.
	_, open := f.tracker.Get("BTCUSDT")
	assert.False(t, open)
}

func TestTick_StopMoveEmitsNotice(t *testing.T) {
	f := setupMonitor(t)
	f.channel.On("Send", mock.Anything, mock.Anything).Return(nil)

	assert.NoError(t, f.tracker.Open("BTCUSDT", 100, 95, 110, analysis.DirectionLong, 2))

	// Price at 30% of the target distance moves the stop to breakeven.
	f.provider.On("RecentCandles", mock.Anything, mock.Anything, 50).Return(testCandles(103), nil)
	f.engine.On("BaseMinScore").Return(50.0)
	f.engine.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(analysis.Result{}, nil)

	f.monitor.tick()

	stop, open := f.tracker.StopOf("BTCUSDT")
	assert.True(t, open)
	assert.Equal(t, 100.0, stop)

	history, err := f.manager.History(nil, nil)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, models.UrgencyInfo, history[0].Urgency)
	assert.Contains(t, history[0].Reasoning, "Stop moved")
}

func TestTick_StopOutClosesSignal(t *testing.T) {
	f := setupMonitor(t)
	f.channel.On("Send", mock.Anything, mock.Anything).Return(nil)

	assert.NoError(t, f.tracker.Open("BTCUSDT", 100, 95, 110, analysis.DirectionLong, 2))

	f.provider.On("RecentCandles", mock.Anything, mock.Anything, 50).Return(testCandles(94), nil)
	f.engine.On("BaseMinScore").Return(50.0)
	f.engine.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(analysis.Result{}, nil)

	f.monitor.tick()

	_, open := f.tracker.Get("BTCUSDT")
	assert.False(t, open)

	history, err := f.manager.History(nil, nil)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Contains(t, history[0].Reasoning, "Stopped out")
}

func TestTick_DirectionFlipClosesAndReopens(t *testing.T) {
	f := setupMonitor(t)
	f.channel.On("Send", mock.Anything, mock.Anything).Return(nil)

	assert.NoError(t, f.tracker.Open("BTCUSDT", 100, 95, 110, analysis.DirectionLong, 2))

	short := &analysis.Signal{
		Direction:   analysis.DirectionShort,
		Score:       85,
		Reasoning:   "sweep of session high",
		EntryPrice:  100,
		StopPrice:   103,
		TargetPrice: 90,
		ATR:         2,
	}
	f.provider.On("RecentCandles", mock.Anything, mock.Anything, 50).Return(testCandles(100), nil)
	f.engine.On("BaseMinScore").Return(50.0)
	f.engine.On("Analyze", mock.Anything, "BTCUSDT", mock.Anything).
		Return(analysis.Result{Signal: short, HasValidSetup: true}, nil)
	f.engine.On("Analyze", mock.Anything, "ETHUSDT", mock.Anything).
		Return(analysis.Result{}, nil)

	f.monitor.tick()

	state, open := f.tracker.Get("BTCUSDT")
	assert.True(t, open)
	assert.Equal(t, analysis.DirectionShort, state.Direction)
	// London session: stop sits 1.5 x ATR 2 = 3 above the short entry.
	assert.Equal(t, 103.0, state.CurrentStop)
}
