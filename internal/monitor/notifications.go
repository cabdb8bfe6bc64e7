package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"signal-monitor-go/internal/models"
	"signal-monitor-go/internal/notifier"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Candidate is an accepted signal ready to be turned into an alert.
type Candidate struct {
	SignalID  string  `json:"signal_id"`
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Preferences is the process-wide alerting preference state.
type Preferences struct {
	ActiveSymbols    []string `json:"active_symbols"`
	WarningThreshold float64  `json:"warning_threshold"`
	UrgentThreshold  float64  `json:"urgent_threshold"`
	ChannelChatID    int64    `json:"channel_chat_id"`
}

// PreferenceUpdate is a partial preference overwrite. Nil fields are left
// untouched; a present ActiveSymbols replaces the prior set wholesale.
type PreferenceUpdate struct {
	ActiveSymbols    *[]string `json:"active_symbols,omitempty"`
	WarningThreshold *float64  `json:"warning_threshold,omitempty"`
	UrgentThreshold  *float64  `json:"urgent_threshold,omitempty"`
	ChannelChatID    *int64    `json:"channel_chat_id,omitempty"`
}

// NotificationManager owns alert history, preferences and dismissal state,
// and enforces the dedup rules in front of the outbound channel.
type NotificationManager struct {
	mu        sync.Mutex
	db        *gorm.DB
	channel   notifier.Notifier
	logger    *zap.Logger
	prefs     Preferences
	row       models.Preference
	cooldown  time.Duration
	lastSent  map[string]time.Time
	lastPhase map[string]Phase
}

// ensure the manager can back the channel command surface
var _ notifier.PreferenceStore = (*NotificationManager)(nil)

// NewNotificationManager loads persisted preferences (seeding them from the
// defaults when the table is empty) and wires the outbound channel.
func NewNotificationManager(db *gorm.DB, channel notifier.Notifier, defaults Preferences, cooldown time.Duration, logger *zap.Logger) (*NotificationManager, error) {
	m := &NotificationManager{
		db:        db,
		channel:   channel,
		logger:    logger.Named("notifications"),
		prefs:     defaults,
		cooldown:  cooldown,
		lastSent:  make(map[string]time.Time),
		lastPhase: make(map[string]Phase),
	}

	err := db.First(&m.row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m.row = models.Preference{
			WarningThreshold: defaults.WarningThreshold,
			UrgentThreshold:  defaults.UrgentThreshold,
			ChannelChatID:    defaults.ChannelChatID,
		}
		m.row.SetSymbolList(defaults.ActiveSymbols)
		if err := db.Create(&m.row).Error; err != nil {
			return nil, fmt.Errorf("failed to seed preferences: %w", err)
		}
		m.logger.Info("Seeded preferences from defaults",
			zap.Strings("symbols", defaults.ActiveSymbols))
	} else if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	} else {
		m.prefs = Preferences{
			ActiveSymbols:    m.row.SymbolList(),
			WarningThreshold: m.row.WarningThreshold,
			UrgentThreshold:  m.row.UrgentThreshold,
			ChannelChatID:    m.row.ChannelChatID,
		}
		m.logger.Info("Loaded persisted preferences",
			zap.Strings("symbols", m.prefs.ActiveSymbols))
	}

	return m, nil
}

// Dispatch classifies a candidate by urgency, records it and forwards it to
// the channel. Candidates below the warning threshold and duplicates inside
// the cooldown window are dropped silently with a nil record.
func (m *NotificationManager) Dispatch(ctx context.Context, c Candidate) (*models.Alert, error) {
	if c.Symbol == "" || c.Direction == "" {
		return nil, fmt.Errorf("%w: candidate needs symbol and direction", ErrValidation)
	}

	m.mu.Lock()
	var urgency string
	switch {
	case c.Score >= m.prefs.UrgentThreshold:
		urgency = models.UrgencyUrgent
	case c.Score >= m.prefs.WarningThreshold:
		urgency = models.UrgencyWarning
	default:
		m.mu.Unlock()
		m.logger.Debug("Candidate below warning threshold, dropping",
			zap.String("symbol", c.Symbol), zap.Float64("score", c.Score))
		return nil, nil
	}

	key := c.Symbol + "|" + c.Direction
	if last, seen := m.lastSent[key]; seen && m.cooldown > 0 && time.Since(last) < m.cooldown {
		m.mu.Unlock()
		m.logger.Debug("Duplicate alert inside cooldown window, dropping",
			zap.String("symbol", c.Symbol), zap.String("direction", c.Direction))
		return nil, nil
	}
	m.lastSent[key] = time.Now()
	m.mu.Unlock()

	alert := models.Alert{
		SignalID:    c.SignalID,
		Symbol:      c.Symbol,
		Direction:   c.Direction,
		Score:       c.Score,
		Urgency:     urgency,
		Reasoning:   c.Reasoning,
		TimestampMs: time.Now().UnixMilli(),
	}
	m.record(ctx, &alert)
	return &alert, nil
}

// DispatchStopMove emits a lower-urgency notice that a tracked signal's stop
// advanced. Notices are deduplicated per phase transition, so repeated
// updates inside the same phase emit nothing.
func (m *NotificationManager) DispatchStopMove(ctx context.Context, signalID, symbol, direction string, upd StopUpdate) (*models.Alert, error) {
	m.mu.Lock()
	if m.lastPhase[signalID] == upd.Phase {
		m.mu.Unlock()
		return nil, nil
	}
	m.lastPhase[signalID] = upd.Phase
	m.mu.Unlock()

	alert := models.Alert{
		SignalID:  signalID,
		Symbol:    symbol,
		Direction: direction,
		Urgency:   models.UrgencyInfo,
		Reasoning: fmt.Sprintf("Stop moved to %.5g (%s, profit %.1f%%)",
			upd.Stop, upd.Phase, upd.ProfitPercent),
		TimestampMs: time.Now().UnixMilli(),
	}
	m.record(ctx, &alert)
	return &alert, nil
}

// DispatchClosure emits an informational notice that a tracked signal closed.
func (m *NotificationManager) DispatchClosure(ctx context.Context, signalID, symbol, direction, reason string) (*models.Alert, error) {
	alert := models.Alert{
		SignalID:    signalID,
		Symbol:      symbol,
		Direction:   direction,
		Urgency:     models.UrgencyInfo,
		Reasoning:   reason,
		TimestampMs: time.Now().UnixMilli(),
	}
	m.record(ctx, &alert)
	return &alert, nil
}

// record appends the alert to history and attempts exactly one delivery.
// History reflects intent-to-notify: a delivery failure is logged but never
// rolls back the recorded entry.
func (m *NotificationManager) record(ctx context.Context, alert *models.Alert) {
	if err := m.db.Create(alert).Error; err != nil {
		m.logger.Error("Failed to save alert to history", zap.Error(err))
	}

	if err := m.channel.Send(ctx, *alert); err != nil {
		m.logger.Error("Failed to deliver alert",
			zap.String("symbol", alert.Symbol),
			zap.Uint("alert_id", alert.ID),
			zap.Error(err))
	}
}

// ForgetSignal drops the per-signal dedup state for a closed signal.
func (m *NotificationManager) ForgetSignal(signalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lastPhase, signalID)
}

// Dismiss marks an alert as dismissed. Dismissing twice is not an error.
func (m *NotificationManager) Dismiss(id uint) error {
	var alert models.Alert
	if err := m.db.First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrAlertNotFound, id)
		}
		return fmt.Errorf("failed to look up alert %d: %w", id, err)
	}

	if alert.Dismissed {
		return nil
	}

	if err := m.db.Model(&alert).Update("dismissed", true).Error; err != nil {
		return fmt.Errorf("failed to dismiss alert %d: %w", id, err)
	}
	return nil
}

// History returns alerts in insertion order, optionally filtered by the
// half-open time range [startMs, endMs).
func (m *NotificationManager) History(startMs, endMs *int64) ([]models.Alert, error) {
	query := m.db.Order("id asc")
	if startMs != nil {
		query = query.Where("timestamp_ms >= ?", *startMs)
	}
	if endMs != nil {
		query = query.Where("timestamp_ms < ?", *endMs)
	}

	var alerts []models.Alert
	if err := query.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to query alert history: %w", err)
	}
	return alerts, nil
}

// UpdatePreferences merges a partial update into the preferences and
// persists the result.
func (m *NotificationManager) UpdatePreferences(p PreferenceUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	warning := m.prefs.WarningThreshold
	urgent := m.prefs.UrgentThreshold
	if p.WarningThreshold != nil {
		warning = *p.WarningThreshold
	}
	if p.UrgentThreshold != nil {
		urgent = *p.UrgentThreshold
	}
	if warning > urgent {
		return fmt.Errorf("%w: warning threshold %v exceeds urgent threshold %v",
			ErrValidation, warning, urgent)
	}

	m.prefs.WarningThreshold = warning
	m.prefs.UrgentThreshold = urgent
	if p.ChannelChatID != nil {
		m.prefs.ChannelChatID = *p.ChannelChatID
	}
	if p.ActiveSymbols != nil {
		symbols := lo.Uniq(lo.Map(*p.ActiveSymbols, func(s string, _ int) string {
			return strings.ToUpper(strings.TrimSpace(s))
		}))
		m.prefs.ActiveSymbols = symbols
	}

	m.row.WarningThreshold = m.prefs.WarningThreshold
	m.row.UrgentThreshold = m.prefs.UrgentThreshold
	m.row.ChannelChatID = m.prefs.ChannelChatID
	m.row.SetSymbolList(m.prefs.ActiveSymbols)
	if err := m.db.Save(&m.row).Error; err != nil {
		return fmt.Errorf("failed to persist preferences: %w", err)
	}
	return nil
}

// ActiveSymbols returns a copy of the currently monitored symbol set.
func (m *NotificationManager) ActiveSymbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prefs.ActiveSymbols))
	copy(out, m.prefs.ActiveSymbols)
	return out
}

// SetActiveSymbols replaces the monitored symbol set wholesale.
func (m *NotificationManager) SetActiveSymbols(symbols []string) error {
	if symbols == nil {
		symbols = []string{}
	}
	return m.UpdatePreferences(PreferenceUpdate{ActiveSymbols: &symbols})
}

// Preferences returns a copy of the current preference state.
func (m *NotificationManager) Preferences() Preferences {
	m.mu.Lock()
	defer m.mu.Unlock()
	view := m.prefs
	view.ActiveSymbols = make([]string, len(m.prefs.ActiveSymbols))
	copy(view.ActiveSymbols, m.prefs.ActiveSymbols)
	return view
}
