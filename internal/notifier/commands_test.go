package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakePrefs is an in-memory PreferenceStore for command tests.
type fakePrefs struct {
	symbols []string
	failErr error
}

func (f *fakePrefs) ActiveSymbols() []string {
	return f.symbols
}

func (f *fakePrefs) SetActiveSymbols(symbols []string) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.symbols = symbols
	return nil
}

func newTestHandler(active ...string) (*CommandHandler, *fakePrefs) {
	prefs := &fakePrefs{symbols: active}
	handler := NewCommandHandler(prefs, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"})
	return handler, prefs
}

func TestHandle_Symbols(t *testing.T) {
	handler, _ := newTestHandler()
	reply := handler.Handle("symbols")
	assert.Contains(t, reply, "BTCUSDT")
	assert.Contains(t, reply, "ETHUSDT")
	assert.Contains(t, reply, "SOLUSDT")
}

func TestHandle_Active(t *testing.T) {
	handler, _ := newTestHandler("BTCUSDT")
	assert.Contains(t, handler.Handle("active"), "BTCUSDT")

	empty, _ := newTestHandler()
	assert.Contains(t, empty.Handle("active"), "No symbols")
}

func TestHandle_Subscribe(t *testing.T) {
	handler, prefs := newTestHandler("BTCUSDT")

	reply := handler.Handle("subscribe ethusdt")
	assert.Equal(t, "Subscribed to ETHUSDT.", reply)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, prefs.symbols)

	// Already subscribed is reported, not an error.
	reply = handler.Handle("subscribe ETHUSDT")
	assert.Contains(t, reply, "already")

	// Unknown symbols are rejected.
	reply = handler.Handle("subscribe DOGEUSDT")
	assert.Contains(t, reply, "Unknown symbol")

	// Missing argument yields usage.
	assert.Contains(t, handler.Handle("subscribe"), "Usage")
}

func TestHandle_Unsubscribe(t *testing.T) {
	handler, prefs := newTestHandler("BTCUSDT", "ETHUSDT")

	reply := handler.Handle("unsubscribe BTCUSDT")
	assert.Equal(t, "Unsubscribed from BTCUSDT.", reply)
	assert.Equal(t, []string{"ETHUSDT"}, prefs.symbols)

	reply = handler.Handle("unsubscribe BTCUSDT")
	assert.Contains(t, reply, "not being monitored")
}

func TestHandle_AllAndNone(t *testing.T) {
	handler, prefs := newTestHandler("BTCUSDT")

	reply := handler.Handle("all")
	assert.Contains(t, reply, "all 3 symbols")
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, prefs.symbols)

	reply = handler.Handle("none")
	assert.Contains(t, reply, "disabled")
	assert.Empty(t, prefs.symbols)
}

func TestHandle_SlashPrefixAndUnknown(t *testing.T) {
	handler, prefs := newTestHandler()

	// Telegram-style slash commands are accepted.
	reply := handler.Handle("/subscribe BTCUSDT")
	assert.Equal(t, "Subscribed to BTCUSDT.", reply)
	assert.Equal(t, []string{"BTCUSDT"}, prefs.symbols)

	// Unknown and empty input fall back to usage.
	assert.Contains(t, handler.Handle("wat"), "Commands:")
	assert.Contains(t, handler.Handle("   "), "Commands:")
}
