package notifier

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// PreferenceStore is the slice of the preference API the command surface
// needs. The command handler translates text commands into these operations
// and nothing more.
type PreferenceStore interface {
	ActiveSymbols() []string
	SetActiveSymbols(symbols []string) error
}

// CommandHandler turns channel text commands into preference mutations.
type CommandHandler struct {
	prefs     PreferenceStore
	available []string
}

// NewCommandHandler creates a command handler over the available symbol set.
func NewCommandHandler(prefs PreferenceStore, available []string) *CommandHandler {
	return &CommandHandler{prefs: prefs, available: available}
}

// Handle executes one text command and returns a human-readable confirmation.
func (h *CommandHandler) Handle(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return h.usage()
	}

	command := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	args := fields[1:]

	switch command {
	case "symbols":
		return "Available symbols: " + strings.Join(h.available, ", ")

	case "active":
		active := h.prefs.ActiveSymbols()
		if len(active) == 0 {
			return "No symbols are being monitored."
		}
		return "Monitoring: " + strings.Join(active, ", ")

	case "subscribe":
		if len(args) != 1 {
			return "Usage: subscribe SYMBOL"
		}
		symbol := strings.ToUpper(args[0])
		if !lo.Contains(h.available, symbol) {
			return fmt.Sprintf("Unknown symbol %s. Use 'symbols' to list available ones.", symbol)
		}
		active := h.prefs.ActiveSymbols()
		if lo.Contains(active, symbol) {
			return fmt.Sprintf("%s is already being monitored.", symbol)
		}
		if err := h.prefs.SetActiveSymbols(append(active, symbol)); err != nil {
			return fmt.Sprintf("Failed to subscribe %s: %v", symbol, err)
		}
		return fmt.Sprintf("Subscribed to %s.", symbol)

	case "unsubscribe":
		if len(args) != 1 {
			return "Usage: unsubscribe SYMBOL"
		}
		symbol := strings.ToUpper(args[0])
		active := h.prefs.ActiveSymbols()
		if !lo.Contains(active, symbol) {
			return fmt.Sprintf("%s is not being monitored.", symbol)
		}
		remaining := lo.Without(active, symbol)
		if err := h.prefs.SetActiveSymbols(remaining); err != nil {
			return fmt.Sprintf("Failed to unsubscribe %s: %v", symbol, err)
		}
		return fmt.Sprintf("Unsubscribed from %s.", symbol)

	case "all":
		if err := h.prefs.SetActiveSymbols(h.available); err != nil {
			return fmt.Sprintf("Failed to enable all symbols: %v", err)
		}
		return fmt.Sprintf("Monitoring all %d symbols.", len(h.available))

	case "none":
		if err := h.prefs.SetActiveSymbols(nil); err != nil {
			return fmt.Sprintf("Failed to disable monitoring: %v", err)
		}
		return "Monitoring disabled for all symbols."

	default:
		return h.usage()
	}
}

func (h *CommandHandler) usage() string {
	return "Commands: symbols | active | subscribe SYMBOL | unsubscribe SYMBOL | all | none"
}
