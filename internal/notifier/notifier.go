package notifier

import (
	"context"

	"signal-monitor-go/internal/models"
)

// Notifier is the outbound notification channel contract.
type Notifier interface {
	// Send delivers one alert to the channel.
	Send(ctx context.Context, alert models.Alert) error

	// Test validates channel reachability without sending an alert.
	Test(ctx context.Context) error
}

// Nop is a Notifier that silently discards everything. It is used when no
// channel is configured so the monitor can run without one.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) Send(ctx context.Context, alert models.Alert) error { return nil }

func (Nop) Test(ctx context.Context) error { return nil }
