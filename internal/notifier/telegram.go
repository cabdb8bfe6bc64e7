package notifier

import (
	"context"
	"fmt"
	"time"

	"signal-monitor-go/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Telegram delivers alerts to a Telegram chat and serves the text command
// surface over the same bot.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram creates a Telegram notifier from a bot token and chat id.
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}

	logger = logger.Named("telegram")
	logger.Info("Telegram bot authorized", zap.String("username", bot.Self.UserName))

	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

// Send delivers one alert to the configured chat.
func (t *Telegram) Send(ctx context.Context, alert models.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, formatAlert(alert))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// Test validates that the bot token is live and the API reachable.
func (t *Telegram) Test(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.GetMe(); err != nil {
		return fmt.Errorf("telegram channel unreachable: %w", err)
	}
	return nil
}

// RunCommandLoop consumes bot updates and answers text commands until the
// context is cancelled. Only messages from the configured chat are honored.
func (t *Telegram) RunCommandLoop(ctx context.Context, handler *CommandHandler) {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := t.bot.GetUpdatesChan(updateCfg)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			if t.chatID != 0 && update.Message.Chat.ID != t.chatID {
				t.logger.Warn("Ignoring command from unknown chat",
					zap.Int64("chat_id", update.Message.Chat.ID))
				continue
			}

			reply := handler.Handle(update.Message.Text)
			msg := tgbotapi.NewMessage(update.Message.Chat.ID, reply)
			if _, err := t.bot.Send(msg); err != nil {
				t.logger.Error("Failed to send command reply", zap.Error(err))
			}
		}
	}
}

// formatAlert renders one alert as a plain-text channel message.
func formatAlert(alert models.Alert) string {
	ts := time.UnixMilli(alert.TimestampMs).UTC().Format(time.RFC3339)
	return fmt.Sprintf("[%s] %s %s\nScore: %.1f\n%s\n%s",
		alert.Urgency, alert.Symbol, alert.Direction, alert.Score, alert.Reasoning, ts)
}
