package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signal-monitor-go/internal/config"
	"signal-monitor-go/internal/database"
	"signal-monitor-go/internal/engine"
	"signal-monitor-go/internal/logger"
	"signal-monitor-go/internal/market"
	"signal-monitor-go/internal/monitor"
	"signal-monitor-go/internal/notifier"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Initialize market data client
	candles := market.NewRestClient(&cfg.Market, log)
	if _, err := candles.ServerTime(context.Background()); err != nil {
		log.Warn("Market data API not reachable at startup, will retry on ticks", zap.Error(err))
	} else {
		log.Info("Successfully connected to market data API.")
	}

	// Initialize the notification channel
	var channel notifier.Notifier = notifier.Nop{}
	var telegram *notifier.Telegram
	if cfg.Notifier.TelegramToken != "" {
		telegram, err = notifier.NewTelegram(cfg.Notifier.TelegramToken, cfg.Notifier.ChatID, log)
		if err != nil {
			log.Fatal("Failed to initialize Telegram channel", zap.Error(err))
		}
		channel = telegram
	} else {
		log.Warn("No Telegram token configured, notifications are disabled")
	}

	// Initialize the notification manager with config-derived defaults
	defaults := monitor.Preferences{
		ActiveSymbols:    cfg.Monitor.Symbols,
		WarningThreshold: cfg.Alerts.WarningThreshold,
		UrgentThreshold:  cfg.Alerts.UrgentThreshold,
		ChannelChatID:    cfg.Notifier.ChatID,
	}
	cooldown := time.Duration(cfg.Alerts.CooldownMinutes) * time.Minute
	notifications, err := monitor.NewNotificationManager(db, channel, defaults, cooldown, log)
	if err != nil {
		log.Fatal("Failed to initialize notification manager", zap.Error(err))
	}

	// Assemble the monitor
	tracker := monitor.NewTrailingStopTracker(log)
	analysisEngine := engine.New(cfg.Monitor.BaseMinScore)
	sigMonitor := monitor.NewSignalMonitor(log, &cfg, candles, analysisEngine, tracker, notifications)

	if cfg.Monitor.AutoInit {
		// Symbols are left nil so persisted subscriptions survive restarts;
		// first-boot defaults were seeded by the notification manager above.
		err := sigMonitor.Init(monitor.InitParams{
			TickInterval: cfg.Monitor.TickInterval,
		})
		if err != nil {
			log.Fatal("Failed to initialize monitor", zap.Error(err))
		}
		if cfg.Monitor.AutoStart {
			if err := sigMonitor.Start(); err != nil {
				log.Fatal("Failed to start monitor", zap.Error(err))
			}
		}
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Serve the channel command surface when a bot is configured
	if telegram != nil {
		commands := notifier.NewCommandHandler(notifications, cfg.Monitor.Symbols)
		go telegram.RunCommandLoop(ctx, commands)
	}

	// Start the HTTP API
	apiServer := monitor.NewAPIServer(cfg.Server.Port, sigMonitor, notifications, channel, log)
	apiServer.Start()

	<-ctx.Done()

	sigMonitor.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}

	log.Info("Monitor has been shut down.")
}
