package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"macropulse/internal/config"
	"macropulse/internal/dedup"
	"macropulse/internal/events"
	"macropulse/internal/market"
	"macropulse/internal/renderer"
	"macropulse/internal/schedule"
	"macropulse/internal/scheduler"
	"macropulse/internal/service"
	"macropulse/internal/statestore"
	"macropulse/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	force := flag.Bool("force", false, "publish the priority languages immediately, bypassing schedule and dedup")
	once := flag.Bool("once", false, "run a single scheduled evaluation and exit")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	table, err := schedule.ParseTable(cfg.Schedule)
	if err != nil {
		logger.Error("invalid schedule", "error", err)
		os.Exit(1)
	}

	matcher := schedule.NewMatcher(table, logger)
	filter := dedup.NewFilter(cfg.Scheduler.Cooldown, logger)

	store, cleanup, err := buildStateStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize state store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	transports := buildTransports(cfg, logger)
	if len(transports) == 0 {
		logger.Error("no transports configured")
		os.Exit(1)
	}

	marketSource := market.New(market.Config{
		BaseURL:        cfg.Market.BaseURL,
		Timeout:        cfg.Market.Timeout,
		MaxAttempts:    cfg.Market.Retry.MaxAttempts,
		InitialBackoff: cfg.Market.Retry.InitialBackoff,
		MaxBackoff:     cfg.Market.Retry.MaxBackoff,
	}, logger)

	contentRenderer := renderer.NewOpenAI(renderer.Config{
		APIKey:         cfg.OpenAI.APIKey,
		Model:          cfg.OpenAI.Model,
		Timeout:        cfg.OpenAI.Timeout,
		MaxOutputChars: cfg.OpenAI.MaxOutputChars,
	}, logger)

	var eventPublisher service.EventPublisher
	if cfg.Events.Enabled {
		rabbitMQ, err := events.NewRabbitMQ(events.Config{
			URL:        cfg.Events.URL,
			Exchange:   cfg.Events.Exchange,
			RoutingKey: cfg.Events.RoutingKey,
			QueueName:  cfg.Events.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		eventPublisher = rabbitMQ
	}

	cycleService := service.NewCycleService(
		marketSource,
		contentRenderer,
		nil, // image renderer is an optional collaborator, injected by deployments that have one
		transports,
		store,
		eventPublisher,
		matcher,
		filter,
		logger,
		cfg.Scheduler,
		cfg.Publish,
		cfg.State.ProtectedKeys,
	)

	if *force || *once {
		runOnce(cycleService, cfg, logger, *force)
		return
	}

	sched := scheduler.NewScheduler(cycleService, cfg.Scheduler.Interval, cfg.Scheduler.CycleTimeout, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting signal publisher",
		"interval", cfg.Scheduler.Interval,
		"lookback", cfg.Scheduler.Lookback,
		"cooldown", cfg.Scheduler.Cooldown,
		"languages", table.Languages(),
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func runOnce(cycleService *service.CycleService, cfg *config.Config, logger *slog.Logger, force bool) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.CycleTimeout)
	defer cancel()

	report, err := cycleService.Run(ctx, force)
	if err != nil {
		logger.Error("cycle failed", "error", err)
		os.Exit(1)
	}

	for id, outcome := range report.Outcomes {
		logger.Info("outcome", "id", id, "outcome", outcome, "reason", report.Reasons[id])
	}
	logger.Info("cycle finished",
		"status", report.Status,
		"sent", report.Sent,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)

	if report.Failed > 0 {
		os.Exit(1)
	}
}

func buildStateStore(cfg *config.Config, logger *slog.Logger) (service.StateStore, func(), error) {
	if cfg.State.Backend == "postgres" {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("connected to database")
		return statestore.NewPostgresStore(db, cfg.State.Name, logger), func() { db.Close() }, nil
	}

	return statestore.NewFileStore(cfg.State.Path, logger), func() {}, nil
}

func buildTransports(cfg *config.Config, logger *slog.Logger) []service.Transport {
	var transports []service.Transport

	if cfg.Transports.Telegram.Token != "" && cfg.Transports.Telegram.ChatID != "" {
		transports = append(transports, transport.NewTelegram(transport.TelegramConfig{
			Token:  cfg.Transports.Telegram.Token,
			ChatID: cfg.Transports.Telegram.ChatID,
		}, logger))
	}

	if cfg.Transports.Discord.WebhookURL != "" {
		transports = append(transports, transport.NewDiscord(transport.DiscordConfig{
			WebhookURL: cfg.Transports.Discord.WebhookURL,
		}, logger))
	}

	return transports
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
