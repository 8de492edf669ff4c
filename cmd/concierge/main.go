package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"

	"github.com/example/concierge/internal/bot"
	"github.com/example/concierge/internal/config"
	"github.com/example/concierge/internal/database"
	"github.com/example/concierge/internal/delivery"
	"github.com/example/concierge/internal/models"
	"github.com/example/concierge/internal/oracle"
	"github.com/example/concierge/internal/parser"
	"github.com/example/concierge/internal/repository"
	"github.com/example/concierge/internal/scheduler"
	"github.com/example/concierge/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if cfg.TelegramToken == "" {
		logger.Error("TELEGRAM_TOKEN is required")
		os.Exit(1)
	}

	defaultLoc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		logger.Error("load default timezone", "timezone", cfg.DefaultTimezone, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		logger.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if err := db.Migrate(ctx); err != nil {
		logger.Error("run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	var model oracle.Oracle
	if cfg.AIAPIKey != "" {
		model = oracle.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		logger.Info("oracle client initialized", "model", cfg.AIModel)
	} else {
		logger.Warn("no AI_API_KEY, natural-language parsing disabled")
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Error("create telegram api", "error", err)
		os.Exit(1)
	}

	personRepo := repository.NewPersonRepository(db)
	anchorRepo := repository.NewAnchorRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	clock := clockwork.NewRealClock()

	anchors := service.NewAnchorService(anchorRepo, categoryRepo, reminderRepo,
		db, clock, defaultLoc, logger)

	adapters := map[models.ChannelKind]delivery.Adapter{
		models.ChannelChat: delivery.NewTelegramAdapter(api),
	}
	if cfg.SMTPHost != "" {
		adapters[models.ChannelEmail] = delivery.NewEmailAdapter(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPassword)
	}
	if cfg.SMSGatewayURL != "" {
		adapters[models.ChannelSMS] = delivery.NewSMSAdapter(cfg.SMSGatewayURL, cfg.SMSAPIKey)
	}

	dispatcher := delivery.NewDispatcher(personRepo, anchorRepo, messageRepo, model, adapters, logger)

	scanner := scheduler.NewScanner(reminderRepo, dispatcher, clock,
		cfg.ScanInterval, cfg.DispatchTimeout,
		cfg.MaxDeliveryAttempts, cfg.DispatchConcurrency, logger)
	go scanner.Start(ctx)

	requestParser := parser.New(model, anchors, personRepo, reminderRepo,
		db, clock, defaultLoc, logger)

	handlers := bot.NewHandlers(api, requestParser, personRepo, reminderRepo,
		anchors, messageRepo, db, scanner, defaultLoc, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	b := bot.New(api, handlers, logger)
	if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot stopped", "error", err)
		os.Exit(1)
	}
}
