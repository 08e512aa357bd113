package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"basketarb/internal/api"
	"basketarb/internal/bot"
	"basketarb/internal/config"
	"basketarb/internal/market"
	"basketarb/internal/models"
	"basketarb/internal/notify"
	"basketarb/internal/repository"
	"basketarb/internal/schedule"
	"basketarb/internal/venue"
	"basketarb/pkg/retry"
	"basketarb/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML-файлу конфигурации")
	flag.Parse()

	// Загрузка конфигурации
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Broker.IsSandbox() {
		logger.Infow("running against sandbox environment", "base_url", cfg.Broker.BaseURL)
	}

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatalw("failed to connect to database", "dsn", cfg.Database.DSNWithoutPassword(), "error", err)
	}
	defer db.Close()

	logger.Infow("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	tradeRepo := repository.NewTradeRepository(db)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	if err := tradeRepo.EnsureSchema(startupCtx); err != nil {
		logger.Fatalw("failed to ensure trades schema", "error", err)
	}

	// Сессия брокера: токен для REST, approval key для потока котировок
	session := venue.NewSession(cfg.Broker.BaseURL, cfg.Broker.AppKey, cfg.Broker.AppSecret)
	if _, err := session.IssueToken(startupCtx); err != nil {
		logger.Fatalw("failed to issue access token", "error", err)
	}
	approvalKey, err := session.IssueApprovalKey(startupCtx)
	if err != nil {
		logger.Fatalw("failed to issue approval key", "error", err)
	}

	kis, err := venue.NewKISClient(venue.KISConfig{
		BaseURL:           cfg.Broker.BaseURL,
		AppKey:            cfg.Broker.AppKey,
		AppSecret:         cfg.Broker.AppSecret,
		AccountNo:         cfg.Broker.AccountNo,
		RequestsPerSecond: cfg.Broker.RequestsPerSecond,
	}, session, logger)
	if err != nil {
		logger.Fatalw("failed to create broker client", "error", err)
	}

	notifier := notify.NewDiscordNotifier(cfg.Notify.DiscordWebhookURL, logger)

	// Рыночные данные: поток тиков раскладывается диспетчером
	// по кэшу цен и монитору дивергенции
	store := market.NewStore()
	monitor := market.NewDivergenceMonitor()
	dispatcher := market.NewDispatcher(models.ETFCode, store, monitor)

	feed := market.NewFeedClient(market.DefaultFeedConfig(cfg.Broker.WebsocketURL), approvalKey, logger)
	feed.SetOnTick(dispatcher.Handle)
	feed.SetOnConnect(func() {
		bot.UpdateFeedStatus(true)
		logger.Infow("market feed connected")
	})
	feed.SetOnDisconnect(func(err error) {
		bot.UpdateFeedStatus(false)
		logger.Warnw("market feed disconnected", "error", err)
		notifier.Notify(fmt.Sprintf("Поток котировок оборвался: %v. Переподключаюсь", err))
	})

	if err := subscribeQuotes(feed); err != nil {
		logger.Fatalw("failed to register feed subscriptions", "error", err)
	}
	if err := feed.Connect(); err != nil {
		logger.Fatalw("failed to connect market feed", "error", err)
	}

	// Торговый движок
	book := bot.NewPositionBook()
	executor := bot.NewOrderExecutor(kis, executorConfigFrom(cfg.Trading), logger)

	engine := bot.NewEngine(engineConfigFrom(cfg.Trading), store, monitor, executor, book, kis, tradeRepo, notifier, logger)

	// Восстановление позиции по остаткам на счёте: после рестарта
	// движок должен знать, чем он владеет, до первого сигнала
	if err := engine.DetectStartupPosition(startupCtx); err != nil {
		logger.Fatalw("failed to detect startup position", "error", err)
	}

	// HTTP API мониторинга
	router := api.SetupRoutes(&api.Dependencies{
		Position:              book,
		Divergence:            monitor,
		Engine:                engine,
		Journal:               tradeRepo,
		Sandbox:               cfg.Broker.IsSandbox(),
		BasicAuthUser:         cfg.Server.BasicAuthUser,
		BasicAuthPasswordHash: cfg.Server.BasicAuthPasswordHash,
		Logger:                logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infow("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	// Планировщик сессий: торговля по расписанию биржи,
	// распродажа перед закрытием
	scheduler, err := schedule.NewScheduler(schedule.Config{
		OpenAt:   cfg.Schedule.OpenAt,
		CutoffAt: cfg.Schedule.CutoffAt,
		Timezone: cfg.Schedule.Timezone,
	}, engine, logger)
	if err != nil {
		logger.Fatalw("failed to create scheduler", "error", err)
	}

	env := "боевой"
	if cfg.Broker.IsSandbox() {
		env = "тестовый"
	}
	notifier.Notify(fmt.Sprintf("Бот запущен (%s контур), позиция: %s", env, book.View().Kind))

	runCtx, cancelRun := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(runCtx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infow("shutting down")
	notifier.Notify("Бот останавливается")

	cancelRun()
	<-schedulerDone

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := feed.Close(); err != nil {
		logger.Warnw("error closing market feed", "error", err)
	}
	if err := session.RevokeToken(shutdownCtx); err != nil {
		logger.Warnw("error revoking access token", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("server forced to shutdown", "error", err)
	}
	venue.CloseGlobalClient()

	logger.Infow("exited")
}

// subscribeQuotes регистрирует подписки потока: сделки всех бумаг
// корзины и ETF плюс NAV самого ETF
func subscribeQuotes(feed *market.FeedClient) error {
	for _, code := range models.BasketCodes() {
		if err := feed.Subscribe(market.TrTradePrice, code); err != nil {
			return err
		}
	}
	if err := feed.Subscribe(market.TrTradePrice, models.ETFCode); err != nil {
		return err
	}
	return feed.Subscribe(market.TrNAV, models.ETFCode)
}

// engineConfigFrom собирает настройки торгового цикла из конфигурации
func engineConfigFrom(t config.TradingConfig) bot.EngineConfig {
	return bot.EngineConfig{
		Thresholds: bot.Thresholds{
			Enter: t.EnterThreshold,
			Exit:  t.ExitThreshold,
			Hedge: t.HedgeThreshold,
		},
		TickInterval:  t.TickInterval,
		PlanEvery:     t.PlanEvery,
		QuoteMaxAge:   t.QuoteMaxAge,
		HedgeQuantity: t.HedgeQuantity,
	}
}

// executorConfigFrom собирает настройки исполнения заявок
// Повторы отправки и запроса цены идут с фиксированным интервалом
func executorConfigFrom(t config.TradingConfig) bot.ExecutorConfig {
	return bot.ExecutorConfig{
		SubmitRetry: retry.Config{
			MaxRetries:   t.SubmitAttempts,
			InitialDelay: t.SubmitBackoff,
			MaxDelay:     t.SubmitBackoff,
			Multiplier:   1,
		},
		PriceRetry: retry.Config{
			MaxRetries:   t.PriceAttempts,
			InitialDelay: t.PriceInterval,
			MaxDelay:     t.PriceInterval,
			Multiplier:   1,
		},
		ConfirmInterval:            t.ConfirmInterval,
		ConfirmAttempts:            t.ConfirmAttempts,
		LiquidationConfirmAttempts: t.LiquidationConfirmAttempts,
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
