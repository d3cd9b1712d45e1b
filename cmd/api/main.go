package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"barbershop/internal/api"
	"barbershop/internal/config"
	"barbershop/internal/database"
	"barbershop/internal/domain"
	"barbershop/internal/events"
	"barbershop/internal/export"
	"barbershop/internal/google"
	"barbershop/internal/logging"
	"barbershop/internal/metrics"
	"barbershop/internal/models"
	"barbershop/internal/repository"
	"barbershop/internal/service"
	"barbershop/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	settings, err := service.SettingsFromConfig(cfg.Scheduling)
	if err != nil {
		return fmt.Errorf("scheduling settings: %w", err)
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if err := applySeed(db, &logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}
	store := initScheduleStore(cfg, redisClient, &logger)
	if settings.Reservation == config.ReservationRedis && redisClient == nil {
		logger.Warn().Msg("reservation mode redis without redis: holds are local to this instance")
	}

	bus := events.NewEventBus()
	notifier := initTelegram(cfg, settings.Location, &logger)
	syncer := initSheets(ctx, cfg, db, redisClient, &logger)

	schedules := service.NewScheduleService(db, store, settings, &logger)
	booking := service.NewBookingService(db, schedules, store, bus, syncer, notifier, &logger)
	waitlist := service.NewWaitlistService(db, notifier, settings.Location, &logger)
	bus.Subscribe(events.EventWaitlistSlotOpened, waitlist.HandleSlotOpened)
	subscribeAudit(bus, &logger)

	if notifier != nil {
		at, _ := models.ParseClock(cfg.Scheduling.ReminderTime)
		go worker.NewReminderWorker(db, notifier, at, settings.Location, &logger).Start(ctx)
	}
	if cfg.Backup.Enabled {
		go database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger).Start(ctx)
	}

	services := api.Services{
		Schedules: schedules,
		Booking:   booking,
		Barbers:   service.NewBarberService(db, &logger),
		Waitlist:  waitlist,
		Exporter:  export.NewExporter(db, cfg.Exports.Path, settings.Location),
		SyncTasks: db,
		Ready:     db.PingContext,
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, services, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}
	httpServer := api.NewHTTPServer(&cfg.API, services, &logger)

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// applySeed loads barbers, treatments and default weeks. A missing seed file is not an error.
func applySeed(db *database.DB, logger *zerolog.Logger) error {
	seedPath := os.Getenv("SEED_PATH")
	if seedPath == "" {
		seedPath = "configs/seed.yaml"
	}
	seed, err := service.LoadSeed(seedPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("seed_path", seedPath).Msg("seed file not found, skipping")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("read seed")
		return err
	}
	return service.ApplySeed(context.Background(), db, seed, logger)
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initScheduleStore puts Redis in front of the in-memory store when Redis is available.
func initScheduleStore(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) domain.ScheduleStore {
	memory := repository.NewMemoryScheduleStore(cfg.Scheduling.CacheTTL)
	if client == nil {
		return memory
	}
	primary := repository.NewRedisScheduleStore(client, cfg.Scheduling.CacheTTL)
	return repository.NewFailoverScheduleStore(primary, memory, logger)
}

func initTelegram(cfg *config.Config, loc *time.Location, logger *zerolog.Logger) domain.Notifier {
	if cfg.Telegram.BotToken == "" {
		logger.Info().Msg("telegram bot token not set, notifications disabled")
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, notifications disabled")
		return nil
	}
	bot.Debug = cfg.Telegram.Debug
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram connected")
	return service.NewTelegramNotifier(bot, loc)
}

func initSheets(ctx context.Context, cfg *config.Config, db *database.DB, client *redis.Client, logger *zerolog.Logger) domain.SyncEnqueuer {
	if !cfg.Google.Enabled() {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.AppointmentsSpreadsheetID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets header check failed")
	}
	go sheetsService.StartCacheRefresh(ctx, time.Duration(models.SheetsCacheTTL)*time.Second)

	w := worker.NewSheetsWorker(db, sheetsService, client, worker.RetryPolicy{}, logger)
	go w.Start(ctx)

	logger.Info().Msg("google sheets connected")
	return w
}

// subscribeAudit logs every appointment change published on the bus.
func subscribeAudit(bus *events.EventBus, logger *zerolog.Logger) {
	audit := func(e *events.Event) error {
		var p events.AppointmentEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		logger.Info().
			Str("event", e.Type).
			Str("appointment_id", p.AppointmentID).
			Str("barber_id", p.BarberID).
			Str("status", p.Status).
			Str("changed_by", p.ChangedBy).
			Msg("appointment event")
		return nil
	}
	for _, typ := range []string{
		events.EventAppointmentCreated,
		events.EventAppointmentCancelled,
		events.EventAppointmentStatusChanged,
		events.EventAppointmentDeleted,
	} {
		bus.Subscribe(typ, audit)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("grpc_port", cfg.API.GRPC.Port).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
