package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"barbershop/internal/api"
	"barbershop/internal/bot"
	"barbershop/internal/config"
	"barbershop/internal/database"
	"barbershop/internal/domain"
	"barbershop/internal/events"
	"barbershop/internal/logging"
	"barbershop/internal/repository"
	"barbershop/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
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
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Error().Msg("Задайте токен бота в config.yaml")
		return os.ErrInvalid
	}

	settings, err := service.SettingsFromConfig(cfg.Scheduling)
	if err != nil {
		return fmt.Errorf("scheduling settings: %w", err)
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
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

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug
	notifier := service.NewTelegramNotifier(botAPI, settings.Location)

	bus := events.NewEventBus()
	schedules := service.NewScheduleService(db, store, settings, &logger)
	booking := service.NewBookingService(db, schedules, store, bus, nil, notifier, &logger)
	barbers := service.NewBarberService(db, &logger)
	waitlist := service.NewWaitlistService(db, notifier, settings.Location, &logger)
	bus.Subscribe(events.EventWaitlistSlotOpened, waitlist.HandleSlotOpened)

	if cfg.API.Enabled && cfg.API.HTTP.Enabled {
		apiServer := api.NewHTTPServer(&cfg.API, api.Services{
			Schedules: schedules,
			Booking:   booking,
			Barbers:   barbers,
			Waitlist:  waitlist,
			SyncTasks: db,
			Ready:     db.PingContext,
		}, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	staffBot := bot.NewBot(
		bot.NewBotWrapper(botAPI),
		cfg.Telegram,
		bot.Services{Schedules: schedules, Booking: booking, Barbers: barbers, Waitlist: waitlist},
		store,
		bot.NewMetrics(prometheus.DefaultRegisterer),
		&logger,
	)

	logger.Info().Msg("Бот запущен...")
	go func() {
		<-ctx.Done()
		staffBot.Stop()
	}()
	staffBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
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
	logger := baseLogger.With().Str("component", "bot-main").Logger()
	return cfg, logger, closer, nil
}

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
		logger.Warn().Err(err).Msg("Redis unavailable")
		_ = client.Close()
		return nil
	}
	return client
}

// initScheduleStore backs the day cache and the per-user rate limit.
func initScheduleStore(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) domain.ScheduleStore {
	memory := repository.NewMemoryScheduleStore(cfg.Scheduling.CacheTTL)
	if client == nil {
		return memory
	}
	primary := repository.NewRedisScheduleStore(client, cfg.Scheduling.CacheTTL)
	return repository.NewFailoverScheduleStore(primary, memory, logger)
}
