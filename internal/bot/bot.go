// Package bot is the Telegram bot barbers use to look at and adjust their own schedule.
package bot

import (
	"context"
	"time"

	"barbershop/internal/config"
	"barbershop/internal/domain"
	"barbershop/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TelegramAPI is the part of the Bot API the bot uses.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// Services are the application services behind the bot.
type Services struct {
	Schedules *service.ScheduleService
	Booking   *service.BookingService
	Barbers   *service.BarberService
	Waitlist  *service.WaitlistService
}

type Bot struct {
	tg      TelegramAPI
	config  config.TelegramConfig
	svc     Services
	limits  domain.ScheduleStore
	metrics *Metrics
	loc     *time.Location
	now     func() time.Time
	logger  *zerolog.Logger
}

// NewBot wires the bot. limits may be nil to switch rate limiting off; metrics may be nil.
func NewBot(tg TelegramAPI, cfg config.TelegramConfig, svc Services, limits domain.ScheduleStore, metrics *Metrics, logger *zerolog.Logger) *Bot {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Bot{
		tg:      tg,
		config:  cfg,
		svc:     svc,
		limits:  limits,
		metrics: metrics,
		loc:     svc.Schedules.Location(),
		now:     time.Now,
		logger:  logger,
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tg.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tg.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

// Stop stops receiving Telegram updates (best-effort).
func (b *Bot) Stop() {
	if b == nil || b.tg == nil {
		return
	}
	b.tg.StopReceivingUpdates()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	l := b.logger.With().Str("request_id", uuid.New().String()).Logger()
	updateCtx = l.WithContext(updateCtx)

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	b.withRecovery(updateCtx, msg.Chat.ID, func() {
		if !b.allowed(updateCtx, msg.From.ID) {
			l.Warn().Int64("user_id", msg.From.ID).Msg("Rate limit exceeded")
			b.sendMessage(msg.Chat.ID, "⚠️ Вы отправляете сообщения слишком часто. Пожалуйста, подождите немного.")
			return
		}
		b.handleMessage(updateCtx, msg)
	})
}

func (b *Bot) isAdmin(userID int64) bool {
	for _, id := range b.config.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}
