package worker

import (
	"context"
	"time"

	"barbershop/internal/domain"
	"barbershop/internal/models"

	"github.com/rs/zerolog"
)

// AgendaSource lists barbers and their appointments.
type AgendaSource interface {
	ListBarbers(ctx context.Context) ([]*models.Barber, error)
	GetAppointmentsByDateRange(ctx context.Context, from, to time.Time) ([]*models.Appointment, error)
}

// ReminderWorker sends every barber with a Telegram chat tomorrow's agenda
// once a day at the configured clock time.
type ReminderWorker struct {
	source   AgendaSource
	notifier domain.Notifier
	at       models.Clock
	loc      *time.Location
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewReminderWorker(source AgendaSource, notifier domain.Notifier, at models.Clock, loc *time.Location, logger *zerolog.Logger) *ReminderWorker {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReminderWorker{
		source:   source,
		notifier: notifier,
		at:       at,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

// Start blocks until ctx is done.
func (w *ReminderWorker) Start(ctx context.Context) {
	timer := time.NewTimer(w.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			tomorrow := models.StartOfDay(w.now().In(w.loc)).AddDate(0, 0, 1)
			if n, err := w.SendAgendas(ctx, tomorrow); err != nil {
				w.logger.Error().Err(err).Msg("Failed to send reminders")
			} else {
				w.logger.Info().Int("barbers", n).Str("date", models.DayKey(tomorrow)).Msg("Reminders sent")
			}
			timer.Reset(w.untilNext())
		}
	}
}

func (w *ReminderWorker) untilNext() time.Duration {
	now := w.now().In(w.loc)
	next := w.at.On(now)
	if !next.After(now) {
		next = w.at.On(models.StartOfDay(now).AddDate(0, 0, 1))
	}
	return next.Sub(now)
}

// SendAgendas notifies each barber with a chat and at least one active
// appointment on date. It returns the number of barbers notified.
func (w *ReminderWorker) SendAgendas(ctx context.Context, date time.Time) (int, error) {
	from := models.StartOfDay(date.In(w.loc))
	appts, err := w.source.GetAppointmentsByDateRange(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return 0, err
	}
	barbers, err := w.source.ListBarbers(ctx)
	if err != nil {
		return 0, err
	}

	byBarber := make(map[string][]*models.Appointment)
	for _, a := range appts {
		if a.Status == models.StatusPending || a.Status == models.StatusConfirmed {
			byBarber[a.BarberID] = append(byBarber[a.BarberID], a)
		}
	}

	sent := 0
	for _, b := range barbers {
		list := byBarber[b.ID]
		if b.TelegramChatID == 0 || len(list) == 0 {
			continue
		}
		if err := w.notifier.DailyAgenda(ctx, b, from, list); err != nil {
			w.logger.Error().Err(err).Str("barber_id", b.ID).Msg("Failed to send agenda")
			continue
		}
		sent++
	}
	return sent, nil
}
