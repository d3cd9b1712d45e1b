package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"barbershop/internal/domain"
	"barbershop/internal/events"
	"barbershop/internal/models"

	"github.com/rs/zerolog"
)

// WaitlistRepository is what the waitlist service needs from storage.
type WaitlistRepository interface {
	domain.WaitlistRepository
	GetBarber(ctx context.Context, id string) (*models.Barber, error)
}

type WaitlistService struct {
	repo     WaitlistRepository
	notifier domain.Notifier
	loc      *time.Location
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewWaitlistService(repo WaitlistRepository, notifier domain.Notifier, loc *time.Location, logger *zerolog.Logger) *WaitlistService {
	if loc == nil {
		loc = time.UTC
	}
	return &WaitlistService{
		repo:     repo,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

// Add puts a client on the barber's waitlist for a time window on one date.
func (s *WaitlistService) Add(ctx context.Context, e *models.WaitlistEntry) error {
	phone, err := models.NormalizePhone(e.ClientPhone, models.DefaultPhoneRegion)
	if err != nil {
		return err
	}
	e.ClientPhone = phone
	e.ClientName = strings.TrimSpace(e.ClientName)
	e.Date = models.StartOfDay(e.Date.In(s.loc))
	e.Status = models.WaitlistWaiting
	e.NotifiedAt = nil
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Date.Before(models.StartOfDay(s.now().In(s.loc))) {
		return ErrPastSlot
	}
	if _, err := s.repo.GetBarber(ctx, e.BarberID); err != nil {
		return err
	}
	if err := s.repo.CreateWaitlistEntry(ctx, e); err != nil {
		return err
	}
	s.logger.Info().Str("waitlist_id", e.ID).Str("barber_id", e.BarberID).Msg("Waitlist entry added")
	return nil
}

// List returns the barber's entries, optionally narrowed to one date and status.
func (s *WaitlistService) List(ctx context.Context, barberID string, date time.Time, status string) ([]*models.WaitlistEntry, error) {
	if !date.IsZero() {
		date = models.StartOfDay(date.In(s.loc))
	}
	return s.repo.ListWaitlist(ctx, barberID, date, status)
}

// MarkNotified moves a waiting entry to notified and tells the barber when a chat is known.
func (s *WaitlistService) MarkNotified(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	e, err := s.repo.GetWaitlistEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != models.WaitlistWaiting {
		return nil, fmt.Errorf("%w: waitlist entry is %s", ErrInvalidTransition, e.Status)
	}

	now := s.now()
	if err := s.repo.UpdateWaitlistStatus(ctx, id, models.WaitlistNotified, now); err != nil {
		return nil, err
	}
	e.Status = models.WaitlistNotified
	e.NotifiedAt = &now

	if s.notifier != nil {
		barber, err := s.repo.GetBarber(ctx, e.BarberID)
		if err != nil {
			s.logger.Warn().Err(err).Str("barber_id", e.BarberID).Msg("Barber lookup for notification failed")
			return e, nil
		}
		if err := s.notifier.WaitlistSlotOpened(ctx, barber, e); err != nil {
			s.logger.Error().Err(err).Str("waitlist_id", id).Msg("notification error")
		}
	}
	return e, nil
}

func (s *WaitlistService) Remove(ctx context.Context, id string) error {
	return s.repo.DeleteWaitlistEntry(ctx, id)
}

// HandleSlotOpened is subscribed to waitlist.slot_opened events.
func (s *WaitlistService) HandleSlotOpened(event *events.Event) error {
	var p events.SlotOpenedPayload
	if err := event.Decode(&p); err != nil {
		return err
	}
	_, err := s.MarkNotified(context.Background(), p.WaitlistID)
	if errors.Is(err, ErrInvalidTransition) {
		return nil
	}
	return err
}
