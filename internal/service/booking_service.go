package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"barbershop/internal/config"
	"barbershop/internal/database"
	"barbershop/internal/domain"
	"barbershop/internal/events"
	"barbershop/internal/metrics"
	"barbershop/internal/models"
	"barbershop/internal/schedule"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	holdAttempts = 40
	holdBackoff  = 25 * time.Millisecond
)

// BookingRepository is what the booking service needs from storage.
type BookingRepository interface {
	domain.AppointmentRepository
	GetBarber(ctx context.Context, id string) (*models.Barber, error)
	GetTreatment(ctx context.Context, id string) (*models.Treatment, error)
	ListWaitlist(ctx context.Context, barberID string, date time.Time, status string) ([]*models.WaitlistEntry, error)
}

// BookingRequest describes a new appointment. Manual requests come from staff booking a
// walk-in client; the rest are client bookings.
type BookingRequest struct {
	BarberID    string
	TreatmentID string
	Start       time.Time
	Duration    int
	UserID      string
	Manual      bool
	ClientName  string
	ClientPhone string
}

// CancelRequest identifies who cancels. UserID is checked only for customers.
type CancelRequest struct {
	AppointmentID string
	By            string
	UserID        string
}

type BookingService struct {
	repo      BookingRepository
	schedules *ScheduleService
	holds     domain.ScheduleStore
	eventBus  domain.EventPublisher
	syncer    domain.SyncEnqueuer
	notifier  domain.Notifier
	settings  Settings
	now       func() time.Time
	logger    *zerolog.Logger
}

func NewBookingService(repo BookingRepository, schedules *ScheduleService, holds domain.ScheduleStore, eventBus domain.EventPublisher, syncer domain.SyncEnqueuer, notifier domain.Notifier, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:      repo,
		schedules: schedules,
		holds:     holds,
		eventBus:  eventBus,
		syncer:    syncer,
		notifier:  notifier,
		settings:  schedules.Settings(),
		now:       time.Now,
		logger:    logger,
	}
}

// ValidateBookingDate rejects starts that are not in the future or beyond the booking horizon.
func (s *BookingService) ValidateBookingDate(start time.Time) error {
	now := s.now()
	if !start.After(now) {
		return ErrPastSlot
	}
	if start.After(now.AddDate(0, 0, s.settings.MaxBookingDays)) {
		return ErrDateTooFar
	}
	return nil
}

// Book re-checks the slot against fresh data and stores the appointment.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (appt *models.Appointment, err error) {
	ctx, span := startSpan(ctx, "booking.Book",
		attribute.String("barber_id", req.BarberID), attribute.Bool("manual", req.Manual))
	defer func() { endSpan(span, err) }()

	start := req.Start.In(s.settings.Location)
	if err := s.ValidateBookingDate(start); err != nil {
		return nil, err
	}

	appt, err = s.newAppointment(ctx, req, start)
	if err != nil {
		return nil, err
	}

	if s.settings.Reservation == config.ReservationRedis && s.holds != nil {
		release, err := s.hold(ctx, appt.BarberID, start)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	// Проверяем слот заново: список слотов у клиента мог устареть
	decision, err := s.schedules.CheckSlot(ctx, schedule.Candidate{
		BarberID: appt.BarberID,
		Start:    start,
		Duration: time.Duration(appt.Duration) * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	if !decision.OK() {
		return nil, slotError(decision)
	}

	if s.settings.Reservation == config.ReservationTransaction {
		_, err = s.repo.CreateAppointmentWithLock(ctx, appt)
	} else {
		_, err = s.repo.CreateAppointment(ctx, appt)
	}
	if errors.Is(err, database.ErrSlotTaken) {
		metrics.IncReservationConflict(config.ReservationTransaction)
		return nil, &SlotError{Reason: schedule.ReasonSlotTaken}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	metrics.IncAppointment(appt.Status)
	s.logger.Info().
		Str("appointment_id", appt.ID).
		Str("barber_id", appt.BarberID).
		Time("start", appt.Date).
		Int("duration", appt.Duration).
		Bool("manual", appt.IsManualClient).
		Msg("Appointment booked")

	changedBy := models.CancelledByCustomer
	if appt.IsManualClient {
		changedBy = models.CancelledByBarber
	}
	s.publishEvent(events.EventAppointmentCreated, appt, "", changedBy)
	s.enqueueSync(ctx, appt, models.SyncUpsertAppointment)
	s.notify(ctx, appt, false)
	return appt, nil
}

// newAppointment builds and validates the record. The duration is copied from the
// treatment when one is given. Manual bookings otherwise default to an hour and wait for
// confirmation; client bookings fall back to one slot and are confirmed.
func (s *BookingService) newAppointment(ctx context.Context, req BookingRequest, start time.Time) (*models.Appointment, error) {
	barber, err := s.repo.GetBarber(ctx, req.BarberID)
	if err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		BarberID:    barber.ID,
		TreatmentID: req.TreatmentID,
		Date:        start,
		Duration:    req.Duration,
		ClientName:  strings.TrimSpace(req.ClientName),
	}
	if req.TreatmentID != "" {
		t, err := s.repo.GetTreatment(ctx, req.TreatmentID)
		if err != nil {
			return nil, err
		}
		appt.Duration = t.Duration
	}

	if req.Manual {
		phone, err := models.NormalizePhone(req.ClientPhone, models.DefaultPhoneRegion)
		if err != nil {
			return nil, err
		}
		appt.IsManualClient = true
		appt.UserID = models.ManualClientUserID
		appt.ClientPhone = phone
		appt.Status = models.StatusPending
		if appt.Duration <= 0 {
			appt.Duration = s.settings.DefaultAppointmentMinutes
		}
	} else {
		appt.UserID = req.UserID
		appt.Status = models.StatusConfirmed
		if appt.Duration <= 0 {
			appt.Duration = s.settings.SlotMinutes(barber)
		}
	}

	if err := appt.Validate(); err != nil {
		return nil, err
	}
	return appt, nil
}

// hold takes the barber's day-wide reservation so that concurrent bookings for the same
// day are checked and written one at a time.
func (s *BookingService) hold(ctx context.Context, barberID string, start time.Time) (func(), error) {
	day := models.StartOfDay(start)
	for attempt := 0; attempt < holdAttempts; attempt++ {
		token, ok, err := s.holds.AcquireDayHold(ctx, barberID, day, s.settings.ReservationTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire reservation: %w", err)
		}
		if ok {
			return func() {
				if err := s.holds.ReleaseDayHold(context.WithoutCancel(ctx), barberID, day, token); err != nil {
					s.logger.Warn().Err(err).Str("barber_id", barberID).Msg("Failed to release reservation")
				}
			}, nil
		}

		timer := time.NewTimer(holdBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	metrics.IncReservationConflict(config.ReservationRedis)
	return nil, ErrReservationBusy
}

// Cancel cancels an appointment. Customers may cancel only their own appointments and
// only up to the cutoff before the start; staff may cancel any open appointment.
func (s *BookingService) Cancel(ctx context.Context, req CancelRequest) (*models.Appointment, error) {
	switch req.By {
	case models.CancelledByCustomer, models.CancelledByBarber, models.CancelledByAdmin:
	default:
		return nil, fmt.Errorf("%w: cancelled by %q", models.ErrInvalidStatus, req.By)
	}

	appt, err := s.repo.GetAppointment(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.IsFinal() {
		return nil, ErrAlreadyFinal
	}

	now := s.now()
	if req.By == models.CancelledByCustomer {
		if appt.UserID != req.UserID {
			return nil, ErrNotOwner
		}
		if appt.Date.Sub(now) < s.settings.CancelCutoff {
			return nil, ErrCancelTooLate
		}
	}

	if err := s.repo.CancelAppointmentWithVersion(ctx, appt.ID, appt.Version, req.By, now); err != nil {
		return nil, err
	}
	prev := appt.Status
	appt.Status = models.StatusCancelled
	appt.CancelledBy = req.By
	appt.CancelledAt = &now
	appt.Version++

	metrics.IncAppointment(appt.Status)
	s.publishEvent(events.EventAppointmentCancelled, appt, prev, req.By)
	s.enqueueSync(ctx, appt, models.SyncUpdateStatus)
	s.notify(ctx, appt, true)
	s.openWaitlist(ctx, appt)
	return appt, nil
}

// UpdateStatus moves an appointment along pending -> confirmed -> completed. Cancellation
// is routed through Cancel with staff rights.
func (s *BookingService) UpdateStatus(ctx context.Context, id, status, changedBy string) (*models.Appointment, error) {
	if !models.ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidStatus, status)
	}
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(appt.Status, status) {
		if appt.IsFinal() {
			return nil, ErrAlreadyFinal
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, status)
	}
	if status == models.StatusCancelled {
		by := changedBy
		if by == "" || by == models.CancelledByCustomer {
			by = models.CancelledByAdmin
		}
		return s.Cancel(ctx, CancelRequest{AppointmentID: id, By: by})
	}

	if err := s.repo.UpdateAppointmentStatusWithVersion(ctx, id, appt.Version, status); err != nil {
		return nil, err
	}
	prev := appt.Status
	appt.Status = status
	appt.Version++

	metrics.IncAppointment(status)
	s.publishEvent(events.EventAppointmentStatusChanged, appt, prev, changedBy)
	s.enqueueSync(ctx, appt, models.SyncUpdateStatus)
	return appt, nil
}

// Delete removes the appointment. Rescheduling is a delete followed by a new booking.
func (s *BookingService) Delete(ctx context.Context, id, changedBy string) error {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		return err
	}

	s.publishEvent(events.EventAppointmentDeleted, appt, appt.Status, changedBy)
	s.enqueueSync(ctx, appt, models.SyncDeleteAppointment)
	if appt.Blocks() && appt.Date.After(s.now()) {
		s.openWaitlist(ctx, appt)
	}
	return nil
}

func (s *BookingService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	return s.repo.GetAppointment(ctx, id)
}

// AppointmentsForDay lists the barber's pending and confirmed appointments on date by start.
func (s *BookingService) AppointmentsForDay(ctx context.Context, barberID string, date time.Time) ([]models.Appointment, error) {
	date = models.StartOfDay(date.In(s.settings.Location))
	all, err := s.repo.FetchAppointmentsForBarberAndDate(ctx, barberID, date)
	if err != nil {
		return nil, err
	}
	out := make([]models.Appointment, 0, len(all))
	for _, a := range all {
		if a.Status == models.StatusPending || a.Status == models.StatusConfirmed {
			out = append(out, a)
		}
	}
	return out, nil
}

// UpcomingForUser lists a client's appointments starting from now.
func (s *BookingService) UpcomingForUser(ctx context.Context, userID string) ([]*models.Appointment, error) {
	list, err := s.repo.GetUserAppointments(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		a.Date = a.Date.In(s.settings.Location)
	}
	return list, nil
}

// openWaitlist announces the freed interval to waiting entries whose window overlaps it.
func (s *BookingService) openWaitlist(ctx context.Context, appt *models.Appointment) {
	start := appt.Date.In(s.settings.Location)
	day := models.StartOfDay(start)
	entries, err := s.repo.ListWaitlist(ctx, appt.BarberID, day, models.WaitlistWaiting)
	if err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appt.ID).Msg("Failed to load waitlist")
		return
	}

	freed := schedule.Interval{Start: start, End: appt.End().In(s.settings.Location)}
	for _, e := range entries {
		wanted := schedule.Interval{Start: e.From.On(day), End: e.To.On(day)}
		if !schedule.Overlaps(freed, wanted) {
			continue
		}
		payload := events.SlotOpenedPayload{
			WaitlistID: e.ID,
			BarberID:   appt.BarberID,
			Start:      freed.Start,
			End:        freed.End,
		}
		if s.eventBus == nil {
			continue
		}
		if err := s.eventBus.PublishJSON(events.EventWaitlistSlotOpened, payload); err != nil {
			s.logger.Error().Err(err).Str("waitlist_id", e.ID).Msg("publish event error")
		}
	}
}

func (s *BookingService) publishEvent(eventType string, appt *models.Appointment, prevStatus, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.AppointmentEventPayload{
		AppointmentID: appt.ID,
		BarberID:      appt.BarberID,
		TreatmentID:   appt.TreatmentID,
		UserID:        appt.UserID,
		ClientName:    appt.ClientName,
		Status:        appt.Status,
		PrevStatus:    prevStatus,
		Start:         appt.Date,
		Duration:      appt.Duration,
		ChangedBy:     changedBy,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("appointment_id", appt.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, appt *models.Appointment, taskType string) {
	if s.syncer == nil {
		return
	}

	var status string
	if taskType == models.SyncUpdateStatus {
		status = appt.Status
	}

	if err := s.syncer.EnqueueTask(ctx, taskType, appt.ID, status); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appt.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}

// notify tells the barber about a new or cancelled appointment.
func (s *BookingService) notify(ctx context.Context, appt *models.Appointment, cancelled bool) {
	if s.notifier == nil {
		return
	}
	barber, err := s.repo.GetBarber(ctx, appt.BarberID)
	if err != nil {
		s.logger.Warn().Err(err).Str("barber_id", appt.BarberID).Msg("Barber lookup for notification failed")
		return
	}
	if cancelled {
		err = s.notifier.AppointmentCancelled(ctx, barber, appt)
	} else {
		err = s.notifier.AppointmentCreated(ctx, barber, appt)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appt.ID).Msg("notification error")
	}
}
