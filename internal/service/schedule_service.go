package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"barbershop/internal/command"
	"barbershop/internal/domain"
	"barbershop/internal/metrics"
	"barbershop/internal/models"
	"barbershop/internal/schedule"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// ScheduleRepository is what the schedule service reads and writes.
type ScheduleRepository interface {
	domain.AvailabilityRepository
	GetBarber(ctx context.Context, id string) (*models.Barber, error)
	FetchAppointmentsForBarberAndDate(ctx context.Context, barberID string, date time.Time) ([]models.Appointment, error)
}

// ScheduleService resolves barbers' days, offers slots and edits availability.
type ScheduleService struct {
	repo     ScheduleRepository
	cache    domain.ScheduleStore
	resolver *schedule.Resolver
	checker  *schedule.Checker
	settings Settings
	now      func() time.Time
	logger   *zerolog.Logger

	// generations counts invalidations per barber. A day resolved under an older
	// generation is not written back to the cache.
	genMu       sync.Mutex
	generations map[string]uint64
}

func NewScheduleService(repo ScheduleRepository, cache domain.ScheduleStore, settings Settings, logger *zerolog.Logger) *ScheduleService {
	settings = settings.withDefaults()
	return &ScheduleService{
		repo:     repo,
		cache:    cache,
		resolver: schedule.NewResolver(repo, settings.Fallback, settings.Location),
		checker:  schedule.NewChecker(logger),
		settings:    settings,
		now:         time.Now,
		logger:      logger,
		generations: make(map[string]uint64),
	}
}

func (s *ScheduleService) Location() *time.Location { return s.settings.Location }

func (s *ScheduleService) Settings() Settings { return s.settings }

// ResolveDay returns the barber's effective day, served from the cache when possible.
func (s *ScheduleService) ResolveDay(ctx context.Context, barberID string, date time.Time) (schedule.Day, error) {
	date = models.StartOfDay(date.In(s.settings.Location))

	if s.cache != nil {
		cached, err := s.cache.GetDay(ctx, barberID, date)
		switch {
		case err != nil:
			metrics.IncDayCache("error")
			s.logger.Warn().Err(err).Str("barber_id", barberID).Msg("Day cache read failed")
		case cached != nil:
			metrics.IncDayCache("hit")
			return localize(*cached, s.settings.Location), nil
		default:
			metrics.IncDayCache("miss")
		}
	}

	gen := s.generation(barberID)
	day, err := s.resolver.ResolveDay(ctx, barberID, date)
	if err != nil {
		return schedule.Day{}, err
	}
	if s.cache != nil {
		s.cacheDay(ctx, barberID, day, gen)
	}
	return day, nil
}

func (s *ScheduleService) generation(barberID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[barberID]
}

// cacheDay stores day unless the barber's data was saved after gen was taken.
func (s *ScheduleService) cacheDay(ctx context.Context, barberID string, day schedule.Day, gen uint64) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generations[barberID] != gen {
		metrics.IncDayCache("stale")
		return
	}
	if err := s.cache.SetDay(ctx, day); err != nil {
		s.logger.Warn().Err(err).Str("barber_id", barberID).Msg("Day cache write failed")
	}
}

// localize moves a day decoded from the cache back into the shop's timezone.
func localize(d schedule.Day, loc *time.Location) schedule.Day {
	d.Date = d.Date.In(loc)
	d.Start = d.Start.In(loc)
	d.End = d.End.In(loc)
	d.BreakStart = d.BreakStart.In(loc)
	d.BreakEnd = d.BreakEnd.In(loc)
	return d
}

// SlotMinutes is the barber's slot size: the primary treatment's duration or the default.
func (s *ScheduleService) SlotMinutes(ctx context.Context, barberID string) (int, error) {
	b, err := s.repo.GetBarber(ctx, barberID)
	if err != nil {
		return 0, err
	}
	return s.settings.SlotMinutes(b), nil
}

// AvailableSlots lists the free slot starts of the barber on date. Slots that already
// started are left out.
func (s *ScheduleService) AvailableSlots(ctx context.Context, barberID string, date time.Time) (slots []time.Time, err error) {
	ctx, span := startSpan(ctx, "schedule.AvailableSlots",
		attribute.String("barber_id", barberID), attribute.String("date", models.DayKey(date)))
	defer func() { endSpan(span, err) }()

	minutes, err := s.SlotMinutes(ctx, barberID)
	if err != nil {
		return nil, err
	}
	day, err := s.ResolveDay(ctx, barberID, date)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.FetchAppointmentsForBarberAndDate(ctx, barberID, day.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch appointments: %w", err)
	}

	slots = s.checker.AvailableSlots(day, minutes, existing, s.now().In(s.settings.Location))
	metrics.AddSlotsGenerated(len(slots))
	return slots, nil
}

// CheckSlot runs the conflict checker for cand against fresh data.
func (s *ScheduleService) CheckSlot(ctx context.Context, cand schedule.Candidate) (decision schedule.Decision, err error) {
	ctx, span := startSpan(ctx, "schedule.CheckSlot",
		attribute.String("barber_id", cand.BarberID), attribute.String("start", cand.Start.Format(time.RFC3339)))
	defer func() { endSpan(span, err) }()

	cand.Start = cand.Start.In(s.settings.Location)
	day, err := s.ResolveDay(ctx, cand.BarberID, cand.Start)
	if err != nil {
		return schedule.Decision{}, err
	}
	existing, err := s.repo.FetchAppointmentsForBarberAndDate(ctx, cand.BarberID, day.Date)
	if err != nil {
		return schedule.Decision{}, fmt.Errorf("failed to fetch appointments: %w", err)
	}

	decision = s.checker.Check(day, cand, existing)
	metrics.IncSlotCheck(string(decision.Reason))
	span.SetAttributes(attribute.String("reason", string(decision.Reason)))
	if !decision.OK() {
		s.logger.Debug().
			Str("barber_id", cand.BarberID).
			Time("start", cand.Start).
			Str("reason", string(decision.Reason)).
			Msg("Slot rejected")
	}
	return decision, nil
}

func (s *ScheduleService) Weekly(ctx context.Context, barberID string) ([]models.WeeklyAvailability, error) {
	return s.repo.FetchWeeklyAvailability(ctx, barberID)
}

// SaveWeekly replaces the barber's weekly pattern. The week must hold all seven days.
func (s *ScheduleService) SaveWeekly(ctx context.Context, barberID string, week []models.WeeklyAvailability) error {
	for i := range week {
		if week[i].BarberID == "" {
			week[i].BarberID = barberID
		}
	}
	if err := models.ValidateWeek(barberID, week); err != nil {
		return err
	}
	if err := s.repo.SaveWeeklyAvailability(ctx, barberID, week); err != nil {
		return fmt.Errorf("failed to save weekly availability: %w", err)
	}
	s.invalidate(ctx, barberID)
	return nil
}

// ToggleDay switches one weekday on or off. A barber with no weekly rows starts from the
// default week. The returned week is the one in effect after the call, rolled back if the
// write failed.
func (s *ScheduleService) ToggleDay(ctx context.Context, barberID string, weekday time.Weekday, available bool) ([]models.WeeklyAvailability, error) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidWeekday, weekday)
	}
	current, err := s.repo.FetchWeeklyAvailability(ctx, barberID)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		current = models.DefaultWeek(barberID)
	}

	var next []models.WeeklyAvailability
	cmd := &command.Funcs[[]models.WeeklyAvailability]{
		ApplyFn: func(week []models.WeeklyAvailability) []models.WeeklyAvailability {
			next = make([]models.WeeklyAvailability, len(week))
			copy(next, week)
			for i := range next {
				if next[i].DayOfWeek == weekday {
					next[i].IsAvailable = available
				}
			}
			return next
		},
		CommitFn: func(ctx context.Context) error {
			return s.repo.SaveWeeklyAvailability(ctx, barberID, next)
		},
	}

	week, err := command.Run(ctx, current, cmd)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("barber_id", barberID).
			Str("weekday", weekday.String()).
			Msg("Day toggle rolled back")
		return week, err
	}
	s.invalidate(ctx, barberID)
	return week, nil
}

// SaveOverride stores a one-off schedule for a single date.
func (s *ScheduleService) SaveOverride(ctx context.Context, o *models.DateOverride) error {
	o.Date = models.StartOfDay(o.Date.In(s.settings.Location))
	if err := o.Validate(); err != nil {
		return err
	}
	if err := s.repo.SaveDateOverride(ctx, o); err != nil {
		return fmt.Errorf("failed to save date override: %w", err)
	}
	s.invalidate(ctx, o.BarberID)
	return nil
}

// SaveWeekOverrides writes overrides for the Sunday-to-Saturday week containing weekStart,
// leaving the weekly pattern as it is. days[0] is Sunday.
func (s *ScheduleService) SaveWeekOverrides(ctx context.Context, barberID string, weekStart time.Time, days []models.DaySchedule) ([]*models.DateOverride, error) {
	if len(days) != 7 {
		return nil, fmt.Errorf("%w: got %d days", models.ErrIncompleteWeek, len(days))
	}
	sunday := models.StartOfDay(weekStart.In(s.settings.Location))
	sunday = sunday.AddDate(0, 0, -int(sunday.Weekday()))

	overrides := make([]*models.DateOverride, 0, 7)
	for i, d := range days {
		o := &models.DateOverride{
			BarberID:    barberID,
			Date:        sunday.AddDate(0, 0, i),
			DaySchedule: d,
		}
		if err := o.Validate(); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	if err := s.repo.SaveDateOverrides(ctx, overrides); err != nil {
		return nil, fmt.Errorf("failed to save week overrides: %w", err)
	}
	s.invalidate(ctx, barberID)
	return overrides, nil
}

// DeleteOverride reverts date to the weekly pattern.
func (s *ScheduleService) DeleteOverride(ctx context.Context, barberID string, date time.Time) error {
	date = models.StartOfDay(date.In(s.settings.Location))
	if err := s.repo.DeleteDateOverride(ctx, barberID, date); err != nil {
		return err
	}
	s.invalidate(ctx, barberID)
	return nil
}

func (s *ScheduleService) Overrides(ctx context.Context, barberID string, from, to time.Time) ([]*models.DateOverride, error) {
	return s.repo.ListDateOverrides(ctx, barberID, from.In(s.settings.Location), to.In(s.settings.Location))
}

// InitializeDefaultSchedule gives the barber the default week unless one is stored already.
func (s *ScheduleService) InitializeDefaultSchedule(ctx context.Context, barberID string) (bool, error) {
	created, err := s.repo.InitializeWeeklyAvailability(ctx, barberID, models.DefaultWeek(barberID))
	if err != nil {
		return false, fmt.Errorf("failed to initialize schedule: %w", err)
	}
	if created {
		s.invalidate(ctx, barberID)
		s.logger.Info().Str("barber_id", barberID).Msg("Default weekly schedule created")
	}
	return created, nil
}

func (s *ScheduleService) invalidate(ctx context.Context, barberID string) {
	if s.cache == nil {
		return
	}
	s.genMu.Lock()
	s.generations[barberID]++
	s.genMu.Unlock()
	if err := s.cache.InvalidateBarber(ctx, barberID); err != nil {
		s.logger.Error().Err(err).Str("barber_id", barberID).Msg("Failed to invalidate day cache")
	}
}
