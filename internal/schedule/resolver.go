package schedule

import (
	"context"
	"fmt"
	"time"

	"barbershop/internal/models"
)

// FallbackPolicy decides how a barber with no availability records at all is treated.
type FallbackPolicy string

const (
	// FallbackClosed treats an unconfigured barber as not working.
	FallbackClosed FallbackPolicy = "closed"
	// FallbackOpen treats an unconfigured barber as open all day and skips the working-hours check.
	FallbackOpen FallbackPolicy = "open"
)

func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(s) {
	case FallbackClosed, FallbackOpen:
		return FallbackPolicy(s), nil
	case "":
		return FallbackClosed, nil
	}
	return "", fmt.Errorf("unknown fallback policy %q", s)
}

// Where a resolved day came from.
const (
	SourceOverride   = "override"
	SourceWeekly     = "weekly"
	SourceFallback   = "fallback"
	SourceUnassigned = "none"
)

// Day is the effective schedule of one barber on one calendar date.
type Day struct {
	BarberID   string    `json:"barberId"`
	Date       time.Time `json:"date"`
	IsOpen     bool      `json:"isOpen"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	HasBreak   bool      `json:"hasBreak"`
	BreakStart time.Time `json:"breakStart"`
	BreakEnd   time.Time `json:"breakEnd"`
	Source     string    `json:"source"`
	// Configured is false when the barber has no availability records at all.
	Configured bool `json:"configured"`
}

func (d Day) Window() Interval {
	return Interval{Start: d.Start, End: d.End}
}

func (d Day) Break() (Interval, bool) {
	if !d.HasBreak {
		return Interval{}, false
	}
	return Interval{Start: d.BreakStart, End: d.BreakEnd}, true
}

// Records is the stored availability the resolver decides from.
type Records struct {
	Weekly   []models.WeeklyAvailability
	Override *models.DateOverride
}

// Resolve computes the effective day for barberID on date. A date override wins over the
// weekly pattern. Weekday and wall-clock times are taken in date's location.
func Resolve(barberID string, date time.Time, rec Records, policy FallbackPolicy) Day {
	date = models.StartOfDay(date)
	day := Day{BarberID: barberID, Date: date, Configured: true}

	if rec.Override != nil {
		day.Source = SourceOverride
		return applySchedule(day, rec.Override.DaySchedule)
	}

	if len(rec.Weekly) == 0 {
		day.Configured = false
		day.Source = SourceFallback
		if policy == FallbackOpen {
			day.IsOpen = true
			day.Start = date
			day.End = date.AddDate(0, 0, 1)
		}
		return day
	}

	for _, w := range rec.Weekly {
		if w.DayOfWeek == date.Weekday() {
			day.Source = SourceWeekly
			return applySchedule(day, w.DaySchedule)
		}
	}
	day.Source = SourceUnassigned
	return day
}

func applySchedule(day Day, s models.DaySchedule) Day {
	if !s.IsAvailable {
		return day
	}
	day.IsOpen = true
	day.Start = s.Start.On(day.Date)
	day.End = s.End.On(day.Date)
	if s.HasBreak {
		day.HasBreak = true
		day.BreakStart = s.BreakStart.On(day.Date)
		day.BreakEnd = s.BreakEnd.On(day.Date)
	}
	return day
}

// AvailabilitySource fetches the stored records for a barber.
type AvailabilitySource interface {
	FetchWeeklyAvailability(ctx context.Context, barberID string) ([]models.WeeklyAvailability, error)
	FetchDateOverride(ctx context.Context, barberID string, date time.Time) (*models.DateOverride, error)
}

// Resolver fetches availability and resolves days in the shop's timezone.
type Resolver struct {
	source AvailabilitySource
	policy FallbackPolicy
	loc    *time.Location
}

func NewResolver(source AvailabilitySource, policy FallbackPolicy, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{source: source, policy: policy, loc: loc}
}

// ResolveDay loads the barber's records and resolves date.
func (r *Resolver) ResolveDay(ctx context.Context, barberID string, date time.Time) (Day, error) {
	date = models.StartOfDay(date.In(r.loc))

	override, err := r.source.FetchDateOverride(ctx, barberID, date)
	if err != nil {
		return Day{}, fmt.Errorf("failed to fetch date override: %w", err)
	}
	var weekly []models.WeeklyAvailability
	if override == nil {
		weekly, err = r.source.FetchWeeklyAvailability(ctx, barberID)
		if err != nil {
			return Day{}, fmt.Errorf("failed to fetch weekly availability: %w", err)
		}
	}
	return Resolve(barberID, date, Records{Weekly: weekly, Override: override}, r.policy), nil
}
