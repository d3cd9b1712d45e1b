package models

import (
	"fmt"
	"time"
)

// DaySchedule is the working shape of a single day.
type DaySchedule struct {
	Start       Clock `json:"startTime" yaml:"start_time"`
	End         Clock `json:"endTime" yaml:"end_time"`
	IsAvailable bool  `json:"isAvailable" yaml:"is_available"`
	HasBreak    bool  `json:"hasBreak" yaml:"has_break"`
	BreakStart  Clock `json:"breakStartTime,omitempty" yaml:"break_start_time"`
	BreakEnd    Clock `json:"breakEndTime,omitempty" yaml:"break_end_time"`
}

// Validate checks start < end and that a break, if any, fits inside the window.
func (d DaySchedule) Validate() error {
	if d.End <= d.Start {
		return fmt.Errorf("%w: working hours %s-%s", ErrInvalidWindow, d.Start, d.End)
	}
	if !d.HasBreak {
		return nil
	}
	if d.BreakEnd <= d.BreakStart {
		return fmt.Errorf("%w: break %s-%s", ErrInvalidWindow, d.BreakStart, d.BreakEnd)
	}
	if d.BreakStart < d.Start || d.BreakEnd > d.End {
		return fmt.Errorf("%w: break %s-%s, hours %s-%s", ErrBreakOutsideWindow, d.BreakStart, d.BreakEnd, d.Start, d.End)
	}
	return nil
}

// WeeklyAvailability is the recurring record for one weekday.
type WeeklyAvailability struct {
	BarberID  string       `json:"barberId"`
	DayOfWeek time.Weekday `json:"dayOfWeek"`
	DaySchedule
	UpdatedAt time.Time `json:"updatedAt"`
}

func (w WeeklyAvailability) Validate() error {
	if w.BarberID == "" {
		return fmt.Errorf("%w: barberId", ErrMissingField)
	}
	if w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: %d", ErrInvalidWeekday, w.DayOfWeek)
	}
	if err := w.DaySchedule.Validate(); err != nil {
		return fmt.Errorf("%s: %w", w.DayOfWeek, err)
	}
	return nil
}

// DateOverride replaces the weekly pattern for one calendar date.
type DateOverride struct {
	ID       string    `json:"id"`
	BarberID string    `json:"barberId"`
	Date     time.Time `json:"date"`
	DaySchedule
	UpdatedAt time.Time `json:"updatedAt"`
}

func (o DateOverride) Validate() error {
	if o.BarberID == "" {
		return fmt.Errorf("%w: barberId", ErrMissingField)
	}
	if o.Date.IsZero() {
		return fmt.Errorf("%w: date", ErrMissingField)
	}
	if err := o.DaySchedule.Validate(); err != nil {
		return fmt.Errorf("%s: %w", DayKey(o.Date), err)
	}
	return nil
}

// ValidateWeek requires exactly seven valid records, one per weekday, all for barberID.
func ValidateWeek(barberID string, days []WeeklyAvailability) error {
	if len(days) != 7 {
		return fmt.Errorf("%w: got %d records", ErrIncompleteWeek, len(days))
	}
	var seen [7]bool
	for _, d := range days {
		if d.BarberID != barberID {
			return fmt.Errorf("record for barber %q in schedule of %q", d.BarberID, barberID)
		}
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.DayOfWeek] {
			return fmt.Errorf("%w: %s repeated", ErrIncompleteWeek, d.DayOfWeek)
		}
		seen[d.DayOfWeek] = true
	}
	return nil
}

// DefaultWeek is the schedule given to a newly configured barber:
// Monday to Thursday 09:00-18:00, the rest of the week off.
func DefaultWeek(barberID string) []WeeklyAvailability {
	week := make([]WeeklyAvailability, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		week = append(week, WeeklyAvailability{
			BarberID:  barberID,
			DayOfWeek: d,
			DaySchedule: DaySchedule{
				Start:       MustClock("09:00"),
				End:         MustClock("18:00"),
				IsAvailable: d >= time.Monday && d <= time.Thursday,
			},
		})
	}
	return week
}
