package schedule

import (
	"time"

	"barbershop/internal/models"

	"github.com/rs/zerolog"
)

// Reason tags the outcome of a slot check.
type Reason string

const (
	ReasonOK                  Reason = "ok"
	ReasonOutsideWorkingHours Reason = "outside_working_hours"
	ReasonDuringBreak         Reason = "during_break"
	ReasonSlotTaken           Reason = "slot_taken"
	ReasonInvalidDuration     Reason = "invalid_duration"
)

// Message is the text shown to whoever asked for the slot.
func (r Reason) Message() string {
	switch r {
	case ReasonOK:
		return "slot is available"
	case ReasonOutsideWorkingHours:
		return "outside working hours"
	case ReasonDuringBreak:
		return "during break"
	case ReasonSlotTaken:
		return "time slot taken"
	case ReasonInvalidDuration:
		return "invalid duration"
	}
	return string(r)
}

// Candidate is a proposed appointment.
type Candidate struct {
	BarberID string
	Start    time.Time
	Duration time.Duration
}

func (c Candidate) Interval() Interval {
	return Span(c.Start, c.Duration)
}

// Decision is the checker's verdict. Conflict is set when Reason is ReasonSlotTaken.
type Decision struct {
	Reason   Reason
	Conflict *models.Appointment
}

func (d Decision) OK() bool {
	return d.Reason == ReasonOK
}

// Checker validates candidates against a resolved day and the barber's appointments.
type Checker struct {
	logger *zerolog.Logger
}

func NewChecker(logger *zerolog.Logger) *Checker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Checker{logger: logger}
}

// IsWithinWorkingHours reports whether iv lies inside the day's window. A barber without
// any availability records resolved under the open fallback always passes.
func (c *Checker) IsWithinWorkingHours(day Day, iv Interval) bool {
	if !day.Configured && day.IsOpen {
		return true
	}
	return day.IsOpen && day.Window().Contains(iv)
}

// IsDuringBreak reports whether iv overlaps the day's break.
func (c *Checker) IsDuringBreak(day Day, iv Interval) bool {
	brk, ok := day.Break()
	return ok && Overlaps(iv, brk)
}

// Check runs working hours, break and appointment overlap in that order.
// Cancelled appointments, other barbers and other dates are ignored.
func (c *Checker) Check(day Day, cand Candidate, existing []models.Appointment) Decision {
	if cand.Duration <= 0 {
		return Decision{Reason: ReasonInvalidDuration}
	}
	iv := cand.Interval()

	if !c.IsWithinWorkingHours(day, iv) {
		return Decision{Reason: ReasonOutsideWorkingHours}
	}
	if c.IsDuringBreak(day, iv) {
		return Decision{Reason: ReasonDuringBreak}
	}

	loc := cand.Start.Location()
	dayKey := models.DayKey(cand.Start)
	for i := range existing {
		a := &existing[i]
		if a.BarberID != cand.BarberID || !a.Blocks() {
			continue
		}
		if models.DayKey(a.Date.In(loc)) != dayKey {
			continue
		}
		if Overlaps(iv, c.occupied(a)) {
			return Decision{Reason: ReasonSlotTaken, Conflict: a}
		}
	}
	return Decision{Reason: ReasonOK}
}

// IsSlotAvailable is Check reduced to a boolean.
func (c *Checker) IsSlotAvailable(day Day, cand Candidate, existing []models.Appointment) bool {
	return c.Check(day, cand, existing).OK()
}

// occupied returns the appointment's interval. Unknown durations count as an hour;
// negative ones are logged and treated the same way.
func (c *Checker) occupied(a *models.Appointment) Interval {
	minutes := a.Duration
	if minutes < 0 {
		c.logger.Warn().
			Str("appointment_id", a.ID).
			Int("duration", a.Duration).
			Msg("Malformed appointment duration, assuming default")
	}
	if minutes <= 0 {
		minutes = models.DefaultAppointmentMinutes
	}
	return Span(a.Date, time.Duration(minutes)*time.Minute)
}

// AvailableSlots generates the day's slots and keeps those that pass Check for a slot-long
// candidate. Slots starting at or before now are dropped; pass the zero time to keep all.
func (c *Checker) AvailableSlots(day Day, slotMinutes int, existing []models.Appointment, now time.Time) []time.Time {
	step := time.Duration(slotMinutes) * time.Minute
	var out []time.Time
	for _, s := range DaySlots(day, slotMinutes) {
		if !now.IsZero() && !s.After(now) {
			continue
		}
		if c.Check(day, Candidate{BarberID: day.BarberID, Start: s, Duration: step}, existing).OK() {
			out = append(out, s)
		}
	}
	return out
}
