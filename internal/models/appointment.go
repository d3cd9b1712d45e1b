package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
)

type Appointment struct {
	ID             string     `json:"id"`
	BarberID       string     `json:"barberId"`
	TreatmentID    string     `json:"treatmentId"`
	Date           time.Time  `json:"date"`
	Duration       int        `json:"duration"` // minutes, 0 when unknown
	Status         string     `json:"status"`
	UserID         string     `json:"userId,omitempty"`
	ClientName     string     `json:"clientName,omitempty"`
	ClientPhone    string     `json:"clientPhone,omitempty"`
	IsManualClient bool       `json:"isManualClient"`
	CancelledBy    string     `json:"cancelledBy,omitempty"`
	CancelledAt    *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	Version        int64      `json:"version"`
}

// End of the occupied interval, using the default length when duration is unknown.
func (a Appointment) End() time.Time {
	d := a.Duration
	if d <= 0 {
		d = DefaultAppointmentMinutes
	}
	return a.Date.Add(time.Duration(d) * time.Minute)
}

// Blocks reports whether the appointment occupies its slot.
func (a Appointment) Blocks() bool {
	return a.Status != StatusCancelled
}

func (a Appointment) IsFinal() bool {
	return a.Status == StatusCancelled || a.Status == StatusCompleted
}

// Validate is run on every appointment entering the system.
func (a Appointment) Validate() error {
	if a.BarberID == "" {
		return fmt.Errorf("%w: barberId", ErrMissingField)
	}
	if a.Date.IsZero() {
		return fmt.Errorf("%w: date", ErrMissingField)
	}
	if a.Duration < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, a.Duration)
	}
	if !ValidStatus(a.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, a.Status)
	}
	if a.IsManualClient {
		if strings.TrimSpace(a.ClientName) == "" {
			return fmt.Errorf("%w: clientName", ErrMissingField)
		}
		return nil
	}
	if a.UserID == "" {
		return fmt.Errorf("%w: userId", ErrMissingField)
	}
	return nil
}

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

var transitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether an appointment may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NormalizePhone parses raw into E.164, assuming region when no country code is given.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
