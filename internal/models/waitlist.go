package models

import (
	"fmt"
	"time"
)

// WaitlistEntry is a client's request to be told when a barber frees up.
type WaitlistEntry struct {
	ID          string     `json:"waitlistId"`
	BarberID    string     `json:"barberId"`
	Date        time.Time  `json:"date"`
	From        Clock      `json:"fromTime"`
	To          Clock      `json:"toTime"`
	UserID      string     `json:"userId,omitempty"`
	ClientName  string     `json:"clientName"`
	ClientPhone string     `json:"clientPhone,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	NotifiedAt  *time.Time `json:"notifiedAt,omitempty"`
}

func (w WaitlistEntry) Validate() error {
	if w.BarberID == "" {
		return fmt.Errorf("%w: barberId", ErrMissingField)
	}
	if w.Date.IsZero() {
		return fmt.Errorf("%w: date", ErrMissingField)
	}
	if w.To <= w.From {
		return fmt.Errorf("%w: requested %s-%s", ErrInvalidWindow, w.From, w.To)
	}
	if w.ClientName == "" && w.UserID == "" {
		return fmt.Errorf("%w: clientName or userId", ErrMissingField)
	}
	switch w.Status {
	case WaitlistWaiting, WaitlistNotified:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, w.Status)
	}
	return nil
}
