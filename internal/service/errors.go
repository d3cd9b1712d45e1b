package service

import (
	"errors"

	"barbershop/internal/models"
	"barbershop/internal/schedule"
)

var (
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrReservationBusy   = errors.New("another booking for this barber is in progress")
	ErrCancelTooLate     = errors.New("too late to cancel")
	ErrNotOwner          = errors.New("appointment belongs to another client")
	ErrAlreadyFinal      = errors.New("appointment is already cancelled or completed")
	ErrPastSlot          = errors.New("slot is in the past")
	ErrDateTooFar        = errors.New("date is too far ahead")
	ErrInvalidTransition = errors.New("status change not allowed")
)

// SlotError carries the checker's reason for rejecting a slot.
type SlotError struct {
	Reason   schedule.Reason
	Conflict *models.Appointment
}

func (e *SlotError) Error() string {
	return "slot unavailable: " + e.Reason.Message()
}

func (e *SlotError) Unwrap() error {
	return ErrSlotUnavailable
}

func slotError(d schedule.Decision) error {
	return &SlotError{Reason: d.Reason, Conflict: d.Conflict}
}
