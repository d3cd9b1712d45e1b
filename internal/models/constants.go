package models

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	WaitlistWaiting  = "waiting"
	WaitlistNotified = "notified"
)

const (
	CancelledByCustomer = "customer"
	CancelledByBarber   = "barber"
	CancelledByAdmin    = "admin"
)

// ManualClientUserID marks appointments booked by staff for walk-in clients.
const ManualClientUserID = "manual-client"

const (
	// DefaultSlotMinutes is the slot size for barbers without a primary treatment.
	DefaultSlotMinutes = 20

	// DefaultAppointmentMinutes is assumed for appointments with no stored duration.
	DefaultAppointmentMinutes = 60

	// DefaultTimezone of the shop.
	DefaultTimezone = "Asia/Jerusalem"

	// DefaultPhoneRegion is used to parse phone numbers without a country code.
	DefaultPhoneRegion = "IL"

	// DayKeyLayout formats calendar dates.
	DayKeyLayout = "2006-01-02"

	// DefaultCancelCutoff is how long before the start a client may still cancel.
	DefaultCancelCutoff = 2 * time.Hour

	// DefaultMaxBookingDays limits how far ahead a slot can be booked.
	DefaultMaxBookingDays = 60

	// WorkerQueueSize is the in-memory sync queue capacity.
	WorkerQueueSize = 1000

	// DefaultCacheTTL for resolved days.
	DefaultCacheTTL = time.Minute

	// DefaultReservationTTL for per-day booking holds.
	DefaultReservationTTL = 30 * time.Second

	// ReminderHour is used when no reminder time is configured.
	ReminderHour = 20

	// SheetsCacheTTL время жизни кэша строк Google Sheets
	SheetsCacheTTL = 60 * 60 // 1 час в секундах
)
