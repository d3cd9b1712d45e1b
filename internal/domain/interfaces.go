package domain

import (
	"context"
	"time"

	"barbershop/internal/models"
	"barbershop/internal/schedule"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AvailabilityRepository stores weekly patterns and date overrides.
type AvailabilityRepository interface {
	FetchWeeklyAvailability(ctx context.Context, barberID string) ([]models.WeeklyAvailability, error)
	FetchDateOverride(ctx context.Context, barberID string, date time.Time) (*models.DateOverride, error)
	SaveWeeklyAvailability(ctx context.Context, barberID string, week []models.WeeklyAvailability) error
	InitializeWeeklyAvailability(ctx context.Context, barberID string, week []models.WeeklyAvailability) (bool, error)
	SaveDateOverride(ctx context.Context, o *models.DateOverride) error
	SaveDateOverrides(ctx context.Context, overrides []*models.DateOverride) error
	DeleteDateOverride(ctx context.Context, barberID string, date time.Time) error
	ListDateOverrides(ctx context.Context, barberID string, from, to time.Time) ([]*models.DateOverride, error)
}

type AppointmentRepository interface {
	FetchAppointmentsForBarberAndDate(ctx context.Context, barberID string, date time.Time) ([]models.Appointment, error)
	CreateAppointment(ctx context.Context, a *models.Appointment) (string, error)
	CreateAppointmentWithLock(ctx context.Context, a *models.Appointment) (string, error)
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	GetAppointmentsByDateRange(ctx context.Context, from, to time.Time) ([]*models.Appointment, error)
	GetUserAppointments(ctx context.Context, userID string, since time.Time) ([]*models.Appointment, error)
	UpdateAppointmentStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error
	CancelAppointmentWithVersion(ctx context.Context, id string, fromVersion int64, by string, at time.Time) error
	DeleteAppointment(ctx context.Context, id string) error
}

type BarberRepository interface {
	UpsertBarber(ctx context.Context, b *models.Barber) error
	GetBarber(ctx context.Context, id string) (*models.Barber, error)
	ListBarbers(ctx context.Context) ([]*models.Barber, error)
	UpsertTreatment(ctx context.Context, t *models.Treatment) error
	GetTreatment(ctx context.Context, id string) (*models.Treatment, error)
	AssignTreatment(ctx context.Context, barberID, treatmentID string) error
	ListBarberTreatments(ctx context.Context, barberID string) ([]models.BarberTreatment, error)
	SetPrimaryTreatment(ctx context.Context, barberID, treatmentID string) (int, error)
}

type WaitlistRepository interface {
	CreateWaitlistEntry(ctx context.Context, e *models.WaitlistEntry) error
	GetWaitlistEntry(ctx context.Context, id string) (*models.WaitlistEntry, error)
	ListWaitlist(ctx context.Context, barberID string, date time.Time, status string) ([]*models.WaitlistEntry, error)
	UpdateWaitlistStatus(ctx context.Context, id, status string, at time.Time) error
	DeleteWaitlistEntry(ctx context.Context, id string) error
}

type SyncQueueRepository interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// Repository is everything the SQLite store provides.
type Repository interface {
	AvailabilityRepository
	AppointmentRepository
	BarberRepository
	WaitlistRepository
	SyncQueueRepository
}

// ScheduleStore caches resolved days and holds short-lived per-day booking reservations.
type ScheduleStore interface {
	GetDay(ctx context.Context, barberID string, date time.Time) (*schedule.Day, error)
	SetDay(ctx context.Context, day schedule.Day) error
	InvalidateBarber(ctx context.Context, barberID string) error
	AcquireDayHold(ctx context.Context, barberID string, day time.Time, ttl time.Duration) (token string, ok bool, err error)
	ReleaseDayHold(ctx context.Context, barberID string, day time.Time, token string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SyncEnqueuer accepts appointment changes for the spreadsheet mirror.
type SyncEnqueuer interface {
	EnqueueTask(ctx context.Context, taskType, appointmentID, status string) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier tells barbers and clients about schedule changes.
type Notifier interface {
	AppointmentCreated(ctx context.Context, barber *models.Barber, a *models.Appointment) error
	AppointmentCancelled(ctx context.Context, barber *models.Barber, a *models.Appointment) error
	WaitlistSlotOpened(ctx context.Context, barber *models.Barber, e *models.WaitlistEntry) error
	DailyAgenda(ctx context.Context, barber *models.Barber, date time.Time, appts []*models.Appointment) error
}

type SheetsWriter interface {
	UpsertAppointment(ctx context.Context, a *models.Appointment) error
	UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error
	DeleteAppointmentRow(ctx context.Context, appointmentID string) error
}
