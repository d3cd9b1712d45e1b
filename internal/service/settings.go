package service

import (
	"time"

	"barbershop/internal/config"
	"barbershop/internal/models"
	"barbershop/internal/schedule"
)

// Settings are the scheduling rules shared by the services.
type Settings struct {
	Location                  *time.Location
	Fallback                  schedule.FallbackPolicy
	DefaultSlotMinutes        int
	DefaultAppointmentMinutes int
	MaxBookingDays            int
	CancelCutoff              time.Duration
	Reservation               string
	ReservationTTL            time.Duration
}

func SettingsFromConfig(cfg config.SchedulingConfig) (Settings, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Settings{}, err
	}
	policy, err := schedule.ParseFallbackPolicy(cfg.FallbackPolicy)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Location:                  loc,
		Fallback:                  policy,
		DefaultSlotMinutes:        cfg.DefaultSlotMinutes,
		DefaultAppointmentMinutes: cfg.DefaultAppointmentMinutes,
		MaxBookingDays:            cfg.MaxBookingDays,
		CancelCutoff:              cfg.CancelCutoff,
		Reservation:               cfg.Reservation,
		ReservationTTL:            cfg.ReservationTTL,
	}.withDefaults(), nil
}

func (s Settings) withDefaults() Settings {
	if s.Location == nil {
		s.Location = time.UTC
	}
	if s.Fallback == "" {
		s.Fallback = schedule.FallbackClosed
	}
	if s.DefaultSlotMinutes <= 0 {
		s.DefaultSlotMinutes = models.DefaultSlotMinutes
	}
	if s.DefaultAppointmentMinutes <= 0 {
		s.DefaultAppointmentMinutes = models.DefaultAppointmentMinutes
	}
	if s.MaxBookingDays <= 0 {
		s.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if s.CancelCutoff == 0 {
		s.CancelCutoff = models.DefaultCancelCutoff
	}
	if s.Reservation == "" {
		s.Reservation = config.ReservationNone
	}
	if s.ReservationTTL <= 0 {
		s.ReservationTTL = models.DefaultReservationTTL
	}
	return s
}

// SlotMinutes is the barber's slot size, falling back to the configured default.
func (s Settings) SlotMinutes(b *models.Barber) int {
	if b == nil || b.PrimaryTreatmentDuration <= 0 {
		return s.DefaultSlotMinutes
	}
	return b.PrimaryTreatmentDuration
}
