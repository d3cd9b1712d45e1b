package models

import "time"

type Barber struct {
	ID                       string    `json:"id" yaml:"id"`
	Name                     string    `json:"name" yaml:"name"`
	PrimaryTreatmentDuration int       `json:"primaryTreatmentDuration" yaml:"primary_treatment_duration"`
	TelegramChatID           int64     `json:"telegramChatId,omitempty" yaml:"telegram_chat_id"`
	CreatedAt                time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt                time.Time `json:"updatedAt" yaml:"-"`
}

// SlotMinutes is the slot granularity for the barber's whole schedule.
func (b Barber) SlotMinutes() int {
	if b.PrimaryTreatmentDuration <= 0 {
		return DefaultSlotMinutes
	}
	return b.PrimaryTreatmentDuration
}

type Treatment struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Duration int     `json:"duration" yaml:"duration"`
	Price    float64 `json:"price" yaml:"price"`
}

// BarberTreatment is a treatment offered by a barber. At most one per barber is primary.
type BarberTreatment struct {
	BarberID string `json:"barberId"`
	Treatment
	IsPrimary bool `json:"isPrimary"`
}
