package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"barbershop/internal/domain"
	"barbershop/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

// Seed is the shop catalogue loaded at startup.
type Seed struct {
	Treatments []models.Treatment `yaml:"treatments"`
	Barbers    []SeedBarber       `yaml:"barbers"`
}

type SeedBarber struct {
	models.Barber    `yaml:",inline"`
	PrimaryTreatment string    `yaml:"primary_treatment"`
	Treatments       []string  `yaml:"treatments"`
	Weekly           []SeedDay `yaml:"weekly"`
}

// SeedDay uses plain strings for times; they are parsed with models.ParseClock.
type SeedDay struct {
	Day         int    `yaml:"day"`
	Start       string `yaml:"start_time"`
	End         string `yaml:"end_time"`
	IsAvailable bool   `yaml:"is_available"`
	BreakStart  string `yaml:"break_start_time"`
	BreakEnd    string `yaml:"break_end_time"`
}

// SeedRepository is the storage the seed is written to.
type SeedRepository interface {
	domain.BarberRepository
	InitializeWeeklyAvailability(ctx context.Context, barberID string, week []models.WeeklyAvailability) (bool, error)
}

func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

func (d SeedDay) toWeekly(barberID string) (models.WeeklyAvailability, error) {
	w := models.WeeklyAvailability{
		BarberID:  barberID,
		DayOfWeek: time.Weekday(d.Day),
	}
	w.IsAvailable = d.IsAvailable
	var err error
	if w.Start, err = models.ParseClock(d.Start); err != nil {
		return w, err
	}
	if w.End, err = models.ParseClock(d.End); err != nil {
		return w, err
	}
	if d.BreakStart != "" || d.BreakEnd != "" {
		w.HasBreak = true
		if w.BreakStart, err = models.ParseClock(d.BreakStart); err != nil {
			return w, err
		}
		if w.BreakEnd, err = models.ParseClock(d.BreakEnd); err != nil {
			return w, err
		}
	}
	return w, nil
}

// ApplySeed upserts treatments and barbers. A barber's weekly schedule is written only
// when none is stored, so edits made through the API survive restarts.
func ApplySeed(ctx context.Context, repo SeedRepository, seed *Seed, logger *zerolog.Logger) error {
	for i := range seed.Treatments {
		if err := repo.UpsertTreatment(ctx, &seed.Treatments[i]); err != nil {
			return err
		}
	}

	for _, sb := range seed.Barbers {
		barber := sb.Barber
		if err := repo.UpsertBarber(ctx, &barber); err != nil {
			return err
		}
		for _, tid := range sb.Treatments {
			if err := repo.AssignTreatment(ctx, barber.ID, tid); err != nil {
				return err
			}
		}
		if sb.PrimaryTreatment != "" {
			if _, err := repo.SetPrimaryTreatment(ctx, barber.ID, sb.PrimaryTreatment); err != nil {
				return err
			}
		}

		week := models.DefaultWeek(barber.ID)
		if len(sb.Weekly) > 0 {
			week = week[:0]
			for _, d := range sb.Weekly {
				w, err := d.toWeekly(barber.ID)
				if err != nil {
					return fmt.Errorf("barber %s: %w", barber.ID, err)
				}
				week = append(week, w)
			}
		}
		created, err := repo.InitializeWeeklyAvailability(ctx, barber.ID, week)
		if err != nil {
			return fmt.Errorf("barber %s: %w", barber.ID, err)
		}
		logger.Info().
			Str("barber_id", barber.ID).
			Bool("schedule_created", created).
			Msg("Barber seeded")
	}
	return nil
}
