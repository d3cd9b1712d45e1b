package service

import (
	"context"
	"fmt"

	"barbershop/internal/domain"
	"barbershop/internal/models"

	"github.com/rs/zerolog"
)

type BarberService struct {
	repo   domain.BarberRepository
	logger *zerolog.Logger
}

func NewBarberService(repo domain.BarberRepository, logger *zerolog.Logger) *BarberService {
	return &BarberService{
		repo:   repo,
		logger: logger,
	}
}

func (s *BarberService) List(ctx context.Context) ([]*models.Barber, error) {
	return s.repo.ListBarbers(ctx)
}

func (s *BarberService) Get(ctx context.Context, id string) (*models.Barber, error) {
	return s.repo.GetBarber(ctx, id)
}

func (s *BarberService) Treatments(ctx context.Context, barberID string) ([]models.BarberTreatment, error) {
	return s.repo.ListBarberTreatments(ctx, barberID)
}

// SetPrimaryTreatment makes the treatment define the barber's slot size and returns the
// new slot length in minutes.
func (s *BarberService) SetPrimaryTreatment(ctx context.Context, barberID, treatmentID string) (int, error) {
	if barberID == "" || treatmentID == "" {
		return 0, fmt.Errorf("%w: barberId and treatmentId", models.ErrMissingField)
	}
	minutes, err := s.repo.SetPrimaryTreatment(ctx, barberID, treatmentID)
	if err != nil {
		return 0, err
	}
	s.logger.Info().
		Str("barber_id", barberID).
		Str("treatment_id", treatmentID).
		Int("slot_minutes", minutes).
		Msg("Primary treatment changed")
	return minutes, nil
}
