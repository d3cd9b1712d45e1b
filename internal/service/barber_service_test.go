package service

import (
	"context"
	"testing"

	"barbershop/internal/database"
	"barbershop/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarberService(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedBarber(t, db)
	logger := zerolog.Nop()
	svc := NewBarberService(db, &logger)

	barbers, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, barbers, 1)
	assert.Equal(t, 20, barbers[0].SlotMinutes())

	minutes, err := svc.SetPrimaryTreatment(ctx, "b1", "beard")
	require.NoError(t, err)
	assert.Equal(t, 45, minutes)

	b, err := svc.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 45, b.PrimaryTreatmentDuration)

	treatments, err := svc.Treatments(ctx, "b1")
	require.NoError(t, err)
	primaries := 0
	for _, tr := range treatments {
		if tr.IsPrimary {
			primaries++
			assert.Equal(t, "beard", tr.ID)
		}
	}
	assert.Equal(t, 1, primaries)

	_, err = svc.SetPrimaryTreatment(ctx, "b1", "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = svc.SetPrimaryTreatment(ctx, "", "cut")
	assert.ErrorIs(t, err, models.ErrMissingField)
}
