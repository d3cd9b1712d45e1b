package database

import (
	"context"
	"testing"

	"barbershop/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBarber(t *testing.T, db *DB, id string) *models.Barber {
	t.Helper()
	b := &models.Barber{ID: id, Name: "Barber " + id}
	require.NoError(t, db.UpsertBarber(context.Background(), b))
	return b
}

func TestBarbers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedBarber(t, db, "b1")
	seedBarber(t, db, "b2")

	b, err := db.GetBarber(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSlotMinutes, b.PrimaryTreatmentDuration)

	list, err := db.ListBarbers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = db.GetBarber(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("UpsertKeepsDuration", func(t *testing.T) {
		require.NoError(t, db.UpsertTreatment(ctx, &models.Treatment{ID: "t1", Name: "Cut", Duration: 30, Price: 80}))
		_, err := db.SetPrimaryTreatment(ctx, "b1", "t1")
		require.NoError(t, err)

		require.NoError(t, db.UpsertBarber(ctx, &models.Barber{ID: "b1", Name: "Renamed", TelegramChatID: 42}))
		b, err := db.GetBarber(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", b.Name)
		assert.Equal(t, int64(42), b.TelegramChatID)
		assert.Equal(t, 30, b.PrimaryTreatmentDuration)
	})
}

func TestSetPrimaryTreatment(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedBarber(t, db, "b1")

	require.NoError(t, db.UpsertTreatment(ctx, &models.Treatment{ID: "cut", Name: "Cut", Duration: 30}))
	require.NoError(t, db.UpsertTreatment(ctx, &models.Treatment{ID: "beard", Name: "Beard", Duration: 15}))
	require.NoError(t, db.AssignTreatment(ctx, "b1", "cut"))
	require.NoError(t, db.AssignTreatment(ctx, "b1", "beard"))

	d, err := db.SetPrimaryTreatment(ctx, "b1", "cut")
	require.NoError(t, err)
	assert.Equal(t, 30, d)

	d, err = db.SetPrimaryTreatment(ctx, "b1", "beard")
	require.NoError(t, err)
	assert.Equal(t, 15, d)

	list, err := db.ListBarberTreatments(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	primaries := 0
	for _, bt := range list {
		if bt.IsPrimary {
			primaries++
			assert.Equal(t, "beard", bt.ID)
		}
	}
	assert.Equal(t, 1, primaries)

	b, err := db.GetBarber(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 15, b.SlotMinutes())

	t.Run("UnknownTreatment", func(t *testing.T) {
		_, err := db.SetPrimaryTreatment(ctx, "b1", "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UnknownBarberRollsBack", func(t *testing.T) {
		_, err := db.SetPrimaryTreatment(ctx, "ghost", "cut")
		assert.ErrorIs(t, err, ErrNotFound)
		list, err := db.ListBarberTreatments(ctx, "ghost")
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
