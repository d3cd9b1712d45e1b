package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"barbershop/internal/models"
)

// UpsertBarber inserts the barber or updates its name and chat. The primary duration is
// only written on insert; afterwards it follows SetPrimaryTreatment.
func (db *DB) UpsertBarber(ctx context.Context, b *models.Barber) error {
	if b.PrimaryTreatmentDuration <= 0 {
		b.PrimaryTreatmentDuration = models.DefaultSlotMinutes
	}
	now := time.Now()
	query := `INSERT INTO barbers (id, name, primary_treatment_duration, telegram_chat_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  name = excluded.name,
                  telegram_chat_id = excluded.telegram_chat_id,
                  updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, query, b.ID, b.Name, b.PrimaryTreatmentDuration, b.TelegramChatID, now, now); err != nil {
		return fmt.Errorf("failed to upsert barber: %w", err)
	}
	b.UpdatedAt = now
	return nil
}

func (db *DB) GetBarber(ctx context.Context, id string) (*models.Barber, error) {
	query := `SELECT id, name, primary_treatment_duration, telegram_chat_id, created_at, updated_at
              FROM barbers WHERE id = ?`
	var b models.Barber
	err := db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.Name, &b.PrimaryTreatmentDuration, &b.TelegramChatID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "barber "+id)
	}
	return &b, nil
}

func (db *DB) ListBarbers(ctx context.Context) ([]*models.Barber, error) {
	query := `SELECT id, name, primary_treatment_duration, telegram_chat_id, created_at, updated_at
              FROM barbers ORDER BY name`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list barbers: %w", err)
	}
	defer rows.Close()

	var barbers []*models.Barber
	for rows.Next() {
		b := &models.Barber{}
		if err := rows.Scan(&b.ID, &b.Name, &b.PrimaryTreatmentDuration, &b.TelegramChatID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan barber: %w", err)
		}
		barbers = append(barbers, b)
	}
	return barbers, rows.Err()
}

func (db *DB) UpsertTreatment(ctx context.Context, t *models.Treatment) error {
	query := `INSERT INTO treatments (id, name, duration, price) VALUES (?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET name = excluded.name, duration = excluded.duration, price = excluded.price`
	if _, err := db.ExecContext(ctx, query, t.ID, t.Name, t.Duration, t.Price); err != nil {
		return fmt.Errorf("failed to upsert treatment: %w", err)
	}
	return nil
}

func (db *DB) GetTreatment(ctx context.Context, id string) (*models.Treatment, error) {
	var t models.Treatment
	err := db.QueryRowContext(ctx, `SELECT id, name, duration, price FROM treatments WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Duration, &t.Price)
	if err != nil {
		return nil, notFound(err, "treatment "+id)
	}
	return &t, nil
}

// AssignTreatment links a treatment to a barber without touching the primary flag.
func (db *DB) AssignTreatment(ctx context.Context, barberID, treatmentID string) error {
	query := `INSERT INTO barber_treatments (barber_id, treatment_id, is_primary) VALUES (?, ?, 0)
              ON CONFLICT(barber_id, treatment_id) DO NOTHING`
	if _, err := db.ExecContext(ctx, query, barberID, treatmentID); err != nil {
		return fmt.Errorf("failed to assign treatment: %w", err)
	}
	return nil
}

func (db *DB) ListBarberTreatments(ctx context.Context, barberID string) ([]models.BarberTreatment, error) {
	query := `SELECT t.id, t.name, t.duration, t.price, bt.is_primary
              FROM barber_treatments bt JOIN treatments t ON t.id = bt.treatment_id
              WHERE bt.barber_id = ? ORDER BY bt.is_primary DESC, t.name`
	rows, err := db.QueryContext(ctx, query, barberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list barber treatments: %w", err)
	}
	defer rows.Close()

	var out []models.BarberTreatment
	for rows.Next() {
		bt := models.BarberTreatment{BarberID: barberID}
		if err := rows.Scan(&bt.ID, &bt.Name, &bt.Duration, &bt.Price, &bt.IsPrimary); err != nil {
			return nil, fmt.Errorf("failed to scan barber treatment: %w", err)
		}
		out = append(out, bt)
	}
	return out, rows.Err()
}

// SetPrimaryTreatment makes treatmentID the barber's only primary treatment and copies its
// duration into the barber's slot size.
func (db *DB) SetPrimaryTreatment(ctx context.Context, barberID, treatmentID string) (int, error) {
	var duration int
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT duration FROM treatments WHERE id = ?`, treatmentID).Scan(&duration)
		if err != nil {
			return notFound(err, "treatment "+treatmentID)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE barber_treatments SET is_primary = 0 WHERE barber_id = ?`, barberID); err != nil {
			return fmt.Errorf("failed to clear primary treatment: %w", err)
		}
		query := `INSERT INTO barber_treatments (barber_id, treatment_id, is_primary) VALUES (?, ?, 1)
                  ON CONFLICT(barber_id, treatment_id) DO UPDATE SET is_primary = 1`
		if _, err := tx.ExecContext(ctx, query, barberID, treatmentID); err != nil {
			return fmt.Errorf("failed to set primary treatment: %w", err)
		}
		res, err := tx.ExecContext(ctx, `UPDATE barbers SET primary_treatment_duration = ?, updated_at = ? WHERE id = ?`,
			duration, time.Now(), barberID)
		if err != nil {
			return fmt.Errorf("failed to update barber duration: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("barber %s: %w", barberID, ErrNotFound)
		}
		return nil
	})
	return duration, err
}
