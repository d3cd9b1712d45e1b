package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"barbershop/internal/models"

	"github.com/google/uuid"
)

func (db *DB) FetchWeeklyAvailability(ctx context.Context, barberID string) ([]models.WeeklyAvailability, error) {
	query := `SELECT barber_id, day_of_week, start_time, end_time, is_available, has_break,
                     break_start_time, break_end_time, updated_at
              FROM weekly_availability WHERE barber_id = ? ORDER BY day_of_week`
	rows, err := db.QueryContext(ctx, query, barberID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weekly availability: %w", err)
	}
	defer rows.Close()

	var week []models.WeeklyAvailability
	for rows.Next() {
		var w models.WeeklyAvailability
		var dow int
		err := rows.Scan(&w.BarberID, &dow, &w.Start, &w.End, &w.IsAvailable, &w.HasBreak,
			&w.BreakStart, &w.BreakEnd, &w.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan weekly availability: %w", err)
		}
		w.DayOfWeek = time.Weekday(dow)
		week = append(week, w)
	}
	return week, rows.Err()
}

// SaveWeeklyAvailability replaces all of the barber's weekly rows in one transaction.
// The week is validated first; an invalid week leaves the stored one untouched.
func (db *DB) SaveWeeklyAvailability(ctx context.Context, barberID string, week []models.WeeklyAvailability) error {
	if err := models.ValidateWeek(barberID, week); err != nil {
		return err
	}
	now := time.Now()
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM weekly_availability WHERE barber_id = ?`, barberID); err != nil {
			return fmt.Errorf("failed to clear weekly availability: %w", err)
		}
		return insertWeek(ctx, tx, week, now)
	})
}

// InitializeWeeklyAvailability stores week only if the barber has no weekly rows yet.
func (db *DB) InitializeWeeklyAvailability(ctx context.Context, barberID string, week []models.WeeklyAvailability) (bool, error) {
	if err := models.ValidateWeek(barberID, week); err != nil {
		return false, err
	}
	created := false
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM weekly_availability WHERE barber_id = ?`, barberID).Scan(&n); err != nil {
			return fmt.Errorf("failed to count weekly availability: %w", err)
		}
		if n > 0 {
			return nil
		}
		created = true
		return insertWeek(ctx, tx, week, time.Now())
	})
	return created, err
}

func insertWeek(ctx context.Context, tx *sql.Tx, week []models.WeeklyAvailability, now time.Time) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO weekly_availability (
                barber_id, day_of_week, start_time, end_time, is_available, has_break,
                break_start_time, break_end_time, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare weekly insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range week {
		_, err := stmt.ExecContext(ctx, w.BarberID, int(w.DayOfWeek), w.Start, w.End, w.IsAvailable, w.HasBreak,
			w.BreakStart, w.BreakEnd, now)
		if err != nil {
			return fmt.Errorf("failed to insert %s availability: %w", w.DayOfWeek, err)
		}
	}
	return nil
}

const overrideColumns = `id, barber_id, date, start_time, end_time, is_available, has_break,
                     break_start_time, break_end_time, updated_at`

func scanOverride(s interface{ Scan(...any) error }) (*models.DateOverride, error) {
	var o models.DateOverride
	var day string
	err := s.Scan(&o.ID, &o.BarberID, &day, &o.Start, &o.End, &o.IsAvailable, &o.HasBreak,
		&o.BreakStart, &o.BreakEnd, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if o.Date, err = models.ParseDay(day, time.UTC); err != nil {
		return nil, err
	}
	return &o, nil
}

// FetchDateOverride returns the override for the calendar date of date, or nil.
func (db *DB) FetchDateOverride(ctx context.Context, barberID string, date time.Time) (*models.DateOverride, error) {
	row := db.QueryRowContext(ctx, `SELECT `+overrideColumns+` FROM date_overrides WHERE barber_id = ? AND date = ?`,
		barberID, models.DayKey(date))
	o, err := scanOverride(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch date override: %w", err)
	}
	o.Date = models.StartOfDay(date)
	return o, nil
}

// ListDateOverrides returns overrides with from <= date <= to.
func (db *DB) ListDateOverrides(ctx context.Context, barberID string, from, to time.Time) ([]*models.DateOverride, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+overrideColumns+` FROM date_overrides
              WHERE barber_id = ? AND date >= ? AND date <= ? ORDER BY date`,
		barberID, models.DayKey(from), models.DayKey(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list date overrides: %w", err)
	}
	defer rows.Close()

	var out []*models.DateOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan date override: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SaveDateOverride upserts the override keyed by (barber, date).
func (db *DB) SaveDateOverride(ctx context.Context, o *models.DateOverride) error {
	if err := o.Validate(); err != nil {
		return err
	}
	return db.inTx(ctx, func(tx *sql.Tx) error {
		return upsertOverride(ctx, tx, o)
	})
}

// SaveDateOverrides upserts several overrides atomically.
func (db *DB) SaveDateOverrides(ctx context.Context, overrides []*models.DateOverride) error {
	for _, o := range overrides {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, o := range overrides {
			if err := upsertOverride(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertOverride(ctx context.Context, tx *sql.Tx, o *models.DateOverride) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.UpdatedAt = time.Now()
	query := `INSERT INTO date_overrides (` + overrideColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(barber_id, date) DO UPDATE SET
                  start_time = excluded.start_time,
                  end_time = excluded.end_time,
                  is_available = excluded.is_available,
                  has_break = excluded.has_break,
                  break_start_time = excluded.break_start_time,
                  break_end_time = excluded.break_end_time,
                  updated_at = excluded.updated_at
              RETURNING id`
	err := tx.QueryRowContext(ctx, query, o.ID, o.BarberID, models.DayKey(o.Date), o.Start, o.End, o.IsAvailable,
		o.HasBreak, o.BreakStart, o.BreakEnd, o.UpdatedAt).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("failed to save date override: %w", err)
	}
	return nil
}

func (db *DB) DeleteDateOverride(ctx context.Context, barberID string, date time.Time) error {
	res, err := db.ExecContext(ctx, `DELETE FROM date_overrides WHERE barber_id = ? AND date = ?`, barberID, models.DayKey(date))
	if err != nil {
		return fmt.Errorf("failed to delete date override: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("override %s: %w", models.DayKey(date), ErrNotFound)
	}
	return nil
}
