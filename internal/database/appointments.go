package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"barbershop/internal/models"

	"github.com/google/uuid"
)

const appointmentColumns = `id, barber_id, treatment_id, start_at, duration, status, user_id, client_name,
                     client_phone, is_manual_client, cancelled_by, cancelled_at, created_at, updated_at, version`

func scanAppointment(s interface{ Scan(...any) error }) (*models.Appointment, error) {
	var a models.Appointment
	var startAt int64
	var treatmentID, userID, clientName, clientPhone, cancelledBy sql.NullString
	var duration sql.NullInt64
	var cancelledAt sql.NullTime
	err := s.Scan(&a.ID, &a.BarberID, &treatmentID, &startAt, &duration, &a.Status, &userID, &clientName,
		&clientPhone, &a.IsManualClient, &cancelledBy, &cancelledAt, &a.CreatedAt, &a.UpdatedAt, &a.Version)
	if err != nil {
		return nil, err
	}
	a.Date = time.Unix(startAt, 0).UTC()
	a.Duration = int(duration.Int64)
	a.TreatmentID = treatmentID.String
	a.UserID = userID.String
	a.ClientName = clientName.String
	a.ClientPhone = clientPhone.String
	a.CancelledBy = cancelledBy.String
	if cancelledAt.Valid {
		t := cancelledAt.Time
		a.CancelledAt = &t
	}
	return &a, nil
}

func scanAppointments(rows *sql.Rows) ([]*models.Appointment, error) {
	defer rows.Close()
	var out []*models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDuration(d int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(d), Valid: d != 0}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAppointment(ctx context.Context, ex execer, a *models.Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	query := `INSERT INTO appointments (` + appointmentColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := ex.ExecContext(ctx, query,
		a.ID, a.BarberID, nullString(a.TreatmentID), a.Date.Unix(), nullDuration(a.Duration), a.Status,
		nullString(a.UserID), nullString(a.ClientName), nullString(a.ClientPhone), a.IsManualClient,
		nullString(a.CancelledBy), a.CancelledAt, now, now, 1,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Version = 1
	return nil
}

// CreateAppointment inserts without any overlap check. Callers run the slot checker first.
func (db *DB) CreateAppointment(ctx context.Context, a *models.Appointment) (string, error) {
	if err := insertAppointment(ctx, db, a); err != nil {
		return "", err
	}
	return a.ID, nil
}

// CreateAppointmentWithLock re-checks overlap with the barber's active appointments inside
// the insert transaction and fails with ErrSlotTaken instead of double booking. Only
// appointments starting on the same calendar day (in a.Date's location) are considered,
// the same scope the slot checker sees.
func (db *DB) CreateAppointmentWithLock(ctx context.Context, a *models.Appointment) (string, error) {
	from := models.StartOfDay(a.Date)
	to := from.AddDate(0, 0, 1)
	end := a.End().Unix()
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var clashes int
		query := `SELECT COUNT(*) FROM appointments
                  WHERE barber_id = ? AND status != ?
                  AND start_at >= ? AND start_at < ?
                  AND start_at < ?
                  AND start_at + (CASE WHEN duration > 0 THEN duration ELSE ? END) * 60 > ?`
		err := tx.QueryRowContext(ctx, query, a.BarberID, models.StatusCancelled, from.Unix(), to.Unix(), end,
			models.DefaultAppointmentMinutes, a.Date.Unix()).Scan(&clashes)
		if err != nil {
			return fmt.Errorf("failed to check overlap in tx: %w", err)
		}
		if clashes > 0 {
			return ErrSlotTaken
		}
		return insertAppointment(ctx, tx, a)
	})
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

func (db *DB) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	a, err := scanAppointment(db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "appointment "+id)
	}
	return a, nil
}

// FetchAppointmentsForBarberAndDate returns every appointment of the barber starting on the
// calendar day of date (in date's location), cancelled ones included, ordered by start.
func (db *DB) FetchAppointmentsForBarberAndDate(ctx context.Context, barberID string, date time.Time) ([]models.Appointment, error) {
	from := models.StartOfDay(date)
	to := from.AddDate(0, 0, 1)
	rows, err := db.QueryContext(ctx, `SELECT `+appointmentColumns+` FROM appointments
              WHERE barber_id = ? AND start_at >= ? AND start_at < ? ORDER BY start_at`,
		barberID, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch appointments for day: %w", err)
	}
	list, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	out := make([]models.Appointment, 0, len(list))
	for _, a := range list {
		a.Date = a.Date.In(date.Location())
		out = append(out, *a)
	}
	return out, nil
}

// GetAppointmentsByDateRange returns appointments with from <= start < to for all barbers.
func (db *DB) GetAppointmentsByDateRange(ctx context.Context, from, to time.Time) ([]*models.Appointment, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+appointmentColumns+` FROM appointments
              WHERE start_at >= ? AND start_at < ? ORDER BY barber_id, start_at`, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get appointments by date range: %w", err)
	}
	return scanAppointments(rows)
}

func (db *DB) GetUserAppointments(ctx context.Context, userID string, since time.Time) ([]*models.Appointment, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+appointmentColumns+` FROM appointments
              WHERE user_id = ? AND start_at >= ? ORDER BY start_at`, userID, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get user appointments: %w", err)
	}
	return scanAppointments(rows)
}

// UpdateAppointmentStatusWithVersion changes status if the row is still at fromVersion.
func (db *DB) UpdateAppointmentStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error {
	query := `UPDATE appointments SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	return db.expectOne(ctx, query, status, time.Now(), id, fromVersion)
}

// CancelAppointmentWithVersion marks the appointment cancelled and records who did it.
func (db *DB) CancelAppointmentWithVersion(ctx context.Context, id string, fromVersion int64, by string, at time.Time) error {
	query := `UPDATE appointments SET status = ?, cancelled_by = ?, cancelled_at = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	return db.expectOne(ctx, query, models.StatusCancelled, by, at, time.Now(), id, fromVersion)
}

func (db *DB) expectOne(ctx context.Context, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) DeleteAppointment(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	return nil
}
