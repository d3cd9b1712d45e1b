package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"barbershop/internal/models"

	"github.com/google/uuid"
)

const waitlistColumns = `id, barber_id, date, from_time, to_time, user_id, client_name, client_phone,
                     status, created_at, notified_at`

func scanWaitlist(s interface{ Scan(...any) error }) (*models.WaitlistEntry, error) {
	var e models.WaitlistEntry
	var day string
	var userID, clientName, clientPhone sql.NullString
	var notifiedAt sql.NullTime
	err := s.Scan(&e.ID, &e.BarberID, &day, &e.From, &e.To, &userID, &clientName, &clientPhone,
		&e.Status, &e.CreatedAt, &notifiedAt)
	if err != nil {
		return nil, err
	}
	if e.Date, err = models.ParseDay(day, time.UTC); err != nil {
		return nil, err
	}
	e.UserID, e.ClientName, e.ClientPhone = userID.String, clientName.String, clientPhone.String
	if notifiedAt.Valid {
		t := notifiedAt.Time
		e.NotifiedAt = &t
	}
	return &e, nil
}

func (db *DB) CreateWaitlistEntry(ctx context.Context, e *models.WaitlistEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = models.WaitlistWaiting
	}
	e.CreatedAt = time.Now()
	_, err := db.ExecContext(ctx, `INSERT INTO waitlist (`+waitlistColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.BarberID, models.DayKey(e.Date), e.From, e.To, nullString(e.UserID), nullString(e.ClientName),
		nullString(e.ClientPhone), e.Status, e.CreatedAt, e.NotifiedAt)
	if err != nil {
		return fmt.Errorf("failed to create waitlist entry: %w", err)
	}
	return nil
}

func (db *DB) GetWaitlistEntry(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	e, err := scanWaitlist(db.QueryRowContext(ctx, `SELECT `+waitlistColumns+` FROM waitlist WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "waitlist entry "+id)
	}
	return e, nil
}

// ListWaitlist filters by barber and, when status is not empty, by status. A zero date lists all dates.
func (db *DB) ListWaitlist(ctx context.Context, barberID string, date time.Time, status string) ([]*models.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist WHERE barber_id = ?`
	args := []any{barberID}
	if !date.IsZero() {
		query += ` AND date = ?`
		args = append(args, models.DayKey(date))
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY date, created_at`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist: %w", err)
	}
	defer rows.Close()

	var out []*models.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan waitlist entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (db *DB) UpdateWaitlistStatus(ctx context.Context, id, status string, at time.Time) error {
	res, err := db.ExecContext(ctx, `UPDATE waitlist SET status = ?, notified_at = ? WHERE id = ?`, status, at, id)
	if err != nil {
		return fmt.Errorf("failed to update waitlist status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("waitlist entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func (db *DB) DeleteWaitlistEntry(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM waitlist WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete waitlist entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("waitlist entry %s: %w", id, ErrNotFound)
	}
	return nil
}
