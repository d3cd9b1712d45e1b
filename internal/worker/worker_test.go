package worker

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"barbershop/internal/database"
	"barbershop/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	id := createAppointment(t, db)
	if err := worker.EnqueueTask(ctx, models.SyncUpsertAppointment, id, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.upsertCalls != 1 || sheets.lastUpsert == nil || sheets.lastUpsert.ID != id {
		t.Fatalf("expected upsert of %s, got %d calls", id, sheets.upsertCalls)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)
	ctx := context.Background()

	if err := worker.EnqueueTask(ctx, models.SyncUpdateStatus, "appt-2", models.StatusConfirmed); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "retry" {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sheets := &fakeSheets{err: errors.New("fatal")}
	worker := NewSheetsWorker(db, sheets, client, RetryPolicy{MaxRetries: 1}, nil)
	ctx := context.Background()

	if err := worker.EnqueueTask(ctx, models.SyncDeleteAppointment, "appt-3", ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task in redis queue")
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
	dead, err := mr.List("sheets:deadletter")
	if err != nil || len(dead) != 1 {
		t.Fatalf("expected one dead letter, got %v (%v)", dead, err)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	task := models.SyncTask{TaskType: models.SyncUpsertAppointment, AppointmentID: "x", Payload: "not json"}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestRunOncePollsDatabase(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	task := models.SyncTask{
		TaskType:      models.SyncDeleteAppointment,
		AppointmentID: "appt-9",
		Payload:       `{"appointment_id":"appt-9"}`,
	}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}

	if !worker.runOnce(ctx) {
		t.Fatalf("expected work to be done")
	}
	if sheets.deleteCalls != 1 {
		t.Fatalf("expected 1 delete call, got %d", sheets.deleteCalls)
	}
	if worker.runOnce(ctx) {
		t.Fatalf("expected idle queue")
	}
}

func TestSheetsWorker_HandleTask(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3}, nil)
	ctx := context.Background()

	t.Run("UpsertDeletedAppointment", func(t *testing.T) {
		err := worker.handleTask(ctx, models.SyncUpsertAppointment, taskPayload{AppointmentID: "gone"})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.upsertCalls != 0 {
			t.Fatalf("expected no upsert, got %d", sheets.upsertCalls)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := worker.handleTask(ctx, models.SyncDeleteAppointment, taskPayload{AppointmentID: "a"}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.deleteCalls != 1 {
			t.Fatalf("expected 1 delete call, got %d", sheets.deleteCalls)
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		err := worker.handleTask(ctx, models.SyncUpdateStatus, taskPayload{AppointmentID: "a", Status: models.StatusCompleted})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.statusCalls != 1 {
			t.Fatalf("expected 1 status call, got %d", sheets.statusCalls)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		if err := worker.handleTask(ctx, "rename", taskPayload{AppointmentID: "a"}); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
		if err := worker.handleTask(ctx, models.SyncUpdateStatus, taskPayload{AppointmentID: "a"}); err == nil {
			t.Fatalf("expected error for missing status")
		}
		if err := worker.handleTask(ctx, models.SyncDeleteAppointment, taskPayload{}); err == nil {
			t.Fatalf("expected error for missing id")
		}
	})
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	if d := policy.NextDelay(1); d != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d)
	}
	if d := policy.NextDelay(2); d != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d)
	}
	if d := policy.NextDelay(5); d != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d)
	}
	if d := (RetryPolicy{}).NextDelay(0); d != time.Second {
		t.Fatalf("zero policy expected 1s, got %s", d)
	}

	p := RetryPolicy{}.withDefaults()
	if p.MaxRetries != 5 || p.Exhausted(4) || !p.Exhausted(5) {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

func TestSheetsWorker_EnqueueTask(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	t.Run("ValidTask", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, models.SyncUpsertAppointment, "a1", ""); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	})

	t.Run("InvalidTaskType", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, "", "a1", ""); err == nil {
			t.Fatalf("expected error for empty task type")
		}
	})

	t.Run("MissingAppointmentID", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, models.SyncUpsertAppointment, "", ""); err == nil {
			t.Fatalf("expected error for missing appointment id")
		}
	})

	t.Run("StatusUpdateWithoutStatus", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, models.SyncUpdateStatus, "a1", ""); err == nil {
			t.Fatalf("expected error for missing status")
		}
	})
}

func TestDecodePayload(t *testing.T) {
	decoded, err := decodePayload(`{"appointment_id":"a-123","status":"confirmed"}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.AppointmentID != "a-123" || decoded.Status != "confirmed" {
		t.Fatalf("unexpected decoded payload: %+v", decoded)
	}

	if _, err := decodePayload(`invalid json`); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestSheetsWorkerStartStops(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)
	worker.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	if err := worker.EnqueueTask(ctx, models.SyncDeleteAppointment, "a1", ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if sheets.deletes() == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("task was not processed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop")
	}
}

// Helpers

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createAppointment(t *testing.T, db *database.DB) string {
	t.Helper()
	id, err := db.CreateAppointment(context.Background(), &models.Appointment{
		BarberID: "b1",
		Date:     time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		Duration: 30,
		Status:   models.StatusConfirmed,
		UserID:   "u1",
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return id
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
