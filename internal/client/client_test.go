package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"barbershop/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	slotCalls atomic.Int32
	server    *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/barbers/{id}/slots", func(w http.ResponseWriter, r *http.Request) {
		f.slotCalls.Add(1)
		writeJSON(w, http.StatusOK, Slots{
			BarberID:    r.PathValue("id"),
			Date:        r.URL.Query().Get("date"),
			SlotMinutes: 30,
			Slots:       []string{"09:00", "09:30"},
		})
	})
	mux.HandleFunc("POST /api/v1/barbers/{id}/check", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["time"] == "13:00" {
			writeJSON(w, http.StatusOK, CheckResult{Reason: "during_break", Message: "slot falls on the break"})
			return
		}
		writeJSON(w, http.StatusOK, CheckResult{Available: true, Reason: "ok"})
	})
	mux.HandleFunc("POST /api/v1/appointments", func(w http.ResponseWriter, r *http.Request) {
		var req BookRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Time == "09:30" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "slot unavailable", "reason": "slot_taken"})
			return
		}
		writeJSON(w, http.StatusCreated, models.Appointment{
			ID: "a1", BarberID: req.BarberID, Date: time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), Status: models.StatusConfirmed,
		})
	})
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, models.Appointment{
			ID: r.PathValue("id"), BarberID: "b1", Date: time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), Status: models.StatusCancelled,
		})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSlotsAndCheck(t *testing.T) {
	api := newFakeAPI(t)
	c := New(api.server.URL, "", "")
	ctx := context.Background()

	slots, err := c.Slots(ctx, "b1", "2025-03-11")
	require.NoError(t, err)
	assert.Equal(t, "b1", slots.BarberID)
	assert.Equal(t, "2025-03-11", slots.Date)
	assert.Equal(t, []string{"09:00", "09:30"}, slots.Slots)

	res, err := c.Check(ctx, "b1", "2025-03-11", "13:00", 0)
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, "during_break", res.Reason)
}

func TestBookConflict(t *testing.T) {
	api := newFakeAPI(t)
	c := New(api.server.URL, "", "")

	appt, err := c.Book(context.Background(), BookRequest{BarberID: "b1", Date: "2025-03-11", Time: "09:00"})
	require.NoError(t, err)
	assert.Equal(t, "a1", appt.ID)

	_, err = c.Book(context.Background(), BookRequest{BarberID: "b1", Date: "2025-03-11", Time: "09:30"})
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "slot_taken", apiErr.Reason)
	assert.Contains(t, apiErr.Error(), "409")
}

func TestAuthHeaders(t *testing.T) {
	api := newFakeAPI(t)

	_, err := New(api.server.URL, "", "").Cancel(context.Background(), "a1", models.CancelledByAdmin, "")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Unauthorized", apiErr.Message)

	appt, err := New(api.server.URL, "key", "extra").Cancel(context.Background(), "a1", models.CancelledByAdmin, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, appt.Status)
}

func TestRedisCache(t *testing.T) {
	api := newFakeAPI(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c := New(api.server.URL, "key", "")
	c.UseRedisCache(rdb, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Slots(ctx, "b1", "2025-03-11")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), api.slotCalls.Load())
	assert.True(t, mr.Exists(slotsKey("b1", "2025-03-11")))

	_, err = c.Book(ctx, BookRequest{BarberID: "b1", Date: "2025-03-11", Time: "09:00"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(slotsKey("b1", "2025-03-11")))

	_, err = c.Slots(ctx, "b1", "2025-03-11")
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.slotCalls.Load())

	_, err = c.Cancel(ctx, "a1", models.CancelledByAdmin, "")
	require.NoError(t, err)
	assert.False(t, mr.Exists(slotsKey("b1", "2025-03-11")))

	mr.FastForward(2 * time.Minute)
	_, err = c.Slots(ctx, "b1", "2025-03-11")
	require.NoError(t, err)
	assert.Equal(t, int32(3), api.slotCalls.Load())
}
