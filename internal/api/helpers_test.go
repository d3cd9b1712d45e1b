package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"barbershop/internal/config"
	"barbershop/internal/database"
	"barbershop/internal/events"
	"barbershop/internal/export"
	"barbershop/internal/models"
	"barbershop/internal/repository"
	"barbershop/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var shopZone = time.FixedZone("IST", 2*60*60)

type testAPI struct {
	db       *database.DB
	services Services
	server   *HTTPServer
}

// newTestAPI serves barber b1 (20 minute cuts, every day 09:00-18:00 with a 13:00-14:00
// break) with auth switched off.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	return newTestAPIWithConfig(t, &config.APIConfig{Enabled: true})
}

func newTestAPIWithConfig(t *testing.T, cfg *config.APIConfig) *testAPI {
	t.Helper()
	logger := zerolog.Nop()
	ctx := context.Background()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.UpsertTreatment(ctx, &models.Treatment{ID: "cut", Name: "Стрижка", Duration: 20}))
	require.NoError(t, db.UpsertBarber(ctx, &models.Barber{ID: "b1", Name: "Avi"}))
	_, err = db.SetPrimaryTreatment(ctx, "b1", "cut")
	require.NoError(t, err)
	week := models.DefaultWeek("b1")
	for i := range week {
		week[i].IsAvailable = true
		week[i].HasBreak = true
		week[i].BreakStart = models.MustClock("13:00")
		week[i].BreakEnd = models.MustClock("14:00")
	}
	require.NoError(t, db.SaveWeeklyAvailability(ctx, "b1", week))

	settings := service.Settings{Location: shopZone, Reservation: config.ReservationTransaction}
	cache := repository.NewMemoryScheduleStore(time.Minute)
	bus := events.NewEventBus()
	schedules := service.NewScheduleService(db, cache, settings, &logger)
	waitlist := service.NewWaitlistService(db, nil, shopZone, &logger)
	bus.Subscribe(events.EventWaitlistSlotOpened, waitlist.HandleSlotOpened)

	svc := Services{
		Schedules: schedules,
		Booking:   service.NewBookingService(db, schedules, cache, bus, nil, nil, &logger),
		Barbers:   service.NewBarberService(db, &logger),
		Waitlist:  waitlist,
		Exporter:  export.NewExporter(db, t.TempDir(), shopZone),
		SyncTasks: db,
		Ready:     db.PingContext,
	}
	return &testAPI{db: db, services: svc, server: NewHTTPServer(cfg, svc, &logger)}
}

// tomorrow is the next calendar date in the shop's timezone.
func tomorrow() string {
	return models.DayKey(time.Now().In(shopZone).AddDate(0, 0, 1))
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
