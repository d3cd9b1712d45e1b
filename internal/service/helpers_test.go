package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"barbershop/internal/database"
	"barbershop/internal/events"
	"barbershop/internal/models"
	"barbershop/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var shopZone = time.FixedZone("IST", 2*60*60)

// sunday noon; the fixture barber works on the following Monday
var testNow = time.Date(2025, 3, 9, 12, 0, 0, 0, shopZone)

func monday(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, shopZone)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) AppointmentCreated(ctx context.Context, b *models.Barber, a *models.Appointment) error {
	return m.Called(ctx, b, a).Error(0)
}

func (m *mockNotifier) AppointmentCancelled(ctx context.Context, b *models.Barber, a *models.Appointment) error {
	return m.Called(ctx, b, a).Error(0)
}

func (m *mockNotifier) WaitlistSlotOpened(ctx context.Context, b *models.Barber, e *models.WaitlistEntry) error {
	return m.Called(ctx, b, e).Error(0)
}

func (m *mockNotifier) DailyAgenda(ctx context.Context, b *models.Barber, date time.Time, appts []*models.Appointment) error {
	return m.Called(ctx, b, date, appts).Error(0)
}

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) EnqueueTask(ctx context.Context, taskType, appointmentID, status string) error {
	return m.Called(ctx, taskType, appointmentID, status).Error(0)
}

// eventLog records every event type published on the bus.
type eventLog struct {
	mu     sync.Mutex
	events []*events.Event
}

func (l *eventLog) handler(e *events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db        *database.DB
	cache     *repository.MemoryScheduleStore
	bus       *events.EventBus
	log       *eventLog
	notifier  *mockNotifier
	syncer    *mockSyncer
	schedules *ScheduleService
	booking   *BookingService
	waitlist  *WaitlistService
}

func testSettings() Settings {
	return Settings{
		Location:       shopZone,
		MaxBookingDays: 60,
		CancelCutoff:   2 * time.Hour,
	}
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "service.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedBarber stores barber b1 with a 20 minute primary treatment, working Monday 09:00-12:00.
func seedBarber(t *testing.T, db *database.DB) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.UpsertTreatment(ctx, &models.Treatment{ID: "cut", Name: "Стрижка", Duration: 20, Price: 80}))
	require.NoError(t, db.UpsertTreatment(ctx, &models.Treatment{ID: "beard", Name: "Борода", Duration: 45, Price: 60}))
	require.NoError(t, db.UpsertBarber(ctx, &models.Barber{ID: "b1", Name: "Avi", TelegramChatID: 42}))
	_, err := db.SetPrimaryTreatment(ctx, "b1", "cut")
	require.NoError(t, err)
	require.NoError(t, db.AssignTreatment(ctx, "b1", "beard"))

	week := models.DefaultWeek("b1")
	for i := range week {
		week[i].IsAvailable = week[i].DayOfWeek == time.Monday
		week[i].End = models.MustClock("12:00")
	}
	require.NoError(t, db.SaveWeeklyAvailability(ctx, "b1", week))
}

func newFixture(t *testing.T, settings Settings) *fixture {
	t.Helper()
	db := newTestDB(t)
	seedBarber(t, db)
	return newFixtureWithRepo(t, db, db, settings)
}

// newFixtureWithRepo lets tests put a wrapper in front of the schedule reads.
func newFixtureWithRepo(t *testing.T, db *database.DB, scheduleRepo ScheduleRepository, settings Settings) *fixture {
	t.Helper()
	logger := zerolog.Nop()

	f := &fixture{
		db:       db,
		cache:    repository.NewMemoryScheduleStore(time.Minute),
		bus:      events.NewEventBus(),
		log:      &eventLog{},
		notifier: new(mockNotifier),
		syncer:   new(mockSyncer),
	}
	f.notifier.On("AppointmentCreated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.notifier.On("AppointmentCancelled", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.syncer.On("EnqueueTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	for _, typ := range []string{
		events.EventAppointmentCreated,
		events.EventAppointmentCancelled,
		events.EventAppointmentStatusChanged,
		events.EventAppointmentDeleted,
		events.EventWaitlistSlotOpened,
	} {
		f.bus.Subscribe(typ, f.log.handler)
	}

	f.schedules = NewScheduleService(scheduleRepo, f.cache, settings, &logger)
	f.schedules.now = func() time.Time { return testNow }
	f.booking = NewBookingService(db, f.schedules, f.cache, f.bus, f.syncer, f.notifier, &logger)
	f.booking.now = func() time.Time { return testNow }
	f.waitlist = NewWaitlistService(db, f.notifier, shopZone, &logger)
	f.waitlist.now = func() time.Time { return testNow }
	f.bus.Subscribe(events.EventWaitlistSlotOpened, f.waitlist.HandleSlotOpened)
	return f
}

func (f *fixture) book(t *testing.T, start time.Time) *models.Appointment {
	t.Helper()
	appt, err := f.booking.Book(context.Background(), BookingRequest{
		BarberID:    "b1",
		TreatmentID: "cut",
		Start:       start,
		UserID:      "u1",
		ClientName:  "Dana",
	})
	require.NoError(t, err)
	return appt
}

func clocks(slots []time.Time) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Format("15:04"))
	}
	return out
}
