package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"barbershop/internal/config"
	"barbershop/internal/database"
	"barbershop/internal/events"
	"barbershop/internal/models"
	"barbershop/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBookingService_Book_Client(t *testing.T) {
	f := newFixture(t, testSettings())

	appt, err := f.booking.Book(context.Background(), BookingRequest{
		BarberID:    "b1",
		TreatmentID: "beard",
		Start:       monday(10, 0),
		UserID:      "u1",
		ClientName:  " Dana ",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, appt.ID)
	assert.Equal(t, models.StatusConfirmed, appt.Status)
	assert.Equal(t, 45, appt.Duration)
	assert.Equal(t, "Dana", appt.ClientName)
	assert.False(t, appt.IsManualClient)

	stored, err := f.db.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.True(t, stored.Date.Equal(monday(10, 0)))

	assert.Equal(t, []string{events.EventAppointmentCreated}, f.log.types())
	f.syncer.AssertCalled(t, "EnqueueTask", mock.Anything, models.SyncUpsertAppointment, appt.ID, "")
	f.notifier.AssertCalled(t, "AppointmentCreated", mock.Anything,
		mock.MatchedBy(func(b *models.Barber) bool { return b.ID == "b1" }), appt)
}

func TestBookingService_Book_DurationFallsBackToSlot(t *testing.T) {
	f := newFixture(t, testSettings())

	appt, err := f.booking.Book(context.Background(), BookingRequest{
		BarberID: "b1",
		Start:    monday(11, 40),
		UserID:   "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, 20, appt.Duration)
}

func TestBookingService_Book_Manual(t *testing.T) {
	f := newFixture(t, testSettings())

	appt, err := f.booking.Book(context.Background(), BookingRequest{
		BarberID:    "b1",
		Start:       monday(9, 0),
		Manual:      true,
		ClientName:  "Walk-in",
		ClientPhone: "050-123-4567",
	})
	require.NoError(t, err)

	assert.True(t, appt.IsManualClient)
	assert.Equal(t, models.ManualClientUserID, appt.UserID)
	assert.Equal(t, models.StatusPending, appt.Status)
	assert.Equal(t, models.DefaultAppointmentMinutes, appt.Duration)
	assert.Equal(t, "+972501234567", appt.ClientPhone)
}

func TestBookingService_Book_ManualWithTreatment(t *testing.T) {
	f := newFixture(t, testSettings())
	ctx := context.Background()

	appt, err := f.booking.Book(ctx, BookingRequest{
		BarberID:    "b1",
		TreatmentID: "cut",
		Start:       monday(9, 0),
		Manual:      true,
		ClientName:  "Walk-in",
	})
	require.NoError(t, err)
	assert.Equal(t, 20, appt.Duration)
	assert.Equal(t, models.StatusPending, appt.Status)

	slots, err := f.schedules.AvailableSlots(ctx, "b1", monday(0, 0))
	require.NoError(t, err)
	assert.Equal(t, "09:20", clocks(slots)[0])
	assert.Contains(t, clocks(slots), "09:40")
}

func TestBookingService_Book_Rejections(t *testing.T) {
	f := newFixture(t, testSettings())
	ctx := context.Background()
	f.book(t, monday(10, 0))

	tests := []struct {
		name   string
		req    BookingRequest
		err    error
		reason schedule.Reason
	}{
		{
			name:   "Overlap",
			req:    BookingRequest{BarberID: "b1", TreatmentID: "cut", Start: monday(10, 10), UserID: "u2"},
			err:    ErrSlotUnavailable,
			reason: schedule.ReasonSlotTaken,
		},
		{
			name:   "OutsideHours",
			req:    BookingRequest{BarberID: "b1", TreatmentID: "beard", Start: monday(11, 40), UserID: "u2"},
			err:    ErrSlotUnavailable,
			reason: schedule.ReasonOutsideWorkingHours,
		},
		{
			name: "Past",
			req:  BookingRequest{BarberID: "b1", Start: testNow.Add(-time.Hour), UserID: "u2"},
			err:  ErrPastSlot,
		},
		{
			name: "TooFar",
			req:  BookingRequest{BarberID: "b1", Start: testNow.AddDate(0, 0, 61), UserID: "u2"},
			err:  ErrDateTooFar,
		},
		{
			name: "NoClient",
			req:  BookingRequest{BarberID: "b1", Start: monday(11, 0)},
			err:  models.ErrMissingField,
		},
		{
			name: "ManualWithoutName",
			req:  BookingRequest{BarberID: "b1", Start: monday(11, 0), Manual: true},
			err:  models.ErrMissingField,
		},
		{
			name: "BadPhone",
			req:  BookingRequest{BarberID: "b1", Start: monday(11, 0), Manual: true, ClientName: "X", ClientPhone: "12"},
			err:  models.ErrInvalidPhone,
		},
		{
			name: "UnknownBarber",
			req:  BookingRequest{BarberID: "zz", Start: monday(11, 0), UserID: "u2"},
			err:  database.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.booking.Book(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			if tt.reason != "" {
				var se *SlotError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, tt.reason, se.Reason)
			}
		})
	}
}

// staleRepo hides existing appointments from the checker, as a read taken just before
// another booking landed would.
type staleRepo struct {
	*database.DB
}

func (staleRepo) FetchAppointmentsForBarberAndDate(context.Context, string, time.Time) ([]models.Appointment, error) {
	return nil, nil
}

func TestBookingService_Book_StaleRead(t *testing.T) {
	for _, tt := range []struct {
		mode    string
		wantErr error
	}{
		{config.ReservationNone, nil},
		{config.ReservationTransaction, ErrSlotUnavailable},
	} {
		t.Run(tt.mode, func(t *testing.T) {
			db := newTestDB(t)
			seedBarber(t, db)
			settings := testSettings()
			settings.Reservation = tt.mode
			f := newFixtureWithRepo(t, db, staleRepo{DB: db}, settings)

			f.book(t, monday(10, 0))
			_, err := f.booking.Book(context.Background(), BookingRequest{
				BarberID: "b1", TreatmentID: "cut", Start: monday(10, 0), UserID: "u2",
			})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBookingService_Book_RedisHold(t *testing.T) {
	settings := testSettings()
	settings.Reservation = config.ReservationRedis
	f := newFixture(t, settings)
	ctx := context.Background()

	token, ok, err := f.cache.AcquireDayHold(ctx, "b1", monday(0, 0), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.booking.Book(ctx, BookingRequest{BarberID: "b1", TreatmentID: "cut", Start: monday(10, 0), UserID: "u1"})
	assert.ErrorIs(t, err, ErrReservationBusy)

	require.NoError(t, f.cache.ReleaseDayHold(ctx, "b1", monday(0, 0), token))
	f.book(t, monday(10, 0))

	// the hold is released after a booking
	_, ok, err = f.cache.AcquireDayHold(ctx, "b1", monday(0, 0), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBookingService_Book_ConcurrentSameSlot(t *testing.T) {
	settings := testSettings()
	settings.Reservation = config.ReservationRedis
	f := newFixture(t, settings)

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.booking.Book(context.Background(), BookingRequest{
				BarberID: "b1", TreatmentID: "cut", Start: monday(9, 20), UserID: "u1",
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	}
	assert.Equal(t, 1, ok)

	appts, err := f.booking.AppointmentsForDay(context.Background(), "b1", monday(0, 0))
	require.NoError(t, err)
	assert.Len(t, appts, 1)
}

func TestBookingService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("CustomerOwnAppointment", func(t *testing.T) {
		f := newFixture(t, testSettings())
		appt := f.book(t, monday(9, 40))

		cancelled, err := f.booking.Cancel(ctx, CancelRequest{AppointmentID: appt.ID, By: models.CancelledByCustomer, UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, cancelled.Status)
		assert.Equal(t, models.CancelledByCustomer, cancelled.CancelledBy)
		require.NotNil(t, cancelled.CancelledAt)

		stored, err := f.db.GetAppointment(ctx, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, stored.Status)
		assert.Contains(t, f.log.types(), events.EventAppointmentCancelled)
		f.syncer.AssertCalled(t, "EnqueueTask", mock.Anything, models.SyncUpdateStatus, appt.ID, models.StatusCancelled)

		// the slot is offered again
		slots, err := f.schedules.AvailableSlots(ctx, "b1", monday(0, 0))
		require.NoError(t, err)
		assert.Contains(t, clocks(slots), "09:40")
	})

	t.Run("NotOwner", func(t *testing.T) {
		f := newFixture(t, testSettings())
		appt := f.book(t, monday(9, 40))

		_, err := f.booking.Cancel(ctx, CancelRequest{AppointmentID: appt.ID, By: models.CancelledByCustomer, UserID: "u2"})
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("InsideCutoff", func(t *testing.T) {
		f := newFixture(t, testSettings())
		appt := f.book(t, monday(9, 40))
		f.booking.now = func() time.Time { return monday(8, 0) }

		_, err := f.booking.Cancel(ctx, CancelRequest{AppointmentID: appt.ID, By: models.CancelledByCustomer, UserID: "u1"})
		assert.ErrorIs(t, err, ErrCancelTooLate)

		_, err = f.booking.Cancel(ctx, CancelRequest{AppointmentID: appt.ID, By: models.CancelledByBarber})
		assert.NoError(t, err)
	})

	t.Run("AlreadyFinal", func(t *testing.T) {
		f := newFixture(t, testSettings())
		appt := f.book(t, monday(9, 40))

		_, err := f.booking.Cancel(ctx, CancelRequest{AppointmentID: appt.ID, By: models.CancelledByAdmin})
		require.NoError(t, err)
		_, err = f.booking.Cancel(ctx, CancelRequest{AppointmentID: appt.ID, By: models.CancelledByAdmin})
		assert.ErrorIs(t, err, ErrAlreadyFinal)
	})

	t.Run("UnknownCanceller", func(t *testing.T) {
		f := newFixture(t, testSettings())
		appt := f.book(t, monday(9, 40))

		_, err := f.booking.Cancel(ctx, CancelRequest{AppointmentID: appt.ID, By: "robot"})
		assert.ErrorIs(t, err, models.ErrInvalidStatus)
	})
}

func TestBookingService_Cancel_OpensWaitlist(t *testing.T) {
	f := newFixture(t, testSettings())
	ctx := context.Background()
	appt := f.book(t, monday(9, 40))

	matching := &models.WaitlistEntry{
		BarberID: "b1", Date: monday(0, 0), From: models.MustClock("09:30"), To: models.MustClock("10:30"),
		ClientName: "Noa",
	}
	other := &models.WaitlistEntry{
		BarberID: "b1", Date: monday(0, 0), From: models.MustClock("11:00"), To: models.MustClock("12:00"),
		ClientName: "Eli",
	}
	require.NoError(t, f.waitlist.Add(ctx, matching))
	require.NoError(t, f.waitlist.Add(ctx, other))
	f.notifier.On("WaitlistSlotOpened", mock.Anything, mock.Anything,
		mock.MatchedBy(func(e *models.WaitlistEntry) bool { return e.ID == matching.ID })).Return(nil).Once()

	_, err := f.booking.Cancel(ctx, CancelRequest{AppointmentID: appt.ID, By: models.CancelledByBarber})
	require.NoError(t, err)

	got, err := f.db.GetWaitlistEntry(ctx, matching.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistNotified, got.Status)

	got, err = f.db.GetWaitlistEntry(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistWaiting, got.Status)

	assert.Contains(t, f.log.types(), events.EventWaitlistSlotOpened)
	f.notifier.AssertExpectations(t)
}

func TestBookingService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSettings())

	manual, err := f.booking.Book(ctx, BookingRequest{BarberID: "b1", Start: monday(9, 0), Manual: true, ClientName: "Walk-in"})
	require.NoError(t, err)

	confirmed, err := f.booking.UpdateStatus(ctx, manual.ID, models.StatusConfirmed, "barber")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)

	_, err = f.booking.UpdateStatus(ctx, manual.ID, models.StatusPending, "barber")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.booking.UpdateStatus(ctx, manual.ID, models.StatusCompleted, "barber")
	require.NoError(t, err)

	_, err = f.booking.UpdateStatus(ctx, manual.ID, models.StatusCancelled, "barber")
	assert.ErrorIs(t, err, ErrAlreadyFinal)

	_, err = f.booking.UpdateStatus(ctx, manual.ID, "archived", "barber")
	assert.ErrorIs(t, err, models.ErrInvalidStatus)

	assert.Contains(t, f.log.types(), events.EventAppointmentStatusChanged)
}

func TestBookingService_UpdateStatus_CancelUsesStaffRights(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSettings())
	appt := f.book(t, monday(9, 0))
	f.booking.now = func() time.Time { return monday(8, 30) }

	cancelled, err := f.booking.UpdateStatus(ctx, appt.ID, models.StatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, models.CancelledByAdmin, cancelled.CancelledBy)
}

func TestBookingService_DeleteAndDayListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSettings())

	first := f.book(t, monday(9, 0))
	second := f.book(t, monday(10, 0))
	third := f.book(t, monday(11, 0))
	_, err := f.booking.Cancel(ctx, CancelRequest{AppointmentID: third.ID, By: models.CancelledByAdmin})
	require.NoError(t, err)

	day, err := f.booking.AppointmentsForDay(ctx, "b1", monday(0, 0))
	require.NoError(t, err)
	require.Len(t, day, 2)
	assert.Equal(t, first.ID, day[0].ID)
	assert.Equal(t, second.ID, day[1].ID)

	require.NoError(t, f.booking.Delete(ctx, first.ID, "admin"))
	_, err = f.booking.Get(ctx, first.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	f.syncer.AssertCalled(t, "EnqueueTask", mock.Anything, models.SyncDeleteAppointment, first.ID, "")
	assert.Contains(t, f.log.types(), events.EventAppointmentDeleted)

	err = f.booking.Delete(ctx, first.ID, "admin")
	assert.ErrorIs(t, err, database.ErrNotFound)

	upcoming, err := f.booking.UpcomingForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, upcoming, 2)
}
