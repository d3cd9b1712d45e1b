package worker

import (
	"context"
	"sync"
	"time"

	"barbershop/internal/models"
)

type fakeSheets struct {
	mu          sync.Mutex
	err         error
	upsertCalls int
	deleteCalls int
	statusCalls int
	lastUpsert  *models.Appointment
}

func (f *fakeSheets) UpsertAppointment(_ context.Context, a *models.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	f.lastUpsert = a
	return f.err
}

func (f *fakeSheets) DeleteAppointmentRow(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.err
}

func (f *fakeSheets) UpdateAppointmentStatus(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	return f.err
}

func (f *fakeSheets) deletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteCalls
}

type agendaCall struct {
	barberID string
	date     time.Time
	count    int
}

type fakeNotifier struct {
	err     error
	agendas []agendaCall
}

func (f *fakeNotifier) AppointmentCreated(context.Context, *models.Barber, *models.Appointment) error {
	return nil
}

func (f *fakeNotifier) AppointmentCancelled(context.Context, *models.Barber, *models.Appointment) error {
	return nil
}

func (f *fakeNotifier) WaitlistSlotOpened(context.Context, *models.Barber, *models.WaitlistEntry) error {
	return nil
}

func (f *fakeNotifier) DailyAgenda(_ context.Context, b *models.Barber, date time.Time, appts []*models.Appointment) error {
	if f.err != nil {
		return f.err
	}
	f.agendas = append(f.agendas, agendaCall{barberID: b.ID, date: date, count: len(appts)})
	return nil
}
