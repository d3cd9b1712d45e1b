package repository

import (
	"context"
	"sync"
	"time"

	"barbershop/internal/schedule"

	"github.com/google/uuid"
)

type expiring[T any] struct {
	value     T
	expiresAt time.Time
}

func (e expiring[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryScheduleStore is the single-process fallback for RedisScheduleStore.
type MemoryScheduleStore struct {
	mu         sync.Mutex
	days       map[string]expiring[schedule.Day]
	holds      map[string]expiring[string]
	rateLimits map[string]expiring[int]
	ttl        time.Duration
	now        func() time.Time
}

func NewMemoryScheduleStore(ttl time.Duration) *MemoryScheduleStore {
	return &MemoryScheduleStore{
		days:       make(map[string]expiring[schedule.Day]),
		holds:      make(map[string]expiring[string]),
		rateLimits: make(map[string]expiring[int]),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryScheduleStore) GetDay(_ context.Context, barberID string, date time.Time) (*schedule.Day, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := dayKey(barberID, date)
	e, ok := r.days[key]
	if !ok {
		return nil, nil
	}
	if e.expired(r.now()) {
		delete(r.days, key)
		return nil, nil
	}
	day := e.value
	return &day, nil
}

func (r *MemoryScheduleStore) SetDay(_ context.Context, day schedule.Day) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.days[dayKey(day.BarberID, day.Date)] = expiring[schedule.Day]{value: day, expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *MemoryScheduleStore) InvalidateBarber(_ context.Context, barberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.days {
		if e.value.BarberID == barberID {
			delete(r.days, key)
		}
	}
	return nil
}

func (r *MemoryScheduleStore) AcquireDayHold(_ context.Context, barberID string, day time.Time, ttl time.Duration) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := dayHoldKey(barberID, day)
	now := r.now()
	if e, ok := r.holds[key]; ok && !e.expired(now) {
		return "", false, nil
	}
	token := uuid.NewString()
	r.holds[key] = expiring[string]{value: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (r *MemoryScheduleStore) ReleaseDayHold(_ context.Context, barberID string, day time.Time, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := dayHoldKey(barberID, day)
	if e, ok := r.holds[key]; ok && e.value == token {
		delete(r.holds, key)
	}
	return nil
}

func (r *MemoryScheduleStore) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.rateLimits[key]
	if !ok || e.expired(now) {
		e = expiring[int]{expiresAt: now.Add(window)}
	}
	e.value++
	r.rateLimits[key] = e
	return e.value <= limit, nil
}
