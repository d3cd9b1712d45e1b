package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"barbershop/internal/domain"
	"barbershop/internal/schedule"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverScheduleStore uses primary until it errors, then serves from fallback and
// retries primary once a minute.
type FailoverScheduleStore struct {
	primary   domain.ScheduleStore
	fallback  domain.ScheduleStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverScheduleStore(primary, fallback domain.ScheduleStore, logger *zerolog.Logger) *FailoverScheduleStore {
	return &FailoverScheduleStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// IsDegraded reports whether calls are currently served by the fallback.
func (r *FailoverScheduleStore) IsDegraded() bool {
	return r.isDown.Load()
}

func (r *FailoverScheduleStore) shouldTryPrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > recoveryInterval
}

func (r *FailoverScheduleStore) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary schedule store failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func call[T any](r *FailoverScheduleStore, op func(domain.ScheduleStore) (T, error)) (T, error) {
	if r.shouldTryPrimary() {
		v, err := op(r.primary)
		if err == nil {
			if r.isDown.Swap(false) {
				r.logger.Info().Msg("Primary schedule store recovered")
			}
			return v, nil
		}
		r.markDown(err)
	}
	return op(r.fallback)
}

func (r *FailoverScheduleStore) GetDay(ctx context.Context, barberID string, date time.Time) (*schedule.Day, error) {
	return call(r, func(s domain.ScheduleStore) (*schedule.Day, error) {
		return s.GetDay(ctx, barberID, date)
	})
}

func (r *FailoverScheduleStore) SetDay(ctx context.Context, day schedule.Day) error {
	_, err := call(r, func(s domain.ScheduleStore) (struct{}, error) {
		return struct{}{}, s.SetDay(ctx, day)
	})
	return err
}

// InvalidateBarber clears both stores so a recovered primary never serves days cached
// before a schedule change made during the outage.
func (r *FailoverScheduleStore) InvalidateBarber(ctx context.Context, barberID string) error {
	_ = r.fallback.InvalidateBarber(ctx, barberID)
	_, err := call(r, func(s domain.ScheduleStore) (struct{}, error) {
		return struct{}{}, s.InvalidateBarber(ctx, barberID)
	})
	return err
}

type hold struct {
	token string
	ok    bool
}

func (r *FailoverScheduleStore) AcquireDayHold(ctx context.Context, barberID string, day time.Time, ttl time.Duration) (string, bool, error) {
	h, err := call(r, func(s domain.ScheduleStore) (hold, error) {
		token, ok, err := s.AcquireDayHold(ctx, barberID, day, ttl)
		return hold{token: token, ok: ok}, err
	})
	return h.token, h.ok, err
}

func (r *FailoverScheduleStore) ReleaseDayHold(ctx context.Context, barberID string, day time.Time, token string) error {
	_, err := call(r, func(s domain.ScheduleStore) (struct{}, error) {
		return struct{}{}, s.ReleaseDayHold(ctx, barberID, day, token)
	})
	return err
}

func (r *FailoverScheduleStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return call(r, func(s domain.ScheduleStore) (bool, error) {
		return s.CheckRateLimit(ctx, key, limit, window)
	})
}
