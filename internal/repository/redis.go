package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"barbershop/internal/config"
	"barbershop/internal/models"
	"barbershop/internal/schedule"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var errNilClient = errors.New("redis client is nil")

// releaseScript deletes a hold only if it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisScheduleStore keeps resolved days and per-day booking holds in Redis.
type RedisScheduleStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisScheduleStore(client *redis.Client, ttl time.Duration) *RedisScheduleStore {
	return &RedisScheduleStore{client: client, ttl: ttl}
}

func dayKey(barberID string, date time.Time) string {
	return fmt.Sprintf("day:%s:%s", barberID, models.DayKey(date))
}

func dayIndexKey(barberID string) string {
	return "days:" + barberID
}

// dayHoldKey serializes bookings per barber and calendar day.
func dayHoldKey(barberID string, day time.Time) string {
	return fmt.Sprintf("day_hold:%s:%s", barberID, models.DayKey(day))
}

func (r *RedisScheduleStore) GetDay(ctx context.Context, barberID string, date time.Time) (*schedule.Day, error) {
	if r.client == nil {
		return nil, errNilClient
	}
	val, err := r.client.Get(ctx, dayKey(barberID, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get day from redis: %w", err)
	}

	var day schedule.Day
	if err := json.Unmarshal(val, &day); err != nil {
		return nil, fmt.Errorf("failed to unmarshal day: %w", err)
	}
	return &day, nil
}

// SetDay caches the day and records its key in the barber's index so it can be invalidated.
func (r *RedisScheduleStore) SetDay(ctx context.Context, day schedule.Day) error {
	if r.client == nil {
		return errNilClient
	}
	data, err := json.Marshal(day)
	if err != nil {
		return fmt.Errorf("failed to marshal day: %w", err)
	}

	key := dayKey(day.BarberID, day.Date)
	idx := dayIndexKey(day.BarberID)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, data, r.ttl)
		p.SAdd(ctx, idx, key)
		p.Expire(ctx, idx, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set day in redis: %w", err)
	}
	return nil
}

func (r *RedisScheduleStore) InvalidateBarber(ctx context.Context, barberID string) error {
	if r.client == nil {
		return errNilClient
	}
	idx := dayIndexKey(barberID)
	keys, err := r.client.SMembers(ctx, idx).Result()
	if err != nil {
		return fmt.Errorf("failed to read day index: %w", err)
	}
	keys = append(keys, idx)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate days: %w", err)
	}
	return nil
}

// AcquireDayHold takes a hold on the barber's calendar day with SET NX. The returned token releases it.
func (r *RedisScheduleStore) AcquireDayHold(ctx context.Context, barberID string, day time.Time, ttl time.Duration) (string, bool, error) {
	if r.client == nil {
		return "", false, errNilClient
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, dayHoldKey(barberID, day), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire day hold: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *RedisScheduleStore) ReleaseDayHold(ctx context.Context, barberID string, day time.Time, token string) error {
	if r.client == nil {
		return errNilClient
	}
	if err := releaseScript.Run(ctx, r.client, []string{dayHoldKey(barberID, day)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release day hold: %w", err)
	}
	return nil
}

func (r *RedisScheduleStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNilClient
	}
	rk := "rate_limit:" + key
	count, err := r.client.Incr(ctx, rk).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		r.client.Expire(ctx, rk, window)
	}
	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
