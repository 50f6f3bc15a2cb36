package repository

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nomadsam6/bls2/internal/domain"
)

// StatsRepository defines the interface for the singleton run-statistics
// record. Increment operations must be atomic relative to concurrent
// readers; read-modify-write is not allowed on counters.
type StatsRepository interface {
	Get(ctx context.Context) (*domain.RunStatistics, error)
	SetStatus(ctx context.Context, status domain.SystemStatus) error
	SetCheckInterval(ctx context.Context, interval time.Duration) error
	SetLastCheck(ctx context.Context, t time.Time) error
	IncrTotalChecks(ctx context.Context, delta int64) error
	IncrSlotsFound(ctx context.Context, delta int64) error
	IncrSuccessfulBookings(ctx context.Context, delta int64) error
	IncrErrorCount(ctx context.Context, delta int64) error
	Reset(ctx context.Context) error
}

const statsKey = "bls2:stats"

// Hash field names of the persisted statistics record.
const (
	fieldStatus             = "status"
	fieldCheckInterval      = "check_interval_seconds"
	fieldLastCheck          = "last_check"
	fieldTotalChecks        = "total_checks"
	fieldSlotsFound         = "slots_found"
	fieldSuccessfulBookings = "successful_bookings"
	fieldErrorCount         = "error_count"
)

// RedisStatsRepository implements StatsRepository on a Redis hash, using
// HINCRBY/HSET so counter updates are atomic server-side.
type RedisStatsRepository struct {
	client          *redis.Client
	defaultInterval time.Duration
}

// NewRedisStatsRepository creates a Redis-backed statistics repository
func NewRedisStatsRepository(client *redis.Client, defaultInterval time.Duration) *RedisStatsRepository {
	return &RedisStatsRepository{
		client:          client,
		defaultInterval: defaultInterval,
	}
}

// Get reads the statistics record, applying defaults for absent fields
func (r *RedisStatsRepository) Get(ctx context.Context) (*domain.RunStatistics, error) {
	values, err := r.client.HGetAll(ctx, statsKey).Result()
	if err != nil {
		return nil, err
	}

	stats := &domain.RunStatistics{
		Status:        domain.SystemStatusStopped,
		CheckInterval: r.defaultInterval,
	}

	if v, ok := values[fieldStatus]; ok && v != "" {
		stats.Status = domain.SystemStatus(v)
	}
	if v, ok := values[fieldCheckInterval]; ok {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil && secs > 0 {
			stats.CheckInterval = time.Duration(secs) * time.Second
		}
	}
	if v, ok := values[fieldLastCheck]; ok && v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			stats.LastCheck = &t
		}
	}
	stats.TotalChecks = parseCounter(values[fieldTotalChecks])
	stats.SlotsFound = parseCounter(values[fieldSlotsFound])
	stats.SuccessfulBookings = parseCounter(values[fieldSuccessfulBookings])
	stats.ErrorCount = parseCounter(values[fieldErrorCount])

	return stats, nil
}

// SetStatus sets the system status field
func (r *RedisStatsRepository) SetStatus(ctx context.Context, status domain.SystemStatus) error {
	return r.client.HSet(ctx, statsKey, fieldStatus, string(status)).Err()
}

// SetCheckInterval sets the check interval field
func (r *RedisStatsRepository) SetCheckInterval(ctx context.Context, interval time.Duration) error {
	return r.client.HSet(ctx, statsKey, fieldCheckInterval, int64(interval.Seconds())).Err()
}

// SetLastCheck sets the last-check timestamp field
func (r *RedisStatsRepository) SetLastCheck(ctx context.Context, t time.Time) error {
	return r.client.HSet(ctx, statsKey, fieldLastCheck, t.UTC().Format(time.RFC3339)).Err()
}

// IncrTotalChecks atomically increments the total-checks counter
func (r *RedisStatsRepository) IncrTotalChecks(ctx context.Context, delta int64) error {
	return r.client.HIncrBy(ctx, statsKey, fieldTotalChecks, delta).Err()
}

// IncrSlotsFound atomically increments the slots-found counter
func (r *RedisStatsRepository) IncrSlotsFound(ctx context.Context, delta int64) error {
	return r.client.HIncrBy(ctx, statsKey, fieldSlotsFound, delta).Err()
}

// IncrSuccessfulBookings atomically increments the bookings counter
func (r *RedisStatsRepository) IncrSuccessfulBookings(ctx context.Context, delta int64) error {
	return r.client.HIncrBy(ctx, statsKey, fieldSuccessfulBookings, delta).Err()
}

// IncrErrorCount atomically increments the error counter
func (r *RedisStatsRepository) IncrErrorCount(ctx context.Context, delta int64) error {
	return r.client.HIncrBy(ctx, statsKey, fieldErrorCount, delta).Err()
}

// Reset clears all counters and sets the record back to its defaults
func (r *RedisStatsRepository) Reset(ctx context.Context) error {
	return r.client.Del(ctx, statsKey).Err()
}

func parseCounter(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// InMemoryStatsRepository implements StatsRepository with local state, used
// when Redis is unavailable and in tests
type InMemoryStatsRepository struct {
	mu    sync.RWMutex
	stats domain.RunStatistics
}

// NewInMemoryStatsRepository creates an in-memory statistics repository
func NewInMemoryStatsRepository(defaultInterval time.Duration) *InMemoryStatsRepository {
	return &InMemoryStatsRepository{
		stats: domain.RunStatistics{
			Status:        domain.SystemStatusStopped,
			CheckInterval: defaultInterval,
		},
	}
}

// Get returns a copy of the statistics record
func (r *InMemoryStatsRepository) Get(ctx context.Context) (*domain.RunStatistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := r.stats
	if r.stats.LastCheck != nil {
		t := *r.stats.LastCheck
		stats.LastCheck = &t
	}
	return &stats, nil
}

// SetStatus sets the system status field
func (r *InMemoryStatsRepository) SetStatus(ctx context.Context, status domain.SystemStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Status = status
	return nil
}

// SetCheckInterval sets the check interval field
func (r *InMemoryStatsRepository) SetCheckInterval(ctx context.Context, interval time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.CheckInterval = interval
	return nil
}

// SetLastCheck sets the last-check timestamp field
func (r *InMemoryStatsRepository) SetLastCheck(ctx context.Context, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := t.UTC()
	r.stats.LastCheck = &u
	return nil
}

// IncrTotalChecks atomically increments the total-checks counter
func (r *InMemoryStatsRepository) IncrTotalChecks(ctx context.Context, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.TotalChecks += delta
	return nil
}

// IncrSlotsFound atomically increments the slots-found counter
func (r *InMemoryStatsRepository) IncrSlotsFound(ctx context.Context, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.SlotsFound += delta
	return nil
}

// IncrSuccessfulBookings atomically increments the bookings counter
func (r *InMemoryStatsRepository) IncrSuccessfulBookings(ctx context.Context, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.SuccessfulBookings += delta
	return nil
}

// IncrErrorCount atomically increments the error counter
func (r *InMemoryStatsRepository) IncrErrorCount(ctx context.Context, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.ErrorCount += delta
	return nil
}

// Reset clears all counters and sets the record back to its defaults
func (r *InMemoryStatsRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = domain.RunStatistics{
		Status:        domain.SystemStatusStopped,
		CheckInterval: r.stats.CheckInterval,
	}
	return nil
}
