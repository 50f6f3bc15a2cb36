package repository

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/nomadsam6/bls2/internal/domain"
)

// LogRepository defines the interface for the append-only system log
type LogRepository interface {
	Append(ctx context.Context, entry *domain.SystemLog) error
	List(ctx context.Context, limit, offset int, level domain.LogLevel) ([]domain.SystemLog, int, error)
}

const (
	logListKey = "bls2:logs"

	// maxRetainedLogs caps the persisted log length so an unattended
	// deployment does not grow without bound.
	maxRetainedLogs = 10000
)

// RedisLogRepository implements LogRepository on a Redis list, newest first
type RedisLogRepository struct {
	client *redis.Client
}

// NewRedisLogRepository creates a Redis-backed log repository
func NewRedisLogRepository(client *redis.Client) *RedisLogRepository {
	return &RedisLogRepository{client: client}
}

// Append stores a log entry at the head of the list
func (r *RedisLogRepository) Append(ctx context.Context, entry *domain.SystemLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, logListKey, data)
	pipe.LTrim(ctx, logListKey, 0, maxRetainedLogs-1)
	_, err = pipe.Exec(ctx)
	return err
}

// List returns log entries newest-first, optionally filtered by level,
// plus the total count of matching entries
func (r *RedisLogRepository) List(ctx context.Context, limit, offset int, level domain.LogLevel) ([]domain.SystemLog, int, error) {
	raw, err := r.client.LRange(ctx, logListKey, 0, -1).Result()
	if err != nil {
		return nil, 0, err
	}

	var entries []domain.SystemLog
	for _, item := range raw {
		var entry domain.SystemLog
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		if level != "" && entry.Level != level {
			continue
		}
		entries = append(entries, entry)
	}

	total := len(entries)
	return paginateLogs(entries, limit, offset), total, nil
}

// InMemoryLogRepository implements LogRepository with local state, used
// when Redis is unavailable and in tests
type InMemoryLogRepository struct {
	mu      sync.RWMutex
	entries []domain.SystemLog
}

// NewInMemoryLogRepository creates an in-memory log repository
func NewInMemoryLogRepository() *InMemoryLogRepository {
	return &InMemoryLogRepository{}
}

// Append stores a log entry at the head of the list
func (r *InMemoryLogRepository) Append(ctx context.Context, entry *domain.SystemLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append([]domain.SystemLog{*entry}, r.entries...)
	if len(r.entries) > maxRetainedLogs {
		r.entries = r.entries[:maxRetainedLogs]
	}
	return nil
}

// List returns log entries newest-first, optionally filtered by level,
// plus the total count of matching entries
func (r *InMemoryLogRepository) List(ctx context.Context, limit, offset int, level domain.LogLevel) ([]domain.SystemLog, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []domain.SystemLog
	for _, entry := range r.entries {
		if level != "" && entry.Level != level {
			continue
		}
		entries = append(entries, entry)
	}

	total := len(entries)
	return paginateLogs(entries, limit, offset), total, nil
}

func paginateLogs(entries []domain.SystemLog, limit, offset int) []domain.SystemLog {
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}
