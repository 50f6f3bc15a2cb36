package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/nomadsam6/bls2/internal/domain"
)

// SlotRepository defines the interface for appointment slot storage
type SlotRepository interface {
	Save(ctx context.Context, slot *domain.AppointmentSlot) error
	Get(ctx context.Context, id string) (*domain.AppointmentSlot, error)
	Update(ctx context.Context, slot *domain.AppointmentSlot) error
	ListAvailable(ctx context.Context, limit, offset int) ([]domain.AppointmentSlot, int, error)
}

const (
	slotHashKey  = "bls2:slots"
	slotIndexKey = "bls2:slots:by_found_at"
)

// RedisSlotRepository implements SlotRepository on Redis: slot documents in
// a hash, ordered by discovery time through a sorted set index.
type RedisSlotRepository struct {
	client *redis.Client
}

// NewRedisSlotRepository creates a Redis-backed slot repository
func NewRedisSlotRepository(client *redis.Client) *RedisSlotRepository {
	return &RedisSlotRepository{client: client}
}

// Save stores a new slot and indexes it by discovery time
func (r *RedisSlotRepository) Save(ctx context.Context, slot *domain.AppointmentSlot) error {
	data, err := json.Marshal(slot)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, slotHashKey, slot.ID, data)
	pipe.ZAdd(ctx, slotIndexKey, &redis.Z{
		Score:  float64(slot.FoundAt.UnixNano()),
		Member: slot.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

// Get retrieves a slot by ID
func (r *RedisSlotRepository) Get(ctx context.Context, id string) (*domain.AppointmentSlot, error) {
	data, err := r.client.HGet(ctx, slotHashKey, id).Result()
	if err == redis.Nil {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}

	var slot domain.AppointmentSlot
	if err := json.Unmarshal([]byte(data), &slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

// Update overwrites an existing slot document
func (r *RedisSlotRepository) Update(ctx context.Context, slot *domain.AppointmentSlot) error {
	exists, err := r.client.HExists(ctx, slotHashKey, slot.ID).Result()
	if err != nil {
		return err
	}
	if !exists {
		return ErrSlotNotFound
	}

	data, err := json.Marshal(slot)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, slotHashKey, slot.ID, data).Err()
}

// ListAvailable returns available slots ordered newest-first, plus the total
// count of available slots
func (r *RedisSlotRepository) ListAvailable(ctx context.Context, limit, offset int) ([]domain.AppointmentSlot, int, error) {
	ids, err := r.client.ZRevRange(ctx, slotIndexKey, 0, -1).Result()
	if err != nil {
		return nil, 0, err
	}

	var available []domain.AppointmentSlot
	for _, id := range ids {
		slot, err := r.Get(ctx, id)
		if err != nil {
			continue
		}
		if slot.Status == domain.AppointmentStatusAvailable {
			available = append(available, *slot)
		}
	}

	total := len(available)
	return paginateSlots(available, limit, offset), total, nil
}

// InMemorySlotRepository implements SlotRepository with local state, used
// when Redis is unavailable and in tests
type InMemorySlotRepository struct {
	mu    sync.RWMutex
	slots map[string]*domain.AppointmentSlot
}

// NewInMemorySlotRepository creates an in-memory slot repository
func NewInMemorySlotRepository() *InMemorySlotRepository {
	return &InMemorySlotRepository{
		slots: make(map[string]*domain.AppointmentSlot),
	}
}

// Save stores a new slot
func (r *InMemorySlotRepository) Save(ctx context.Context, slot *domain.AppointmentSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *slot
	r.slots[slot.ID] = &copied
	return nil
}

// Get retrieves a slot by ID
func (r *InMemorySlotRepository) Get(ctx context.Context, id string) (*domain.AppointmentSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, exists := r.slots[id]
	if !exists {
		return nil, ErrSlotNotFound
	}
	copied := *slot
	return &copied, nil
}

// Update overwrites an existing slot
func (r *InMemorySlotRepository) Update(ctx context.Context, slot *domain.AppointmentSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.slots[slot.ID]; !exists {
		return ErrSlotNotFound
	}
	copied := *slot
	r.slots[slot.ID] = &copied
	return nil
}

// ListAvailable returns available slots ordered newest-first, plus the total
// count of available slots
func (r *InMemorySlotRepository) ListAvailable(ctx context.Context, limit, offset int) ([]domain.AppointmentSlot, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var available []domain.AppointmentSlot
	for _, slot := range r.slots {
		if slot.Status == domain.AppointmentStatusAvailable {
			available = append(available, *slot)
		}
	}
	sort.Slice(available, func(i, j int) bool {
		return available[i].FoundAt.After(available[j].FoundAt)
	})

	total := len(available)
	return paginateSlots(available, limit, offset), total, nil
}

func paginateSlots(slots []domain.AppointmentSlot, limit, offset int) []domain.AppointmentSlot {
	if offset >= len(slots) {
		return nil
	}
	slots = slots[offset:]
	if limit > 0 && limit < len(slots) {
		slots = slots[:limit]
	}
	return slots
}
