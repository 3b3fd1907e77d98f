// Package store persists pipeline run records.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storylinez/storylinez-go/internal/model"
)

// ErrNotFound is returned when no record exists for a run id.
var ErrNotFound = errors.New("run not found")

// DefaultTTL is how long a run record is kept after its last write.
const DefaultTTL = 24 * time.Hour

// Store reads and writes run records.
type Store interface {
	Save(ctx context.Context, run *model.Run) error
	Get(ctx context.Context, runID string) (*model.Run, error)
}

// RedisStore keeps runs as JSON under run:<id>.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func runKey(runID string) string {
	return fmt.Sprintf("run:%s", runID)
}

func (s *RedisStore) Save(ctx context.Context, run *model.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	return s.rdb.Set(ctx, runKey(run.ID), data, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, runID string) (*model.Run, error) {
	data, err := s.rdb.Get(ctx, runKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}
	return &run, nil
}

// MemoryStore is a process-local Store used by the synchronous CLI and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, run *model.Run) error {
	// Stored encoded so callers never share state with the store.
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	s.mu.Lock()
	s.runs[run.ID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, runID string) (*model.Run, error) {
	s.mu.RLock()
	data, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}
