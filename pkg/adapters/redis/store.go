package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/afo-kingdom/chancellor/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultCheckpointPrefix namespaces checkpoint keys:
// chancellor_checkpoint:<trace_id>:<STEP>.
const DefaultCheckpointPrefix = "chancellor_checkpoint:"

// Store implements ports.CheckpointStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for checkpoints.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for checkpoints.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// NewClient builds a client from connection settings.
func NewClient(address, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
}

// NewStore creates a checkpoint store from an existing client.
func NewStore(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultCheckpointPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(traceID string, step domain.Step) string {
	return s.prefix + traceID + ":" + string(step)
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the snapshot and indexes the trace.
func (s *Store) Save(ctx context.Context, traceID string, step domain.Step, state *domain.GraphState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(traceID, step), data, s.ttl)

	// Score = expiry. Without a TTL, far future (2100-01-01).
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: traceID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves one snapshot.
func (s *Store) Load(ctx context.Context, traceID string, step domain.Step) (*domain.GraphState, error) {
	val, err := s.client.Get(ctx, s.key(traceID, step)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return decodeState(val)
}

// Latest fetches every step key in one round trip and returns the furthest.
func (s *Store) Latest(ctx context.Context, traceID string) (*domain.GraphState, error) {
	keys := make([]string, len(domain.Order))
	for i, step := range domain.Order {
		keys[i] = s.key(traceID, step)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	for i := len(vals) - 1; i >= 0; i-- {
		if raw, ok := vals[i].(string); ok {
			return decodeState(raw)
		}
	}
	return nil, domain.ErrCheckpointNotFound
}

// Delete removes all step keys of the trace.
func (s *Store) Delete(ctx context.Context, traceID string) error {
	keys := make([]string, len(domain.Order))
	for i, step := range domain.Order {
		keys[i] = s.key(traceID, step)
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, s.indexKey(), traceID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns indexed traces, pruning expired ones lazily.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired checkpoints: %w", err)
	}

	traces, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return traces, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decodeState(raw string) (*domain.GraphState, error) {
	var state domain.GraphState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &state, nil
}
