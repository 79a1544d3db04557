package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/afo-kingdom/chancellor/internal/logging"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed holder can keep a trace locked.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes work on a trace id, locally and optionally across
// instances, and fronts the checkpoint store for trace inspection.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.CheckpointStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a trace manager over store.
func NewManager(store ports.CheckpointStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(traceID) after unlocking.
func (m *Manager) acquire(traceID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[traceID]
	if !exists {
		entry = &lockEntry{}
		m.locks[traceID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(traceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[traceID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, traceID)
	}
}

// Active reports how many trace ids currently hold or wait for a lock.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Latest returns the furthest checkpoint of a trace.
func (m *Manager) Latest(ctx context.Context, traceID string) (*domain.GraphState, error) {
	var state *domain.GraphState
	err := m.WithLock(ctx, traceID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Latest(ctx, traceID)
		return err
	})
	return state, err
}

// Load returns the checkpoint of one step.
func (m *Manager) Load(ctx context.Context, traceID string, step domain.Step) (*domain.GraphState, error) {
	return m.store.Load(ctx, traceID, step)
}

// Delete removes a trace's checkpoints.
func (m *Manager) Delete(ctx context.Context, traceID string) error {
	return m.WithLock(ctx, traceID, func(ctx context.Context) error {
		return m.store.Delete(ctx, traceID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying checkpoint store.
func (m *Manager) Store() ports.CheckpointStore {
	return m.store
}

// WithLock executes fn while holding the lock for the trace.
func (m *Manager) WithLock(ctx context.Context, traceID string, fn func(context.Context) error) error {
	entry := m.acquire(traceID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(traceID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, traceID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"trace_id", traceID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
