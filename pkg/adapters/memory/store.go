package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// Store implements ports.CheckpointStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]map[domain.Step]*domain.GraphState
	mu   sync.RWMutex
}

// NewStore creates a new in-memory checkpoint store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]map[domain.Step]*domain.GraphState),
	}
}

// Save persists a copy of the state in memory.
func (s *Store) Save(ctx context.Context, traceID string, step domain.Step, state *domain.GraphState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, ok := s.data[traceID]
	if !ok {
		steps = make(map[domain.Step]*domain.GraphState)
		s.data[traceID] = steps
	}
	steps[step] = state.Snapshot()
	return nil
}

// Load retrieves a copy of the checkpoint.
func (s *Store) Load(ctx context.Context, traceID string, step domain.Step) (*domain.GraphState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[traceID][step]
	if !ok {
		return nil, domain.ErrCheckpointNotFound
	}
	return state.Snapshot(), nil
}

// Latest returns the checkpoint of the furthest step of the trace.
func (s *Store) Latest(ctx context.Context, traceID string) (*domain.GraphState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.GraphState
	best := 0
	for step, state := range s.data[traceID] {
		if idx := step.Index(); idx > best {
			best = idx
			latest = state
		}
	}
	if latest == nil {
		return nil, domain.ErrCheckpointNotFound
	}
	return latest.Snapshot(), nil
}

// Delete removes every checkpoint of the trace.
func (s *Store) Delete(ctx context.Context, traceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, traceID)
	return nil
}

// List returns the known trace ids, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
