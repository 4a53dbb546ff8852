// Package repository holds the relay's in-memory state store.
package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/tarelay/internal/domain/model"
	"github.com/okian/tarelay/pkg/metrics"
)

// Store provides serialized access to the mirrored state.
type Store interface {
	// Update runs fn with exclusive access. Mutations made by fn are visible
	// to readers only after fn returns, whatever it returns.
	Update(ctx context.Context, fn func(*State) error) error

	// View runs fn with shared access. fn must not mutate or retain st.
	View(ctx context.Context, fn func(st *State) error) error

	// Snapshot returns a deep copy of the current state.
	Snapshot(ctx context.Context) *State
}

// MemoryStore is a Store guarded by a sync.RWMutex.
type MemoryStore struct {
	mu    sync.RWMutex
	state *State

	metricsUpdateInterval time.Duration
}

// NewMemoryStore creates an empty store. When a metrics interval is set the
// collection sizes are also exported periodically until ctx is done.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{state: NewState()}
	for _, opt := range opts {
		opt(s)
	}
	s.exportSizes()
	if s.metricsUpdateInterval > 0 {
		go s.startMetricsUpdater(ctx)
	}
	return s
}

func (s *MemoryStore) Update(ctx context.Context, fn func(*State) error) error {
	if fn == nil {
		return ErrNilFunc
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	err := fn(s.state)
	counts := s.state.Counts()
	s.mu.Unlock()

	publishCounts(counts)
	return err
}

func (s *MemoryStore) View(ctx context.Context, fn func(*State) error) error {
	if fn == nil {
		return ErrNilFunc
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

func (s *MemoryStore) Snapshot(_ context.Context) *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Match returns a copy of the match with the given guid.
func (s *MemoryStore) Match(ctx context.Context, guid string) (model.Match, error) {
	var m model.Match
	err := s.View(ctx, func(st *State) error {
		found, ok := st.FindMatch(guid)
		if !ok {
			return ErrNotFound
		}
		m = found.Clone()
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		metrics.RecordErrorByComponent("repository", "not_found")
	}
	return m, err
}

// Counts returns the current collection sizes.
func (s *MemoryStore) Counts(_ context.Context) Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Counts()
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(s.metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.exportSizes()
		}
	}
}

func (s *MemoryStore) exportSizes() {
	s.mu.RLock()
	counts := s.state.Counts()
	s.mu.RUnlock()
	publishCounts(counts)
}

func publishCounts(c Counts) {
	metrics.UpdateStateSizes(c.ServerConnections, c.Coordinators, c.Players, c.Matches, c.KnownHosts, c.Scores)
}
