package settings

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"graphwise-relay/internal/common/logger"
)

// Provider hands out the snapshot in force for one request.
type Provider interface {
	Current() Snapshot
}

// Source layers stored overrides on top of the configured base snapshot.
// Readers never block; writers are serialized.
type Source struct {
	base    Snapshot
	store   Store
	logger  logger.Logger
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
}

func NewSource(base Snapshot, store Store, log logger.Logger) *Source {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Source{base: base, store: store, logger: log}
	snap := base
	s.current.Store(&snap)
	return s
}

// StoreError is a failure of the backing store, as opposed to a rejected change.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return "settings store: " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

// Static returns a Provider that always yields snap.
func Static(snap Snapshot) Provider {
	return staticProvider(snap)
}

type staticProvider Snapshot

func (p staticProvider) Current() Snapshot { return Snapshot(p) }

func (s *Source) Current() Snapshot {
	return *s.current.Load()
}

// Reload rebuilds the snapshot from the base and the stored overrides.
// Unknown stored names are skipped with a warning.
func (s *Source) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]string, len(stored))
	for k, v := range stored {
		if !IsKnownKey(k) {
			s.logger.Warn("Ignoring unknown stored setting", map[string]interface{}{"setting": k})
			continue
		}
		known[k] = v
	}

	next, err := s.base.With(known)
	if err != nil {
		return err
	}
	s.current.Store(&next)

	s.logger.Info("Settings loaded", map[string]interface{}{
		"overrides": sortedKeys(known),
	})
	return nil
}

// Update validates changes against the current snapshot, persists them and
// swaps the snapshot. Nothing is persisted when validation fails.
func (s *Source) Update(ctx context.Context, changes map[string]string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.current.Load()
	next, err := cur.With(changes)
	if err != nil {
		return cur, err
	}
	if err := s.store.Save(ctx, changes); err != nil {
		return cur, &StoreError{Err: err}
	}
	s.current.Store(&next)

	s.logger.Info("Settings updated", map[string]interface{}{
		"changed": sortedKeys(changes),
	})
	return next, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
