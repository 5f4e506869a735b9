package inmemorytopology

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/vk/ensembleeval/internal/entity"
	"github.com/vk/ensembleeval/internal/snapshot"
	"github.com/vk/ensembleeval/internal/topologystore"
)

// Store implements the topologystore.Store interface using maps and a mutex
// for thread-safe concurrent access.
type Store struct {
	mu       sync.RWMutex
	reals    map[string]*entity.Realization
	defaults map[string]*snapshot.Realization // Key: iens, Value: default state, never handed out
}

// New creates a new, empty in-memory topology store.
func New() *Store {
	return &Store{
		reals:    make(map[string]*entity.Realization),
		defaults: make(map[string]*snapshot.Realization),
	}
}

// FromEnsemble creates a store populated with every realization of ens.
func FromEnsemble(ctx context.Context, ens *entity.Ensemble) (*Store, error) {
	s := New()
	for _, r := range ens.Realizations() {
		if err := s.AddRealization(ctx, r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

var _ topologystore.Store = (*Store)(nil)

// AddRealization adds a realization to the store.
func (s *Store) AddRealization(ctx context.Context, r *entity.Realization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strconv.Itoa(r.Iens())
	if _, exists := s.reals[key]; exists {
		// Adding the same realization twice is not an error, it's idempotent.
		return nil
	}
	s.reals[key] = r
	s.defaults[key] = snapshot.FromRealization(r)
	return nil
}

// Realization retrieves a single realization by index.
func (s *Store) Realization(ctx context.Context, iens int) (*entity.Realization, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reals[strconv.Itoa(iens)]
	return r, ok
}

// Realizations returns all realizations ordered by iens.
func (s *Store) Realizations(ctx context.Context) []*entity.Realization {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Realization, 0, len(s.reals))
	for _, r := range s.reals {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Iens() < out[j].Iens() })
	return out
}

// Default returns a copy of the default state of a realization.
func (s *Store) Default(ctx context.Context, key string) (*snapshot.Realization, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.defaults[key]
	if !ok {
		return nil, false
	}
	return def.Clone(), true
}
