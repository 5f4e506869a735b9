package inmemorystore

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/vk/ensembleeval/internal/entity"
	"github.com/vk/ensembleeval/internal/inmemorytopology"
	"github.com/vk/ensembleeval/internal/nodeid"
	"github.com/vk/ensembleeval/internal/nodestore"
	"github.com/vk/ensembleeval/internal/snapshot"
	"github.com/vk/ensembleeval/internal/topologystore"
)

type entry struct {
	mu   sync.RWMutex
	real *snapshot.Realization
}

// Store is an in-memory implementation of nodestore.Store.
type Store struct {
	topology topologystore.Store
	entries  sync.Map // Key: iens string, Value: *entry

	subsMu  sync.Mutex
	subs    map[int]chan nodestore.Update
	nextSub int
}

var _ nodestore.Store = (*Store)(nil)

// New creates a store over the given topology and installs every
// realization of initial. initial may be nil, in which case every
// realization starts from its default state on first touch.
func New(ctx context.Context, topology topologystore.Store, initial *snapshot.Snapshot) (*Store, error) {
	s := &Store{topology: topology, subs: make(map[int]chan nodestore.Update)}
	if initial == nil {
		return s, nil
	}
	for key, real := range initial.Reals {
		iens, err := strconv.Atoi(key)
		if err != nil {
			return nil, &snapshot.UnknownAddressError{Address: nodeid.Address{Real: key}}
		}
		if err := s.ApplyFull(ctx, iens, real); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FromEnsemble creates a topology and a store holding the default snapshot
// of ens.
func FromEnsemble(ctx context.Context, ens *entity.Ensemble) (*Store, error) {
	topology, err := inmemorytopology.FromEnsemble(ctx, ens)
	if err != nil {
		return nil, err
	}
	return New(ctx, topology, snapshot.FromEnsemble(ens))
}

// entry returns the entry for key, synthesizing the default state from the
// topology on first use.
func (s *Store) entry(ctx context.Context, key string) (*entry, error) {
	if e, ok := s.entries.Load(key); ok {
		return e.(*entry), nil
	}
	def, ok := s.topology.Default(ctx, key)
	if !ok {
		return nil, &snapshot.UnknownAddressError{Address: nodeid.Address{Real: key}}
	}
	e, _ := s.entries.LoadOrStore(key, &entry{real: def})
	return e.(*entry), nil
}

// ApplyFull installs or replaces the state of one realization.
func (s *Store) ApplyFull(ctx context.Context, iens int, full *snapshot.Realization) error {
	key := strconv.Itoa(iens)
	shape, ok := s.topology.Default(ctx, key)
	if !ok {
		return &snapshot.UnknownAddressError{Address: nodeid.Real(iens)}
	}
	if err := snapshot.ValidateShape(key, shape, full); err != nil {
		return err
	}
	installed := snapshot.Overlay(shape, full)

	e, err := s.entry(ctx, key)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.real = installed
	e.mu.Unlock()

	s.notify(nodestore.Update{Iens: iens, Full: true})
	return nil
}

// ApplyPartial merges a diff into one realization.
func (s *Store) ApplyPartial(ctx context.Context, iens int, diff *snapshot.RealizationDiff) error {
	key := strconv.Itoa(iens)
	e, err := s.entry(ctx, key)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if err := e.real.Validate(key, diff); err != nil {
		e.mu.Unlock()
		return err
	}
	e.real.Apply(diff)
	e.mu.Unlock()

	s.notify(nodestore.Update{Iens: iens, Partial: diff})
	return nil
}

// Query returns a copy of the node or subtree at addr.
func (s *Store) Query(ctx context.Context, addr nodeid.Address) (*snapshot.Node, error) {
	if addr.IsZero() {
		return nil, errors.New("query address cannot be empty")
	}
	e, err := s.entry(ctx, addr.Real)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.real.Lookup(addr)
}

// Snapshot returns a copy of the state of every realization.
func (s *Store) Snapshot(ctx context.Context) *snapshot.Snapshot {
	out := snapshot.New()
	for _, r := range s.topology.Realizations(ctx) {
		key := strconv.Itoa(r.Iens())
		e, err := s.entry(ctx, key)
		if err != nil {
			continue
		}
		e.mu.RLock()
		out.Reals[key] = e.real.Clone()
		e.mu.RUnlock()
	}
	return out
}

// Subscribe registers a subscriber with the given channel buffer.
func (s *Store) Subscribe(buffer int) (<-chan nodestore.Update, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan nodestore.Update, buffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Store) notify(u nodestore.Update) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
