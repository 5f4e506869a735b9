package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vk/ensembleeval/internal/entity"
	"github.com/vk/ensembleeval/internal/inmemorystore"
	"github.com/vk/ensembleeval/internal/nodestore"
)

// ErrUnknownIteration is returned for reports naming an iteration the
// registry was not opened for.
var ErrUnknownIteration = errors.New("unknown iteration")

// Registry keeps one snapshot store per evaluation iteration. Stores are
// created from the default snapshot of the ensemble when the owner of the
// registry opens an iteration; reports never create them.
type Registry struct {
	ens *entity.Ensemble

	mu     sync.Mutex
	stores map[int]nodestore.Store
}

// NewRegistry creates an empty registry for ens.
func NewRegistry(ens *entity.Ensemble) *Registry {
	return &Registry{ens: ens, stores: make(map[int]nodestore.Store)}
}

// Store returns the store of iteration iter, creating it if needed. It is
// called by whoever runs the evaluation, never on behalf of a worker.
func (r *Registry) Store(ctx context.Context, iter int) (nodestore.Store, error) {
	if iter < 0 {
		return nil, fmt.Errorf("iteration must be non-negative, got %d", iter)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[iter]; ok {
		return s, nil
	}
	s, err := inmemorystore.FromEnsemble(ctx, r.ens)
	if err != nil {
		return nil, fmt.Errorf("creating store for iteration %d: %w", iter, err)
	}
	r.stores[iter] = s
	return s, nil
}

// Lookup returns the store of iteration iter without creating it. Reports
// and monitors go through Lookup.
func (r *Registry) Lookup(iter int) (nodestore.Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[iter]
	return s, ok
}

// Iterations returns every iteration with a store, ascending.
func (r *Registry) Iterations() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.stores))
	for iter := range r.stores {
		out = append(out, iter)
	}
	sort.Ints(out)
	return out
}
