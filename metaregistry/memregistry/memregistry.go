// Package memregistry is an in-memory metaregistry.Registry, standing in
// for the external metadata registry in tests and local experimentation.
// It is a real, runnable implementation (not a mock) so the assembler and
// session packages can be exercised end to end without a network
// dependency.
package memregistry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lorsio/lors/allocation"
	"github.com/lorsio/lors/exnode"
)

// Registry is a mutex-guarded in-memory exnode store.
type Registry struct {
	mu      sync.Mutex
	exnodes map[string]*exnode.Exnode
	nextID  int64
	flushes int64
}

// New returns an empty in-memory registry.
func New() *Registry {
	return &Registry{exnodes: make(map[string]*exnode.Exnode)}
}

// InsertExnode assigns ex a persistent ID and stores a copy of it.
func (r *Registry) InsertExnode(_ context.Context, ex *exnode.Exnode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	ex.ID = fmt.Sprintf("ex-%d", r.nextID)

	stored := *ex
	stored.Extents = append([]allocation.Allocation(nil), ex.Extents...)
	r.exnodes[ex.ID] = &stored
	return nil
}

// InsertAllocation appends alloc to the stored exnode's extents.
func (r *Registry) InsertAllocation(_ context.Context, exID string, alloc allocation.Allocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ex, ok := r.exnodes[exID]
	if !ok {
		return fmt.Errorf("memregistry: no such exnode %q", exID)
	}
	ex.Extents = append(ex.Extents, alloc)
	return nil
}

// Flush counts the call; the in-memory store has nothing to batch.
func (r *Registry) Flush(context.Context) error {
	atomic.AddInt64(&r.flushes, 1)
	return nil
}

// Flushes reports how many times Flush has been called, for tests that
// assert the assembler flushes exactly once per transfer.
func (r *Registry) Flushes() int64 {
	return atomic.LoadInt64(&r.flushes)
}

// Resolve looks up an exnode by its assigned ID (memregistry uses the ID
// itself as the reference external callers pass around).
func (r *Registry) Resolve(_ context.Context, ref string) (*exnode.Exnode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ex, ok := r.exnodes[ref]
	if !ok {
		return nil, fmt.Errorf("memregistry: no such exnode %q", ref)
	}
	cp := *ex
	cp.Extents = append([]allocation.Allocation(nil), ex.Extents...)
	return &cp, nil
}

// UpdateExnode overwrites the stored copy of ex (by ex.ID) with its current
// field values, used by Session.Mkdir to persist a parent's updated
// Children list after a new directory is linked in.
func (r *Registry) UpdateExnode(_ context.Context, ex *exnode.Exnode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.exnodes[ex.ID]; !ok {
		return fmt.Errorf("memregistry: no such exnode %q", ex.ID)
	}
	stored := *ex
	stored.Extents = append([]allocation.Allocation(nil), ex.Extents...)
	stored.Children = append([]string(nil), ex.Children...)
	r.exnodes[ex.ID] = &stored
	return nil
}
