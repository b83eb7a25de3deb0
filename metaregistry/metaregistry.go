// Package metaregistry declares the narrow interface the transfer engine
// and exnode assembler use to talk to the external metadata registry — the
// component that actually persists exnodes and depot descriptors. A
// concrete client (talking to UNIS, etcd, a SQL store, whatever the
// deployment uses) lives outside this module; this package only specifies
// the contract the assembler depends on.
package metaregistry

import (
	"context"

	"github.com/lorsio/lors/allocation"
	"github.com/lorsio/lors/exnode"
)

// Registry is the narrow surface the assembler and session need from the
// external metadata registry.
type Registry interface {
	// InsertExnode commits ex and assigns its persistent ID (ex.ID is
	// populated on success). Must be called, and succeed, before any of
	// ex's allocations are inserted.
	InsertExnode(ctx context.Context, ex *exnode.Exnode) error

	// InsertAllocation commits alloc as an extent of the exnode identified
	// by exID. exID must already exist in the registry.
	InsertAllocation(ctx context.Context, exID string, alloc allocation.Allocation) error

	// Flush batches any pending writes. Optional for registries that
	// commit synchronously; implementations may make this a no-op.
	Flush(ctx context.Context) error

	// Resolve looks up an exnode by reference (e.g. a self-link or name)
	// and returns it with its Extents populated.
	Resolve(ctx context.Context, ref string) (*exnode.Exnode, error)

	// UpdateExnode persists changes to an already-inserted exnode — in
	// practice, a directory's Children list after a new entry is linked
	// in. ex.ID must already exist in the registry.
	UpdateExnode(ctx context.Context, ex *exnode.Exnode) error
}
