// Package assemble implements the exnode assembler: after a transfer
// completes, it commits the exnode manifest and attaches the allocations a
// transfer produced, in the order the metadata registry requires
// (exnode before its allocations).
package assemble

import (
	"context"

	"go.uber.org/zap"

	"github.com/lorsio/lors/allocation"
	"github.com/lorsio/lors/errkinds"
	"github.com/lorsio/lors/exnode"
	"github.com/lorsio/lors/metaregistry"
)

// Assembler commits an exnode and its allocations to a metadata registry.
type Assembler struct {
	Registry metaregistry.Registry
	Log      *zap.Logger
}

// New returns an Assembler backed by reg, logging via log (or a no-op
// logger if log is nil).
func New(reg metaregistry.Registry, log *zap.Logger) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{Registry: reg, Log: log}
}

// Assemble inserts ex into the registry, obtaining its persistent
// identifier, then inserts each of allocs as one of its extents — setting
// Parent, stripping driver-private transient fields, and appending each to
// ex.Extents — and finally flushes any pending registry writes.
//
// Ordering is strict: ex must exist in the registry before any allocation
// referencing it is inserted. Allocation insertion order need not match
// offset order.
func (a *Assembler) Assemble(ctx context.Context, ex *exnode.Exnode, allocs []allocation.Allocation) error {
	if ex == nil {
		return errkinds.RegistryError.New("assemble: exnode must not be nil")
	}

	if err := a.Registry.InsertExnode(ctx, ex); err != nil {
		return errkinds.RegistryError.Wrap(err)
	}

	for _, alloc := range allocs {
		alloc.Parent = ex.ID
		alloc = alloc.StripTransient()

		if err := a.Registry.InsertAllocation(ctx, ex.ID, alloc); err != nil {
			a.Log.Error("failed to insert allocation",
				zap.String("exnode", ex.ID),
				zap.Int64("offset", alloc.Offset),
				zap.Error(err))
			return errkinds.RegistryError.Wrap(err)
		}
		ex.Extents = append(ex.Extents, alloc)
	}

	if err := a.Registry.Flush(ctx); err != nil {
		return errkinds.RegistryError.Wrap(err)
	}
	return nil
}
