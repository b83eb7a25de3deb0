// Package driver defines the backend driver contract and the protocol
// registry that dispatches to driver implementations by depot kind or
// wire schema.
package driver

import (
	"context"

	"github.com/lorsio/lors/allocation"
	"github.com/lorsio/lors/depot"
)

// Driver is the per-backend-kind implementation every depot kind must
// supply. Implementations must be safe to call concurrently from multiple
// worker goroutines sharing one Driver instance; they are expected to pool
// or memoize per-configuration connection state internally (see
// internal/connpool for the pattern the reference drivers use).
type Driver interface {
	// MakeAllocation reserves storage at depot and transfers data,
	// returning the new allocation. May perform network I/O. Returns an
	// error wrapping errkinds.AllocationError on a transient failure
	// (signal to retry on another depot) or errkinds.FatalBackendError
	// otherwise.
	MakeAllocation(ctx context.Context, data []byte, offset int64, d depot.Depot, duration int64) (allocation.Allocation, error)

	// Read returns exactly alloc.Size bytes, or an error wrapping
	// errkinds.AllocationError. A short read (length < alloc.Size) without
	// an error is itself treated as a failure by callers.
	Read(ctx context.Context, alloc allocation.Allocation, config any) ([]byte, error)

	// Write transfers data into an already-reserved allocation, for
	// drivers where make and write are distinct operations. Reference
	// drivers in this module fold Write into MakeAllocation and only
	// implement this for symmetry with the contract.
	Write(ctx context.Context, alloc allocation.Allocation, data []byte, config any) error

	// Copy performs a server-to-server transfer from src to dstDepot
	// without round-tripping data through the caller, returning the new
	// allocation at the destination.
	Copy(ctx context.Context, src allocation.Allocation, dstDepot depot.Depot, srcConfig, dstConfig any) (allocation.Allocation, error)

	// BuildAllocation parses a driver-specific wire representation (the
	// decoded JSON object minus the schema/$schema discriminator) into a
	// typed Allocation.
	BuildAllocation(raw map[string]any) (allocation.Allocation, error)
}
