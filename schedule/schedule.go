// Package schedule implements the pluggable depot/allocation selection
// strategies the transfer engine consults once per job: an upload schedule
// picks a depot per chunk, a download schedule picks an allocation per
// requested offset.
package schedule

import (
	"github.com/lorsio/lors/allocation"
	"github.com/lorsio/lors/depot"
)

// RetryLimit bounds how many times a single download slot may be handed
// out before it is considered exhausted, per the design value in the spec.
const RetryLimit = 3

// Context carries the request a schedule is asked to satisfy. Offset is
// required for download, advisory for upload; Size/Data are optional.
type Context struct {
	Offset int64
	Size   int64
	Data   []byte
}

// UploadSchedule selects a depot per chunk from the set of enabled depots.
// SetSource is called exactly once per session transfer; Get must not
// block. Implementations are not required to be safe for concurrent use —
// callers serialize their Get calls (the session engines hold a mutex
// around each call).
type UploadSchedule interface {
	SetSource(depots depot.Table)
	Get(ctx Context) (depot.Depot, error)
}

// DownloadSchedule selects an allocation per requested offset from the
// pool of extents supplied by an exnode, with bounded per-slot retry
// bookkeeping. Not safe to share across concurrent transfers — it mutates
// in place.
type DownloadSchedule interface {
	SetSource(extents []allocation.Allocation)
	Get(ctx Context) (allocation.Allocation, error)
}
