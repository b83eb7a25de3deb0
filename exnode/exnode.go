// Package exnode defines the logical-file manifest: a file's extent list
// or a directory's children.
package exnode

import "github.com/lorsio/lors/allocation"

// Mode distinguishes a file exnode (has Extents) from a directory exnode
// (has Children).
type Mode string

const (
	ModeFile      Mode = "file"
	ModeDirectory Mode = "directory"
)

// Exnode is the manifest for one logical file or directory.
//
// Invariant for files: the union of [offset, offset+size) ranges over
// Extents covers [0, Size); multiple allocations may share an offset
// (replicas). ID is empty until the exnode has been inserted into the
// metadata registry, at which point the registry assigns a persistent
// identifier.
type Exnode struct {
	ID      string
	Name    string
	Size    int64
	Parent  string // parent directory exnode ID, empty if none
	Mode    Mode
	Created int64 // microseconds since the Unix epoch
	Updated int64

	Owner      string
	Group      string
	Permission string // e.g. "0644"

	Extents  []allocation.Allocation // files only
	Children []string                // directory exnode IDs, directories only
}

// CoversFullRange reports whether the union of Extents' [offset,
// offset+size) ranges covers [0, Size) with no gaps. Replicated ranges
// (same offset, multiple allocations) are fine; what matters is that no
// byte of the file is left without at least one allocation.
func (e *Exnode) CoversFullRange() bool {
	if e.Size == 0 {
		return true
	}

	type span struct{ start, end int64 }
	spans := make([]span, 0, len(e.Extents))
	for _, a := range e.Extents {
		spans = append(spans, span{a.Offset, a.Offset + a.Size})
	}
	// insertion sort is fine; extent counts per file are small relative to
	// the file's byte size
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j-1].start > spans[j].start; j-- {
			spans[j-1], spans[j] = spans[j], spans[j-1]
		}
	}

	var covered int64
	for _, sp := range spans {
		if sp.start > covered {
			return false
		}
		if sp.end > covered {
			covered = sp.end
		}
	}
	return covered >= e.Size
}

// ReplicationAt returns how many extents cover the given offset exactly
// (i.e. have Offset == offset), the replication count the upload
// guarantees target.
func (e *Exnode) ReplicationAt(offset int64) int {
	n := 0
	for _, a := range e.Extents {
		if a.Offset == offset {
			n++
		}
	}
	return n
}
