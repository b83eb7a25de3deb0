package schedule

import (
	"github.com/lorsio/lors/allocation"
	"github.com/lorsio/lors/errkinds"
)

type downloadSlot struct {
	alloc allocation.Allocation
	retry int
}

// BaseDownloadSchedule stores, keyed by offset, the replica allocations
// covering that offset, with per-slot retry bookkeeping, per the
// original_source schedule.py algorithm. Not safe to share across
// concurrent transfers — it mutates in place.
type BaseDownloadSchedule struct {
	slots map[int64][]downloadSlot
	// order records the first-seen order of offset keys, so a scan for a
	// covering slot at a lower offset is stable by insertion order.
	order []int64
}

// SetSource installs the extent list to select allocations from.
func (s *BaseDownloadSchedule) SetSource(extents []allocation.Allocation) {
	s.slots = make(map[int64][]downloadSlot)
	s.order = nil
	for _, ext := range extents {
		if _, ok := s.slots[ext.Offset]; !ok {
			s.order = append(s.order, ext.Offset)
		}
		s.slots[ext.Offset] = append(s.slots[ext.Offset], downloadSlot{alloc: ext})
	}
}

// Get returns an allocation covering ctx.Offset. It first prefers an exact
// match at that offset, then falls back to scanning earlier offsets for a
// replica whose range still covers the request. A slot already handed out
// RetryLimit times is retired silently and the next candidate is tried, so
// no single slot is ever returned more than RetryLimit times. Fails with
// errkinds.NoCandidate when nothing covers the offset.
func (s *BaseDownloadSchedule) Get(ctx Context) (allocation.Allocation, error) {
	offset := ctx.Offset

	if alloc, ok := s.takeFromExact(offset); ok {
		return alloc, nil
	}

	for _, k := range s.order {
		if k >= offset {
			continue
		}
		if alloc, ok := s.takeCovering(k, offset); ok {
			return alloc, nil
		}
	}

	return allocation.Allocation{}, errkinds.NoCandidate.New("no allocation covers offset %d", offset)
}

// takeFromExact repeatedly pops the tail of the offset's slot list,
// discarding any slot that has exhausted RetryLimit uses, until it finds
// one to return or the list is empty.
func (s *BaseDownloadSchedule) takeFromExact(offset int64) (allocation.Allocation, bool) {
	list := s.slots[offset]
	for len(list) > 0 {
		last := len(list) - 1
		chunk := list[last]
		list = list[:last]

		if chunk.retry >= RetryLimit {
			continue
		}
		chunk.retry++
		list = append([]downloadSlot{chunk}, list...)
		s.slots[offset] = list
		return chunk.alloc, true
	}
	s.slots[offset] = list
	return allocation.Allocation{}, false
}

// takeCovering scans the slot list at key k (an offset < the request) for
// the first entry whose range covers offset and has uses left, in
// insertion order. Exhausted slots stay in the list but are never returned.
func (s *BaseDownloadSchedule) takeCovering(k, offset int64) (allocation.Allocation, bool) {
	list := s.slots[k]
	kept := list[:0:0]
	var found *downloadSlot
	for _, sl := range list {
		if found == nil && sl.alloc.Offset+sl.alloc.Size > offset && sl.retry < RetryLimit {
			sl.retry++
			found = &sl
			continue
		}
		kept = append(kept, sl)
	}
	if found == nil {
		s.slots[k] = kept
		return allocation.Allocation{}, false
	}
	s.slots[k] = append([]downloadSlot{*found}, kept...)
	return found.alloc, true
}
