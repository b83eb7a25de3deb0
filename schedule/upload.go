package schedule

import (
	"sort"

	"github.com/lorsio/lors/depot"
	"github.com/lorsio/lors/errkinds"
)

// BaseUploadSchedule cycles through enabled depots in round-robin order.
// Get skips disabled depots and returns the next accepting one; it never
// blocks. Keys are visited in a fixed, sorted order so that two calls to
// SetSource with the same source produce identical Get sequences.
type BaseUploadSchedule struct {
	depots depot.Table
	keys   []string
	pos    int
}

// SetSource installs the pool of depots to cycle through.
func (s *BaseUploadSchedule) SetSource(depots depot.Table) {
	keys := make([]string, 0, len(depots))
	for k := range depots {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.depots = depots
	s.keys = keys
	s.pos = 0
}

// Get returns the next enabled depot in round-robin order. It fails with
// errkinds.NoCandidate if no depot is enabled.
func (s *BaseUploadSchedule) Get(_ Context) (depot.Depot, error) {
	if len(s.keys) == 0 {
		return depot.Depot{}, errkinds.NoCandidate.New("upload schedule has no depots installed")
	}

	for i := 0; i < len(s.keys); i++ {
		k := s.keys[s.pos%len(s.keys)]
		s.pos++
		if d := s.depots[k]; d.Enabled {
			return d, nil
		}
	}
	return depot.Depot{}, errkinds.NoCandidate.New("no enabled depot available")
}
