package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lorsio/lors/depot"
	"github.com/lorsio/lors/schedule"
)

func depots(enabled ...string) depot.Table {
	all := depot.Table{
		"D1": {AccessPoint: "D1", Kind: "pool", Enabled: false},
		"D2": {AccessPoint: "D2", Kind: "pool", Enabled: false},
		"D3": {AccessPoint: "D3", Kind: "pool", Enabled: false},
	}
	for _, e := range enabled {
		d := all[e]
		d.Enabled = true
		all[e] = d
	}
	return all
}

func TestBaseUploadScheduleRoundRobin(t *testing.T) {
	var s schedule.BaseUploadSchedule
	s.SetSource(depots("D1", "D2", "D3"))

	var got []string
	for i := 0; i < 6; i++ {
		d, err := s.Get(schedule.Context{})
		require.NoError(t, err)
		got = append(got, d.AccessPoint)
	}
	require.Equal(t, []string{"D1", "D2", "D3", "D1", "D2", "D3"}, got)
}

func TestBaseUploadScheduleSkipsDisabled(t *testing.T) {
	var s schedule.BaseUploadSchedule
	s.SetSource(depots("D1", "D3"))

	var got []string
	for i := 0; i < 4; i++ {
		d, err := s.Get(schedule.Context{})
		require.NoError(t, err)
		got = append(got, d.AccessPoint)
	}
	require.Equal(t, []string{"D1", "D3", "D1", "D3"}, got)
}

func TestBaseUploadScheduleNoCandidate(t *testing.T) {
	var s schedule.BaseUploadSchedule
	s.SetSource(depots())

	_, err := s.Get(schedule.Context{})
	require.Error(t, err)
}

func TestBaseUploadScheduleIdempotentSetSource(t *testing.T) {
	var a, b schedule.BaseUploadSchedule
	a.SetSource(depots("D1", "D2", "D3"))
	b.SetSource(depots("D1", "D2", "D3"))

	for i := 0; i < 9; i++ {
		da, err := a.Get(schedule.Context{})
		require.NoError(t, err)
		db, err := b.Get(schedule.Context{})
		require.NoError(t, err)
		require.Equal(t, da, db)
	}
}
