package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lorsio/lors/allocation"
	"github.com/lorsio/lors/schedule"
)

func TestBaseDownloadScheduleExactMatchFailover(t *testing.T) {
	// scenario: two replicas at offset 0 on D1 and D2; the tail replica
	// (D2) is handed out first, and if it fails the schedule hands back D1
	// next.
	var s schedule.BaseDownloadSchedule
	s.SetSource([]allocation.Allocation{
		{Location: "D1", Offset: 0, Size: 1024},
		{Location: "D2", Offset: 0, Size: 1024},
	})

	first, err := s.Get(schedule.Context{Offset: 0})
	require.NoError(t, err)
	require.Equal(t, "D2", first.Location) // D2 inserted last, popped first (tail)

	second, err := s.Get(schedule.Context{Offset: 0})
	require.NoError(t, err)
	require.Equal(t, "D1", second.Location)
}

func TestBaseDownloadScheduleSplitExtentCoverage(t *testing.T) {
	var s schedule.BaseDownloadSchedule
	s.SetSource([]allocation.Allocation{
		{Location: "D1", Offset: 0, Size: 1024},
		{Location: "D1", Offset: 1024, Size: 1024},
	})

	a, err := s.Get(schedule.Context{Offset: 0})
	require.NoError(t, err)
	require.Equal(t, int64(0), a.Offset)
	require.Equal(t, int64(1024), a.Size)

	b, err := s.Get(schedule.Context{Offset: 1024})
	require.NoError(t, err)
	require.Equal(t, int64(1024), b.Offset)
}

func TestBaseDownloadScheduleRetryBound(t *testing.T) {
	var s schedule.BaseDownloadSchedule
	s.SetSource([]allocation.Allocation{
		{Location: "D1", Offset: 0, Size: 10},
	})

	uses := 0
	for {
		_, err := s.Get(schedule.Context{Offset: 0})
		if err != nil {
			break
		}
		uses++
		if uses > schedule.RetryLimit+1 {
			t.Fatal("slot returned more than RetryLimit times")
		}
	}
	require.Equal(t, schedule.RetryLimit, uses)
}

func TestBaseDownloadScheduleNoCandidate(t *testing.T) {
	var s schedule.BaseDownloadSchedule
	s.SetSource(nil)

	_, err := s.Get(schedule.Context{Offset: 0})
	require.Error(t, err)
}

func TestBaseDownloadScheduleCoversLowerOffsetScan(t *testing.T) {
	// A request for an offset inside a prior extent's range, with no slot
	// exactly at that offset, must fall back to the scan over k < offset.
	var s schedule.BaseDownloadSchedule
	s.SetSource([]allocation.Allocation{
		{Location: "D1", Offset: 0, Size: 2048},
	})

	a, err := s.Get(schedule.Context{Offset: 1200})
	require.NoError(t, err)
	require.Equal(t, int64(0), a.Offset)
}
