package jobqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lorsio/lors/internal/jobqueue"
)

func TestPutGetFIFO(t *testing.T) {
	q := jobqueue.New()
	require.True(t, q.Empty())

	q.Put(jobqueue.Job{Offset: 0, Size: 10})
	q.Put(jobqueue.Job{Offset: 10, Size: 10})
	require.False(t, q.Empty())

	j1, ok := q.Get(context.Background())
	require.True(t, ok)
	require.Equal(t, jobqueue.Job{Offset: 0, Size: 10}, j1)

	j2, ok := q.Get(context.Background())
	require.True(t, ok)
	require.Equal(t, jobqueue.Job{Offset: 10, Size: 10}, j2)

	require.True(t, q.Empty())
}

func TestGetBlocksUntilPut(t *testing.T) {
	q := jobqueue.New()

	type result struct {
		job jobqueue.Job
		ok  bool
	}
	got := make(chan result, 1)
	go func() {
		job, ok := q.Get(context.Background())
		got <- result{job, ok}
	}()

	select {
	case <-got:
		t.Fatal("Get returned before a job was available")
	case <-time.After(50 * time.Millisecond):
	}

	q.Put(jobqueue.Job{Offset: 5, Size: 5})

	select {
	case r := <-got:
		require.True(t, r.ok)
		require.Equal(t, jobqueue.Job{Offset: 5, Size: 5}, r.job)
	case <-time.After(time.Second):
		t.Fatal("Get never returned")
	}
}

func TestGetRespectsContextCancellation(t *testing.T) {
	q := jobqueue.New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Get(ctx)
		done <- ok
	}()

	cancel()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Get did not honor context cancellation")
	}
}

func TestCloseUnblocksWaitingConsumers(t *testing.T) {
	q := jobqueue.New()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Get(context.Background())
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Get")
	}
}

func TestJobConservation(t *testing.T) {
	// Every job put must eventually be retrievable exactly once.
	q := jobqueue.New()
	const n = 50
	for i := 0; i < n; i++ {
		q.Put(jobqueue.Job{Offset: int64(i), Size: 1})
	}

	seen := map[int64]bool{}
	for i := 0; i < n; i++ {
		job, ok := q.Get(context.Background())
		require.True(t, ok)
		require.False(t, seen[job.Offset], "job %d delivered twice", job.Offset)
		seen[job.Offset] = true
	}
	require.True(t, q.Empty())
}
