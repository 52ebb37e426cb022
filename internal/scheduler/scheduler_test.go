package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_RunsOnceAfterDelay(t *testing.T) {
	s := New()
	defer s.Close()

	var runs atomic.Int32
	start := time.Now()
	ran := make(chan time.Duration, 1)

	id := s.Schedule(func() {
		runs.Add(1)
		ran <- time.Since(start)
	}, 50*time.Millisecond)

	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Pending())

	select {
	case elapsed := <-ran:
		assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, 0, s.Pending())
}

func TestSchedule_UniqueIDs(t *testing.T) {
	s := New()
	defer s.Close()
	a := s.Schedule(func() {}, time.Hour)
	b := s.Schedule(func() {}, time.Hour)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, s.Pending())
}

func TestClose_StopsPending(t *testing.T) {
	s := New()
	var runs atomic.Int32
	s.Schedule(func() { runs.Add(1) }, 30*time.Millisecond)

	s.Close()
	assert.Equal(t, 0, s.Pending())
	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, runs.Load())

	assert.Empty(t, s.Schedule(func() { runs.Add(1) }, 0))
}

func TestSchedule_PanicIsContained(t *testing.T) {
	s := New()
	defer s.Close()
	done := make(chan struct{})
	s.Schedule(func() { panic("boom") }, 0)
	s.Schedule(func() { close(done) }, 10*time.Millisecond)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler stopped after a panicking task")
	}
}
