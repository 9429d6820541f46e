package timerthread

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleAtFiresOnce(t *testing.T) {
	tm := NewTimer(1)
	tm.Start()
	defer tm.Stop()

	var count int32
	done := make(chan struct{}, 1)
	err := tm.ScheduleAt(Job{
		Name: "once",
		Run: func() {
			atomic.AddInt32(&count, 1)
			done <- struct{}{}
		},
	}, time.Now().Add(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for one-shot job")
	}
	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&count) != 1 {
		t.Fatalf("expected job to fire exactly once, fired %d times", count)
	}
}

func TestLongJobRunsOnWorkerPool(t *testing.T) {
	tm := NewTimer(1)
	tm.Start()
	defer tm.Stop()

	done := make(chan struct{}, 1)
	err := tm.ScheduleAt(Job{
		Name: "long",
		Long: true,
		Run: func() {
			done <- struct{}{}
		},
	}, time.Now().Add(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for long job")
	}
}

func TestCancelRemovesJob(t *testing.T) {
	tm := NewTimer(0)
	tm.Start()
	defer tm.Stop()

	fired := make(chan struct{}, 1)
	if err := tm.SchedulePeriodic(Job{
		Name: "periodic",
		Run:  func() { fired <- struct{}{} },
	}, "@every 1h"); err != nil {
		t.Fatal(err)
	}
	tm.Cancel("periodic")

	select {
	case <-fired:
		t.Fatal("expected cancelled job never to fire")
	case <-time.After(100 * time.Millisecond):
	}
}
