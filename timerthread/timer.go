// Package timerthread implements Timer (spec §4.13): a single timer
// thread running named periodic and one-shot due-at jobs, routing any
// job expected to run long to a worker pool instead of blocking the
// timer's own goroutine.
//
// Grounded on original_source/src/utils/TimerThread.cpp: named jobs with
// either a repeat interval or a one-shot due time, executed sequentially
// at microsecond granularity by a single thread.
package timerthread

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a unit of deferred work. Long returns whether the job should be
// handed to the worker pool rather than run inline on the timer thread.
type Job struct {
	Name string
	Run  func()
	Long bool
}

// Timer runs named periodic ("@every ...") and one-shot due-at jobs on a
// single robfig/cron scheduler goroutine, per spec §4.13. Jobs marked
// Long are submitted to an internal worker pool instead of running
// inline, so a slow job never delays the next due job.
type Timer struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID

	workCh chan func()
	wg     sync.WaitGroup
}

// NewTimer builds a Timer with the given number of long-task workers.
func NewTimer(longTaskWorkers int) *Timer {
	t := &Timer{
		cron:    cron.New(cron.WithSeconds()),
		entries: make(map[string]cron.EntryID),
		workCh:  make(chan func(), 64),
	}
	for i := 0; i < longTaskWorkers; i++ {
		t.wg.Add(1)
		go t.worker()
	}
	return t
}

func (t *Timer) worker() {
	defer t.wg.Done()
	for fn := range t.workCh {
		fn()
	}
}

func (t *Timer) dispatch(j Job) {
	if j.Long {
		t.workCh <- j.Run
		return
	}
	j.Run()
}

// SchedulePeriodic registers a job that runs on a cron spec (e.g.
// "@every 30s"). Re-registering a name replaces its prior schedule.
func (t *Timer) SchedulePeriodic(j Job, spec string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.entries[j.Name]; ok {
		t.cron.Remove(id)
	}
	id, err := t.cron.AddFunc(spec, func() { t.dispatch(j) })
	if err != nil {
		return err
	}
	t.entries[j.Name] = id
	return nil
}

// ScheduleAt registers a one-shot job due at a specific time. It removes
// itself from the scheduler once it has fired.
func (t *Timer) ScheduleAt(j Job, due time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.entries[j.Name]; ok {
		t.cron.Remove(id)
	}
	var id cron.EntryID
	id = t.cron.Schedule(onceAt(due), cron.FuncJob(func() {
		t.dispatch(j)
		t.mu.Lock()
		t.cron.Remove(id)
		delete(t.entries, j.Name)
		t.mu.Unlock()
	}))
	t.entries[j.Name] = id
	return nil
}

// Cancel removes a named job, periodic or one-shot, if present.
func (t *Timer) Cancel(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.entries[name]; ok {
		t.cron.Remove(id)
		delete(t.entries, name)
	}
}

// Start begins running scheduled jobs.
func (t *Timer) Start() { t.cron.Start() }

// Stop stops the scheduler and waits for in-flight long-task workers to
// finish their current job, then shuts the worker pool down.
func (t *Timer) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	close(t.workCh)
	t.wg.Wait()
}

// onceAt is a cron.Schedule that fires exactly once at t, then effectively
// never again (Next returns a time far in the future).
type onceAt time.Time

func (o onceAt) Next(cur time.Time) time.Time {
	due := time.Time(o)
	if cur.Before(due) {
		return due
	}
	return due.Add(100 * 365 * 24 * time.Hour)
}
