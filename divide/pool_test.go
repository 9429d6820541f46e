package divide

import (
	"sync"
	"testing"
	"time"

	"github.com/my-db-dev/RapidDB/wire"
)

type fakePage struct {
	mu        sync.Mutex
	ref       int32
	dirty     bool
	lastWrite int64
}

func (f *fakePage) RefCount() int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ref
}
func (f *fakePage) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}
func (f *fakePage) LastWrite() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastWrite
}

type fakeDivider struct {
	mu      sync.Mutex
	divided []wire.PageID
	done    chan struct{}
}

func (d *fakeDivider) Divide(fileID wire.FileID, pageID wire.PageID) error {
	d.mu.Lock()
	d.divided = append(d.divided, pageID)
	d.mu.Unlock()
	if d.done != nil {
		d.done <- struct{}{}
	}
	return nil
}

func TestPoolProcessesEligiblePage(t *testing.T) {
	pg := &fakePage{dirty: true, lastWrite: time.Now().Add(-time.Hour).UnixNano()}
	div := &fakeDivider{done: make(chan struct{}, 1)}
	p := NewPool(div, func(wire.FileID, wire.PageID) Page { return pg }, time.Millisecond)
	p.Start()
	defer p.Close()

	p.Enqueue(0, 7)

	select {
	case <-div.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for divide to run")
	}
	if len(div.divided) != 1 || div.divided[0] != 7 {
		t.Fatalf("expected page 7 divided, got %+v", div.divided)
	}
}

func TestPoolSkipsPinnedPageAndCountsStuck(t *testing.T) {
	pg := &fakePage{ref: 1, dirty: true, lastWrite: time.Now().UnixNano()}
	div := &fakeDivider{}
	p := NewPool(div, func(wire.FileID, wire.PageID) Page { return pg }, time.Millisecond)

	p.Enqueue(0, 3)
	for i := 0; i < 3; i++ {
		e, ok := p.dequeue()
		if !ok {
			t.Fatal("expected entry")
		}
		p.process(e)
	}

	if p.Stuck == 0 {
		t.Fatal("expected Stuck counter to increment for a permanently pinned page")
	}
	if len(div.divided) != 0 {
		t.Fatal("pinned page must never be divided")
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	div := &fakeDivider{done: make(chan struct{}, 4)}
	pg := &fakePage{dirty: true, lastWrite: time.Now().Add(-time.Hour).UnixNano()}
	p := NewPool(div, func(wire.FileID, wire.PageID) Page { return pg }, 0)
	p.Start()

	p.Enqueue(0, 1)
	p.Enqueue(0, 2)

	<-div.done
	<-div.done
	p.Close()

	if p.Len() != 0 {
		t.Fatalf("expected empty queue after close, got %d", p.Len())
	}
}
