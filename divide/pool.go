// Package divide implements PageDividePool (spec §4.11): a background
// worker that takes leaf pages mutated by foreground inserts/updates off
// the critical path, serializing and, once a page has grown too large,
// splitting it -- asynchronously, so a writer's InsertRecord never blocks
// on a split.
//
// Grounded on the teacher's synchronous split-on-insert path in
// bltree.go (InsertKey calls cleanPage/splitPage inline) reshaped into
// this decoupled model; queue shape grounded on
// original_source/src/pool/PageDividePool.{h,cpp}.
package divide

import (
	"container/list"
	"sync"
	"time"

	"github.com/my-db-dev/RapidDB/wire"
)

// Page is what the pool needs from a leaf page to decide whether it is
// safe to process now.
type Page interface {
	RefCount() int32
	Dirty() bool
	LastWrite() int64
}

// Divider performs the actual split/serialize work for one queued page;
// core.Tree supplies the implementation since only it can allocate
// new page ids and update the parent branch page.
type Divider interface {
	Divide(fileID wire.FileID, pageID wire.PageID) error
}

type entry struct {
	fileID wire.FileID
	pageID wire.PageID

	// hadPrevRef/prevRef track the refcount observed the last time this
	// page was popped and found not-yet-processable, so a re-queue can
	// tell a page that is merely busy from one that is permanently
	// pinned (Stuck).
	hadPrevRef bool
	prevRef    int32
}

// Pool is the FIFO of pages awaiting asynchronous divide/flush, processed
// by a single background worker goroutine (spec §4.11 "single worker,
// FIFO order").
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   *list.List // of entry
	queued  map[uint64]bool
	closed  bool
	divider Divider
	lookup  func(wire.FileID, wire.PageID) Page

	// Stuck counts pages re-queued without their refcount having changed
	// since the prior pop -- a permanently pinned dirty leaf that can
	// never be processed. Telemetry only; it does not itself bound queue
	// growth (design notes §9 decision).
	Stuck int64

	minAge time.Duration
	wg     sync.WaitGroup
}

// NewPool builds a divide pool. minAge is how long a page must sit dirty
// before it is eligible (spec §4.11 "under-age pages are skipped").
func NewPool(divider Divider, lookup func(wire.FileID, wire.PageID) Page, minAge time.Duration) *Pool {
	p := &Pool{
		queue:   list.New(),
		queued:  make(map[uint64]bool),
		divider: divider,
		lookup:  lookup,
		minAge:  minAge,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func key(fileID wire.FileID, pageID wire.PageID) uint64 {
	return (uint64(fileID) << 32) | uint64(pageID)
}

// Enqueue submits a mutated page for asynchronous processing. Re-submits
// of an already-queued page are no-ops (the page will be picked up with
// its latest state when its turn comes).
func (p *Pool) Enqueue(fileID wire.FileID, pageID wire.PageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	k := key(fileID, pageID)
	if p.queued[k] {
		return
	}
	p.queued[k] = true
	p.queue.PushBack(entry{fileID: fileID, pageID: pageID})
	p.cond.Signal()
}

// requeue puts e back on the tail, carrying forward the refcount last
// observed so the next pop can detect a permanently pinned page.
func (p *Pool) requeue(e entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	k := key(e.fileID, e.pageID)
	if p.queued[k] {
		return
	}
	p.queued[k] = true
	p.queue.PushBack(e)
	p.cond.Signal()
}

// Start launches the single background worker.
func (p *Pool) Start() {
	p.wg.Add(1)
	go p.run()
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		e, ok := p.dequeue()
		if !ok {
			return // closed and drained
		}
		p.process(e)
	}
}

func (p *Pool) dequeue() (entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if front := p.queue.Front(); front != nil {
			e := p.queue.Remove(front).(entry)
			delete(p.queued, key(e.fileID, e.pageID))
			return e, true
		}
		if p.closed {
			return entry{}, false
		}
		p.cond.Wait()
	}
}

func (p *Pool) process(e entry) {
	pg := p.lookup(e.fileID, e.pageID)
	if pg == nil {
		return // evicted before we got to it; nothing to do
	}

	// Referenced (pinned) or not yet aged past minAge: re-queue for a
	// later pass rather than blocking the worker (spec §4.11 skip rules).
	if ref := pg.RefCount(); ref > 0 || time.Since(time.Unix(0, pg.LastWrite())) < p.minAge {
		if ref > 0 && e.hadPrevRef && e.prevRef == ref {
			p.Stuck++
		}
		p.requeue(entry{fileID: e.fileID, pageID: e.pageID, hadPrevRef: true, prevRef: ref})
		return
	}
	if !pg.Dirty() {
		return
	}

	_ = p.divider.Divide(e.fileID, e.pageID)
}

// Close stops accepting new work and waits for the worker to drain the
// queue and exit (spec §4.11 "close drains the queue").
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// Len reports the number of pages currently queued, for tests/telemetry.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}
