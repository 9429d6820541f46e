// Package storagepool implements StoragePool (spec §4.12): the seam
// between in-memory page objects and the on-disk PageFile, submitting
// reads (which the caller waits on via a promise) and writes (fire and
// forget, tracked by a pending-writes counter so Close can drain).
//
// Backend/BackedPage adapt the teacher's interfaces.ParentBufMgr/
// ParentPage seam (bufmgr.go's pbm field) to play the same role here:
// the boundary between the pool's task workers and the actual page
// storage, now backed by pageio.PageFile instead of a host buffer
// manager (SPEC_FULL §11: the teacher's "host engine" dependency has no
// home in this spec since RapidDB is itself the engine, so the seam is
// kept and retargeted rather than dropped).
package storagepool

import (
	"sync"
	"sync/atomic"

	"github.com/my-db-dev/RapidDB/wire"
)

// BackedPage is a page image ready to be written, or a destination buffer
// for a read, adapting the teacher's ParentPage (GetPPageId/DataAsSlice).
type BackedPage interface {
	ID() wire.PageID
	Bytes() []byte
}

// Backend is the on-disk seam StoragePool submits work to, adapting the
// teacher's ParentBufMgr (FetchPPage/NewPPage/DeallocatePPage) to a
// pure file-level read/write contract.
type Backend interface {
	ReadPage(id wire.PageID, buf []byte) error
	WritePage(id wire.PageID, buf []byte) error
}

type readTask struct {
	id     wire.PageID
	buf    []byte
	result chan error
}

type writeTask struct {
	id  wire.PageID
	buf []byte
}

// Pool runs a fixed worker pool servicing reads (promise-based) and
// writes (fire-and-forget) against one Backend.
type Pool struct {
	backend Backend

	reads  chan readTask
	writes chan writeTask

	pending   int64 // outstanding (submitted, not yet completed) writes
	pendingWG sync.WaitGroup

	wg     sync.WaitGroup
	closed int32
}

// NewPool starts workers reads/writes workers against backend.
func NewPool(backend Backend, readWorkers, writeWorkers int) *Pool {
	p := &Pool{
		backend: backend,
		reads:   make(chan readTask, 64),
		writes:  make(chan writeTask, 64),
	}
	for i := 0; i < readWorkers; i++ {
		p.wg.Add(1)
		go p.runReads()
	}
	for i := 0; i < writeWorkers; i++ {
		p.wg.Add(1)
		go p.runWrites()
	}
	return p
}

func (p *Pool) runReads() {
	defer p.wg.Done()
	for t := range p.reads {
		t.result <- p.backend.ReadPage(t.id, t.buf)
	}
}

func (p *Pool) runWrites() {
	defer p.wg.Done()
	for t := range p.writes {
		_ = p.backend.WritePage(t.id, t.buf)
		atomic.AddInt64(&p.pending, -1)
		p.pendingWG.Done()
	}
}

// ReadPage submits a read and blocks until it completes, returning any
// I/O error (spec §4.12 "read is synchronous from the caller's view via
// a promise").
func (p *Pool) ReadPage(id wire.PageID, buf []byte) error {
	result := make(chan error, 1)
	p.reads <- readTask{id: id, buf: buf, result: result}
	return <-result
}

// WritePage submits a write without waiting for it to land (spec §4.12
// "write is fire-and-forget"); PendingWrites reports how many are still
// outstanding, and Close waits for all of them before stopping the workers.
func (p *Pool) WritePage(id wire.PageID, buf []byte) {
	atomic.AddInt64(&p.pending, 1)
	p.pendingWG.Add(1)
	p.writes <- writeTask{id: id, buf: buf}
}

// PendingWrites reports the number of writes submitted but not yet
// applied to the backend.
func (p *Pool) PendingWrites() int64 {
	return atomic.LoadInt64(&p.pending)
}

// Close marks the pool closed, waits for every pending write to drain,
// then shuts down the workers. ReadPage and WritePage do not check the
// closed mark, so Close does not refuse work submitted after it.
func (p *Pool) Close() {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return
	}
	p.pendingWG.Wait()
	close(p.reads)
	close(p.writes)
	p.wg.Wait()
}
