// Package latch implements the small, fixed set of latch primitives spec
// §5 calls for: an exclusive spin latch for short, non-I/O critical
// sections, and a shared spin latch (many readers / one writer) used for
// the head page's root latch and every cache page. Both yield to the OS
// scheduler after a bounded number of busy spins and record an owner tag
// on exclusive acquisition, matching the teacher's BLTRWLock/ClockBit
// spin scheme in bufmgr.go.
package latch

import (
	"runtime"
	"sync/atomic"
)

const spinLimit = 64

// ownerSeq feeds nextOwner, which hands out the owner tag stored on each
// exclusive acquisition: a process-wide sequence number, not a goroutine
// id (Go has no cheap public goroutine id). It is always recorded.
var ownerSeq int64

func nextOwner() int64 { return atomic.AddInt64(&ownerSeq, 1) }

// Spin is an exclusive-only latch for short critical sections that must
// never be held across I/O (spec §5).
type Spin struct {
	state int32 // 0 = free, 1 = held
	owner int64
}

// Lock acquires the latch, spinning briefly before yielding to the OS.
func (s *Spin) Lock() {
	spins := 0
	for !atomic.CompareAndSwapInt32(&s.state, 0, 1) {
		spins++
		if spins > spinLimit {
			runtime.Gosched()
			spins = 0
		}
	}
	atomic.StoreInt64(&s.owner, nextOwner())
}

// TryLock attempts to acquire without blocking.
func (s *Spin) TryLock() bool {
	if atomic.CompareAndSwapInt32(&s.state, 0, 1) {
		atomic.StoreInt64(&s.owner, nextOwner())
		return true
	}
	return false
}

// Unlock releases the latch.
func (s *Spin) Unlock() {
	atomic.StoreInt64(&s.owner, 0)
	atomic.StoreInt32(&s.state, 0)
}

// Shared is a reader/writer spin latch: many concurrent readers, or one
// exclusive writer, used for HeadPage.root_mutex and every CachePage.
type Shared struct {
	readers int32 // count of active readers; -1 means a writer holds it
	owner   int64
}

// RLock acquires a shared (read) hold.
func (s *Shared) RLock() {
	spins := 0
	for {
		cur := atomic.LoadInt32(&s.readers)
		if cur >= 0 && atomic.CompareAndSwapInt32(&s.readers, cur, cur+1) {
			return
		}
		spins++
		if spins > spinLimit {
			runtime.Gosched()
			spins = 0
		}
	}
}

// RUnlock releases a shared (read) hold.
func (s *Shared) RUnlock() {
	atomic.AddInt32(&s.readers, -1)
}

// Lock acquires an exclusive (write) hold.
func (s *Shared) Lock() {
	spins := 0
	for !atomic.CompareAndSwapInt32(&s.readers, 0, -1) {
		spins++
		if spins > spinLimit {
			runtime.Gosched()
			spins = 0
		}
	}
	atomic.StoreInt64(&s.owner, nextOwner())
}

// TryLock attempts to acquire the exclusive hold without blocking.
func (s *Shared) TryLock() bool {
	if atomic.CompareAndSwapInt32(&s.readers, 0, -1) {
		atomic.StoreInt64(&s.owner, nextOwner())
		return true
	}
	return false
}

// Unlock releases an exclusive (write) hold.
func (s *Shared) Unlock() {
	atomic.StoreInt64(&s.owner, 0)
	atomic.StoreInt32(&s.readers, 0)
}

// IsHeld reports whether any writer or reader currently holds the latch,
// for eviction-safety assertions (spec testable property 7).
func (s *Shared) IsHeld() bool {
	return atomic.LoadInt32(&s.readers) != 0
}

// Reentrant permits the same goroutine to re-enter a latch it already
// holds, used where a method calls back into itself (spec §5 "Reentrant
// spin latches").
type Reentrant struct {
	mu    Spin
	owner int64
	depth int32
}

// Lock acquires the latch, allowing re-entry from the same logical owner
// token (callers must supply a stable token per logical call chain, e.g.
// a per-operation counter -- Go has no portable goroutine-local storage).
func (r *Reentrant) Lock(token int64) {
	if atomic.LoadInt64(&r.owner) == token && token != 0 {
		atomic.AddInt32(&r.depth, 1)
		return
	}
	r.mu.Lock()
	atomic.StoreInt64(&r.owner, token)
	atomic.StoreInt32(&r.depth, 1)
}

// Unlock releases one level of re-entry, fully releasing the latch when
// depth reaches zero.
func (r *Reentrant) Unlock() {
	if atomic.AddInt32(&r.depth, -1) == 0 {
		atomic.StoreInt64(&r.owner, 0)
		r.mu.Unlock()
	}
}
