// Package cache implements the per-page resident state and the four page
// kinds the B+-tree file is built from (spec §4.4-§4.7, §6): the common
// CachePage base, HeadPage, OverflowPage, LeafPage and BranchPage.
//
// Grounded field-for-field on original_source/src/core/CachePage.h
// (_bysPage, _rwLock, _dtPageLastWrite, _dtPageLastAccess, _refCount,
// _bDirty) and LeafPage.h/OverflowPage.h for the leaf/overflow shape;
// split/compaction algorithms are grounded on the teacher's
// splitPage/splitRoot/cleanPage in bltree.go, generalized from the
// teacher's single-version slot format to this spec's multi-version leaf
// records (design notes §9: tagged-variant page, dispatch through the
// tag rather than virtual calls).
package cache

import (
	"sync/atomic"
	"time"

	"github.com/my-db-dev/RapidDB/latch"
	"github.com/my-db-dev/RapidDB/wire"
)

// Kind tags which page variant a Base belongs to.
type Kind uint8

const (
	KindHead Kind = iota
	KindLeaf
	KindBranch
	KindOverflow
)

// Base is the state every resident page carries regardless of kind (spec
// §4.4): latch, dirty/record-updated flags, refcount, and access/write
// timestamps. Leaf/Branch/Head/Overflow each embed Base and add their own
// prefix fields and decoded content.
type Base struct {
	PageID wire.PageID
	FileID wire.FileID
	Kind   Kind

	Latch latch.Shared

	refCount      int32
	dirty         int32
	recordUpdated int32
	lastAccess    int64 // unix nanos
	lastWrite     int64 // unix nanos
}

func nowNano() int64 { return time.Now().UnixNano() }

// IncRef increments the refcount, pinning the page against eviction.
func (b *Base) IncRef() int32 { return atomic.AddInt32(&b.refCount, 1) }

// DecRef decrements the refcount.
func (b *Base) DecRef() int32 { return atomic.AddInt32(&b.refCount, -1) }

// RefCount reports the current refcount.
func (b *Base) RefCount() int32 { return atomic.LoadInt32(&b.refCount) }

// Dirty reports whether the page has unflushed mutations.
func (b *Base) Dirty() bool { return atomic.LoadInt32(&b.dirty) != 0 }

// SetDirty marks/clears the dirty bit.
func (b *Base) SetDirty(v bool) {
	if v {
		atomic.StoreInt32(&b.dirty, 1)
	} else {
		atomic.StoreInt32(&b.dirty, 0)
	}
}

// RecordUpdated reports whether a record on this page changed since load.
func (b *Base) RecordUpdated() bool { return atomic.LoadInt32(&b.recordUpdated) != 0 }

// SetRecordUpdated marks/clears the record-updated bit.
func (b *Base) SetRecordUpdated(v bool) {
	if v {
		atomic.StoreInt32(&b.recordUpdated, 1)
	} else {
		atomic.StoreInt32(&b.recordUpdated, 0)
	}
}

// TouchAccess records a read/lookup against this page.
func (b *Base) TouchAccess() { atomic.StoreInt64(&b.lastAccess, nowNano()) }

// TouchWrite records a mutation against this page (also touches access).
func (b *Base) TouchWrite() {
	now := nowNano()
	atomic.StoreInt64(&b.lastWrite, now)
	atomic.StoreInt64(&b.lastAccess, now)
}

// LastAccess returns the last-access timestamp (unix nanos).
func (b *Base) LastAccess() int64 { return atomic.LoadInt64(&b.lastAccess) }

// LastWrite returns the last-write timestamp (unix nanos).
func (b *Base) LastWrite() int64 { return atomic.LoadInt64(&b.lastWrite) }

// Evictable reports whether the page is a candidate for PageBufferPool
// eviction: unreferenced and not latched by any reader or writer (spec invariant: "Every
// resident page has refcount >= 0; a page with refcount == 0 and no held
// latch is eligible for eviction").
func (b *Base) Evictable() bool {
	return b.RefCount() == 0 && !b.Latch.IsHeld()
}

// HashKey computes the PageBufferPool lookup key (file_id<<32 | page_id),
// per spec §4.10.
func HashKey(fileID wire.FileID, pageID wire.PageID) uint64 {
	return (uint64(fileID) << 32) | uint64(pageID)
}
