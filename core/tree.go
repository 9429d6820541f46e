// Package core implements IndexTree (spec §4.9): the public surface that
// ties every lower package together -- create/open an index file, the
// root-to-leaf descent with latch coupling, page-id allocation, and the
// MVCC read/write operations.
//
// Grounded on the teacher's PageFetch descent loop (bufmgr.go) and the
// InsertKey/DeleteKey latch-coupling pattern (bltree.go), generalized
// from the teacher's single-level-type page to this spec's tagged
// leaf/branch/head pages and MVCC-aware record operations.
package core

import (
	"sync"

	"github.com/google/uuid"

	"github.com/my-db-dev/RapidDB/cache"
	"github.com/my-db-dev/RapidDB/engine"
	"github.com/my-db-dev/RapidDB/garbage"
	"github.com/my-db-dev/RapidDB/keytype"
	"github.com/my-db-dev/RapidDB/record"
	"github.com/my-db-dev/RapidDB/wire"
)

// Tree is one open index file: its key schema, the Engine subsystems it
// shares with any sibling index, and the bookkeeping an IndexTree alone
// owns (free list, in-flight loader dedup, per-actor write sets).
type Tree struct {
	eng       *engine.Engine
	fileID    wire.FileID
	schema    keytype.Schema
	nonUnique bool
	pageSize  int
	maxInline int

	// ownsEngine is set by the CreateFile/OpenFile/CreateInMemory
	// convenience constructors, whose caller never sees the Engine they
	// built, so Close must tear it down too.
	ownsEngine bool

	head *cache.Head

	garbage *garbage.Owner

	loadMu  sync.Mutex
	loading map[uint64]*loadWaiter

	actorMu     sync.Mutex
	actorWrites map[uuid.UUID][]writeRef
}

type writeRef struct {
	pageID wire.PageID
	key    []byte
}

type loadWaiter struct {
	done chan struct{}
	page interface{}
	err  error
}

// CreateIndex initializes a brand new index file of the given type and
// key schema and opens it.
func CreateIndex(eng *engine.Engine, fileID wire.FileID, schema keytype.Schema, indexType wire.IndexType) (*Tree, error) {
	t := newTree(eng, fileID, schema, indexType == wire.NonUnique)
	t.head = cache.NewHead(indexType, 0, 0)
	t.head.TotalPageCount = 1
	if err := t.flushHead(); err != nil {
		return nil, err
	}
	return t, nil
}

// OpenIndex reads back an existing index file's head page and resumes it.
func OpenIndex(eng *engine.Engine, fileID wire.FileID, schema keytype.Schema) (*Tree, error) {
	buf := make([]byte, eng.Config.PageSize)
	if err := eng.Storage.ReadPage(wire.HeadPageID, buf); err != nil {
		return nil, err
	}
	head, err := cache.DecodeHead(buf)
	if err != nil {
		return nil, err
	}
	t := newTree(eng, fileID, schema, head.IndexType == wire.NonUnique)
	t.head = head
	return t, nil
}

func newTree(eng *engine.Engine, fileID wire.FileID, schema keytype.Schema, nonUnique bool) *Tree {
	pageSize := int(eng.Config.PageSize)
	return &Tree{
		eng:         eng,
		fileID:      fileID,
		schema:      schema,
		nonUnique:   nonUnique,
		pageSize:    pageSize,
		maxInline:   pageSize / 2,
		garbage:     garbage.NewOwner(),
		loading:     make(map[uint64]*loadWaiter),
		actorWrites: make(map[uuid.UUID][]writeRef),
	}
}

func (t *Tree) cmp(a, b []byte) int { return keytype.Compare(t.schema, a, b) }

func (t *Tree) flushHead() error {
	buf := t.head.Encode(t.pageSize)
	t.eng.Storage.WritePage(wire.HeadPageID, buf)
	return nil
}

// Close flushes the head page and drains the engine's background work
// for this tree's file.
func (t *Tree) Close() error {
	if err := t.flushHead(); err != nil {
		return err
	}
	t.eng.Buffer.EvictFile(t.fileID)
	if t.ownsEngine {
		return t.eng.Close()
	}
	return nil
}

func (t *Tree) nextStamp() wire.Stamp {
	t.head.Latch.Lock()
	s := t.head.NextStamp()
	t.head.Latch.Unlock()
	return s
}

func (t *Tree) activeStamps() []wire.Stamp {
	t.head.Latch.RLock()
	defer t.head.Latch.RUnlock()
	return append([]wire.Stamp(nil), t.head.ActiveStamps...)
}

// BeginRead registers the current stamp as in-flight for MVCC GC purposes
// and returns it along with a function the caller must invoke once the
// read is done (spec §4.3 "active stamp set").
func (t *Tree) BeginRead() (wire.Stamp, func()) {
	t.head.Latch.Lock()
	s := t.head.CurrentStamp
	t.head.AddActiveStamp(s)
	t.head.Latch.Unlock()
	return s, func() {
		t.head.Latch.Lock()
		t.head.RemoveActiveStamp(s)
		t.head.Latch.Unlock()
	}
}

// BeginActor allocates a new writer identity for a multi-operation
// transaction; pass record.NilActor to Insert/Delete for auto-commit.
func (t *Tree) BeginActor() uuid.UUID { return uuid.New() }

func (t *Tree) recordWrite(actor uuid.UUID, pageID wire.PageID, key []byte) {
	if actor == record.NilActor {
		return
	}
	t.actorMu.Lock()
	t.actorWrites[actor] = append(t.actorWrites[actor], writeRef{pageID: pageID, key: append([]byte(nil), key...)})
	t.actorMu.Unlock()
}

// CommitActor makes every version the actor wrote visible to readers
// whose stamp is >= the version's stamp (spec §4.3 write rule step 4).
func (t *Tree) CommitActor(actor uuid.UUID) error {
	writes := t.popActorWrites(actor)
	for _, w := range writes {
		leaf, err := t.loadLeaf(w.pageID)
		if err != nil {
			continue
		}
		leaf.Latch.Lock()
		if idx, found := leaf.SearchKey(w.key, t.cmp); found {
			leaf.Records[idx].Commit(t.nextStamp())
			leaf.SetDirty(true)
		}
		leaf.Latch.Unlock()
	}
	return nil
}

// RollbackActor undoes every version the actor wrote, releasing any
// overflow pages it allocated (spec §4.3 write rule step 5).
func (t *Tree) RollbackActor(actor uuid.UUID) error {
	writes := t.popActorWrites(actor)
	for _, w := range writes {
		leaf, err := t.loadLeaf(w.pageID)
		if err != nil {
			continue
		}
		leaf.Latch.Lock()
		idx, found := leaf.SearchKey(w.key, t.cmp)
		if found && leaf.Records[idx].Actor == actor {
			prev := leaf.Records[idx].RollbackTo(func(start wire.PageID, n uint16) {
				t.garbage.Release(start, uint32(n))
			})
			if prev == nil || len(prev.Versions) == 0 {
				leaf.RemoveAt(idx)
			} else {
				leaf.Records[idx] = prev
			}
			leaf.SetDirty(true)
		}
		leaf.Latch.Unlock()
	}
	return nil
}

func (t *Tree) popActorWrites(actor uuid.UUID) []writeRef {
	t.actorMu.Lock()
	defer t.actorMu.Unlock()
	writes := t.actorWrites[actor]
	delete(t.actorWrites, actor)
	return writes
}

func (t *Tree) allocPageRun(n uint32) wire.PageID {
	if id := t.garbage.Apply(n); id != wire.PageNullPointer {
		return id
	}
	t.head.Latch.Lock()
	start := wire.PageID(t.head.TotalPageCount)
	t.head.TotalPageCount += n
	t.head.Latch.Unlock()
	return start
}

func (t *Tree) allocPageID() wire.PageID { return t.allocPageRun(1) }

// splitThresholdLeaf/Branch are the data-length watermarks past which a
// page is handed to the divide pool for an asynchronous split, leaving
// headroom under pageSize for the slot table and prefix.
func (t *Tree) splitThresholdLeaf() int   { return t.pageSize - wire.LeafPrefixLen - t.pageSize/8 }
func (t *Tree) splitThresholdBranch() int { return t.pageSize - wire.BranchPrefix - t.pageSize/8 }
