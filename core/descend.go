package core

import (
	"github.com/my-db-dev/RapidDB/cache"
	rdberrs "github.com/my-db-dev/RapidDB/errs"
	"github.com/my-db-dev/RapidDB/wire"
)

// descend walks from the root to the leaf that would hold key, latching
// each child before releasing its parent ("crabbing") so no other
// goroutine can split a page out from under an in-flight descent.
// Grounded on the teacher's PageFetch (bufmgr.go), which holds the
// parent's read lock until the child is fetched and locked before
// releasing it.
//
// The returned unlock func releases the leaf's latch (write-locked if
// forWrite, read-locked otherwise); callers must defer it. branchPath is
// every branch page id visited, root first, for callers that need to
// walk back up (none currently do, since splits promote via ParentID).
func (t *Tree) descend(key []byte, forWrite bool) (leaf *cache.Leaf, branchPath []wire.PageID, unlock func(), err error) {
	t.head.Latch.RLock()
	curID := t.head.RootPageID
	release := t.head.Latch.RUnlock

	if curID == wire.PageNullPointer {
		release()
		return nil, nil, func() {}, rdberrs.New("core.descend", rdberrs.StructureError)
	}

	for {
		pg, err := t.loadAny(curID)
		if err != nil {
			release()
			return nil, nil, func() {}, err
		}

		switch p := pg.(type) {
		case *cache.Leaf:
			if forWrite {
				p.Latch.Lock()
				unlock = p.Latch.Unlock
			} else {
				p.Latch.RLock()
				unlock = p.Latch.RUnlock
			}
			release()
			return p, branchPath, unlock, nil

		case *cache.Branch:
			p.Latch.RLock()
			release()
			release = p.Latch.RUnlock

			idx := p.SearchKey(key, t.cmp)
			if t.nonUnique {
				for idx > 0 && t.cmp(p.Records[idx-1].Key, key) == 0 {
					idx--
				}
			}
			rec := p.GetRecordByPos(idx)
			if rec == nil {
				release()
				return nil, nil, func() {}, rdberrs.New("core.descend", rdberrs.StructureError)
			}
			branchPath = append(branchPath, curID)
			curID = rec.ChildID

		default:
			release()
			return nil, nil, func() {}, rdberrs.New("core.descend", rdberrs.StructureError)
		}
	}
}

// leftmostLeaf descends to the leftmost leaf page (the one BeginLeafPageID
// tracks), for unbounded range scans.
func (t *Tree) leftmostLeaf() (*cache.Leaf, func(), error) {
	t.head.Latch.RLock()
	id := t.head.BeginLeafPageID
	t.head.Latch.RUnlock()
	if id == wire.PageNullPointer {
		return nil, func() {}, rdberrs.New("core.leftmostLeaf", rdberrs.StructureError)
	}
	leaf, err := t.loadLeaf(id)
	if err != nil {
		return nil, func() {}, err
	}
	leaf.Latch.RLock()
	return leaf, leaf.Latch.RUnlock, nil
}
