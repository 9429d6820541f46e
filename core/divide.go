package core

import (
	"github.com/my-db-dev/RapidDB/cache"
	rdberrs "github.com/my-db-dev/RapidDB/errs"
	"github.com/my-db-dev/RapidDB/record"
	"github.com/my-db-dev/RapidDB/wire"
)

// Divide implements divide.Divider: it is called by the engine's divide
// pool once a page has cooled down (spec §4.9 PageDivide orchestration).
// A page that only needed flushing (never grew past the split threshold)
// is just written back; one that is still too full is split, its
// separator promoted into the parent, and the parent split in turn if
// that push overflows it too -- cascading all the way to a new root if
// necessary. Grounded on the teacher's splitPage/splitRoot (bltree.go).
func (t *Tree) Divide(fileID wire.FileID, pageID wire.PageID) error {
	if fileID != t.fileID {
		return nil
	}
	pg, err := t.loadAny(pageID)
	if err != nil {
		return err
	}
	switch p := pg.(type) {
	case *cache.Leaf:
		return t.divideLeaf(p)
	case *cache.Branch:
		return t.divideBranch(p)
	default:
		return rdberrs.New("core.Divide", rdberrs.StructureError)
	}
}

func (t *Tree) divideLeaf(leaf *cache.Leaf) error {
	leaf.Latch.Lock()
	if leaf.TotalDataLen() <= t.splitThresholdLeaf() {
		leaf.Latch.Unlock()
		return t.flushLeaf(leaf)
	}

	rightRecords, splitKey := leaf.PageDivide()
	rightID := t.allocPageID()
	right := cache.NewLeafPage(rightID, t.fileID, leaf.ParentID)
	right.Records = rightRecords
	right.PrevLeafID = uint64(leaf.PageID)
	right.NextLeafID = leaf.NextLeafID
	oldNext := leaf.NextLeafID
	leaf.NextLeafID = uint64(rightID)
	leaf.SetDirty(true)
	parentID := leaf.ParentID
	leaf.Latch.Unlock()

	if oldNext != wire.NoNextPagePointer {
		if nextLeaf, err := t.loadLeaf(wire.PageID(oldNext)); err == nil {
			nextLeaf.Latch.Lock()
			nextLeaf.PrevLeafID = uint64(rightID)
			nextLeaf.SetDirty(true)
			nextLeaf.Latch.Unlock()
			_ = t.flushLeaf(nextLeaf)
		}
	}

	t.eng.Buffer.Insert(t.fileID, rightID, right)
	if err := t.flushLeaf(right); err != nil {
		return err
	}
	if err := t.flushLeaf(leaf); err != nil {
		return err
	}

	return t.promote(parentID, wire.LeafLevel+1, leaf.PageID, rightID, splitKey, rightRecords[0].Suffix)
}

func (t *Tree) divideBranch(branch *cache.Branch) error {
	branch.Latch.Lock()
	if branch.TotalDataLen() <= t.splitThresholdBranch() {
		branch.Latch.Unlock()
		return t.flushBranch(branch)
	}

	rightRecords, promoteKey, promoteSuffix := branch.PageDivide()
	rightID := t.allocPageID()
	right := cache.NewBranchPage(rightID, t.fileID, branch.ParentID, branch.Level, branch.NonUnique)
	right.Records = rightRecords
	branch.SetDirty(true)
	parentID := branch.ParentID
	childLevel := branch.Level
	branch.Latch.Unlock()

	t.eng.Buffer.Insert(t.fileID, rightID, right)
	for _, rec := range rightRecords {
		if err := t.setParent(rec.ChildID, rightID); err != nil {
			return err
		}
	}
	if err := t.flushBranch(right); err != nil {
		return err
	}
	if err := t.flushBranch(branch); err != nil {
		return err
	}

	return t.promote(parentID, childLevel+1, branch.PageID, rightID, promoteKey, promoteSuffix)
}

// promote inserts the new (splitKey -> rightID) routing record into
// parentID, building a fresh root one level higher if leftID had no
// parent (spec §4.6 "root split").
func (t *Tree) promote(parentID wire.PageID, newLevel wire.PageLevel, leftID, rightID wire.PageID, splitKey, suffix []byte) error {
	if parentID == wire.NoParentPointer {
		return t.promoteNewRoot(newLevel, leftID, rightID, splitKey, suffix)
	}

	parent, err := t.loadBranch(parentID)
	if err != nil {
		return err
	}
	parent.Latch.Lock()
	parent.InsertRecord(t.branchRecord(splitKey, suffix, rightID), t.cmp)
	parent.SetDirty(true)
	needSplit := parent.TotalDataLen() > t.splitThresholdBranch()
	parent.Latch.Unlock()

	if needSplit {
		t.eng.Divide.Enqueue(t.fileID, parentID)
		return nil
	}
	return t.flushBranch(parent)
}

func (t *Tree) promoteNewRoot(level wire.PageLevel, leftID, rightID wire.PageID, splitKey, suffix []byte) error {
	newRootID := t.allocPageID()
	root := cache.NewBranchPage(newRootID, t.fileID, wire.NoParentPointer, level, t.nonUnique)
	root.Records = append(root.Records, record.NewBranch(nil, leftID))
	root.Records = append(root.Records, t.branchRecord(splitKey, suffix, rightID))
	root.SetDirty(true)

	t.eng.Buffer.Insert(t.fileID, newRootID, root)
	if err := t.flushBranch(root); err != nil {
		return err
	}
	if err := t.setParent(leftID, newRootID); err != nil {
		return err
	}
	if err := t.setParent(rightID, newRootID); err != nil {
		return err
	}

	t.head.Latch.Lock()
	t.head.RootPageID = newRootID
	t.head.Latch.Unlock()
	return nil
}

func (t *Tree) branchRecord(key, suffix []byte, child wire.PageID) *record.Branch {
	if t.nonUnique && suffix != nil {
		return record.NewBranchWithSuffix(key, suffix, child)
	}
	return record.NewBranch(key, child)
}
