package core

import (
	"github.com/google/uuid"

	"github.com/my-db-dev/RapidDB/cache"
	rdberrs "github.com/my-db-dev/RapidDB/errs"
	"github.com/my-db-dev/RapidDB/record"
	"github.com/my-db-dev/RapidDB/wire"
)

// Insert adds a brand new row under key (spec §4.5 "insert_record"),
// creating the root leaf page on a brand new tree. It fails with
// CORE_REPEATED_RECORD rather than overwrite an existing row: under a
// PRIMARY/UNIQUE index that means any exact key match; under a
// NON_UNIQUE index, pass InsertNonUnique instead, which disambiguates by
// suffix. actor is record.NilActor for an auto-committed single write, or
// a value from BeginActor for a writer that will CommitActor/
// RollbackActor later. Use Update to replace an existing row's value.
func (t *Tree) Insert(key, value []byte, actor uuid.UUID) error {
	return t.insert(key, nil, value, actor)
}

// InsertNonUnique is Insert's NON_UNIQUE counterpart: suffix (the row's
// primary key) disambiguates repeated rows under the same key. It fails
// with CORE_REPEATED_RECORD only if the exact (key, suffix) pair already
// exists.
func (t *Tree) InsertNonUnique(key, suffix, value []byte, actor uuid.UUID) error {
	return t.insert(key, suffix, value, actor)
}

func (t *Tree) insert(key, suffix, value []byte, actor uuid.UUID) error {
	if err := t.ensureRoot(); err != nil {
		return err
	}

	leaf, _, unlock, err := t.descend(key, true)
	if err != nil {
		return err
	}
	defer unlock()

	_, found := t.searchLeaf(leaf, key, suffix)
	if found {
		return rdberrs.New("core.Tree.Insert", rdberrs.RepeatedRecord)
	}

	stamp := wire.StampPending
	if actor == record.NilActor {
		stamp = t.nextStamp()
	}

	base := &record.Leaf{
		Raw:    record.Raw{Key: append([]byte(nil), key...)},
		Suffix: append([]byte(nil), suffix...),
	}
	newRec, pending := base.Update(value, stamp, actor, t.activeStamps(), t.maxInline, t.pageSize)
	if err := t.resolveOverflow(newRec, pending); err != nil {
		return err
	}

	t.insertLeaf(leaf, newRec)
	leaf.SetDirty(true)
	leaf.SetRecordUpdated(true)
	leaf.TouchWrite()
	t.recordWrite(actor, leaf.PageID, key)

	if leaf.TotalDataLen() > t.splitThresholdLeaf() {
		t.eng.Divide.Enqueue(t.fileID, leaf.PageID)
	}
	return nil
}

// Update applies the MVCC write rule (spec §4.3) at key, growing its
// version chain rather than rejecting on an existing row the way Insert
// does -- it replaces key's value if present, or inserts it fresh if not.
// actor is record.NilActor for an auto-committed single write, or a value
// from BeginActor for a writer that will CommitActor/RollbackActor later.
func (t *Tree) Update(key, value []byte, actor uuid.UUID) error {
	return t.update(key, nil, value, actor)
}

// UpdateNonUnique is Update's NON_UNIQUE counterpart: suffix (the row's
// primary key) selects which of key's repeated rows to replace, or
// inserts a brand new row under key if no record with that (key, suffix)
// pair exists yet.
func (t *Tree) UpdateNonUnique(key, suffix, value []byte, actor uuid.UUID) error {
	return t.update(key, suffix, value, actor)
}

func (t *Tree) update(key, suffix, value []byte, actor uuid.UUID) error {
	if err := t.ensureRoot(); err != nil {
		return err
	}

	leaf, _, unlock, err := t.descend(key, true)
	if err != nil {
		return err
	}
	defer unlock()

	stamp := wire.StampPending
	if actor == record.NilActor {
		stamp = t.nextStamp()
	}

	idx, found := t.searchLeaf(leaf, key, suffix)
	var base *record.Leaf
	if found {
		base = leaf.Records[idx]
	} else {
		base = &record.Leaf{
			Raw:    record.Raw{Key: append([]byte(nil), key...)},
			Suffix: append([]byte(nil), suffix...),
		}
	}

	newRec, pending := base.Update(value, stamp, actor, t.activeStamps(), t.maxInline, t.pageSize)
	if err := t.resolveOverflow(newRec, pending); err != nil {
		return err
	}

	t.insertLeaf(leaf, newRec)
	leaf.SetDirty(true)
	leaf.SetRecordUpdated(true)
	leaf.TouchWrite()
	t.recordWrite(actor, leaf.PageID, key)

	if leaf.TotalDataLen() > t.splitThresholdLeaf() {
		t.eng.Divide.Enqueue(t.fileID, leaf.PageID)
	}
	return nil
}

// Delete writes a tombstone version for key (spec §4.3 "Deletion"). ok is
// false if the key has no record on the page at all (never inserted).
func (t *Tree) Delete(key []byte, actor uuid.UUID) (ok bool, err error) {
	return t.delete(key, nil, actor)
}

// DeleteNonUnique is Delete's NON_UNIQUE counterpart: suffix (the row's
// primary key) selects which of key's repeated rows to delete.
func (t *Tree) DeleteNonUnique(key, suffix []byte, actor uuid.UUID) (bool, error) {
	return t.delete(key, suffix, actor)
}

func (t *Tree) delete(key, suffix []byte, actor uuid.UUID) (bool, error) {
	t.head.Latch.RLock()
	root := t.head.RootPageID
	t.head.Latch.RUnlock()
	if root == wire.PageNullPointer {
		return false, nil
	}

	leaf, _, unlock, err := t.descend(key, true)
	if err != nil {
		return false, err
	}
	defer unlock()

	idx, found := t.searchLeaf(leaf, key, suffix)
	if !found {
		return false, nil
	}

	stamp := wire.StampPending
	if actor == record.NilActor {
		stamp = t.nextStamp()
	}
	old := leaf.Records[idx]
	newRec := old.Delete(stamp, actor, t.activeStamps())
	if newRec.Removed {
		leaf.RemoveAt(idx)
	} else {
		leaf.Records[idx] = newRec
	}
	leaf.SetDirty(true)
	leaf.SetRecordUpdated(true)
	leaf.TouchWrite()
	t.recordWrite(actor, leaf.PageID, key)
	return true, nil
}

// searchLeaf locates key (and, under a NON_UNIQUE index, suffix) on leaf,
// using the (key, suffix) comparator for NON_UNIQUE pages and the
// key-only comparator otherwise.
func (t *Tree) searchLeaf(leaf *cache.Leaf, key, suffix []byte) (idx int, found bool) {
	if t.nonUnique {
		return leaf.SearchKeySuffix(key, suffix, t.cmp)
	}
	return leaf.SearchKey(key, t.cmp)
}

// insertLeaf places rec into leaf in sorted position, using (key, suffix)
// ordering for NON_UNIQUE pages so repeated keys stay grouped and sorted
// by suffix, or plain key ordering otherwise.
func (t *Tree) insertLeaf(leaf *cache.Leaf, rec *record.Leaf) {
	if t.nonUnique {
		leaf.InsertRecordSuffix(rec, t.cmp)
		return
	}
	leaf.InsertRecord(rec, t.cmp)
}

// resolveOverflow writes a pending value's overflow page run, if any, and
// records its descriptor onto rec (spec §4.3 write rule step 3).
func (t *Tree) resolveOverflow(rec *record.Leaf, pending *record.PendingOverflow) error {
	if pending == nil {
		return nil
	}
	start, err := t.writeOverflow(pending.Value, pending.PageCount)
	if err != nil {
		return err
	}
	rec.SetOverflowDescriptor(pending.VersionIndex, start)
	return nil
}

// Find resolves key's value as of readStamp (spec §4.3 visibility rule).
// readerActor lets an in-flight writer see its own uncommitted write. On a
// NON_UNIQUE index carrying several rows under key, Find resolves
// whichever sorts first by suffix; use GetRecords to fetch the full run.
func (t *Tree) Find(key []byte, readStamp wire.Stamp, readerActor uuid.UUID) (value []byte, found bool, err error) {
	t.head.Latch.RLock()
	root := t.head.RootPageID
	t.head.Latch.RUnlock()
	if root == wire.PageNullPointer {
		return nil, false, nil
	}

	leaf, _, unlock, err := t.descend(key, false)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	idx, exact := leaf.SearchKey(key, t.cmp)
	if !exact {
		return nil, false, nil
	}
	v, deleted, present := leaf.Records[idx].Visible(readStamp, readerActor)
	if !present || deleted {
		return nil, false, nil
	}
	if v.Overflow() {
		val, err := t.readOverflow(v)
		return val, err == nil, err
	}
	return v.Value, true, nil
}

// GetRecords returns every row visible as of readStamp whose key matches
// key exactly (spec §4.5 "get_records"), in ascending suffix order. A
// PRIMARY/UNIQUE index never has more than one match; Find is cheaper for
// that case.
func (t *Tree) GetRecords(key []byte, readStamp wire.Stamp, readerActor uuid.UUID) ([]KV, error) {
	t.head.Latch.RLock()
	root := t.head.RootPageID
	t.head.Latch.RUnlock()
	if root == wire.PageNullPointer {
		return nil, nil
	}

	leaf, _, unlock, err := t.descend(key, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	idx, _ := leaf.SearchKey(key, t.cmp)
	var out []KV
	for ; idx < len(leaf.Records) && t.cmp(leaf.Records[idx].Key, key) == 0; idx++ {
		rec := leaf.Records[idx]
		v, deleted, present := rec.Visible(readStamp, readerActor)
		if !present || deleted {
			continue
		}
		val := v.Value
		if v.Overflow() {
			val, err = t.readOverflow(v)
			if err != nil {
				return out, err
			}
		}
		out = append(out, KV{Key: append([]byte(nil), rec.Key...), Value: append([]byte(nil), val...)})
	}
	return out, nil
}

// KV is one key/value pair returned by RangeScan.
type KV struct {
	Key   []byte
	Value []byte
}

// RangeScan walks the leaf chain (spec §4.5 prev/next links) collecting
// every key in [start, end] (either bound nil means unbounded) visible as
// of readStamp, following NextLeafID across page boundaries.
func (t *Tree) RangeScan(start, end []byte, readStamp wire.Stamp, readerActor uuid.UUID) ([]KV, error) {
	var leaf *cache.Leaf
	var unlock func()
	var err error

	t.head.Latch.RLock()
	root := t.head.RootPageID
	t.head.Latch.RUnlock()
	if root == wire.PageNullPointer {
		return nil, nil
	}

	if start != nil {
		leaf, _, unlock, err = t.descend(start, false)
	} else {
		leaf, unlock, err = t.leftmostLeaf()
	}
	if err != nil {
		return nil, err
	}

	var out []KV
	for {
		for _, rec := range leaf.FetchRecords(start, end, t.cmp) {
			v, deleted, present := rec.Visible(readStamp, readerActor)
			if !present || deleted {
				continue
			}
			val := v.Value
			if v.Overflow() {
				val, err = t.readOverflow(v)
				if err != nil {
					unlock()
					return nil, err
				}
			}
			out = append(out, KV{Key: append([]byte(nil), rec.Key...), Value: append([]byte(nil), val...)})
		}

		nextID := leaf.NextLeafID
		unlock()
		if nextID == wire.NoNextPagePointer {
			break
		}
		next, err := t.loadLeaf(wire.PageID(nextID))
		if err != nil {
			return out, err
		}
		next.Latch.RLock()
		if len(next.Records) > 0 && end != nil && t.cmp(next.Records[0].Key, end) > 0 {
			next.Latch.RUnlock()
			break
		}
		leaf = next
		unlock = next.Latch.RUnlock
	}
	return out, nil
}

// ensureRoot creates the first (root, leaf) page on an empty tree. The
// new page is built and flushed before the head latch is ever taken, so
// the latch is never held across I/O; a racing second caller that loses
// the double-checked swap just releases its unused page id.
func (t *Tree) ensureRoot() error {
	t.head.Latch.RLock()
	root := t.head.RootPageID
	t.head.Latch.RUnlock()
	if root != wire.PageNullPointer {
		return nil
	}

	id := t.allocPageID()
	newRoot := cache.NewLeafPage(id, t.fileID, wire.NoParentPointer)
	if err := t.flushLeaf(newRoot); err != nil {
		return err
	}
	t.eng.Buffer.Insert(t.fileID, id, newRoot)

	t.head.Latch.Lock()
	if t.head.RootPageID == wire.PageNullPointer {
		t.head.RootPageID = id
		t.head.BeginLeafPageID = id
	} else {
		t.garbage.Release(id, 1)
	}
	t.head.Latch.Unlock()
	return nil
}
