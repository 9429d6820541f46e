package record

import (
	"hash/crc32"
	"sort"

	"github.com/google/uuid"

	"github.com/my-db-dev/RapidDB/wire"
)

// Version is one MVCC version of a leaf record's value (spec §4.3).
// ValueLen == 0 marks a logical delete ("tombstone"); Value is nil when
// the version's bytes live in an overflow page run instead (Overflow()).
type Version struct {
	Stamp    wire.Stamp
	ValueLen uint32
	Value    []byte // inline bytes; nil if this version overflowed

	CRC32         uint32      // valid only when this version overflowed
	OverflowStart wire.PageID // valid only when this version overflowed
	OverflowPages uint16      // valid only when this version overflowed
}

// Overflow reports whether this version's value lives in an overflow page
// run rather than inline.
func (v Version) Overflow() bool { return v.Value == nil && v.ValueLen > 0 && v.OverflowPages > 0 }

// Deleted reports whether this version is a tombstone.
func (v Version) Deleted() bool { return v.ValueLen == 0 }

// Leaf is a leaf-level record: a key plus its MVCC version chain (newest
// first, per spec §6 "Multi-version order is newest first").
type Leaf struct {
	Raw

	// Suffix disambiguates repeated keys under a NON_UNIQUE index (the
	// row's primary key), mirroring Branch.Suffix; nil under a
	// PRIMARY/UNIQUE index, where Key alone must be unique.
	Suffix []byte

	Versions []Version

	// GapLocked marks a gap lock against the *previous* record (not the
	// next one, because pages split at the last record) -- ported from
	// original_source RawRecord::_gapLock, SPEC_FULL §12.
	GapLocked bool

	// Actor is the writer currently holding an uncommitted update to this
	// record (NilActor if none). Readers from other actors skip its
	// uncommitted head version (stamped StampPending) and read the older
	// versions kept in Versions until Actor commits (spec §4.3 write rule
	// step 4).
	Actor uuid.UUID

	// UndoPrev links to the pre-update record so a rollback can restore
	// the prior state.
	UndoPrev *Leaf

	// Removed marks that this record has no live versions visible to any
	// active stamp and should be dropped from the page on next
	// serialization (spec §4.3 "Deletion").
	Removed bool
}

// NewLeaf builds a fresh leaf record with a single version.
func NewLeaf(key []byte, stamp wire.Stamp, value []byte) *Leaf {
	return &Leaf{
		Raw:      Raw{Key: append([]byte(nil), key...), sole: true},
		Versions: []Version{{Stamp: stamp, ValueLen: uint32(len(value)), Value: append([]byte(nil), value...)}},
	}
}

// NewLeafWithSuffix builds a fresh NON_UNIQUE leaf record carrying a
// primary-key suffix, mirroring NewBranchWithSuffix.
func NewLeafWithSuffix(key, suffix []byte, stamp wire.Stamp, value []byte) *Leaf {
	l := NewLeaf(key, stamp, value)
	l.Suffix = append([]byte(nil), suffix...)
	return l
}

// Visible implements the read visibility rule (spec §4.3):
//  1. choose the first version whose stamp <= rs
//  2. if that version is a tombstone, the record is logically deleted
//  3. otherwise return its value bytes (overflow resolution is the
//     caller's job, since only the caller -- LeafPage/IndexTree -- can
//     reach the overflow page run)
//
// readerActor lets an in-flight writer see its own uncommitted version
// even though its stamp may be newer than rs.
func (l *Leaf) Visible(rs wire.Stamp, readerActor uuid.UUID) (v *Version, deleted bool, found bool) {
	if l.Actor != NilActor && l.Actor == readerActor && len(l.Versions) > 0 {
		return &l.Versions[0], l.Versions[0].Deleted(), true
	}
	for i := range l.Versions {
		if l.Versions[i].Stamp <= rs {
			if l.Versions[i].Deleted() {
				return &l.Versions[i], true, true
			}
			return &l.Versions[i], false, true
		}
	}
	return nil, false, false
}

// GCKeep computes, per spec §4.3 write rule step 1, the versions that must
// be retained across an update: every version whose stamp is >= the
// smallest active stamp, plus the current newest version regardless of
// its stamp (so a reader that started before any GC boundary still has a
// valid version to fall back to).
func GCKeep(versions []Version, active []wire.Stamp) []Version {
	if len(versions) == 0 {
		return nil
	}
	minActive := minStamp(active)
	kept := make([]Version, 0, len(versions))
	kept = append(kept, versions[0]) // current head version always kept
	for i := 1; i < len(versions); i++ {
		if versions[i].Stamp >= minActive {
			kept = append(kept, versions[i])
		}
	}
	return kept
}

func minStamp(active []wire.Stamp) wire.Stamp {
	if len(active) == 0 {
		return 0
	}
	sorted := append([]wire.Stamp(nil), active...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[0]
}

// PendingOverflow describes a version whose value must be written to an
// overflow page run before the record can be finalized (spec §4.3 step 3).
type PendingOverflow struct {
	VersionIndex int
	Value        []byte
	PageCount    uint32
}

// Update applies the MVCC write rule (spec §4.3) and returns the new head
// record plus, when the new value exceeds maxInline, a PendingOverflow the
// caller must resolve (allocate pages, write them, then call
// SetOverflowDescriptor) before the record is considered complete.
//
// The returned Leaf keeps l's GC-retained versions behind the new head,
// so readers from other actors keep seeing them until actor commits
// (step 4); its UndoPrev points at l for RollbackTo below.
func (l *Leaf) Update(newValue []byte, newStamp wire.Stamp, actor uuid.UUID, active []wire.Stamp, maxInline int, pageSize int) (*Leaf, *PendingOverflow) {
	kept := GCKeep(l.Versions, active)

	next := &Leaf{
		Raw:      Raw{Key: append([]byte(nil), l.Key...), sole: true},
		Suffix:   append([]byte(nil), l.Suffix...),
		Versions: make([]Version, 0, len(kept)+1),
		Actor:    actor,
		UndoPrev: l,
	}

	head := Version{Stamp: newStamp, ValueLen: uint32(len(newValue))}
	var pending *PendingOverflow
	if len(newValue) > maxInline {
		pageCount := uint32((len(newValue) + pageSize - 1) / pageSize)
		head.OverflowPages = uint16(pageCount)
		head.CRC32 = crc32.ChecksumIEEE(newValue)
		pending = &PendingOverflow{VersionIndex: 0, Value: newValue, PageCount: pageCount}
	} else {
		head.Value = append([]byte(nil), newValue...)
	}

	next.Versions = append(next.Versions, head)
	next.Versions = append(next.Versions, kept...)
	return next, pending
}

// SetOverflowDescriptor finalizes a pending overflow write by recording
// where the bytes landed.
func (l *Leaf) SetOverflowDescriptor(versionIdx int, start wire.PageID) {
	l.Versions[versionIdx].OverflowStart = start
}

// Delete writes an empty-value tombstone version, per spec §4.3
// "Deletion". If no prior version remains visible to any active stamp
// after GC, the record is marked Removed so the page can drop its bytes
// on next serialization.
func (l *Leaf) Delete(newStamp wire.Stamp, actor uuid.UUID, active []wire.Stamp) *Leaf {
	kept := GCKeep(l.Versions, active)
	next := &Leaf{
		Raw:      Raw{Key: append([]byte(nil), l.Key...), sole: true},
		Suffix:   append([]byte(nil), l.Suffix...),
		Versions: append([]Version{{Stamp: newStamp, ValueLen: 0}}, kept...),
		Actor:    actor,
		UndoPrev: l,
	}
	if len(kept) == 0 {
		next.Removed = true
	}
	return next
}

// RollbackTo releases the overflow pages (via release) a pending/aborted
// update acquired and returns the record's prior state, per spec §4.3 step
// 5. release is called once per overflowing version being undone.
func (l *Leaf) RollbackTo(release func(start wire.PageID, n uint16)) *Leaf {
	if len(l.Versions) > 0 && l.Versions[0].Overflow() {
		release(l.Versions[0].OverflowStart, l.Versions[0].OverflowPages)
	}
	return l.UndoPrev
}

// Commit assigns the head version its real commit stamp and clears
// Actor, making it visible to any reader whose read stamp is >= stamp.
// Commit stamps are allocated at commit time rather than write time so
// commit order, not write-start order, determines MVCC visibility order.
func (l *Leaf) Commit(stamp wire.Stamp) {
	if len(l.Versions) > 0 {
		l.Versions[0].Stamp = stamp
	}
	l.Actor = NilActor
}
