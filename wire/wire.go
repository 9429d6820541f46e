// Package wire holds the on-disk layout constants shared across the page
// and record codecs: sentinel pointers, the common page prefix shape, and
// index/key type tags (spec §3, §6).
package wire

// PageID identifies a page within one index file. 32-bit per spec §3.
type PageID uint32

// FileID identifies one open index file for the process lifetime (spec §3).
type FileID uint16

// Stamp is an MVCC version stamp: a monotonically increasing counter.
type Stamp uint64

// StampPending marks a version written by an actor that has not yet
// committed: its all-ones value sorts higher than any real stamp a
// caller could ever allocate, so it never satisfies a reader's
// Stamp <= readStamp check until CommitActor replaces it (spec §4.3
// write rule step 4).
const StampPending Stamp = 0xFFFFFFFFFFFFFFFF

// PageNullPointer is the all-ones PageID sentinel ("no such page").
const PageNullPointer PageID = 0xFFFFFFFF

// NoParentPointer marks a page with no parent (the root).
const NoParentPointer PageID = 0xFFFFFFFF

// NoPrevPagePointer / NoNextPagePointer mark the ends of the leaf chain.
const (
	NoPrevPagePointer uint64 = 0xFFFFFFFFFFFFFFFF
	NoNextPagePointer uint64 = 0xFFFFFFFFFFFFFFFF
)

// HeadPageID is the fixed page id of the head/metadata page.
const HeadPageID PageID = 0

// PageLevel distinguishes leaf (0) from branch (>=1) pages; head/overflow
// pages are tagged out of band (they are never addressed by level).
type PageLevel uint8

const LeafLevel PageLevel = 0

// IndexType is the kind of index a tree enforces (spec §6).
type IndexType uint8

const (
	Primary IndexType = iota
	Unique
	NonUnique
)

func (t IndexType) String() string {
	switch t {
	case Primary:
		return "PRIMARY"
	case Unique:
		return "UNIQUE"
	case NonUnique:
		return "NON_UNIQUE"
	default:
		return "UNKNOWN"
	}
}

// FileVersion is the major/minor/patch triple stored in the head page.
// Major/minor must match the compiled version on open (spec §4.7/§7).
type FileVersion struct {
	Major uint16
	Minor uint8
	Patch uint8
}

// CompiledVersion is the version this build of the engine writes/expects.
var CompiledVersion = FileVersion{Major: 1, Minor: 0, Patch: 0}

// Compatible reports whether an on-disk version can be opened by this
// build: major and minor must match exactly (patch is informational).
func (v FileVersion) Compatible(want FileVersion) bool {
	return v.Major == want.Major && v.Minor == want.Minor
}

// Common page prefix byte layout (spec §3): every page starts with
//
//	level(1) | total-data-length(2) | record-count(2) | parent-page-id(4)
//
// Leaf pages extend this with prev/next leaf ids and a data CRC32.
const (
	OffLevel        = 0
	OffTotalDataLen = OffLevel + 1
	OffRecordCount  = OffTotalDataLen + 2
	OffParentID     = OffRecordCount + 2
	CommonPrefixLen = OffParentID + 4

	// Leaf-only trailer appended after the common prefix.
	OffPrevLeafID  = CommonPrefixLen
	OffNextLeafID  = OffPrevLeafID + 8
	OffDataCRC32   = OffNextLeafID + 8
	LeafPrefixLen  = OffDataCRC32 + 4
	BranchPrefix   = CommonPrefixLen
	SlotOffsetSize = 2 // u16 per-record offset table entry
)

// Overflow page run header (spec §6): crc32(4) | page-count(2).
const (
	OffOverflowCRC32     = 0
	OffOverflowPageCount = 4
	OverflowHeaderLen    = OffOverflowPageCount + 2
)
