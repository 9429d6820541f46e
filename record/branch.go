package record

import (
	"bytes"

	rdberrs "github.com/my-db-dev/RapidDB/errs"
	"github.com/my-db-dev/RapidDB/wire"
)

// Branch is a branch-level record: a key, an optional primary-key suffix
// (non-unique indexes only, used to disambiguate repeated search keys),
// and the id of the child page it routes to.
//
// Wire layout (spec §3 "Record (branch)"), little-endian:
//
//	total-len(2) | key-len(2) | key-bytes | suffix-bytes (non-unique only) | child-page-id(4)
//
// Grounded on original_source/src/core/BranchRecord.h: GetValueLength()
// computes the suffix length as total - 2*sizeof(u16) - PAGE_ID_LEN -
// keyLen, and GetChildPageId() reads the last PAGE_ID_LEN bytes -- both
// reproduced here.
type Branch struct {
	Raw
	Suffix  []byte // non-nil only for NON_UNIQUE branch records
	ChildID wire.PageID
}

const branchPageIDLen = 4

// NewBranch builds a unique-index branch record (no suffix).
func NewBranch(key []byte, child wire.PageID) *Branch {
	return &Branch{Raw: Raw{Key: append([]byte(nil), key...), sole: true}, ChildID: child}
}

// NewBranchWithSuffix builds a non-unique-index branch record carrying a
// primary-key suffix used to disambiguate duplicate search keys.
func NewBranchWithSuffix(key, suffix []byte, child wire.PageID) *Branch {
	return &Branch{
		Raw:     Raw{Key: append([]byte(nil), key...), sole: true},
		Suffix:  append([]byte(nil), suffix...),
		ChildID: child,
	}
}

// EncodedLen returns the byte length Encode will produce.
func (b *Branch) EncodedLen() int {
	return 2 + 2 + len(b.Key) + len(b.Suffix) + branchPageIDLen
}

// Encode serializes the record into a fresh byte slice.
func (b *Branch) Encode() []byte {
	total := b.EncodedLen()
	buf := make([]byte, total)
	putUint16(buf, 0, uint16(total-2))
	putUint16(buf, 2, uint16(len(b.Key)))
	off := 4
	copy(buf[off:], b.Key)
	off += len(b.Key)
	copy(buf[off:], b.Suffix)
	off += len(b.Suffix)
	putUint32(buf, off, uint32(b.ChildID))
	return buf
}

// DecodeBranch parses a byte slice previously produced by Branch.Encode.
// nonUnique tells the codec whether to interpret the middle region as a
// primary-key suffix (there is no in-band tag for it, matching the
// original format where the index's type, not the record, decides).
func DecodeBranch(buf []byte, nonUnique bool) (*Branch, error) {
	if len(buf) < 4+branchPageIDLen {
		return nil, rdberrs.New("record.DecodeBranch", rdberrs.StructureError)
	}
	total := int(getUint16(buf, 0))
	if total+2 > len(buf) {
		return nil, rdberrs.New("record.DecodeBranch", rdberrs.StructureError)
	}
	keyLen := int(getUint16(buf, 2))
	off := 4
	if off+keyLen > len(buf) {
		return nil, rdberrs.New("record.DecodeBranch", rdberrs.StructureError)
	}
	key := buf[off : off+keyLen]
	off += keyLen

	suffixLen := total + 2 - 4 - keyLen - branchPageIDLen
	if !nonUnique {
		suffixLen = 0
	}
	if suffixLen < 0 || off+suffixLen+branchPageIDLen > len(buf) {
		return nil, rdberrs.New("record.DecodeBranch", rdberrs.StructureError)
	}
	var suffix []byte
	if suffixLen > 0 {
		suffix = buf[off : off+suffixLen]
		off += suffixLen
	}
	child := wire.PageID(getUint32(buf, off))

	return &Branch{Raw: Raw{Key: key}, Suffix: suffix, ChildID: child}, nil
}

// CompareKey orders this record against a bare search key by key bytes
// only (cmp supplies the schema-specific comparator).
func (b *Branch) CompareKey(key []byte, cmp func(a, b []byte) int) int {
	return cmp(b.Key, key)
}

// CompareTo orders two branch records: primarily by key, and for
// non-unique indexes, by primary-key suffix on ties (spec §4.4 "Binary
// search").
func (b *Branch) CompareTo(other *Branch, cmp func(a, b []byte) int) int {
	if c := cmp(b.Key, other.Key); c != 0 {
		return c
	}
	return bytes.Compare(b.Suffix, other.Suffix)
}

// Detach copies this record's bytes into freshly owned buffers.
func (b *Branch) Detach() *Branch {
	if b.IsSole() {
		return b
	}
	b.detachKey()
	if b.Suffix != nil {
		cp := make([]byte, len(b.Suffix))
		copy(cp, b.Suffix)
		b.Suffix = cp
	}
	return b
}
