package cache

import (
	"sort"

	rdberrs "github.com/my-db-dev/RapidDB/errs"
	"github.com/my-db-dev/RapidDB/record"
	"github.com/my-db-dev/RapidDB/wire"
)

// Branch is a decoded branch (interior) page: the common prefix fields
// plus its sorted run of child-routing records (spec §4.6). For
// NON_UNIQUE indexes a search key may match several records; descent
// always takes the leftmost match so a range scan started from any
// matching branch entry sees every duplicate.
type Branch struct {
	Base

	ParentID wire.PageID
	Level    wire.PageLevel // >= 1; 1 means children are leaves

	Records   []*record.Branch
	NonUnique bool
}

// NewBranchPage builds an empty branch page at the given tree level.
func NewBranchPage(pageID wire.PageID, fileID wire.FileID, parentID wire.PageID, level wire.PageLevel, nonUnique bool) *Branch {
	return &Branch{
		Base:      Base{PageID: pageID, FileID: fileID, Kind: KindBranch},
		ParentID:  parentID,
		Level:     level,
		NonUnique: nonUnique,
	}
}

// SearchKey returns the index of the branch record to descend into for
// key: the last record whose key is <= key (a floor search), or 0 if key
// is smaller than every record (leftmost child). When several records
// share key (NON_UNIQUE pages) it returns the last of them; the leftmost
// descent for NON_UNIQUE lookups is done by the caller (core.Tree.descend).
func (p *Branch) SearchKey(key []byte, cmp CompareFunc) int {
	// first index whose key > key
	idx := sort.Search(len(p.Records), func(i int) bool {
		return cmp(p.Records[i].Key, key) > 0
	})
	if idx == 0 {
		return 0
	}
	return idx - 1
}

// InsertRecord inserts rec in sorted position. NON_UNIQUE pages order
// duplicate keys by primary-key suffix (record.Branch.CompareTo); UNIQUE
// and PRIMARY pages never see duplicate keys at this level.
func (p *Branch) InsertRecord(rec *record.Branch, cmp CompareFunc) {
	idx := sort.Search(len(p.Records), func(i int) bool {
		return rec.CompareTo(p.Records[i], cmp) < 0
	})
	p.Records = append(p.Records, nil)
	copy(p.Records[idx+1:], p.Records[idx:])
	p.Records[idx] = rec
}

// DeleteRecord removes the record exactly matching key (and suffix, for
// NON_UNIQUE pages), reporting whether one was found.
func (p *Branch) DeleteRecord(key, suffix []byte, cmp CompareFunc) bool {
	for i, r := range p.Records {
		if cmp(r.Key, key) == 0 && bytesEqual(r.Suffix, suffix) {
			p.Records = append(p.Records[:i], p.Records[i+1:]...)
			return true
		}
	}
	return false
}

// RecordExist reports whether a record with the exact key (and suffix,
// for NON_UNIQUE pages) is present on this page.
func (p *Branch) RecordExist(key, suffix []byte, cmp CompareFunc) bool {
	for _, r := range p.Records {
		if cmp(r.Key, key) == 0 && bytesEqual(r.Suffix, suffix) {
			return true
		}
	}
	return false
}

// GetRecordByPos returns the record at idx, or nil if out of range.
func (p *Branch) GetRecordByPos(idx int) *record.Branch {
	if idx < 0 || idx >= len(p.Records) {
		return nil
	}
	return p.Records[idx]
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TotalDataLen sums the encoded length of every resident record.
func (p *Branch) TotalDataLen() int {
	n := 0
	for _, r := range p.Records {
		n += r.EncodedLen()
	}
	return n
}

// PageDivide splits the page in half by record count, keeping the lower
// half in the receiver and returning the upper half plus the key that
// must be promoted into the parent branch page (spec §4.6 "PageDivide
// promotes the split key one level up").
func (p *Branch) PageDivide() (rightRecords []*record.Branch, promoteKey []byte, promoteSuffix []byte) {
	mid := len(p.Records) / 2
	rightRecords = append([]*record.Branch(nil), p.Records[mid:]...)
	p.Records = p.Records[:mid]
	return rightRecords, append([]byte(nil), rightRecords[0].Key...), append([]byte(nil), rightRecords[0].Suffix...)
}

// Encode serializes the page: common prefix, slot offset table, then
// record bytes back to back.
func (p *Branch) Encode(pageSize int) ([]byte, error) {
	buf := make([]byte, pageSize)
	buf[wire.OffLevel] = byte(p.Level)
	putUint16LE(buf, wire.OffRecordCount, uint16(len(p.Records)))
	putUint32LE(buf, wire.OffParentID, uint32(p.ParentID))

	slotTableOff := wire.BranchPrefix
	dataOff := slotTableOff + len(p.Records)*wire.SlotOffsetSize
	start := dataOff
	for i, r := range p.Records {
		enc := r.Encode()
		if dataOff+len(enc) > pageSize {
			return nil, rdberrs.New("cache.Branch.Encode", rdberrs.ExceedLimit)
		}
		putUint16LE(buf, slotTableOff+i*wire.SlotOffsetSize, uint16(dataOff))
		copy(buf[dataOff:], enc)
		dataOff += len(enc)
	}
	putUint16LE(buf, wire.OffTotalDataLen, uint16(dataOff-start))
	return buf, nil
}

// DecodeBranchPage parses a page image previously produced by Encode.
func DecodeBranchPage(buf []byte, pageID wire.PageID, fileID wire.FileID, nonUnique bool) (*Branch, error) {
	if len(buf) < wire.BranchPrefix {
		return nil, rdberrs.New("cache.DecodeBranchPage", rdberrs.StructureError)
	}
	level := wire.PageLevel(buf[wire.OffLevel])
	count := int(getUint16LE(buf, wire.OffRecordCount))
	parentID := wire.PageID(getUint32LE(buf, wire.OffParentID))

	slotTableOff := wire.BranchPrefix
	dataOff := slotTableOff + count*wire.SlotOffsetSize
	if dataOff > len(buf) {
		return nil, rdberrs.New("cache.DecodeBranchPage", rdberrs.StructureError)
	}

	records := make([]*record.Branch, count)
	for i := 0; i < count; i++ {
		off := int(getUint16LE(buf, slotTableOff+i*wire.SlotOffsetSize))
		if off >= len(buf) {
			return nil, rdberrs.New("cache.DecodeBranchPage", rdberrs.StructureError)
		}
		rec, err := record.DecodeBranch(buf[off:], nonUnique)
		if err != nil {
			return nil, err
		}
		records[i] = rec
	}

	return &Branch{
		Base:      Base{PageID: pageID, FileID: fileID, Kind: KindBranch},
		ParentID:  parentID,
		Level:     level,
		Records:   records,
		NonUnique: nonUnique,
	}, nil
}
