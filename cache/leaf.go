package cache

import (
	"bytes"
	"hash/crc32"
	"sort"

	rdberrs "github.com/my-db-dev/RapidDB/errs"
	"github.com/my-db-dev/RapidDB/record"
	"github.com/my-db-dev/RapidDB/wire"
)

// CompareFunc orders two raw key byte strings; callers supply the
// schema-specific comparator (keytype.Compare bound to a Schema).
type CompareFunc func(a, b []byte) int

// Leaf is a decoded leaf page: the common prefix fields plus its sorted
// run of leaf records (spec §4.5). Records are kept sorted by key (and,
// for NON_UNIQUE indexes, by primary-key suffix) at all times; callers
// never see an unsorted page.
type Leaf struct {
	Base

	ParentID   wire.PageID
	PrevLeafID uint64 // wire.NoPrevPagePointer sentinel when leftmost
	NextLeafID uint64 // wire.NoNextPagePointer sentinel when rightmost

	Records []*record.Leaf
}

// NewLeafPage builds an empty leaf page.
func NewLeafPage(pageID wire.PageID, fileID wire.FileID, parentID wire.PageID) *Leaf {
	return &Leaf{
		Base:       Base{PageID: pageID, FileID: fileID, Kind: KindLeaf},
		ParentID:   parentID,
		PrevLeafID: wire.NoPrevPagePointer,
		NextLeafID: wire.NoNextPagePointer,
	}
}

// SearchKey returns the index of the first record whose key is >= key
// (sort.Search lower bound), and whether that record's key equals key
// exactly (spec §4.4 "Binary search").
func (p *Leaf) SearchKey(key []byte, cmp CompareFunc) (idx int, found bool) {
	idx = sort.Search(len(p.Records), func(i int) bool {
		return cmp(p.Records[i].Key, key) >= 0
	})
	found = idx < len(p.Records) && cmp(p.Records[idx].Key, key) == 0
	return idx, found
}

// InsertRecord inserts rec in sorted position, or replaces the existing
// record with the same key (a version chain update always replaces the
// slot it grew from; a brand new key opens a new slot). Only valid for a
// PRIMARY/UNIQUE leaf page, where Key alone identifies a record; use
// InsertRecordSuffix on a NON_UNIQUE page.
func (p *Leaf) InsertRecord(rec *record.Leaf, cmp CompareFunc) {
	idx, found := p.SearchKey(rec.Key, cmp)
	if found {
		p.Records[idx] = rec
		return
	}
	p.Records = append(p.Records, nil)
	copy(p.Records[idx+1:], p.Records[idx:])
	p.Records[idx] = rec
}

// SearchKeySuffix is SearchKey's NON_UNIQUE counterpart: it orders
// candidates by (key, suffix), matching the order Branch pages already
// use for their own Suffix field (spec §4.4 "Binary search").
func (p *Leaf) SearchKeySuffix(key, suffix []byte, cmp CompareFunc) (idx int, found bool) {
	idx = sort.Search(len(p.Records), func(i int) bool {
		if c := cmp(p.Records[i].Key, key); c != 0 {
			return c >= 0
		}
		return bytes.Compare(p.Records[i].Suffix, suffix) >= 0
	})
	found = idx < len(p.Records) &&
		cmp(p.Records[idx].Key, key) == 0 &&
		bytes.Equal(p.Records[idx].Suffix, suffix)
	return idx, found
}

// InsertRecordSuffix inserts rec in sorted (key, suffix) position on a
// NON_UNIQUE leaf page, replacing any existing record with the identical
// (key, suffix) pair, or opening a new slot alongside same-key records
// that carry a different suffix.
func (p *Leaf) InsertRecordSuffix(rec *record.Leaf, cmp CompareFunc) {
	idx, found := p.SearchKeySuffix(rec.Key, rec.Suffix, cmp)
	if found {
		p.Records[idx] = rec
		return
	}
	p.Records = append(p.Records, nil)
	copy(p.Records[idx+1:], p.Records[idx:])
	p.Records[idx] = rec
}

// RemoveAt deletes the record at idx entirely (used once a record's
// Removed flag means no version remains visible to any active reader).
func (p *Leaf) RemoveAt(idx int) {
	p.Records = append(p.Records[:idx], p.Records[idx+1:]...)
}

// GetRecord returns the record at idx, or nil if out of range.
func (p *Leaf) GetRecord(idx int) *record.Leaf {
	if idx < 0 || idx >= len(p.Records) {
		return nil
	}
	return p.Records[idx]
}

// LastRecord returns the final record on the page, or nil if empty.
//
// The original implementation indexed with the record count instead of
// count-1 here, reading one past the last live slot; this reproduces the
// corrected indexing (design notes §9 "suspected off-by-one").
func (p *Leaf) LastRecord() *record.Leaf {
	if len(p.Records) == 0 {
		return nil
	}
	return p.Records[len(p.Records)-1]
}

// FetchRecords returns every record with key in [startKey, endKey]
// (either bound nil means unbounded on that side), for range scans.
func (p *Leaf) FetchRecords(startKey, endKey []byte, cmp CompareFunc) []*record.Leaf {
	from := 0
	if startKey != nil {
		from, _ = p.SearchKey(startKey, cmp)
	}
	var out []*record.Leaf
	for i := from; i < len(p.Records); i++ {
		if endKey != nil && cmp(p.Records[i].Key, endKey) > 0 {
			break
		}
		out = append(out, p.Records[i])
	}
	return out
}

// TotalDataLen sums the encoded length of every resident record, the
// quantity a split decision is based on (spec §4.5 "when total data
// length would exceed the page, divide").
func (p *Leaf) TotalDataLen() int {
	n := 0
	for _, r := range p.Records {
		n += r.EncodedLen()
	}
	return n
}

// PageDivide splits the page in half by record count, keeping the lower
// half in the receiver and returning the upper half plus its first key
// (the separator the caller inserts into the parent branch page). The
// caller is responsible for assigning the new page id and fixing up
// prev/next leaf links and the parent pointer, since only IndexTree's
// descent holds those ids (spec §4.9 PageDivide orchestration).
//
// The midpoint is nudged forward to the next key boundary so a run of
// NON_UNIQUE records sharing a key is never split across the two pages --
// otherwise get_records for that key would have to consult both siblings.
// A page entirely filled by one key run has no boundary to nudge to, so
// it falls back to the plain half-split.
func (p *Leaf) PageDivide() (rightRecords []*record.Leaf, splitKey []byte) {
	mid := len(p.Records) / 2
	for mid > 0 && mid < len(p.Records) && bytes.Equal(p.Records[mid].Key, p.Records[mid-1].Key) {
		mid++
	}
	if mid >= len(p.Records) {
		mid = len(p.Records) / 2
	}
	rightRecords = append([]*record.Leaf(nil), p.Records[mid:]...)
	p.Records = p.Records[:mid]
	return rightRecords, append([]byte(nil), rightRecords[0].Key...)
}

// Encode serializes the page: common prefix + leaf trailer, a slot offset
// table, then record bytes back to back (spec §3/§6).
func (p *Leaf) Encode(pageSize int) ([]byte, error) {
	buf := make([]byte, pageSize)
	buf[wire.OffLevel] = byte(wire.LeafLevel)
	putUint16LE(buf, wire.OffRecordCount, uint16(len(p.Records)))
	putUint32LE(buf, wire.OffParentID, uint32(p.ParentID))
	putUint64LE(buf, wire.OffPrevLeafID, p.PrevLeafID)
	putUint64LE(buf, wire.OffNextLeafID, p.NextLeafID)

	slotTableOff := wire.LeafPrefixLen
	dataOff := slotTableOff + len(p.Records)*wire.SlotOffsetSize
	start := dataOff
	for i, r := range p.Records {
		enc, err := r.Encode()
		if err != nil {
			return nil, err
		}
		if dataOff+len(enc) > pageSize {
			return nil, rdberrs.New("cache.Leaf.Encode", rdberrs.ExceedLimit)
		}
		putUint16LE(buf, slotTableOff+i*wire.SlotOffsetSize, uint16(dataOff))
		copy(buf[dataOff:], enc)
		dataOff += len(enc)
	}
	putUint16LE(buf, wire.OffTotalDataLen, uint16(dataOff-start))

	crc := crc32.ChecksumIEEE(buf[slotTableOff:dataOff])
	putUint32LE(buf, wire.OffDataCRC32, crc)
	return buf, nil
}

// DecodeLeafPage parses a page image previously produced by Encode,
// verifying the data CRC32 (spec §6 invariant).
func DecodeLeafPage(buf []byte, pageID wire.PageID, fileID wire.FileID) (*Leaf, error) {
	if len(buf) < wire.LeafPrefixLen {
		return nil, rdberrs.New("cache.DecodeLeafPage", rdberrs.StructureError)
	}
	count := int(getUint16LE(buf, wire.OffRecordCount))
	parentID := wire.PageID(getUint32LE(buf, wire.OffParentID))
	prev := getUint64LE(buf, wire.OffPrevLeafID)
	next := getUint64LE(buf, wire.OffNextLeafID)
	wantCRC := getUint32LE(buf, wire.OffDataCRC32)

	slotTableOff := wire.LeafPrefixLen
	dataOff := slotTableOff + count*wire.SlotOffsetSize
	if dataOff > len(buf) {
		return nil, rdberrs.New("cache.DecodeLeafPage", rdberrs.StructureError)
	}

	totalLen := int(getUint16LE(buf, wire.OffTotalDataLen))
	end := dataOff + totalLen
	if end > len(buf) {
		end = len(buf)
	}
	if crc32.ChecksumIEEE(buf[slotTableOff:end]) != wantCRC {
		return nil, rdberrs.New("cache.DecodeLeafPage", rdberrs.PageCRCMismatch)
	}

	records := make([]*record.Leaf, count)
	for i := 0; i < count; i++ {
		off := int(getUint16LE(buf, slotTableOff+i*wire.SlotOffsetSize))
		if off >= len(buf) {
			return nil, rdberrs.New("cache.DecodeLeafPage", rdberrs.StructureError)
		}
		rec, err := record.DecodeLeaf(buf[off:])
		if err != nil {
			return nil, err
		}
		records[i] = rec
	}

	return &Leaf{
		Base:       Base{PageID: pageID, FileID: fileID, Kind: KindLeaf},
		ParentID:   parentID,
		PrevLeafID: prev,
		NextLeafID: next,
		Records:    records,
	}, nil
}

func putUint64LE(buf []byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		buf[off+i] = byte(v >> (8 * i))
	}
}

func getUint64LE(buf []byte, off int) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(buf[off+i]) << (8 * i)
	}
	return v
}
