package cache

import (
	"encoding/binary"
	"sort"

	rdberrs "github.com/my-db-dev/RapidDB/errs"
	"github.com/my-db-dev/RapidDB/wire"
)

// Head is the single metadata page at page id 0 (spec §4.7). Writers
// (root updates, counter bumps) take Base.Latch exclusively; readers of
// just the root pointer may take it shared.
type Head struct {
	Base

	Version   wire.FileVersion
	IndexType wire.IndexType

	TotalPageCount   uint32
	TotalRecordCount uint64
	RootPageID       wire.PageID
	BeginLeafPageID  wire.PageID
	AutoPKCounter    uint64
	CurrentStamp     wire.Stamp

	KeyVarFieldCount   uint16
	ValueVarFieldCount uint16

	// ActiveStamps is the sorted set of version stamps still needed by
	// live readers (spec §3 invariant: monotonically growing set).
	ActiveStamps []wire.Stamp
}

// NewHead builds a freshly initialised head page for create_index.
func NewHead(indexType wire.IndexType, keyVarFields, valueVarFields uint16) *Head {
	return &Head{
		Base:               Base{PageID: wire.HeadPageID, Kind: KindHead},
		Version:            wire.CompiledVersion,
		IndexType:          indexType,
		TotalPageCount:     1,
		RootPageID:         wire.PageNullPointer,
		BeginLeafPageID:    wire.PageNullPointer,
		KeyVarFieldCount:   keyVarFields,
		ValueVarFieldCount: valueVarFields,
		ActiveStamps:       []wire.Stamp{},
	}
}

// MinActiveStamp returns the smallest stamp a live reader might still
// need, or 0 if the active set is empty (spec §4.3 MVCC GC step).
func (h *Head) MinActiveStamp() wire.Stamp {
	if len(h.ActiveStamps) == 0 {
		return 0
	}
	return h.ActiveStamps[0] // kept sorted by AddActiveStamp/RemoveActiveStamp
}

// AddActiveStamp inserts a new reader stamp, keeping the set sorted.
func (h *Head) AddActiveStamp(s wire.Stamp) {
	i := sort.Search(len(h.ActiveStamps), func(i int) bool { return h.ActiveStamps[i] >= s })
	h.ActiveStamps = append(h.ActiveStamps, 0)
	copy(h.ActiveStamps[i+1:], h.ActiveStamps[i:])
	h.ActiveStamps[i] = s
}

// RemoveActiveStamp removes a completed reader's stamp.
func (h *Head) RemoveActiveStamp(s wire.Stamp) {
	i := sort.Search(len(h.ActiveStamps), func(i int) bool { return h.ActiveStamps[i] >= s })
	if i < len(h.ActiveStamps) && h.ActiveStamps[i] == s {
		h.ActiveStamps = append(h.ActiveStamps[:i], h.ActiveStamps[i+1:]...)
	}
}

// NextStamp allocates and returns the next write stamp.
func (h *Head) NextStamp() wire.Stamp {
	h.CurrentStamp++
	return h.CurrentStamp
}

// Encode serializes the head page per spec §6's on-disk layout.
func (h *Head) Encode(pageSize int) []byte {
	buf := make([]byte, pageSize)
	off := 0
	binary.LittleEndian.PutUint16(buf[off:], h.Version.Major)
	off += 2
	buf[off] = h.Version.Minor
	off++
	buf[off] = h.Version.Patch
	off++
	buf[off] = byte(h.IndexType)
	off++
	binary.LittleEndian.PutUint32(buf[off:], h.TotalPageCount)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], h.TotalRecordCount)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.RootPageID))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.BeginLeafPageID))
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], h.AutoPKCounter)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(h.CurrentStamp))
	off += 8
	binary.LittleEndian.PutUint16(buf[off:], h.KeyVarFieldCount)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], h.ValueVarFieldCount)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(h.ActiveStamps)))
	off += 4
	for _, s := range h.ActiveStamps {
		if off+8 > pageSize {
			break // padding region exhausted; active set capped by page size
		}
		binary.LittleEndian.PutUint64(buf[off:], uint64(s))
		off += 8
	}
	return buf
}

// DecodeHead parses a head page previously produced by Encode.
func DecodeHead(buf []byte) (*Head, error) {
	if len(buf) < 44 {
		return nil, rdberrs.New("cache.DecodeHead", rdberrs.StructureError)
	}
	h := &Head{Base: Base{PageID: wire.HeadPageID, Kind: KindHead}}
	off := 0
	h.Version.Major = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	h.Version.Minor = buf[off]
	off++
	h.Version.Patch = buf[off]
	off++
	h.IndexType = wire.IndexType(buf[off])
	off++
	h.TotalPageCount = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.TotalRecordCount = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	h.RootPageID = wire.PageID(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	h.BeginLeafPageID = wire.PageID(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	h.AutoPKCounter = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	h.CurrentStamp = wire.Stamp(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	h.KeyVarFieldCount = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	h.ValueVarFieldCount = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	cnt := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.ActiveStamps = make([]wire.Stamp, 0, cnt)
	for i := uint32(0); i < cnt && off+8 <= len(buf); i++ {
		h.ActiveStamps = append(h.ActiveStamps, wire.Stamp(binary.LittleEndian.Uint64(buf[off:])))
		off += 8
	}
	if !h.Version.Compatible(wire.CompiledVersion) {
		return h, rdberrs.New("cache.DecodeHead", rdberrs.IndexVersionMismatch)
	}
	return h, nil
}
