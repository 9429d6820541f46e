// Package record implements the binary record codec and MVCC version
// chain described in spec §3/§4.3: RawRecord (shared key framing),
// LeafRecord (multi-version values, optional overflow, gap lock, undo
// chain) and BranchRecord (child pointer, optional non-unique suffix).
//
// Grounded field-for-field on original_source/src/core/{RawRecord.h,
// LeafRecord.cpp,BranchRecord.h}; the teacher's length-prefixed key/value
// packing in bltree.go (insertSlot/splitPage) grounds the little-endian,
// length-prefixed wire style.
package record

import (
	"encoding/binary"

	"github.com/google/uuid"

	rdberrs "github.com/my-db-dev/RapidDB/errs"
	"github.com/my-db-dev/RapidDB/wire"
)

// Raw is the shared framing every record (leaf or branch) carries: its key
// bytes, whether it owns a private copy of its buffer ("sole", so it can
// outlive the page's latch -- design notes §9), and a reference count
// maintained by Reference/Release.
type Raw struct {
	Key      []byte
	sole     bool
	refCount int32
}

// IsSole reports whether this record owns a private buffer rather than
// borrowing the page's bytes under its latch.
func (r *Raw) IsSole() bool { return r.sole }

// detachKey copies Key into a freshly owned buffer and marks the record
// sole, so it can be held after the page's latch is released.
func (r *Raw) detachKey() {
	if r.sole {
		return
	}
	k := make([]byte, len(r.Key))
	copy(k, r.Key)
	r.Key = k
	r.sole = true
}

// Reference increments the record's refcount and returns it, mirroring
// RawRecord::ReferenceRecord in the original source.
func (r *Raw) Reference() *Raw {
	r.refCount++
	return r
}

// Release decrements the refcount; it must not go negative.
func (r *Raw) Release() {
	if r.refCount == 0 {
		panic("record: Release of unreferenced record")
	}
	r.refCount--
}

// RefCount reports the current reference count.
func (r *Raw) RefCount() int32 { return r.refCount }

func putUint16(buf []byte, off int, v uint16) { binary.LittleEndian.PutUint16(buf[off:], v) }
func getUint16(buf []byte, off int) uint16    { return binary.LittleEndian.Uint16(buf[off:]) }
func putUint32(buf []byte, off int, v uint32) { binary.LittleEndian.PutUint32(buf[off:], v) }
func getUint32(buf []byte, off int) uint32    { return binary.LittleEndian.Uint32(buf[off:]) }
func putUint64(buf []byte, off int, v uint64) { binary.LittleEndian.PutUint64(buf[off:], v) }
func getUint64(buf []byte, off int) uint64    { return binary.LittleEndian.Uint64(buf[off:]) }

// NilActor is the zero uuid.UUID, meaning "no in-flight writer".
var NilActor uuid.UUID

func checkKeyLength(key []byte, halfPagePayload int) error {
	if len(key) > halfPagePayload {
		return rdberrs.New("record.checkKeyLength", rdberrs.ExceedKeyLength)
	}
	return nil
}
