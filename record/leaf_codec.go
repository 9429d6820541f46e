package record

import (
	rdberrs "github.com/my-db-dev/RapidDB/errs"
	"github.com/my-db-dev/RapidDB/wire"
)

// Leaf wire layout (spec §3 "Record (leaf)", little-endian):
//
//	total-len(2) | key-len(2) | suffix-len(2) | key-bytes | suffix-bytes
//	| flags(1) | per-version{stamp(8),value-len(4)} x n
//	| [overflow: crc32(4) | overflow-start-pid(4) | overflow-page-count(2)] | value-bytes...
//
// total-len counts every byte following the total-len field itself.
// suffix-len is 0 under a PRIMARY/UNIQUE index. flags low nibble = version
// count (<=15, bounded by MVCC GC); bit 0x10 set iff Versions[0] is an
// overflow version, in which case the single overflow descriptor
// immediately follows the per-version array and Versions[0] contributes
// no bytes to the trailing value-bytes blob.
const (
	flagOverflowBit = 0x10
	maxVersions     = 0x0F
)

// EncodedLen returns the byte length Encode will produce.
func (l *Leaf) EncodedLen() int {
	n := 2 + 2 + 2 + len(l.Key) + len(l.Suffix) + 1 + len(l.Versions)*(8+4)
	if len(l.Versions) > 0 && l.Versions[0].Overflow() {
		n += 4 + 4 + 2
	}
	for _, v := range l.Versions {
		if !v.Overflow() {
			n += len(v.Value)
		}
	}
	return n
}

// Encode serializes the record into a fresh byte slice.
func (l *Leaf) Encode() ([]byte, error) {
	if len(l.Versions) > maxVersions {
		return nil, rdberrs.New("record.Leaf.Encode", rdberrs.StructureError)
	}
	total := l.EncodedLen()
	buf := make([]byte, total)
	putUint16(buf, 0, uint16(total-2))
	putUint16(buf, 2, uint16(len(l.Key)))
	putUint16(buf, 4, uint16(len(l.Suffix)))
	off := 6
	copy(buf[off:], l.Key)
	off += len(l.Key)
	copy(buf[off:], l.Suffix)
	off += len(l.Suffix)

	flags := byte(len(l.Versions)) & maxVersions
	hasOverflow := len(l.Versions) > 0 && l.Versions[0].Overflow()
	if hasOverflow {
		flags |= flagOverflowBit
	}
	flagsOff := off
	buf[flagsOff] = flags
	off++

	for _, v := range l.Versions {
		putUint64(buf, off, uint64(v.Stamp))
		off += 8
		putUint32(buf, off, v.ValueLen)
		off += 4
	}

	if hasOverflow {
		v := l.Versions[0]
		putUint32(buf, off, v.CRC32)
		off += 4
		putUint32(buf, off, uint32(v.OverflowStart))
		off += 4
		putUint16(buf, off, v.OverflowPages)
		off += 2
	}

	for _, v := range l.Versions {
		if v.Overflow() {
			continue
		}
		copy(buf[off:], v.Value)
		off += len(v.Value)
	}
	return buf, nil
}

// DecodeLeaf parses a byte slice previously produced by Leaf.Encode.
// The returned record borrows buf (sole==false) until Detach is called.
func DecodeLeaf(buf []byte) (*Leaf, error) {
	if len(buf) < 7 {
		return nil, rdberrs.New("record.DecodeLeaf", rdberrs.StructureError)
	}
	total := int(getUint16(buf, 0))
	if total+2 > len(buf) {
		return nil, rdberrs.New("record.DecodeLeaf", rdberrs.StructureError)
	}
	keyLen := int(getUint16(buf, 2))
	suffixLen := int(getUint16(buf, 4))
	off := 6
	if off+keyLen+suffixLen > len(buf) {
		return nil, rdberrs.New("record.DecodeLeaf", rdberrs.StructureError)
	}
	key := buf[off : off+keyLen]
	off += keyLen
	var suffix []byte
	if suffixLen > 0 {
		suffix = buf[off : off+suffixLen]
		off += suffixLen
	}

	flags := buf[off]
	off++
	n := int(flags & maxVersions)
	hasOverflow := flags&flagOverflowBit != 0

	versions := make([]Version, n)
	for i := 0; i < n; i++ {
		versions[i].Stamp = wire.Stamp(getUint64(buf, off))
		off += 8
		versions[i].ValueLen = getUint32(buf, off)
		off += 4
	}

	if hasOverflow && n > 0 {
		versions[0].CRC32 = getUint32(buf, off)
		off += 4
		versions[0].OverflowStart = wire.PageID(getUint32(buf, off))
		off += 4
		versions[0].OverflowPages = getUint16(buf, off)
		off += 2
	}

	for i := range versions {
		if versions[i].Overflow() {
			continue
		}
		vl := int(versions[i].ValueLen)
		if off+vl > len(buf) {
			return nil, rdberrs.New("record.DecodeLeaf", rdberrs.StructureError)
		}
		versions[i].Value = buf[off : off+vl]
		off += vl
	}

	return &Leaf{Raw: Raw{Key: key}, Suffix: suffix, Versions: versions}, nil
}

// Detach copies this record's key and all inline version bytes into
// freshly owned buffers so it can safely outlive its originating page's
// latch, per design notes §9 ("records borrow page bytes ... or own their
// own copy when detached").
func (l *Leaf) Detach() *Leaf {
	if l.IsSole() {
		return l
	}
	l.detachKey()
	if l.Suffix != nil {
		cp := make([]byte, len(l.Suffix))
		copy(cp, l.Suffix)
		l.Suffix = cp
	}
	for i := range l.Versions {
		if l.Versions[i].Value != nil {
			cp := make([]byte, len(l.Versions[i].Value))
			copy(cp, l.Versions[i].Value)
			l.Versions[i].Value = cp
		}
	}
	return l
}
