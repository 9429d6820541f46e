package cache

import (
	"hash/crc32"

	rdberrs "github.com/my-db-dev/RapidDB/errs"
	"github.com/my-db-dev/RapidDB/wire"
)

// Overflow is the decoded state of a value spilled across a contiguous run
// of pages (spec §4.3/§6: values larger than half a page's payload). Only
// the first page of the run carries Base/the header; the remaining pages
// in the run hold raw payload bytes and are never individually cached.
type Overflow struct {
	Base

	CRC32     uint32
	PageCount uint16
}

// OverflowCapacity returns how many payload bytes a single overflow page
// holds: the first page loses OverflowHeaderLen bytes to the header, every
// following page is pure payload.
func OverflowCapacity(pageSize int, pageIndex int) int {
	if pageIndex == 0 {
		return pageSize - wire.OverflowHeaderLen
	}
	return pageSize
}

// OverflowPageCount returns how many pages a value of length n needs.
func OverflowPageCount(n int, pageSize int) uint16 {
	if n <= 0 {
		return 0
	}
	first := pageSize - wire.OverflowHeaderLen
	if n <= first {
		return 1
	}
	remaining := n - first
	rest := (remaining + pageSize - 1) / pageSize
	return uint16(1 + rest)
}

// EncodeOverflowRun splits value into pageSize-sized page images, the first
// prefixed with the crc32/page-count header (spec §6 "Overflow page run
// header"). The last page is zero-padded to pageSize.
func EncodeOverflowRun(value []byte, pageSize int) [][]byte {
	count := OverflowPageCount(len(value), pageSize)
	pages := make([][]byte, count)
	sum := crc32.ChecksumIEEE(value)

	off := 0
	for i := 0; i < int(count); i++ {
		page := make([]byte, pageSize)
		cap := OverflowCapacity(pageSize, i)
		n := len(value) - off
		if n > cap {
			n = cap
		}
		start := 0
		if i == 0 {
			putOverflowHeader(page, sum, count)
			start = wire.OverflowHeaderLen
		}
		copy(page[start:], value[off:off+n])
		off += n
		pages[i] = page
	}
	return pages
}

func putOverflowHeader(page []byte, sum uint32, count uint16) {
	putUint32LE(page, wire.OffOverflowCRC32, sum)
	putUint16LE(page, wire.OffOverflowPageCount, count)
}

// DecodeOverflowRun reassembles a value from its page run and validates the
// stored CRC32, returning PageCRCMismatch on corruption (spec §6 invariant).
func DecodeOverflowRun(pages [][]byte, valueLen int) ([]byte, error) {
	if len(pages) == 0 {
		return nil, rdberrs.New("cache.DecodeOverflowRun", rdberrs.StructureError)
	}
	head := pages[0]
	if len(head) < wire.OverflowHeaderLen {
		return nil, rdberrs.New("cache.DecodeOverflowRun", rdberrs.StructureError)
	}
	wantCRC := getUint32LE(head, wire.OffOverflowCRC32)
	count := getUint16LE(head, wire.OffOverflowPageCount)
	if int(count) != len(pages) {
		return nil, rdberrs.New("cache.DecodeOverflowRun", rdberrs.StructureError)
	}

	value := make([]byte, 0, valueLen)
	for i, page := range pages {
		start := 0
		if i == 0 {
			start = wire.OverflowHeaderLen
		}
		remaining := valueLen - len(value)
		n := len(page) - start
		if n > remaining {
			n = remaining
		}
		if n > 0 {
			value = append(value, page[start:start+n]...)
		}
	}

	if crc32.ChecksumIEEE(value) != wantCRC {
		return nil, rdberrs.New("cache.DecodeOverflowRun", rdberrs.PageCRCMismatch)
	}
	return value, nil
}

func putUint32LE(buf []byte, off int, v uint32) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
}

func getUint32LE(buf []byte, off int) uint32 {
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
}

func putUint16LE(buf []byte, off int, v uint16) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
}

func getUint16LE(buf []byte, off int) uint16 {
	return uint16(buf[off]) | uint16(buf[off+1])<<8
}
