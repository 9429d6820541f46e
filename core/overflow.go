package core

import (
	"github.com/my-db-dev/RapidDB/cache"
	"github.com/my-db-dev/RapidDB/record"
	"github.com/my-db-dev/RapidDB/wire"
)

// writeOverflow allocates a contiguous run of pages and writes value
// across it, returning the run's first page id for the version's
// OverflowStart descriptor (spec §4.8 "Overflow").
func (t *Tree) writeOverflow(value []byte, pageCount uint32) (wire.PageID, error) {
	start := t.allocPageRun(pageCount)
	pages := cache.EncodeOverflowRun(value, t.pageSize)
	for i, buf := range pages {
		t.eng.Storage.WritePage(wire.PageID(uint32(start)+uint32(i)), buf)
	}
	return start, nil
}

// readOverflow reads back the page run a version's descriptor points at
// and validates it.
func (t *Tree) readOverflow(v *record.Version) ([]byte, error) {
	pages := make([][]byte, v.OverflowPages)
	for i := range pages {
		buf := make([]byte, t.pageSize)
		if err := t.eng.Storage.ReadPage(wire.PageID(uint32(v.OverflowStart)+uint32(i)), buf); err != nil {
			return nil, err
		}
		pages[i] = buf
	}
	return cache.DecodeOverflowRun(pages, int(v.ValueLen))
}
