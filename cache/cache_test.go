package cache

import (
	"bytes"
	"testing"

	"github.com/my-db-dev/RapidDB/record"
	"github.com/my-db-dev/RapidDB/wire"
)

func byteCompare(a, b []byte) int { return bytes.Compare(a, b) }

func TestHeadRoundTrip(t *testing.T) {
	h := NewHead(wire.Unique, 0, 1)
	h.RootPageID = 5
	h.AddActiveStamp(10)
	h.AddActiveStamp(5)
	h.AddActiveStamp(20)

	buf := h.Encode(4096)
	got, err := DecodeHead(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.RootPageID != 5 {
		t.Fatalf("root page id mismatch: %d", got.RootPageID)
	}
	if len(got.ActiveStamps) != 3 || got.ActiveStamps[0] != 5 || got.ActiveStamps[2] != 20 {
		t.Fatalf("active stamps not sorted: %+v", got.ActiveStamps)
	}
	if got.MinActiveStamp() != 5 {
		t.Fatalf("expected min active stamp 5, got %d", got.MinActiveStamp())
	}
}

func TestOverflowRunRoundTrip(t *testing.T) {
	value := bytes.Repeat([]byte("abcdefgh"), 2000) // 16000 bytes
	pageSize := 4096

	pages := EncodeOverflowRun(value, pageSize)
	if len(pages) != int(OverflowPageCount(len(value), pageSize)) {
		t.Fatalf("page count mismatch: %d", len(pages))
	}

	got, err := DecodeOverflowRun(pages, len(value))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, value) {
		t.Fatal("overflow round trip mismatch")
	}
}

func TestOverflowRunCorruption(t *testing.T) {
	value := bytes.Repeat([]byte("x"), 5000)
	pages := EncodeOverflowRun(value, 4096)
	pages[1][10] ^= 0xFF

	if _, err := DecodeOverflowRun(pages, len(value)); err == nil {
		t.Fatal("expected crc mismatch error")
	}
}

func TestLeafPageInsertSearchEncode(t *testing.T) {
	p := NewLeafPage(3, 0, wire.NoParentPointer)
	p.InsertRecord(record.NewLeaf([]byte("ccc"), 1, []byte("v3")), byteCompare)
	p.InsertRecord(record.NewLeaf([]byte("aaa"), 1, []byte("v1")), byteCompare)
	p.InsertRecord(record.NewLeaf([]byte("bbb"), 1, []byte("v2")), byteCompare)

	if !bytes.Equal(p.Records[0].Key, []byte("aaa")) {
		t.Fatalf("expected sorted order, got first key %q", p.Records[0].Key)
	}

	idx, found := p.SearchKey([]byte("bbb"), byteCompare)
	if !found || idx != 1 {
		t.Fatalf("search mismatch idx=%d found=%v", idx, found)
	}

	if last := p.LastRecord(); last == nil || !bytes.Equal(last.Key, []byte("ccc")) {
		t.Fatalf("last record mismatch: %+v", last)
	}

	buf, err := p.Encode(4096)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeLeafPage(buf, p.PageID, p.FileID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Records) != 3 || !bytes.Equal(got.Records[1].Key, []byte("bbb")) {
		t.Fatalf("decode mismatch: %+v", got.Records)
	}
}

func TestLeafPageDivide(t *testing.T) {
	p := NewLeafPage(1, 0, wire.NoParentPointer)
	for _, k := range []string{"a", "b", "c", "d"} {
		p.InsertRecord(record.NewLeaf([]byte(k), 1, []byte("v")), byteCompare)
	}
	right, splitKey := p.PageDivide()
	if len(p.Records) != 2 || len(right) != 2 {
		t.Fatalf("expected even split, got left=%d right=%d", len(p.Records), len(right))
	}
	if !bytes.Equal(splitKey, []byte("c")) {
		t.Fatalf("unexpected split key: %q", splitKey)
	}
}

func TestBranchPageSearchAndDivide(t *testing.T) {
	p := NewBranchPage(2, 0, wire.NoParentPointer, 1, false)
	p.InsertRecord(record.NewBranch([]byte("m"), wire.PageID(10)), byteCompare)
	p.InsertRecord(record.NewBranch([]byte("a"), wire.PageID(20)), byteCompare)
	p.InsertRecord(record.NewBranch([]byte("z"), wire.PageID(30)), byteCompare)

	if idx := p.SearchKey([]byte("b"), byteCompare); idx != 0 {
		t.Fatalf("expected floor match at index 0, got %d", idx)
	}
	if idx := p.SearchKey([]byte("zz"), byteCompare); idx != 2 {
		t.Fatalf("expected floor match at last index, got %d", idx)
	}

	buf, err := p.Encode(4096)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeBranchPage(buf, p.PageID, p.FileID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Records) != 3 || got.Records[0].ChildID != 20 {
		t.Fatalf("decode mismatch: %+v", got.Records)
	}

	right, promoteKey, _ := p.PageDivide()
	if len(right) == 0 || len(promoteKey) == 0 {
		t.Fatal("expected non-empty split")
	}
}

func TestBranchPageNonUniqueSuffixOrdering(t *testing.T) {
	p := NewBranchPage(4, 0, wire.NoParentPointer, 1, true)
	p.InsertRecord(record.NewBranchWithSuffix([]byte("dup"), []byte("pk2"), 1), byteCompare)
	p.InsertRecord(record.NewBranchWithSuffix([]byte("dup"), []byte("pk1"), 2), byteCompare)

	if !bytes.Equal(p.Records[0].Suffix, []byte("pk1")) {
		t.Fatalf("expected suffix tie-break order pk1 before pk2, got %q then %q",
			p.Records[0].Suffix, p.Records[1].Suffix)
	}
	if !p.RecordExist([]byte("dup"), []byte("pk2"), byteCompare) {
		t.Fatal("expected RecordExist to find pk2 suffix")
	}
}
