package record

import (
	"bytes"
	"testing"

	"github.com/google/uuid"

	"github.com/my-db-dev/RapidDB/wire"
)

func TestLeafRoundTrip(t *testing.T) {
	l := NewLeaf([]byte("key1"), 100, []byte("value1"))
	l.Versions = append(l.Versions, Version{Stamp: 50, ValueLen: 5, Value: []byte("older")})

	buf, err := l.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeLeaf(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Key, l.Key) {
		t.Fatalf("key mismatch: %q vs %q", got.Key, l.Key)
	}
	if len(got.Versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(got.Versions))
	}
	if !bytes.Equal(got.Versions[0].Value, []byte("value1")) {
		t.Fatalf("version 0 value mismatch: %q", got.Versions[0].Value)
	}
	if !bytes.Equal(got.Versions[1].Value, []byte("older")) {
		t.Fatalf("version 1 value mismatch: %q", got.Versions[1].Value)
	}
}

func TestLeafRoundTripWithOverflow(t *testing.T) {
	l := NewLeaf([]byte("k"), 10, []byte("inline"))
	l.Versions[0].Value = nil
	l.Versions[0].ValueLen = 9000
	l.Versions[0].OverflowPages = 3
	l.Versions[0].OverflowStart = wire.PageID(42)
	l.Versions[0].CRC32 = 0xdeadbeef

	buf, err := l.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeLeaf(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Versions[0].Overflow() {
		t.Fatal("expected overflow version")
	}
	if got.Versions[0].OverflowStart != 42 || got.Versions[0].OverflowPages != 3 {
		t.Fatalf("overflow descriptor mismatch: %+v", got.Versions[0])
	}
}

func TestMVCCVisibilityAndGC(t *testing.T) {
	base := NewLeaf([]byte("k"), 100, []byte("v100"))
	active := []wire.Stamp{100, 200, 300, 400, 500}

	rec := base
	for _, stamp := range []wire.Stamp{200, 300, 400, 500} {
		var pending *PendingOverflow
		rec, pending = rec.Update([]byte("v"), stamp, uuid.New(), active, 4096, 4096)
		if pending != nil {
			t.Fatal("did not expect overflow for small value")
		}
		rec.Commit(stamp)
	}

	v, deleted, found := rec.Visible(250, NilActor)
	if !found || deleted {
		t.Fatalf("expected a visible, non-deleted version at rs=250")
	}
	if v.Stamp != 200 {
		t.Fatalf("expected version stamp 200 (largest <=250), got %d", v.Stamp)
	}

	for _, ver := range rec.Versions {
		if ver.Stamp != 500 && ver.Stamp < 100 {
			t.Fatalf("GC should have dropped versions older than min active stamp: %+v", ver)
		}
	}
}

func TestBranchRoundTripUnique(t *testing.T) {
	br := NewBranch([]byte("branchkey"), wire.PageID(7))
	buf := br.Encode()
	got, err := DecodeBranch(buf, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.ChildID != 7 || !bytes.Equal(got.Key, br.Key) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestBranchRoundTripNonUnique(t *testing.T) {
	br := NewBranchWithSuffix([]byte("dup"), []byte("pk-123"), wire.PageID(9))
	buf := br.Encode()
	got, err := DecodeBranch(buf, true)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Suffix, br.Suffix) {
		t.Fatalf("suffix mismatch: %q vs %q", got.Suffix, br.Suffix)
	}
	if got.ChildID != 9 {
		t.Fatalf("child id mismatch: %d", got.ChildID)
	}
}
