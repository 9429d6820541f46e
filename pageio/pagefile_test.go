package pageio

import (
	"bytes"
	"testing"

	"github.com/my-db-dev/RapidDB/wire"
)

func TestMemoryPageFileRoundTrip(t *testing.T) {
	pf := OpenMemory(4096)
	defer pf.Close()

	buf := bytes.Repeat([]byte{0xAB}, 4096)
	if err := pf.WritePage(wire.PageID(3), buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	out := make([]byte, 4096)
	if err := pf.ReadPage(wire.PageID(3), out); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(buf, out) {
		t.Fatal("round trip mismatch")
	}
}

func TestSlabApplyReleaseAndCeiling(t *testing.T) {
	s := NewSlab(8192)
	b1, err := s.Apply(4096)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Apply(4096 + 1); err == nil {
		t.Fatal("expected ceiling to reject oversized second allocation")
	}
	s.Release(b1, 4096)
	if _, err := s.Apply(4096); err != nil {
		t.Fatalf("expected reuse after release: %v", err)
	}
}
