package storagepool

import (
	"sync"
	"testing"

	"github.com/my-db-dev/RapidDB/wire"
)

type memBackend struct {
	mu    sync.Mutex
	pages map[wire.PageID][]byte
}

func newMemBackend() *memBackend {
	return &memBackend{pages: make(map[wire.PageID][]byte)}
}

func (m *memBackend) ReadPage(id wire.PageID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(buf, m.pages[id])
	return nil
}

func (m *memBackend) WritePage(id wire.PageID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	m.pages[id] = cp
	return nil
}

func TestReadWriteRoundTrip(t *testing.T) {
	backend := newMemBackend()
	p := NewPool(backend, 2, 2)
	defer p.Close()

	want := []byte("hello page")
	p.WritePage(5, want)
	p.Close()

	got := make([]byte, len(want))
	if err := backend.ReadPage(5, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestPendingWritesDrainsOnClose(t *testing.T) {
	backend := newMemBackend()
	p := NewPool(backend, 1, 1)

	for i := 0; i < 20; i++ {
		p.WritePage(wire.PageID(i), []byte("x"))
	}
	p.Close()

	if p.PendingWrites() != 0 {
		t.Fatalf("expected all writes drained, pending=%d", p.PendingWrites())
	}
}
