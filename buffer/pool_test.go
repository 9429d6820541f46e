package buffer

import (
	"testing"
)

type fakePage struct {
	ref    int32
	access int64
}

func (f *fakePage) RefCount() int32   { return f.ref }
func (f *fakePage) Evictable() bool   { return f.ref == 0 }
func (f *fakePage) LastAccess() int64 { return f.access }
func (f *fakePage) TouchAccess()      { f.access++ }

func TestInsertAndFind(t *testing.T) {
	p := NewPool()
	pg := &fakePage{access: 1}
	p.Insert(0, 5, pg)

	got, ok := p.Find(0, 5)
	if !ok || got != Page(pg) {
		t.Fatalf("expected to find inserted page, ok=%v", ok)
	}
	if _, ok := p.Find(0, 6); ok {
		t.Fatal("expected miss for unknown page id")
	}
}

func TestRemoveAndEvictFile(t *testing.T) {
	p := NewPool()
	p.Insert(1, 1, &fakePage{})
	p.Insert(1, 2, &fakePage{})
	p.Insert(2, 1, &fakePage{})

	p.Remove(1, 1)
	if _, ok := p.Find(1, 1); ok {
		t.Fatal("expected page removed")
	}

	p.EvictFile(1)
	if _, ok := p.Find(1, 2); ok {
		t.Fatal("expected file-scoped eviction to drop page")
	}
	if _, ok := p.Find(2, 1); !ok {
		t.Fatal("expected other file's page to survive EvictFile")
	}
}

func TestSweepEvictsColdestFirst(t *testing.T) {
	s := &shard{pages: make(map[uint64]Page), quota: 4}
	for i := uint64(0); i < 4; i++ {
		s.pages[i] = &fakePage{access: int64(i)}
	}
	p := &Pool{}
	p.shards[0] = s
	for i := 1; i < shardCount; i++ {
		p.shards[i] = &shard{pages: make(map[uint64]Page), quota: defaultQuota}
	}

	p.sweepShard(s)

	if _, ok := s.pages[0]; ok {
		t.Fatal("expected coldest page (access=0) to be evicted")
	}
	if _, ok := s.pages[3]; !ok {
		t.Fatal("expected warmest page (access=3) to survive")
	}
}

func TestSweepNeverEvictsPinnedPage(t *testing.T) {
	s := &shard{pages: make(map[uint64]Page), quota: 2}
	s.pages[0] = &fakePage{ref: 1, access: 0} // pinned, coldest
	s.pages[1] = &fakePage{ref: 0, access: 5}
	s.pages[2] = &fakePage{ref: 0, access: 6}
	p := &Pool{}
	p.shards[0] = s
	for i := 1; i < shardCount; i++ {
		p.shards[i] = &shard{pages: make(map[uint64]Page), quota: defaultQuota}
	}

	p.sweepShard(s)

	if _, ok := s.pages[0]; !ok {
		t.Fatal("pinned page must never be evicted regardless of age")
	}
}
