// Package buffer implements the PageBufferPool (spec §4.10): a sharded
// in-memory cache of resident pages keyed by (file id, page id), with a
// bounded-size sweep that evicts the coldest unreferenced pages when a
// shard grows past its adaptive quota.
//
// Grounded on the teacher's sharded hashTable/latchs design and clock-bit
// eviction scan in bufmgr.go's PinLatch, generalized from a single clock
// array to per-shard bounded priority queues, matching the spec's
// explicit smallest-last-access-wins sweep algorithm.
package buffer

import (
	"container/heap"
	"sync"

	"github.com/my-db-dev/RapidDB/cache"
	"github.com/my-db-dev/RapidDB/wire"
)

// Page is the minimal interface the pool needs from a resident page; all
// four cache.* page kinds satisfy it through their embedded cache.Base.
type Page interface {
	RefCount() int32
	Evictable() bool
	LastAccess() int64
	TouchAccess()
}

const shardCount = 16

const (
	minQuota     = 1000
	maxQuota     = 100000
	defaultQuota = 4000
)

type shard struct {
	mu     sync.Mutex
	pages  map[uint64]Page
	quota  int
	sweepInFlight bool
}

// Pool is the sharded page cache. Shard selection is the low bits of the
// hash key so a single hot file doesn't pin every page onto one shard.
type Pool struct {
	shards [shardCount]*shard
}

// NewPool builds an empty pool with every shard starting at defaultQuota.
func NewPool() *Pool {
	p := &Pool{}
	for i := range p.shards {
		p.shards[i] = &shard{pages: make(map[uint64]Page), quota: defaultQuota}
	}
	return p
}

func (p *Pool) shardFor(key uint64) *shard {
	return p.shards[key%shardCount]
}

// Find returns the resident page for (fileID, pageID), touching its
// access timestamp, or (nil, false) on a miss.
func (p *Pool) Find(fileID wire.FileID, pageID wire.PageID) (Page, bool) {
	key := cache.HashKey(fileID, pageID)
	s := p.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	pg, ok := s.pages[key]
	if ok {
		pg.TouchAccess()
	}
	return pg, ok
}

// Insert adds a freshly loaded page to the pool, sweeping its shard first
// if it has grown past quota. The page is always added to the shard map;
// the result is false if the shard is over quota after the insert (the
// page stays cached until a later sweep evicts it).
func (p *Pool) Insert(fileID wire.FileID, pageID wire.PageID, pg Page) bool {
	key := cache.HashKey(fileID, pageID)
	s := p.shardFor(key)

	s.mu.Lock()
	if len(s.pages) >= s.quota {
		s.mu.Unlock()
		p.sweepShard(s)
		s.mu.Lock()
	}
	s.pages[key] = pg
	cached := len(s.pages) <= s.quota
	s.mu.Unlock()
	return cached
}

// Remove evicts (fileID, pageID) unconditionally, used when a page is
// deleted/freed rather than aged out.
func (p *Pool) Remove(fileID wire.FileID, pageID wire.PageID) {
	key := cache.HashKey(fileID, pageID)
	s := p.shardFor(key)
	s.mu.Lock()
	delete(s.pages, key)
	s.mu.Unlock()
}

// EvictFile drops every resident page belonging to fileID, for close().
func (p *Pool) EvictFile(fileID wire.FileID) {
	for _, s := range p.shards {
		s.mu.Lock()
		for key, pg := range s.pages {
			if key>>32 == uint64(fileID) {
				_ = pg
				delete(s.pages, key)
			}
		}
		s.mu.Unlock()
	}
}

type evictCandidate struct {
	key        uint64
	lastAccess int64
}

type evictHeap []evictCandidate

func (h evictHeap) Len() int            { return len(h) }
func (h evictHeap) Less(i, j int) bool  { return h[i].lastAccess < h[j].lastAccess }
func (h evictHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *evictHeap) Push(x interface{}) { *h = append(*h, x.(evictCandidate)) }
func (h *evictHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// sweepShard evicts the coldest evictable pages down to half quota, then
// adapts quota per spec §4.10: grown if the sweep found almost nothing to
// evict (working set outgrew the quota), shrunk if most pages were
// reclaimed -- clamped to [quota/2, quota*2] and [minQuota, maxQuota].
// Only one sweep runs per shard at a time.
func (p *Pool) sweepShard(s *shard) {
	s.mu.Lock()
	if s.sweepInFlight {
		s.mu.Unlock()
		return
	}
	s.sweepInFlight = true
	target := len(s.pages) - s.quota/2
	if target <= 0 {
		s.sweepInFlight = false
		s.mu.Unlock()
		return
	}

	h := make(evictHeap, 0, len(s.pages))
	for key, pg := range s.pages {
		if pg.Evictable() {
			h = append(h, evictCandidate{key: key, lastAccess: pg.LastAccess()})
		}
	}
	heap.Init(&h)

	evicted := 0
	for h.Len() > 0 && evicted < target {
		c := heap.Pop(&h).(evictCandidate)
		delete(s.pages, c.key)
		evicted++
	}

	prevQuota := s.quota
	if evicted < target/2 {
		s.quota = clampQuota(prevQuota * 2)
	} else if evicted >= target {
		s.quota = clampQuota(prevQuota / 2)
	}
	s.sweepInFlight = false
	s.mu.Unlock()
}

// Sweep runs an eviction pass over every shard regardless of whether it is
// currently over quota, for the periodic (~5s) schedule Engine registers
// with Timer (spec §4.10); a shard already under half quota is a no-op.
func (p *Pool) Sweep() {
	for _, s := range p.shards {
		p.sweepShard(s)
	}
}

func clampQuota(q int) int {
	if q < minQuota {
		return minQuota
	}
	if q > maxQuota {
		return maxQuota
	}
	return q
}

// Len reports the total resident page count across all shards, for tests
// and telemetry.
func (p *Pool) Len() int {
	n := 0
	for _, s := range p.shards {
		s.mu.Lock()
		n += len(s.pages)
		s.mu.Unlock()
	}
	return n
}
