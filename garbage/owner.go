// Package garbage implements the free page-id list every index file keeps
// so a deleted or reclaimed page can be reused instead of growing the file
// (spec §4.8). Unlike the teacher's single-page free chain in bufmgr.go,
// this list tracks contiguous runs of page ids, since an overflow page
// run (SPEC_FULL §12) must be released and later re-allocated as one
// block.
package garbage

import (
	"sort"
	"sync"

	"github.com/my-db-dev/RapidDB/wire"
)

// run is a contiguous span of free page ids [Start, Start+Count).
type run struct {
	Start wire.PageID
	Count uint32
}

// Owner tracks an index file's free page-id runs under a single mutex; the
// list is small and short-lived enough that a spin latch would only add
// contention, so it uses a plain sync.Mutex.
type Owner struct {
	mu   sync.Mutex
	runs []run // sorted by Start, no two runs adjacent (always coalesced)
}

// NewOwner builds an empty free list.
func NewOwner() *Owner {
	return &Owner{}
}

// Apply removes and returns the start id of a free run of at least n
// contiguous pages, or wire.PageNullPointer if none exists. Callers must
// treat PageNullPointer strictly as "no run available, bump the file's
// total page count instead" -- never as a valid page id (design notes §9,
// SPEC_FULL §9 decision on the source's Apply-failure semantics).
func (o *Owner) Apply(n uint32) wire.PageID {
	if n == 0 {
		n = 1
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, r := range o.runs {
		if r.Count < n {
			continue
		}
		start := r.Start
		if r.Count == n {
			o.runs = append(o.runs[:i], o.runs[i+1:]...)
		} else {
			o.runs[i].Start += wire.PageID(n)
			o.runs[i].Count -= n
		}
		return start
	}
	return wire.PageNullPointer
}

// Release returns a run of n contiguous pages starting at first to the
// free list, coalescing with adjacent runs on either side.
func (o *Owner) Release(first wire.PageID, n uint32) {
	if n == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	o.runs = append(o.runs, run{Start: first, Count: n})
	sort.Slice(o.runs, func(i, j int) bool { return o.runs[i].Start < o.runs[j].Start })

	merged := o.runs[:0]
	for _, r := range o.runs {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.Start+wire.PageID(last.Count) == r.Start {
				last.Count += r.Count
				continue
			}
		}
		merged = append(merged, r)
	}
	o.runs = merged
}

// Count returns the total number of free pages currently tracked, for
// telemetry and tests.
func (o *Owner) Count() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	var n uint32
	for _, r := range o.runs {
		n += r.Count
	}
	return n
}

// RunCount returns the number of distinct free runs, for tests asserting
// coalescing behavior.
func (o *Owner) RunCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.runs)
}
