package garbage

import (
	"testing"

	"github.com/my-db-dev/RapidDB/wire"
)

func TestApplyExactAndSplitRuns(t *testing.T) {
	o := NewOwner()
	o.Release(10, 4) // [10,14)

	if id := o.Apply(4); id != 10 {
		t.Fatalf("expected exact-fit run consumed at 10, got %d", id)
	}
	if id := o.Apply(1); id != wire.PageNullPointer {
		t.Fatalf("expected PageNullPointer on empty list, got %d", id)
	}

	o.Release(20, 10) // [20,30)
	if id := o.Apply(3); id != 20 {
		t.Fatalf("expected split-run start at 20, got %d", id)
	}
	if o.Count() != 7 {
		t.Fatalf("expected 7 pages remaining after split, got %d", o.Count())
	}
}

func TestReleaseCoalescesAdjacentRuns(t *testing.T) {
	o := NewOwner()
	o.Release(10, 5)  // [10,15)
	o.Release(15, 5)  // [15,20) -- adjacent, should merge
	o.Release(100, 1) // disjoint

	if o.RunCount() != 2 {
		t.Fatalf("expected 2 runs after coalescing, got %d", o.RunCount())
	}
	if id := o.Apply(10); id != 10 {
		t.Fatalf("expected coalesced run satisfying 10-page request at 10, got %d", id)
	}
}

func TestApplyNullPointerNeverReturnedAsValidID(t *testing.T) {
	o := NewOwner()
	id := o.Apply(1)
	if id != wire.PageNullPointer {
		t.Fatalf("expected PageNullPointer sentinel, got %d", id)
	}
	if id == 0 {
		t.Fatal("PageNullPointer must never equal a real page id (0 is the head page)")
	}
}
