package core

import (
	"fmt"
	"testing"

	"github.com/my-db-dev/RapidDB/engine"
	rdberrs "github.com/my-db-dev/RapidDB/errs"
	"github.com/my-db-dev/RapidDB/keytype"
	"github.com/my-db-dev/RapidDB/record"
	"github.com/my-db-dev/RapidDB/wire"
)

var u32Schema = keytype.Schema{Kind: keytype.Uint32}

func encodeKey(t *testing.T, v uint32) []byte {
	t.Helper()
	b, err := keytype.Encode(u32Schema, v)
	if err != nil {
		t.Fatalf("encode %d: %v", v, err)
	}
	return b
}

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.PageSize = 512
	tree, err := CreateInMemory(cfg, u32Schema, wire.Primary)
	if err != nil {
		t.Fatalf("CreateInMemory: %v", err)
	}
	t.Cleanup(func() { _ = tree.Close() })
	return tree
}

func newTestTreeNonUnique(t *testing.T) *Tree {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.PageSize = 512
	tree, err := CreateInMemory(cfg, u32Schema, wire.NonUnique)
	if err != nil {
		t.Fatalf("CreateInMemory: %v", err)
	}
	t.Cleanup(func() { _ = tree.Close() })
	return tree
}

func TestInsertFindRoundTrip(t *testing.T) {
	tree := newTestTree(t)

	key := encodeKey(t, 42)
	if err := tree.Insert(key, []byte("hello"), record.NilActor); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rs, done := tree.BeginRead()
	defer done()
	val, found, err := tree.Find(key, rs, record.NilActor)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !found || string(val) != "hello" {
		t.Fatalf("Find returned (%q, %v), want (hello, true)", val, found)
	}
}

func TestInsertManyTriggersSplit(t *testing.T) {
	tree := newTestTree(t)

	const n = 200
	for i := 0; i < n; i++ {
		key := encodeKey(t, uint32(i))
		if err := tree.Insert(key, []byte(fmt.Sprintf("value-%d", i)), record.NilActor); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	rs, done := tree.BeginRead()
	defer done()
	for i := 0; i < n; i++ {
		key := encodeKey(t, uint32(i))
		val, found, err := tree.Find(key, rs, record.NilActor)
		if err != nil {
			t.Fatalf("Find(%d): %v", i, err)
		}
		if !found || string(val) != fmt.Sprintf("value-%d", i) {
			t.Fatalf("Find(%d) = (%q, %v)", i, val, found)
		}
	}

	out, err := tree.RangeScan(nil, nil, rs, record.NilActor)
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	if len(out) != n {
		t.Fatalf("RangeScan returned %d records, want %d", len(out), n)
	}
	for i, kv := range out {
		if string(kv.Value) != fmt.Sprintf("value-%d", i) {
			t.Fatalf("RangeScan[%d] = %q, want value-%d (scan order broken)", i, kv.Value, i)
		}
	}
}

func TestDeleteRemovesVisibility(t *testing.T) {
	tree := newTestTree(t)

	key := encodeKey(t, 7)
	if err := tree.Insert(key, []byte("v"), record.NilActor); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	ok, err := tree.Delete(key, record.NilActor)
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}

	rs, done := tree.BeginRead()
	defer done()
	_, found, err := tree.Find(key, rs, record.NilActor)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found {
		t.Fatalf("Find after Delete reported found=true")
	}
}

func TestDeleteOfMissingKeyReportsNotFound(t *testing.T) {
	tree := newTestTree(t)
	ok, err := tree.Delete(encodeKey(t, 123), record.NilActor)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok {
		t.Fatalf("Delete of never-inserted key reported ok=true")
	}
}

func TestRollbackActorUndoesWrite(t *testing.T) {
	tree := newTestTree(t)

	key := encodeKey(t, 1)
	actor := tree.BeginActor()
	if err := tree.Insert(key, []byte("staged"), actor); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rs, done := tree.BeginRead()
	_, found, err := tree.Find(key, rs, record.NilActor)
	done()
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found {
		t.Fatalf("uncommitted write visible to other readers")
	}

	if err := tree.RollbackActor(actor); err != nil {
		t.Fatalf("RollbackActor: %v", err)
	}

	rs2, done2 := tree.BeginRead()
	defer done2()
	_, found, err = tree.Find(key, rs2, record.NilActor)
	if err != nil {
		t.Fatalf("Find after rollback: %v", err)
	}
	if found {
		t.Fatalf("key still present after rollback of its only write")
	}
}

func TestCommitActorMakesWriteVisible(t *testing.T) {
	tree := newTestTree(t)

	key := encodeKey(t, 2)
	actor := tree.BeginActor()
	if err := tree.Insert(key, []byte("staged"), actor); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.CommitActor(actor); err != nil {
		t.Fatalf("CommitActor: %v", err)
	}

	rs, done := tree.BeginRead()
	defer done()
	val, found, err := tree.Find(key, rs, record.NilActor)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !found || string(val) != "staged" {
		t.Fatalf("Find after commit = (%q, %v), want (staged, true)", val, found)
	}
}

func TestOverflowValueRoundTrip(t *testing.T) {
	tree := newTestTree(t)

	key := encodeKey(t, 9)
	big := make([]byte, 2000)
	for i := range big {
		big[i] = byte(i)
	}
	if err := tree.Insert(key, big, record.NilActor); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rs, done := tree.BeginRead()
	defer done()
	val, found, err := tree.Find(key, rs, record.NilActor)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !found || len(val) != len(big) {
		t.Fatalf("Find returned len=%d found=%v, want len=%d", len(val), found, len(big))
	}
	for i := range big {
		if val[i] != big[i] {
			t.Fatalf("overflow value mismatch at byte %d", i)
		}
	}
}

func TestUpdateReplacesValue(t *testing.T) {
	tree := newTestTree(t)

	key := encodeKey(t, 5)
	if err := tree.Insert(key, []byte("v1"), record.NilActor); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Update(key, []byte("v2"), record.NilActor); err != nil {
		t.Fatalf("Update: %v", err)
	}

	rs, done := tree.BeginRead()
	defer done()
	val, found, err := tree.Find(key, rs, record.NilActor)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !found || string(val) != "v2" {
		t.Fatalf("Find = (%q, %v), want (v2, true)", val, found)
	}
}

func TestInsertRejectsDuplicateKey(t *testing.T) {
	tree := newTestTree(t)

	key := encodeKey(t, 5)
	if err := tree.Insert(key, []byte("v1"), record.NilActor); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	err := tree.Insert(key, []byte("v2"), record.NilActor)
	if err == nil {
		t.Fatalf("Insert of duplicate key succeeded, want CORE_REPEATED_RECORD error")
	}
	if code, ok := rdberrs.CodeOf(err); !ok || code != rdberrs.RepeatedRecord {
		t.Fatalf("Insert of duplicate key returned %v, want RepeatedRecord", err)
	}

	rs, done := tree.BeginRead()
	defer done()
	val, found, findErr := tree.Find(key, rs, record.NilActor)
	if findErr != nil {
		t.Fatalf("Find: %v", findErr)
	}
	if !found || string(val) != "v1" {
		t.Fatalf("Find after rejected duplicate insert = (%q, %v), want (v1, true)", val, found)
	}
}

func TestNonUniqueGetRecordsReturnsAllSuffixes(t *testing.T) {
	tree := newTestTreeNonUnique(t)

	key := encodeKey(t, 11)
	rows := []struct {
		suffix []byte
		value  string
	}{
		{[]byte("a"), "row-a"},
		{[]byte("b"), "row-b"},
		{[]byte("c"), "row-c"},
	}
	for _, row := range rows {
		if err := tree.InsertNonUnique(key, row.suffix, []byte(row.value), record.NilActor); err != nil {
			t.Fatalf("InsertNonUnique(%s): %v", row.suffix, err)
		}
	}

	// A second insert under the same (key, suffix) pair must be rejected.
	err := tree.InsertNonUnique(key, rows[0].suffix, []byte("row-a-again"), record.NilActor)
	if code, ok := rdberrs.CodeOf(err); !ok || code != rdberrs.RepeatedRecord {
		t.Fatalf("InsertNonUnique of duplicate (key, suffix) returned %v, want RepeatedRecord", err)
	}

	rs, done := tree.BeginRead()
	defer done()
	out, err := tree.GetRecords(key, rs, record.NilActor)
	if err != nil {
		t.Fatalf("GetRecords: %v", err)
	}
	if len(out) != len(rows) {
		t.Fatalf("GetRecords returned %d records, want %d", len(out), len(rows))
	}
	seen := map[string]bool{}
	for _, kv := range out {
		seen[string(kv.Value)] = true
	}
	for _, row := range rows {
		if !seen[row.value] {
			t.Fatalf("GetRecords missing value %q", row.value)
		}
	}
}
