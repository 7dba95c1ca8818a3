package buffer

import (
	"testing"
	"time"
)

func TestStateTransitions(t *testing.T) {
	b := New()

	if _, st := b.Get("k"); st != Unknown {
		t.Fatalf("fresh key state = %v, want unknown", st)
	}

	if !b.Set("k", []byte("v"), 0) {
		t.Fatal("Set must succeed")
	}
	v, st := b.Get("k")
	if st != Present || string(v) != "v" {
		t.Fatalf("after set: state=%v v=%q", st, v)
	}

	b.Tombstone("k")
	if _, st := b.Get("k"); st != Tombstoned {
		t.Fatalf("after tombstone: state=%v", st)
	}
	if !b.IsTombstoned("k") {
		t.Fatal("IsTombstoned must report true")
	}
	if b.IsTombstoned("never") {
		t.Fatal("unknown key must not read as tombstoned")
	}

	// a write resurrects a tombstoned key
	b.Set("k", []byte("v2"), time.Minute)
	if v, st := b.Get("k"); st != Present || string(v) != "v2" {
		t.Fatalf("after re-set: state=%v v=%q", st, v)
	}
}

func TestSetCopiesValue(t *testing.T) {
	b := New()
	in := []byte("abc")
	b.Set("k", in, 0)
	in[0] = 'X'

	if v, _ := b.Get("k"); string(v) != "abc" {
		t.Fatalf("buffer shared the caller's slice: %q", v)
	}
}

func TestFlushDropsTombstones(t *testing.T) {
	b := New()
	b.Set("a", []byte("1"), 0)
	b.Tombstone("d")
	if b.Len() != 2 {
		t.Fatalf("Len=%d, want 2", b.Len())
	}

	b.Flush()
	if b.Len() != 0 {
		t.Fatalf("Len after flush=%d", b.Len())
	}
	if _, st := b.Get("d"); st != Unknown {
		t.Fatalf("tombstone survived flush: %v", st)
	}
}

func TestExpiryIsNotEnforcedLocally(t *testing.T) {
	b := New()
	b.Set("k", []byte("v"), time.Nanosecond)
	time.Sleep(2 * time.Millisecond)

	// the buffer keeps its opinion for the transaction's lifetime
	if _, st := b.Get("k"); st != Present {
		t.Fatalf("buffered value expired locally: %v", st)
	}
}
