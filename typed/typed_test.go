package typed_test

import (
	"context"
	"testing"

	"github.com/unkn0wn-root/txcache"
	"github.com/unkn0wn-root/txcache/backend/local"
	"github.com/unkn0wn-root/txcache/codec"
	"github.com/unkn0wn-root/txcache/typed"
)

type session struct {
	User  string `json:"user"`
	Seen  int    `json:"seen"`
	Admin bool   `json:"admin"`
}

func newTxStore(t *testing.T) (typed.Store[session], *txcache.Tx, *local.Backend) {
	t.Helper()
	be := local.New()
	tx, err := txcache.New(txcache.Options{Backend: be})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return typed.Wrap[session](tx, codec.JSON[session]{}), tx, be
}

func TestTypedRoundTripThroughTransaction(t *testing.T) {
	ctx := context.Background()
	st, tx, be := newTxStore(t)

	want := session{User: "ada", Seen: 3, Admin: true}
	if ok, err := st.Set(ctx, "s:1", want, 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}

	got, _, ok, err := st.Get(ctx, "s:1")
	if err != nil || !ok || got != want {
		t.Fatalf("Get before commit: got=%+v ok=%v err=%v", got, ok, err)
	}
	if be.Len() != 0 {
		t.Fatal("backend written before commit")
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// a fresh typed view over the bare backend sees the committed value
	direct := typed.Wrap[session](be, codec.JSON[session]{})
	got, _, ok, err = direct.Get(ctx, "s:1")
	if err != nil || !ok || got != want {
		t.Fatalf("Get after commit: got=%+v ok=%v err=%v", got, ok, err)
	}
}

func TestTypedCAS(t *testing.T) {
	ctx := context.Background()
	st, tx, _ := newTxStore(t)

	if _, err := st.Set(ctx, "s", session{User: "a"}, 0); err != nil {
		t.Fatal(err)
	}
	_, tok, ok, err := st.Get(ctx, "s")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if ok, err := st.CompareAndSwap(ctx, tok, "s", session{User: "b"}, 0); err != nil || !ok {
		t.Fatalf("CAS: ok=%v err=%v", ok, err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestTypedGetMulti(t *testing.T) {
	ctx := context.Background()
	st, _, _ := newTxStore(t)

	if _, err := st.SetMulti(ctx, map[string]session{
		"a": {User: "one"},
		"b": {User: "two"},
	}, 0); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetMulti(ctx, []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("GetMulti: %v", err)
	}
	if len(got) != 2 || got["a"].Value.User != "one" || got["b"].Value.User != "two" {
		t.Fatalf("GetMulti: %+v", got)
	}
}

func TestTypedDecodeErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	be := local.New()
	if _, err := be.Set(ctx, "junk", []byte("{not json"), 0); err != nil {
		t.Fatal(err)
	}
	st := typed.Wrap[session](be, codec.JSON[session]{})
	if _, _, _, err := st.Get(ctx, "junk"); err == nil {
		t.Fatal("decode error must surface, not read as a miss")
	}
}

func TestLimitCodecGuardsDecode(t *testing.T) {
	ctx := context.Background()
	be := local.New()
	big := session{User: "a-user-name-well-past-the-limit"}
	st := typed.Wrap[session](be, codec.LimitCodec[session]{
		Inner:     codec.JSON[session]{},
		MaxDecode: 8,
	})
	if ok, err := st.Set(ctx, "s", big, 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	if _, _, _, err := st.Get(ctx, "s"); err == nil {
		t.Fatal("oversized payload must fail decode")
	}
}
