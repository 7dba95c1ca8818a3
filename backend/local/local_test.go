package local

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/txcache"
)

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	b := New()
	t.Cleanup(func() { _ = b.Close(ctx) })

	if _, _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatal("fresh backend must miss")
	}
	if ok, err := b.Set(ctx, "k", []byte("v"), 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	v, tok, ok, err := b.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" || tok == 0 {
		t.Fatalf("Get: v=%q tok=%d ok=%v err=%v", v, tok, ok, err)
	}

	if existed, _ := b.Delete(ctx, "k"); !existed {
		t.Fatal("Delete must report prior existence")
	}
	if existed, _ := b.Delete(ctx, "k"); existed {
		t.Fatal("second Delete must report nonexistence")
	}
}

func TestTokensChangePerWrite(t *testing.T) {
	ctx := context.Background()
	b := New()

	_, _ = b.Set(ctx, "k", []byte("1"), 0)
	_, tok1, _, _ := b.Get(ctx, "k")
	_, _ = b.Set(ctx, "k", []byte("2"), 0)
	_, tok2, _, _ := b.Get(ctx, "k")
	if tok1 == tok2 {
		t.Fatalf("token must change on write, both %d", tok1)
	}
}

func TestCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	b := New()

	_, _ = b.Set(ctx, "k", []byte("a"), 0)
	_, tok, _, _ := b.Get(ctx, "k")

	if ok, _ := b.CompareAndSwap(ctx, tok, "k", []byte("b"), 0); !ok {
		t.Fatal("cas with current token must apply")
	}
	if ok, _ := b.CompareAndSwap(ctx, tok, "k", []byte("c"), 0); ok {
		t.Fatal("cas with stale token must fail")
	}
	if ok, _ := b.CompareAndSwap(ctx, txcache.Token(999), "missing", []byte("x"), 0); ok {
		t.Fatal("cas on missing key must fail")
	}
	v, _, _, _ := b.Get(ctx, "k")
	if string(v) != "b" {
		t.Fatalf("value=%q, want b", v)
	}
}

func TestAddReplace(t *testing.T) {
	ctx := context.Background()
	b := New()

	if ok, _ := b.Add(ctx, "k", []byte("1"), 0); !ok {
		t.Fatal("add of missing key must succeed")
	}
	if ok, _ := b.Add(ctx, "k", []byte("2"), 0); ok {
		t.Fatal("add of existing key must fail")
	}
	if ok, _ := b.Replace(ctx, "k", []byte("3"), 0); !ok {
		t.Fatal("replace of existing key must succeed")
	}
	if ok, _ := b.Replace(ctx, "missing", []byte("4"), 0); ok {
		t.Fatal("replace of missing key must fail")
	}
}

func TestNumericOps(t *testing.T) {
	ctx := context.Background()
	b := New()

	n, ok, _ := b.Increment(ctx, "n", 5, 10, 0)
	if !ok || n != 10 {
		t.Fatalf("seeded increment: n=%d ok=%v", n, ok)
	}
	n, ok, _ = b.Increment(ctx, "n", 5, 10, 0)
	if !ok || n != 15 {
		t.Fatalf("second increment: n=%d ok=%v", n, ok)
	}
	n, ok, _ = b.Decrement(ctx, "n", 100, 0, 0)
	if !ok || n != 0 {
		t.Fatalf("clamped decrement: n=%d ok=%v", n, ok)
	}

	_, _ = b.Set(ctx, "s", []byte("text"), 0)
	if _, ok, _ := b.Increment(ctx, "s", 1, 0, 0); ok {
		t.Fatal("increment of non-numeric value must fail")
	}
	if _, ok, _ := b.Increment(ctx, "n", 0, 0, 0); ok {
		t.Fatal("zero offset must fail")
	}
}

func TestTTLExpiresOnRead(t *testing.T) {
	ctx := context.Background()
	b := New()

	_, _ = b.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	if _, _, ok, _ := b.Get(ctx, "k"); !ok {
		t.Fatal("value must be visible before expiry")
	}
	time.Sleep(20 * time.Millisecond)
	if _, _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatal("value must expire")
	}
}

func TestTouchAdjustsExpiry(t *testing.T) {
	ctx := context.Background()
	b := New()

	_, _ = b.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	if ok, _ := b.Touch(ctx, "k", time.Minute); !ok {
		t.Fatal("touch of live key must succeed")
	}
	time.Sleep(20 * time.Millisecond)
	if _, _, ok, _ := b.Get(ctx, "k"); !ok {
		t.Fatal("touched value must outlive its original TTL")
	}
	if ok, _ := b.Touch(ctx, "missing", time.Minute); ok {
		t.Fatal("touch of missing key must fail")
	}
}

func TestGetMultiAndFlush(t *testing.T) {
	ctx := context.Background()
	b := New()

	_, _ = b.SetMulti(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, 0)
	got, err := b.GetMulti(ctx, []string{"a", "b", "c"})
	if err != nil || len(got) != 2 {
		t.Fatalf("GetMulti: %v err=%v", got, err)
	}
	if string(got["a"].Value) != "1" || string(got["b"].Value) != "2" {
		t.Fatalf("values: %v", got)
	}

	if ok, _ := b.Flush(ctx); !ok {
		t.Fatal("flush must succeed")
	}
	if b.Len() != 0 {
		t.Fatalf("Len after flush = %d", b.Len())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	b := New()

	_, _ = b.Set(ctx, "k", []byte("abc"), 0)
	v, _, _, _ := b.Get(ctx, "k")
	v[0] = 'X'
	v2, _, _, _ := b.Get(ctx, "k")
	if string(v2) != "abc" {
		t.Fatalf("stored value mutated through returned slice: %q", v2)
	}
}
