package txcache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/txcache/buffer"
)

// Token is an opaque compare-and-swap handle. Tokens returned by a Tx are
// transaction-local and bound to a value snapshot; tokens returned by a
// Backend carry the store's native version. The two are never interchangeable
// across the deferred boundary.
type Token uint64

// Item is a value/token pair returned by GetMulti.
type Item struct {
	Value []byte
	Token Token
}

// Store is the key/value capability set shared by backends and transactions.
// A Tx re-exposes exactly this surface, so callers that are handed a Store
// cannot tell a buffered transaction from the real thing.
//
// Uniform failure convention: ok=false with err=nil means "not found" or
// "operation did not apply" (precondition or validation failure); err != nil
// is reserved for transport/store errors.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, token Token, ok bool, err error)
	GetMulti(ctx context.Context, keys []string) (map[string]Item, error)

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	SetMulti(ctx context.Context, items map[string][]byte, ttl time.Duration) (map[string]bool, error)
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	CompareAndSwap(ctx context.Context, token Token, key string, value []byte, ttl time.Duration) (bool, error)

	Delete(ctx context.Context, key string) (bool, error)
	DeleteMulti(ctx context.Context, keys []string) (map[string]bool, error)

	// Increment and Decrement interpret the stored value as ASCII decimal.
	// A missing key is seeded so the result equals initial; results clamp
	// at zero. offset must be > 0 and initial >= 0.
	Increment(ctx context.Context, key string, offset, initial int64, ttl time.Duration) (int64, bool, error)
	Decrement(ctx context.Context, key string, offset, initial int64, ttl time.Duration) (int64, bool, error)

	Touch(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Flush(ctx context.Context) (bool, error)
}

// Backend is a Store with a lifecycle. Implementations must be safe for
// concurrent use and byte-for-byte transparent: Get must return exactly the
// []byte previously written for the key, with no added framing visible to
// callers. ttl <= 0 means "no expiry".
type Backend interface {
	Store

	// Close releases resources.
	Close(ctx context.Context) error
}

// Options tune a transaction. Only Backend is required.
type Options struct {
	// Required
	Backend Backend

	Buffer       *buffer.Buffer // nil => fresh private buffer
	Logger       Logger         // nil => NopLogger
	Hooks        Hooks          // nil => NopHooks
	DefaultTTL   time.Duration  // applied when an operation passes ttl=0; 0 => no expiry
	CloseBackend bool           // set true only if this Tx exclusively owns the backend
}

// New constructs a transaction around opts.Backend. The returned Tx starts
// active and may be reused for a new unit of work after each Commit or
// Rollback.
func New(opts Options) (*Tx, error) {
	return newTx(opts)
}
