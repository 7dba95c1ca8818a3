package codec

import "fmt"

// LimitCodec caps the payload size another codec will decode. Encode is
// forwarded to Inner unchanged; Decode rejects inputs longer than MaxDecode
// before Inner ever sees them. MaxDecode <= 0 disables the cap.
//
// Useful in front of a shared backend, where another writer (or a corrupt
// entry) can hand back an arbitrarily large value regardless of what this
// process ever stored.
type LimitCodec[V any] struct {
	// Inner is the codec being guarded. Must be set.
	Inner interface {
		Encode(V) ([]byte, error)
		Decode([]byte) (V, error)
	}
	// MaxDecode is the largest payload, in bytes, Decode will accept.
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
