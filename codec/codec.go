// Package codec (de)serializes typed values to the []byte the store layer
// moves around. Used by typed.Store; the transaction core itself is untyped.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
