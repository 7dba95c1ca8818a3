package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack is a Codec backed by vmihailenco/msgpack/v5. The zero value is
// ready to use.
//
// Map-typed fields do not encode in a stable order, so two encodes of an
// equal value can differ byte-for-byte. Value snapshots (and therefore
// compare-and-swap) compare by bytes: prefer struct values here, or the
// deterministic CBOR codec when byte-stable output matters. Field naming
// follows `msgpack:"..."` tags, not `json:"..."`.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	return msgpack.Marshal(v)
}
func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
