// Package wire frames cache values for byte-stores that cannot carry a CAS
// token natively (e.g. BigCache). The envelope is strict: anything that does
// not validate is reported as corrupt so the adapter can self-heal by
// dropping the entry.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("txcache: corrupt entry")
	magic4     = [...]byte{'T', 'X', 'K', 'V'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Envelope: magic(4) | ver(1) | cas(u64 be) | vlen(u32 be) | payload(vlen)
func Encode(cas uint64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 8 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], cas)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func Decode(b []byte) (cas uint64, payload []byte, err error) {
	const hdr = 4 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return 0, nil, ErrCorrupt
	}

	off := 5

	cas = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen > len(b)-off { // overflow-safe bound check
		return 0, nil, ErrCorrupt
	}

	return cas, b[off : off+vlen], nil
}
