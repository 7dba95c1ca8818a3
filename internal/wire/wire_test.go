package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	payload := []byte("hello")
	b := Encode(42, payload)

	cas, got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cas != 42 || !bytes.Equal(got, payload) {
		t.Fatalf("cas=%d payload=%q", cas, got)
	}
}

func TestRoundTripEmptyPayload(t *testing.T) {
	b := Encode(0, nil)
	cas, got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cas != 0 || len(got) != 0 {
		t.Fatalf("cas=%d payload=%q", cas, got)
	}
}

func TestDecodeRejectsShortInput(t *testing.T) {
	for n := 0; n < 17; n++ {
		if _, _, err := Decode(make([]byte, n)); err != ErrCorrupt {
			t.Fatalf("len=%d: err=%v, want ErrCorrupt", n, err)
		}
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	b := Encode(1, []byte("x"))
	b[0] = 'Z'
	if _, _, err := Decode(b); err != ErrCorrupt {
		t.Fatalf("err=%v, want ErrCorrupt", err)
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	b := Encode(1, []byte("x"))
	b[4] = 99
	if _, _, err := Decode(b); err != ErrCorrupt {
		t.Fatalf("err=%v, want ErrCorrupt", err)
	}
}

func TestDecodeRejectsLengthOverrun(t *testing.T) {
	b := Encode(1, []byte("abc"))
	// claim a longer payload than present
	binary.BigEndian.PutUint32(b[13:17], 1<<20)
	if _, _, err := Decode(b); err != ErrCorrupt {
		t.Fatalf("err=%v, want ErrCorrupt", err)
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	b := append(Encode(7, []byte("abc")), "garbage"...)
	cas, payload, err := Decode(b)
	if err != nil || cas != 7 || string(payload) != "abc" {
		t.Fatalf("cas=%d payload=%q err=%v", cas, payload, err)
	}
}
