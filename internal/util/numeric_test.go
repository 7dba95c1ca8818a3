package util

import (
	"bytes"
	"testing"
)

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		err  bool
	}{
		{"0", 0, false},
		{"42", 42, false},
		{"-7", -7, false},
		{"", 0, true},
		{" 1", 0, true},
		{"1x", 0, true},
		{"1.5", 0, true},
	}
	for _, c := range cases {
		n, err := ParseDecimal([]byte(c.in))
		if (err != nil) != c.err || n != c.want {
			t.Errorf("ParseDecimal(%q) = %d, %v; want %d, err=%v", c.in, n, err, c.want, c.err)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, 99999, -3} {
		got, err := ParseDecimal(FormatDecimal(n))
		if err != nil || got != n {
			t.Errorf("round trip %d: got %d err=%v", n, got, err)
		}
	}
	if !bytes.Equal(FormatDecimal(15), []byte("15")) {
		t.Error("FormatDecimal(15) != \"15\"")
	}
}

func TestApplyDeltaClamps(t *testing.T) {
	if got := ApplyDelta(3, -10); got != 0 {
		t.Errorf("ApplyDelta(3,-10) = %d, want 0", got)
	}
	if got := ApplyDelta(3, 4); got != 7 {
		t.Errorf("ApplyDelta(3,4) = %d, want 7", got)
	}
}
