package util

import (
	"errors"
	"strconv"
)

// ErrNotNumeric marks a stored value that cannot take increment/decrement.
var ErrNotNumeric = errors.New("value is not a decimal number")

// ParseDecimal interprets a stored value as ASCII base-10, the way memcached
// does for incr/decr. Leading/trailing junk is rejected, not skipped.
func ParseDecimal(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, ErrNotNumeric
	}
	return n, nil
}

// FormatDecimal renders n the way ParseDecimal expects it back.
func FormatDecimal(n int64) []byte {
	return strconv.AppendInt(nil, n, 10)
}

// ApplyDelta applies a signed delta to cur and clamps the result at zero.
func ApplyDelta(cur, delta int64) int64 {
	n := cur + delta
	if n < 0 {
		return 0
	}
	return n
}
