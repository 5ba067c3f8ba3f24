package grove

import (
	"bytes"
	"cmp"
	"time"
)

// Compare is a total order over keys: negative when a sorts before b, zero
// when equal, positive when a sorts after b. Any other result (in particular
// a nonzero result for Compare(k, k)) marks k as unorderable and mutations
// reject it with ErrUnorderableKey.
//
// The same Compare must be used for every operation on a given tree and for
// both sides of DiffAgainst.
type Compare[K any] func(a, b K) int

// Ordered returns the default comparator for real ordered key types.
// Float NaN compares unequal to itself, so Compare(NaN, NaN) is nonzero and
// NaN keys are rejected as unorderable instead of being mis-inserted.
func Ordered[K cmp.Ordered]() Compare[K] {
	return func(a, b K) int {
		if a < b {
			return -1
		}
		if b < a {
			return 1
		}
		if a != b { // NaN
			return 2
		}
		return 0
	}
}

// Bytes orders []byte keys lexicographically.
func Bytes() Compare[[]byte] {
	return bytes.Compare
}

// Times orders time.Time keys chronologically.
func Times() Compare[time.Time] {
	return func(a, b time.Time) int {
		return a.Compare(b)
	}
}

// Reversed inverts the order of c.
func Reversed[K any](c Compare[K]) Compare[K] {
	return func(a, b K) int {
		return c(b, a)
	}
}
