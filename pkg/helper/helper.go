// Package helper holds small stateless utilities shared across the
// engine, mirroring the teacher's own (referenced but uncaptured)
// pkg/mcast/helper package.
package helper

import "github.com/google/uuid"

// GenerateUID returns a fresh random identifier string, for an opaque
// unique token that is not itself an ObjectID or TransactionID. No
// engine package calls it.
func GenerateUID() string {
	return uuid.New().String()
}

// MaxValue returns the largest element of values, or zero for an empty
// slice. No engine package calls it.
func MaxValue(values []uint64) uint64 {
	var max uint64
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}

// BytesEqual reports whether a and b hold the same bytes.
func BytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
