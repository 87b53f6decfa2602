// Package utils holds the statement hashing helpers used by the tracker.
package utils

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// FingerprintString returns the fnv-64a hash of s.
func FingerprintString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// FingerprintSQL hashes sql after collapsing runs of whitespace, so the same
// statement laid out differently yields the same fingerprint. The result is
// 16 lowercase hex digits.
func FingerprintSQL(sql string) string {
	sum := FingerprintString(strings.Join(strings.Fields(sql), " "))
	s := strconv.FormatUint(sum, 16)
	if len(s) < 16 {
		s = strings.Repeat("0", 16-len(s)) + s
	}
	return s
}
