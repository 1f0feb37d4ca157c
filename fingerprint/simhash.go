package fingerprint

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// SimHash computes a 64-bit locality-sensitive fingerprint of text.
// Tokens are the normalized words of text, hashed with FNV-64a and folded
// into a signed bit vector. Texts that differ by a few words land a few
// bits apart.
func SimHash(text string) uint64 {
	words := strings.Fields(Normalize(text))
	if len(words) == 0 {
		return 0
	}

	var vector [64]int
	h := fnv.New64a()
	for _, word := range words {
		h.Reset()
		h.Write([]byte(word))
		sum := h.Sum64()

		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Distance returns the Hamming distance between two SimHash fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether two fingerprints are within threshold bits.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}
