package fingerprint

import (
	"encoding/hex"
	"fmt"
	"image"
	"math/bits"
	"strings"

	"github.com/corona10/goimagehash"
)

// Algorithm names used as keys in a hash set. Four independent algorithms keep
// matching robust to cropping, resizing, and recompression.
const (
	AlgoAverage       = "ahash"
	AlgoDifference    = "dhash"
	AlgoPerception    = "phash"
	AlgoPerceptionExt = "phash_ext"
)

// Hashes maps an algorithm name to a fixed-width hex digest.
type Hashes map[string]string

// Compute produces the full hash set for an image.
func Compute(img image.Image) (Hashes, error) {
	ahash, err := goimagehash.AverageHash(img)
	if err != nil {
		return nil, fmt.Errorf("compute average hash: %w", err)
	}
	dhash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil, fmt.Errorf("compute difference hash: %w", err)
	}
	phash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, fmt.Errorf("compute perception hash: %w", err)
	}
	ext, err := goimagehash.ExtPerceptionHash(img, 16, 16)
	if err != nil {
		return nil, fmt.Errorf("compute extended perception hash: %w", err)
	}

	return Hashes{
		AlgoAverage:       fmt.Sprintf("%016x", ahash.GetHash()),
		AlgoDifference:    fmt.Sprintf("%016x", dhash.GetHash()),
		AlgoPerception:    fmt.Sprintf("%016x", phash.GetHash()),
		AlgoPerceptionExt: formatWords(ext.GetHash()),
	}, nil
}

func formatWords(words []uint64) string {
	var builder strings.Builder
	for _, word := range words {
		fmt.Fprintf(&builder, "%016x", word)
	}
	return builder.String()
}

// Distance returns the Hamming distance between two hex digests. Digests of
// different widths are not comparable.
func Distance(a, b string) (int, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("digest width mismatch: %d vs %d", len(a), len(b))
	}
	rawA, err := hex.DecodeString(a)
	if err != nil {
		return 0, fmt.Errorf("decode digest %q: %w", a, err)
	}
	rawB, err := hex.DecodeString(b)
	if err != nil {
		return 0, fmt.Errorf("decode digest %q: %w", b, err)
	}
	distance := 0
	for i := range rawA {
		distance += bits.OnesCount8(rawA[i] ^ rawB[i])
	}
	return distance, nil
}

// AnyDistanceWithin reports whether any algorithm shared by both hash sets has
// a Hamming distance at or below threshold. Unknown or malformed digests are
// skipped rather than treated as matches.
func AnyDistanceWithin(candidate, reference Hashes, threshold int) bool {
	for algo, digest := range candidate {
		refDigest, ok := reference[algo]
		if !ok {
			continue
		}
		distance, err := Distance(digest, refDigest)
		if err != nil {
			continue
		}
		if distance <= threshold {
			return true
		}
	}
	return false
}
