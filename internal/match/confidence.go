package match

import "math"

// Confidence converts a Hamming distance into a similarity score in [0,1].
// The formula is load-bearing: operational threshold tables and stored
// project thresholds assume exactly this shape.
func Confidence(hammingDistance, bits int) float64 {
	return 1 - float64(hammingDistance)/float64(bits)
}

// MaxHammingForThreshold returns the largest Hamming distance that still
// satisfies the given confidence threshold. For every integer distance d in
// [0, bits]: Confidence(d, bits) >= threshold iff d <= MaxHammingForThreshold.
func MaxHammingForThreshold(threshold float64, bits int) int {
	return int(math.Floor((1 - threshold) * float64(bits)))
}
