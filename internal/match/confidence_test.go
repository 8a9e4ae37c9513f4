package match

import (
	"math"
	"testing"
)

func TestMaxHammingForThresholdRegressionValues(t *testing.T) {
	cases := []struct {
		threshold float64
		want      int
	}{
		{0.90, 6},
		{0.95, 3},
		{0.99, 0},
	}
	for _, tc := range cases {
		if got := MaxHammingForThreshold(tc.threshold, 64); got != tc.want {
			t.Errorf("MaxHammingForThreshold(%v, 64) = %d, want %d", tc.threshold, got, tc.want)
		}
	}
}

func TestConfidenceKnownValues(t *testing.T) {
	if got := Confidence(0, 64); got != 1 {
		t.Fatalf("Confidence(0) = %v", got)
	}
	if got := Confidence(64, 64); got != 0 {
		t.Fatalf("Confidence(64) = %v", got)
	}
	// Distance 2 at 64 bits is the operational regression value 0.969.
	if got := Confidence(2, 64); math.Abs(got-0.96875) > 1e-12 {
		t.Fatalf("Confidence(2) = %v, want 0.96875", got)
	}
}

// The threshold formulation and the distance formulation must agree for every
// integer distance: confidence >= threshold iff distance <= maxHamming.
func TestThresholdDistanceEquivalence(t *testing.T) {
	const bitLen = 64
	for i := 0; i <= 100; i++ {
		threshold := float64(i) / 100
		maxD := MaxHammingForThreshold(threshold, bitLen)
		for d := 0; d <= bitLen; d++ {
			byConfidence := Confidence(d, bitLen) >= threshold
			byDistance := d <= maxD
			if byConfidence != byDistance {
				t.Fatalf("threshold %v, distance %d: confidence form %v, distance form %v",
					threshold, d, byConfidence, byDistance)
			}
		}
	}
}
