package imagehash

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// Algorithm identifiers. Versions are bumped whenever the canonical
// normalization or bit derivation changes; stored fingerprints are only
// comparable within one (algorithm, version) pair.
const (
	AlgorithmDHash     = "dhash"
	AlgorithmBlockhash = "blockhash"

	DHashVersion     = "1.0.0"
	BlockhashVersion = "1.0.0"
)

type algorithmFunc func(img image.Image) uint64

type algorithm struct {
	version string
	bits    int
	compute algorithmFunc
}

// Closed algorithm set. No runtime registration: adding an algorithm is a
// code change with a version and regression vectors.
var algorithms = map[string]algorithm{
	AlgorithmDHash:     {version: DHashVersion, bits: 64, compute: dhash},
	AlgorithmBlockhash: {version: BlockhashVersion, bits: 64, compute: blockhash},
}

// SupportedAlgorithms lists the known algorithm identifiers.
func SupportedAlgorithms() []string {
	return []string{AlgorithmDHash, AlgorithmBlockhash}
}

// CurrentVersion returns the implemented version for an algorithm.
func CurrentVersion(name string) (string, bool) {
	algo, ok := algorithms[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", false
	}
	return algo.version, true
}

// Compute hashes a decoded image with the requested algorithm and version.
// It is a pure function of pixel content: file metadata never participates.
func Compute(img image.Image, name, version string) (Hash, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	algo, ok := algorithms[key]
	if !ok {
		return Hash{}, fmt.Errorf("unknown hash algorithm %q", name)
	}
	if version != "" && version != algo.version {
		return Hash{}, fmt.Errorf("algorithm %s: version %q not supported (have %s)", key, version, algo.version)
	}
	return NewHash(key, algo.version, algo.bits, algo.compute(img)), nil
}

// dhash computes a 64-bit difference hash: the image is grayscaled, resized
// to 9x8 with Lanczos resampling, and each bit records whether a pixel is
// brighter than its right neighbor. The fixed resize makes the result
// independent of source resolution.
func dhash(img image.Image) uint64 {
	small := imaging.Resize(imaging.Grayscale(img), 9, 8, imaging.Lanczos)
	var value uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			value <<= 1
			if luma(small, x, y) < luma(small, x+1, y) {
				value |= 1
			}
		}
	}
	return value
}

// blockhash computes a 64-bit average hash over an 8x8 grid: each bit records
// whether a block's brightness exceeds the global mean.
func blockhash(img image.Image) uint64 {
	small := imaging.Resize(imaging.Grayscale(img), 8, 8, imaging.Lanczos)
	var sum uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			sum += uint64(luma(small, x, y))
		}
	}
	mean := sum / 64

	var value uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			value <<= 1
			if uint64(luma(small, x, y)) > mean {
				value |= 1
			}
		}
	}
	return value
}

// luma reads the 8-bit brightness of a pixel in an imaging.Grayscale output.
// Grayscale NRGBA stores equal R/G/B, so the red channel suffices.
func luma(img *image.NRGBA, x, y int) uint8 {
	offset := img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)
	return img.Pix[offset]
}
