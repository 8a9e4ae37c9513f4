// Package imagehash computes fixed-length perceptual fingerprints of images.
//
// Two algorithms are implemented: dhash (gradient) and blockhash (mean
// threshold), both producing 64-bit values after a fixed canonical grayscale
// resize. Hashing is deterministic and depends only on pixel content, which
// makes fingerprints cacheable and regression-testable. Hex and base64
// renderings are derived from the raw integer, never computed independently.
//
// Hamming distance between equal-length hashes measures visual similarity;
// mismatched bit lengths are rejected rather than coerced.
package imagehash
