package imagehash

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"meeple/internal/services"
)

// Hash is a fixed-length perceptual fingerprint of one image. The raw value
// is canonical; hex and base64 are display/storage encodings derived from it.
type Hash struct {
	Algorithm string
	Version   string
	Bits      int
	value     uint64
}

// NewHash builds a Hash from its raw value. Bits defaults to 64.
func NewHash(algorithm, version string, bitLen int, value uint64) Hash {
	if bitLen <= 0 {
		bitLen = 64
	}
	return Hash{Algorithm: algorithm, Version: version, Bits: bitLen, value: value}
}

// Raw returns the canonical integer value.
func (h Hash) Raw() uint64 {
	return h.value
}

// Hex returns the fixed-width hexadecimal encoding (width = Bits/4).
func (h Hash) Hex() string {
	return fmt.Sprintf("%0*x", h.Bits/4, h.value)
}

// Base64 returns the standard base64 encoding of the big-endian byte form.
func (h Hash) Base64() string {
	buf := make([]byte, h.Bits/8)
	binary.BigEndian.PutUint64(buf, h.value)
	return base64.StdEncoding.EncodeToString(buf)
}

// String is the operator-facing rendering: algorithm/version:hex.
func (h Hash) String() string {
	return fmt.Sprintf("%s/%s:%s", h.Algorithm, h.Version, h.Hex())
}

// FromHex reconstructs a Hash from its hex encoding.
func FromHex(algorithm, version string, bitLen int, hexValue string) (Hash, error) {
	if bitLen <= 0 {
		bitLen = 64
	}
	hexValue = strings.TrimSpace(hexValue)
	if len(hexValue) != bitLen/4 {
		return Hash{}, fmt.Errorf("hex hash must be %d characters, got %d", bitLen/4, len(hexValue))
	}
	value, err := strconv.ParseUint(hexValue, 16, 64)
	if err != nil {
		return Hash{}, fmt.Errorf("parse hex hash: %w", err)
	}
	return NewHash(algorithm, version, bitLen, value), nil
}

// FromBase64 reconstructs a Hash from its base64 encoding.
func FromBase64(algorithm, version string, bitLen int, encoded string) (Hash, error) {
	if bitLen <= 0 {
		bitLen = 64
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return Hash{}, fmt.Errorf("parse base64 hash: %w", err)
	}
	if len(raw) != bitLen/8 {
		return Hash{}, fmt.Errorf("base64 hash must decode to %d bytes, got %d", bitLen/8, len(raw))
	}
	return NewHash(algorithm, version, bitLen, binary.BigEndian.Uint64(raw)), nil
}

// Distance returns the Hamming distance between two hashes of equal bit
// length. Mismatched lengths are a programming error, never silently
// truncated or padded.
func Distance(a, b Hash) (int, error) {
	if a.Bits != b.Bits {
		return 0, services.Wrap(services.ErrIncompatibleHash, "imagehash", "distance",
			fmt.Sprintf("bit length mismatch: %d vs %d", a.Bits, b.Bits), nil)
	}
	return bits.OnesCount64(a.value ^ b.value), nil
}
