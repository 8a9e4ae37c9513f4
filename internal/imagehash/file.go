package imagehash

import (
	"fmt"

	"github.com/disintegration/imaging"

	// Register additional decoders for formats embedded extraction can
	// produce.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ComputeFile decodes the image at path and hashes it. EXIF orientation is
// deliberately not applied: the hash is a function of stored pixel content
// only.
func ComputeFile(path, algorithm, version string) (Hash, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return Hash{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return Compute(img, algorithm, version)
}
