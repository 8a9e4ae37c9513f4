package extraction

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	// Decoders for everything the extraction tools can emit.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"meeple/internal/services"
)

// finalizeImage decodes one produced raster and fills in the Image record.
// Formats other than png/jpeg are transcoded to PNG so callers only ever see
// the two supported formats. A failure here drops the single file, never the
// run.
func finalizeImage(path string, page int, origin Origin) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, services.Wrap(services.ErrDecodeFailed, "extraction", "decode", filepath.Base(path), err)
	}
	cfg, format, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		return Image{}, services.Wrap(services.ErrDecodeFailed, "extraction", "decode", filepath.Base(path), err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Image{}, services.Wrap(services.ErrDecodeFailed, "extraction", "decode",
			fmt.Sprintf("%s: degenerate dimensions %dx%d", filepath.Base(path), cfg.Width, cfg.Height), nil)
	}

	if format != "png" && format != "jpeg" {
		path, format, err = transcodeToPNG(path)
		if err != nil {
			return Image{}, err
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return Image{}, services.Wrap(services.ErrDecodeFailed, "extraction", "stat", filepath.Base(path), err)
	}

	return Image{
		SourcePage: page,
		Origin:     origin,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Format:     format,
		ByteSize:   info.Size(),
		Path:       path,
	}, nil
}

func transcodeToPNG(path string) (string, string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", "", services.Wrap(services.ErrDecodeFailed, "extraction", "transcode", filepath.Base(path), err)
	}
	pngPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
	if err := imaging.Save(img, pngPath); err != nil {
		return "", "", services.Wrap(services.ErrDecodeFailed, "extraction", "transcode", filepath.Base(path), err)
	}
	_ = os.Remove(path)
	return pngPath, "png", nil
}
