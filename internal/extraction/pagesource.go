package extraction

import (
	"bytes"
	"fmt"
	"os"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// PageSource answers page-count queries and renders single pages without
// external tools. The production implementation wraps MuPDF via go-fitz;
// tests substitute scripted fakes.
type PageSource interface {
	PageCount(pdfPath string) (int, error)
	// RenderPage rasterizes one 1-based page to a PNG at outPath.
	RenderPage(pdfPath string, page, dpi int, outPath string) error
}

// FitzSource is the MuPDF-backed PageSource.
type FitzSource struct{}

func (FitzSource) PageCount(pdfPath string) (int, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

func (FitzSource) RenderPage(pdfPath string, page, dpi int, outPath string) error {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	img, err := doc.ImageDPI(page-1, float64(dpi))
	if err != nil {
		return fmt.Errorf("render page %d: %w", page, err)
	}
	if err := imaging.Save(imaging.Clone(img), outPath); err != nil {
		return fmt.Errorf("save page %d: %w", page, err)
	}
	return nil
}

// imageObjectToken appears in the object dictionary of every embedded raster.
var imageObjectToken = []byte("/Image")

// declaresImageObjects scans the raw PDF for image XObject dictionaries. A
// miss means the embedded backend can be skipped outright; images hidden in
// compressed object streams are still recovered by page rasterization, so a
// false negative costs fidelity, not coverage.
func declaresImageObjects(pdfPath string) bool {
	// Admission has already capped the file size, so a whole-file read is
	// bounded.
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return false
	}
	return bytes.Contains(data, imageObjectToken)
}
