package extraction

import (
	"fmt"
	"os"

	"meeple/internal/fileutil"
	"meeple/internal/services"
)

// admit runs the cheap adversarial-input checks that must pass before any
// subprocess is spawned: size ceiling first, then the PDF magic number. The
// declared MIME type from the upload layer is never trusted.
func admit(pdfPath string, maxBytes int64) error {
	info, err := os.Stat(pdfPath)
	if err != nil {
		return services.Wrap(services.ErrInvalidSignature, "admission", "stat", "input unreadable", err)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return services.Wrap(services.ErrFileTooLarge, "admission", "size",
			fmt.Sprintf("%d bytes exceeds ceiling %d", info.Size(), maxBytes), nil)
	}
	ok, err := fileutil.HasPDFSignature(pdfPath)
	if err != nil {
		return services.Wrap(services.ErrInvalidSignature, "admission", "signature", "input unreadable", err)
	}
	if !ok {
		return services.Wrap(services.ErrInvalidSignature, "admission", "signature", "leading bytes are not %PDF-", nil)
	}
	return nil
}
