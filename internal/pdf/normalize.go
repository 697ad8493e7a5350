package pdf

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/brogergvhs/lectord/internal/ui"
)

// Normalize re-encodes every page as a baseline JPEG in a fresh scratch
// directory. Reader CDNs serve a mix of webp, png and jpeg, sometimes with
// alpha; flattening them onto white keeps the assembler simple. Pages that
// fail to decode are skipped with a warning, not fatal.
func Normalize(paths []string, scratchParent string, log *ui.Logger) ([]string, string, error) {
	tmpDir, err := os.MkdirTemp(scratchParent, "pdf_ready_")
	if err != nil {
		return nil, "", fmt.Errorf("normalize scratch: %w", err)
	}

	var out []string
	for i, p := range paths {
		dst := filepath.Join(tmpDir, fmt.Sprintf("%03d.jpg", i+1))
		if err := reencodeJPEG(p, dst); err != nil {
			log.Warnf("Skipped %s in PDF: %s\n", filepath.Base(p), err.Error())
			continue
		}
		out = append(out, dst)
	}

	return out, tmpDir, nil
}

func reencodeJPEG(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return err
	}

	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	return jpeg.Encode(out, flat, &jpeg.Options{Quality: 95})
}
