package pdf

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
)

// Build assembles the page JPEGs into a single PDF, one page per image at
// the image's own size so nothing is rescaled or padded.
func Build(imagePaths []string, outPath string) error {
	if len(imagePaths) == 0 {
		return errors.New("no images available for PDF")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}

	doc := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt"})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)

	for _, p := range imagePaths {
		w, h, err := imageSizePt(p)
		if err != nil {
			return fmt.Errorf("page %s: %w", filepath.Base(p), err)
		}

		doc.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
		doc.ImageOptions(p, 0, 0, w, h, false, fpdf.ImageOptions{ImageType: "JPG"}, 0, "")
		if doc.Err() {
			return fmt.Errorf("page %s: %w", filepath.Base(p), doc.Error())
		}
	}

	if err := doc.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}

	return nil
}

// imageSizePt reads pixel dimensions and maps them 1:1 to points at 72dpi.
func imageSizePt(path string) (float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, errors.New("empty image")
	}

	return float64(cfg.Width), float64(cfg.Height), nil
}
