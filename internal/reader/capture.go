package reader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brogergvhs/lectord/internal/browser"
)

// captureElement screenshots the nth strip image by resolving its viewport
// rectangle inside the frame and clipping the page capture to it. The rect
// is frame-relative, which matches the page for main-frame or full-bleed
// readers; tiny offsets on decorated iframes are acceptable for a fallback.
func (a *Acquirer) captureElement(ctx context.Context, pg *browser.Page, fr *browser.Frame, pageNum int) ([]byte, error) {
	return a.capture(ctx, pg, fr, pageNum, false)
}

func (a *Acquirer) capture(ctx context.Context, pg *browser.Page, fr *browser.Frame, pageNum int, strict bool) ([]byte, error) {
	var clip *browser.Clip
	if err := fr.Eval(ctx, rectScript(a.cfg.ImageSelector(), pageNum, strict), &clip); err != nil {
		return nil, err
	}
	if clip == nil || clip.Empty() {
		return nil, fmt.Errorf("page %d: no visible element", pageNum)
	}

	return pg.CaptureClip(ctx, *clip)
}

// CaptureAll screenshots every strip image in order. Used when target
// discovery produced nothing but the dropdown promised pages.
func (a *Acquirer) CaptureAll(ctx context.Context, pg *browser.Page, fr *browser.Frame, dir string, limit int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}

	var paths []string
	for i := 1; limit <= 0 || i <= limit; i++ {
		data, err := a.capture(ctx, pg, fr, i, true)
		if err != nil {
			break
		}

		fp := filepath.Join(dir, fmt.Sprintf("%03d.png", i))
		if err := os.WriteFile(fp, data, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, fp)
	}

	return paths, nil
}
