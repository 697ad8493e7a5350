package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Clip is a viewport rectangle in CSS pixels.
type Clip struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (c Clip) Empty() bool { return c.Width < 1 || c.Height < 1 }

// CaptureClip screenshots a region of the page as PNG.
func (p *Page) CaptureClip(ctx context.Context, clip Clip) ([]byte, error) {
	runCtx, cancel := p.deadline(ctx)
	defer cancel()

	exec := cdp.WithExecutor(runCtx, chromedp.FromContext(p.ctx).Target)

	buf, err := page.CaptureScreenshot().
		WithFormat(page.CaptureScreenshotFormatPng).
		WithClip(&page.Viewport{
			X:      clip.X,
			Y:      clip.Y,
			Width:  clip.Width,
			Height: clip.Height,
			Scale:  1,
		}).
		Do(exec)
	if err != nil {
		return nil, fmt.Errorf("clip screenshot: %w", err)
	}

	return buf, nil
}
