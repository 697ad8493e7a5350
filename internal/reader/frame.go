package reader

import (
	"context"
	"time"

	"github.com/brogergvhs/lectord/internal/browser"
	"github.com/brogergvhs/lectord/internal/config"
	"github.com/brogergvhs/lectord/internal/ui"
)

// Reader drives page discovery and image loading inside a supervised tab.
type Reader struct {
	cfg *config.Config
	log *ui.Logger
}

func New(cfg *config.Config, log *ui.Logger) *Reader {
	return &Reader{cfg: cfg, log: log}
}

// Locate polls every frame of the page for the strip container, scoring
// frames by how many renderable page images they hold. A frame with three or
// more qualifying images is accepted immediately; otherwise the best scorer
// wins when the timeout runs out. Returns nil when nothing scored.
func (r *Reader) Locate(ctx context.Context, pg *browser.Page, timeout time.Duration, fallback bool) *browser.Frame {
	deadline := time.Now().Add(timeout)
	containerJS := containerProbeScript(r.cfg.ContainerSelector())
	scoreJS := scoreScript(r.cfg.ScoreSelector())

	var best *browser.Frame
	bestScore := -1

	for time.Now().Before(deadline) {
		if ctx.Err() != nil || pg.Closed() {
			break
		}

		frames, err := pg.Frames(ctx)
		if err != nil {
			pg.Sleep(400 * time.Millisecond)
			continue
		}

		for _, fr := range frames {
			var hasContainer bool
			if err := fr.Eval(ctx, containerJS, &hasContainer); err == nil && hasContainer {
				return fr
			}

			var score int
			if err := fr.Eval(ctx, scoreJS, &score); err != nil {
				continue
			}
			if score > bestScore {
				best, bestScore = fr, score
			}
		}

		if bestScore >= 3 {
			return best
		}

		pause := 400 * time.Millisecond
		if !fallback {
			pause = timeout / 40
			if pause < 100*time.Millisecond {
				pause = 100 * time.Millisecond
			}
			if pause > 200*time.Millisecond {
				pause = 200 * time.Millisecond
			}
		}
		pg.Sleep(pause)
	}

	if bestScore > 0 {
		return best
	}

	return nil
}

// WaitAnchorsStable waits until the anchor count stops growing for the
// configured settle window, falling back to counting images when the site
// has no anchors. Returns the last observed count, zero when nothing showed.
func (r *Reader) WaitAnchorsStable(ctx context.Context, fr *browser.Frame, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	settle := time.Duration(r.cfg.AnchorStableMs) * time.Millisecond
	anchorJS := countScript(r.cfg.AnchorSelector())
	imageJS := countScript(r.cfg.ImageSelector())

	lastCount := -1
	lastChange := time.Now()

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			break
		}

		var count int
		if err := fr.Eval(ctx, anchorJS, &count); err != nil {
			count = 0
		}
		if count <= 0 {
			if err := fr.Eval(ctx, imageJS, &count); err != nil {
				count = 0
			}
		}

		if count != lastCount {
			lastCount = count
			lastChange = time.Now()
		} else if count > 0 && time.Since(lastChange) >= settle {
			return count
		}

		select {
		case <-ctx.Done():
			return 0
		case <-time.After(250 * time.Millisecond):
		}
	}

	if lastCount > 0 {
		return lastCount
	}

	return 0
}

// ForceEagerLoad promotes lazy attributes so every page hits the network.
func (r *Reader) ForceEagerLoad(ctx context.Context, fr *browser.Frame) {
	_ = fr.Eval(ctx, forceEagerScript(r.cfg.ImageSelector()), nil)
}

// ScrollAnchors walks each anchor into view in reading order.
func (r *Reader) ScrollAnchors(ctx context.Context, fr *browser.Frame) {
	_ = fr.Eval(ctx, scrollAnchorsScript(r.cfg.AnchorSelector(), r.cfg.ImageSelector()), nil)
}

// DecodeAll asks the renderer to decode every strip image.
func (r *Reader) DecodeAll(ctx context.Context, fr *browser.Frame) {
	_ = fr.Eval(ctx, decodeAllScript(r.cfg.ImageSelector()), nil)
}

// AutoScrollBottom scrolls in steps until the document height is stable for
// twelve consecutive checks or the budget runs out.
func (r *Reader) AutoScrollBottom(ctx context.Context, fr *browser.Frame, maxDur time.Duration) {
	deadline := time.Now().Add(maxDur)
	prevH, stable := -1, 0

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}

		var h int
		if err := fr.Eval(ctx, scrollHeightScript, &h); err != nil {
			return
		}
		if err := fr.Eval(ctx, scrollStepScript, nil); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(200 * time.Millisecond):
		}

		if h == prevH {
			stable++
			if stable >= 12 {
				return
			}
		} else {
			prevH, stable = h, 0
		}
	}
}

// Halt stops further document loading once every page is accounted for.
func (r *Reader) Halt(ctx context.Context, pg *browser.Page) {
	_ = pg.Eval(ctx, haltScript, nil)
}

// SwitchDisplayMode forces the single-strip view in the main frame and every
// nested frame, then leaves the page a moment to reload its images.
func (r *Reader) SwitchDisplayMode(ctx context.Context, pg *browser.Page) {
	_ = pg.Eval(ctx, displayModeScript, nil)

	if frames, err := pg.Frames(ctx); err == nil {
		for _, fr := range frames {
			_ = fr.Eval(ctx, displayModeScript, nil)
		}
	}

	idle := time.Duration(r.cfg.PostSwitchIdleMs) * time.Millisecond
	if idle > 0 {
		pg.Sleep(idle)
	}
}

// AltMetadata reads the title and chapter heading on hosts without a chapter
// dropdown. Either value may be empty.
func (r *Reader) AltMetadata(ctx context.Context, pg *browser.Page) (title, chapter string) {
	var data struct {
		Title   string `json:"title"`
		Chapter string `json:"chapter"`
	}
	if err := pg.Eval(ctx, altMetadataScript(r.cfg.AltTitleSelector), &data); err != nil {
		return "", ""
	}

	return data.Title, data.Chapter
}

// ChapterLabel reads the selected option text of the chapter dropdown.
func (r *Reader) ChapterLabel(ctx context.Context, pg *browser.Page) string {
	label := r.labelFrom(ctx, func(js string, out interface{}) error {
		return pg.Eval(ctx, js, out)
	})
	if label != "" {
		return label
	}

	frames, err := pg.Frames(ctx)
	if err != nil {
		return ""
	}
	for _, fr := range frames {
		fr := fr
		label = r.labelFrom(ctx, func(js string, out interface{}) error {
			return fr.Eval(ctx, js, out)
		})
		if label != "" {
			return label
		}
	}

	return ""
}

func (r *Reader) labelFrom(_ context.Context, eval func(js string, out interface{}) error) string {
	var label *string
	if err := eval(chapterLabelScript(r.cfg.ChapterSelectSelector()), &label); err != nil || label == nil {
		return ""
	}

	return *label
}

// MetaURL reads the canonical or og:url hint from the document head.
func (r *Reader) MetaURL(ctx context.Context, pg *browser.Page) string {
	var u string
	if err := pg.Eval(ctx, metaURLScript, &u); err != nil {
		return ""
	}

	return u
}
