package reader

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/brogergvhs/lectord/internal/browser"
	"github.com/brogergvhs/lectord/internal/config"
	"github.com/brogergvhs/lectord/internal/ui"
	"github.com/brogergvhs/lectord/internal/util"
)

const imageAcceptHeader = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"

// Acquirer turns collected targets into image files on disk. Each page walks
// a ladder: network cache, DOM force-and-decode plus cache recheck, direct
// HTTP fetch, element screenshot. Pages that survive none of it are reported
// back rather than aborting the chapter.
type Acquirer struct {
	cfg      *config.Config
	log      *ui.Logger
	cache    *browser.ResponseCache
	client   *http.Client
	progress *ui.ProgressHandle
}

func NewAcquirer(cfg *config.Config, log *ui.Logger, cache *browser.ResponseCache, client *http.Client) *Acquirer {
	return &Acquirer{cfg: cfg, log: log, cache: cache, client: client}
}

// SetProgress attaches a per-chapter bar updated as pages land.
func (a *Acquirer) SetProgress(h *ui.ProgressHandle) {
	a.progress = h
}

// Save writes every target into dir as a zero-padded page file. It returns
// the saved paths in page order and the page numbers that failed every
// attempt. fr may be nil when no reader frame was found; then only the
// direct HTTP path is available.
func (a *Acquirer) Save(ctx context.Context, pg *browser.Page, fr *browser.Frame, targets []Target, dir string) ([]string, []int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("scratch dir: %w", err)
	}

	pageURL, err := pg.CurrentURL(ctx)
	if err != nil {
		pageURL = ""
	}

	var paths []string
	var failed []int
	var bytes int64

	for _, t := range targets {
		if ctx.Err() != nil {
			return paths, failed, ctx.Err()
		}

		fp, ok := a.savePage(ctx, pg, fr, t, dir, pageURL)
		if ok {
			paths = append(paths, fp)
			if info, err := os.Stat(fp); err == nil {
				bytes += info.Size()
			}
		} else {
			failed = append(failed, t.Page)
		}

		if a.progress != nil {
			a.progress.Update(len(paths), len(targets), bytes)
		}
	}

	if len(failed) > 0 {
		a.log.Warnf("Failed to save %d/%d pages: %v\n", len(failed), len(targets), failed)
	} else {
		a.log.Debugf("All %d pages were saved.\n", len(targets))
	}

	return paths, failed, nil
}

func (a *Acquirer) savePage(ctx context.Context, pg *browser.Page, fr *browser.Frame, t Target, dir, pageURL string) (string, bool) {
	stem := filepath.Join(dir, fmt.Sprintf("%03d", t.Page))

	for attempt := 1; attempt <= a.cfg.MaxImageRetries; attempt++ {
		if fp, ok := a.fromCache(t.Key, stem); ok {
			a.logStage(t.Page, browser.StageNetworkCache)
			return fp, true
		}

		if fr != nil {
			if fp, ok := a.fromDOM(ctx, fr, t, stem, pageURL); ok {
				a.logStage(t.Page, browser.StageDirectFetch)
				return fp, true
			}
			if fp, ok := a.fromCapture(ctx, pg, fr, t.Page, stem); ok {
				a.logStage(t.Page, browser.StageCapture)
				return fp, true
			}
		} else if t.Key != "" {
			if fp, ok := a.fromHTTP(ctx, t.Key, stem, pageURL); ok {
				a.logStage(t.Page, browser.StageDirectFetch)
				return fp, true
			}
		}

		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(backoffDelay(a.cfg.RetryBaseMs, a.cfg.RetryBackoff, attempt)):
		}
	}

	return "", false
}

func (a *Acquirer) logStage(page int, st browser.Stage) {
	a.log.Debugf("Page %d acquired via %s\n", page, st)
}

// backoffDelay grows exponentially per attempt (1-based).
func backoffDelay(baseMs int, factor float64, attempt int) time.Duration {
	return time.Duration(float64(baseMs)*math.Pow(factor, float64(attempt-1))) * time.Millisecond
}

// fromCache drains a body the network listener already captured.
func (a *Acquirer) fromCache(key, stem string) (string, bool) {
	if key == "" {
		return "", false
	}
	img, ok := a.cache.Get(key)
	if !ok {
		return "", false
	}

	fp := stem + "." + img.Ext
	if err := os.WriteFile(fp, img.Data, 0o644); err != nil {
		return "", false
	}

	return fp, true
}

// fromDOM forces the page's image live in the frame, then resolves it either
// from a fresh cache entry or by fetching the resolved src directly.
func (a *Acquirer) fromDOM(ctx context.Context, fr *browser.Frame, t Target, stem, pageURL string) (string, bool) {
	src := a.forceAndResolve(ctx, fr, t, pageURL)
	if src == "" {
		return "", false
	}

	absSrc := util.AbsURL(src, pageURL)
	if fp, ok := a.fromCache(util.CanonicalKey(absSrc), stem); ok {
		return fp, true
	}

	return a.fromHTTP(ctx, absSrc, stem, pageURL)
}

func (a *Acquirer) forceAndResolve(ctx context.Context, fr *browser.Frame, t Target, pageURL string) string {
	var src *string
	selectors := anchorImgSelectors(a.cfg.ContainerSelectors, t.Page)
	if err := fr.Eval(ctx, forcePageScript(selectors), &src); err == nil && src != nil && *src != "" {
		return *src
	}

	if t.Key == "" {
		return ""
	}
	if err := fr.Eval(ctx, findByKeyScript(a.cfg.ImageSelector(), t.Key, pageURL), &src); err == nil && src != nil {
		return *src
	}

	return ""
}

// fromHTTP fetches the image over the session's HTTP client, presenting the
// reader page as referrer.
func (a *Acquirer) fromHTTP(ctx context.Context, rawURL, stem, pageURL string) (string, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("Accept", imageAcceptHeader)
	if pageURL != "" {
		req.Header.Set("Referer", pageURL)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil || len(data) == 0 {
		return "", false
	}

	fp := stem + "." + util.InferExt(rawURL, resp.Header.Get("Content-Type"))
	if err := os.WriteFile(fp, data, 0o644); err != nil {
		return "", false
	}

	return fp, true
}

// fromCapture screenshots the page's element as a last resort.
func (a *Acquirer) fromCapture(ctx context.Context, pg *browser.Page, fr *browser.Frame, pageNum int, stem string) (string, bool) {
	data, err := a.captureElement(ctx, pg, fr, pageNum)
	if err != nil || len(data) == 0 {
		return "", false
	}

	fp := stem + ".png"
	if err := os.WriteFile(fp, data, 0o644); err != nil {
		return "", false
	}

	return fp, true
}
