package job

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/lectord/internal/browser"
	"github.com/brogergvhs/lectord/internal/config"
	"github.com/brogergvhs/lectord/internal/pdf"
	"github.com/brogergvhs/lectord/internal/reader"
	"github.com/brogergvhs/lectord/internal/ui"
	"github.com/brogergvhs/lectord/internal/util"
)

// Request describes one download job, already parsed from user input.
type Request struct {
	StartURL string
	Title    string
	OutDir   string
	Mode     Mode
	Payload  []string
}

// Runner owns a browser session for the lifetime of one job and walks its
// chapters sequentially through it.
type Runner struct {
	cfg   *config.Config
	log   *ui.Logger
	block browser.Blocker
	stats *ui.Stats
	pm    *ui.ProgressManager
}

func NewRunner(cfg *config.Config, log *ui.Logger, block browser.Blocker, stats *ui.Stats) *Runner {
	return &Runner{cfg: cfg, log: log, block: block, stats: stats}
}

// SetProgress attaches the shared bar container; each chapter registers its
// own bar against it.
func (r *Runner) SetProgress(pm *ui.ProgressManager) {
	r.pm = pm
}

// Run executes the job and returns one result per chapter attempted.
func (r *Runner) Run(ctx context.Context, req Request) ([]ChapterResult, error) {
	session, err := browser.NewSession(ctx, r.cfg, r.log, r.block)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	session.AllowHost(req.StartURL)
	policy := session.Policy()

	title := req.Title
	if title == "" {
		title = DeriveTitleFromURL(req.StartURL)
	}
	base := DeriveSeriesBase(req.StartURL, policy)

	var results []ChapterResult
	switch req.Mode {
	case ModeSingle:
		token := ExtractChapterToken(req.StartURL)
		results = append(results, r.downloadWithRetries(ctx, session, req.StartURL, title, req.OutDir, token))

	case ModeList:
		for _, token := range req.Payload {
			chapterURL := BuildChapterURL(base, token, policy)
			r.log.Infof("=== Chapter %s ===\n", token)
			results = append(results, r.downloadWithRetries(ctx, session, chapterURL, title, req.OutDir, token))
		}

	case ModeNextN:
		n, err := nextNCount(req.Payload)
		if err != nil {
			return nil, err
		}
		sequence := r.chapterWindow(ctx, session, req.StartURL, n)
		if len(sequence) == 0 {
			return nil, fmt.Errorf("no chapters discovered from %s", req.StartURL)
		}

		startToken := ExtractChapterToken(req.StartURL)
		for i, token := range sequence {
			chapterURL := BuildChapterURL(base, token, policy)
			if i == 0 && token == startToken {
				chapterURL = req.StartURL
			}
			r.log.Infof("=== Chapter %s ===\n", token)
			results = append(results, r.downloadWithRetries(ctx, session, chapterURL, title, req.OutDir, token))
		}

	default:
		return nil, fmt.Errorf("unknown mode %q", req.Mode)
	}

	return results, nil
}

// nextNCount parses the chapter count a nextN payload carries. Requests built
// by ParseSequenceInput always carry one; hand-built requests may not.
func nextNCount(payload []string) (int, error) {
	if len(payload) == 0 {
		return 0, fmt.Errorf("nextN request carries no chapter count")
	}
	n := 0
	fmt.Sscanf(payload[0], "%d", &n)
	if n <= 0 {
		return 0, fmt.Errorf("invalid chapter count %q", payload[0])
	}

	return n, nil
}

// chapterWindow resolves the nextN sequence: available tokens sorted, then a
// forward window from the start chapter, wrapping when the tail runs short.
func (r *Runner) chapterWindow(ctx context.Context, session *browser.Session, startURL string, n int) []string {
	available := r.fetchAvailableChapters(ctx, session, startURL)
	startToken := ExtractChapterToken(startURL)

	if startToken != "" {
		found := false
		for _, tok := range available {
			if tok == startToken {
				found = true
				break
			}
		}
		if !found {
			available = append(available, startToken)
		}
	}
	available = SortChapterTokens(available)

	window := ForwardWindow(available, startToken, n)
	if len(window) == 0 && startToken != "" {
		window = []string{startToken}
	}

	return window
}

// fetchAvailableChapters reads the chapter dropdown in the browser, falling
// back to a plain HTTP fetch parsed with goquery when the page refuses to
// render.
func (r *Runner) fetchAvailableChapters(ctx context.Context, session *browser.Session, chapterURL string) []string {
	tokens := r.chaptersViaBrowser(ctx, session, chapterURL)
	if len(tokens) == 0 {
		tokens = r.chaptersViaHTTP(ctx, chapterURL)
	}

	return util.UniquePreserve(tokens)
}

func (r *Runner) chaptersViaBrowser(ctx context.Context, session *browser.Session, chapterURL string) []string {
	pg, err := session.NewPage(ctx)
	if err != nil {
		r.log.Debugf("Chapter discovery page failed: %s\n", err.Error())
		return nil
	}
	defer pg.Close()

	gotoCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()
	if err := pg.Goto(gotoCtx, util.WithPageFragment(chapterURL)); err != nil {
		r.log.Debugf("Chapter discovery navigation failed: %s\n", err.Error())
		return nil
	}
	pg.Sleep(800 * time.Millisecond)

	rd := reader.New(r.cfg, r.log)

	var tokens []string
	for _, entry := range rd.ChapterEntries(ctx, pg) {
		if util.IsChapterToken(entry.Value) {
			tokens = append(tokens, entry.Value)
			continue
		}
		if tok := LabelToToken(entry.Text); util.IsChapterToken(tok) {
			tokens = append(tokens, tok)
		}
	}

	return tokens
}

func (r *Runner) chaptersViaHTTP(ctx context.Context, chapterURL string) []string {
	client, err := r.httpClient()
	if err != nil {
		return nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, chapterURL, nil)
	if err != nil {
		return nil
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil
	}

	var tokens []string
	doc.Find(r.cfg.ChapterSelectSelector()).Find("option").Each(func(_ int, opt *goquery.Selection) {
		val := strings.TrimSpace(opt.AttrOr("value", ""))
		if util.IsChapterToken(val) {
			tokens = append(tokens, val)
			return
		}
		if tok := LabelToToken(strings.TrimSpace(opt.Text())); util.IsChapterToken(tok) {
			tokens = append(tokens, tok)
		}
	})

	return tokens
}

// downloadWithRetries runs the chapter pipeline up to the configured attempt
// budget, resetting the network cache between attempts.
func (r *Runner) downloadWithRetries(ctx context.Context, session *browser.Session, chapterURL, title, outDir, expectedToken string) ChapterResult {
	var last ChapterResult

	attempts := r.cfg.ChapterRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		session.Cache.Reset()

		res := r.processChapter(ctx, session, chapterURL, title, outDir, expectedToken)
		if res.Success {
			r.recordStats(res)
			return res
		}
		last = res

		msg := res.Message
		if msg == "" {
			msg = "unknown error"
		}
		r.log.Warnf("Attempt %d failed for %s: %s\n", attempt, chapterURL, msg)

		if attempt < attempts {
			delay := time.Duration(r.cfg.ChapterBackoffSec*float64(attempt)) * time.Second
			select {
			case <-ctx.Done():
				return last
			case <-time.After(delay):
			}
		}
	}

	if last.Chapter == "" {
		label := expectedToken
		if label == "" {
			label = ExtractChapterToken(chapterURL)
		}
		if label == "" {
			label = "NA"
		}
		last = ChapterResult{Chapter: label, Message: "Retries exhausted."}
	}

	return last
}

func (r *Runner) recordStats(res ChapterResult) {
	if r.stats == nil {
		return
	}
	r.stats.TotalChapters.Add(1)
	r.stats.TotalPages.Add(int64(res.Pages))
	r.stats.TotalBytes.Add(res.SizeBytes)
}

// processChapter runs one chapter end to end: navigate under guard, force
// the strip to load, collect targets, acquire images, assemble and validate
// the PDF.
func (r *Runner) processChapter(ctx context.Context, session *browser.Session, chapterURL, title, outDir, expectedToken string) ChapterResult {
	session.AllowHost(chapterURL)

	pg, err := session.NewPage(ctx)
	if err != nil {
		return ChapterResult{Chapter: fallbackLabel(expectedToken, chapterURL), Message: err.Error()}
	}
	defer pg.Close()

	targetURL := util.WithPageFragment(chapterURL)

	guardCtx, stopGuard := context.WithCancel(ctx)
	defer stopGuard()
	guard := browser.NewGuard(pg, session.Policy(), r.log)
	guard.SetTarget(targetURL)
	go guard.Run(guardCtx, pg.NavEvents())

	gotoCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.ReadyTimeoutMs)*time.Millisecond)
	err = pg.Goto(gotoCtx, targetURL)
	cancel()
	if err != nil {
		return ChapterResult{Chapter: fallbackLabel(expectedToken, chapterURL), Message: fmt.Sprintf("navigation failed: %s", err)}
	}
	guard.Verify(ctx)

	currentURL, _ := pg.CurrentURL(ctx)
	r.log.Debugf("Current page URL after initial navigation: %s\n", currentURL)

	rd := reader.New(r.cfg, r.log)

	effectiveTitle := title
	altLabel := ""
	if r.cfg.AltHostSuffix != "" && strings.HasSuffix(util.HostOf(currentURL), r.cfg.AltHostSuffix) {
		metaTitle, metaChapter := rd.AltMetadata(ctx, pg)
		if metaTitle != "" {
			effectiveTitle = metaTitle
		}
		altLabel = metaChapter
	}

	rd.SwitchDisplayMode(ctx, pg)

	readyTimeout := time.Duration(r.cfg.ReadyTimeoutMs) * time.Millisecond
	fr := rd.Locate(ctx, pg, readyTimeout, false)

	client, err := r.primedClient(ctx, pg, currentURL)
	if err != nil {
		return ChapterResult{Chapter: fallbackLabel(expectedToken, chapterURL), Message: err.Error()}
	}
	acq := reader.NewAcquirer(r.cfg, r.log, session.Cache, client)

	if fr == nil {
		return r.chapterWithoutFrame(ctx, pg, rd, acq, targetURL, effectiveTitle, outDir, expectedToken, altLabel)
	}

	expected := rd.WaitAnchorsStable(ctx, fr, readyTimeout)
	if expected <= 0 {
		r.log.Warnf("Page anchors were not detected in the viewer.\n")
	}

	rd.ForceEagerLoad(ctx, fr)
	rd.ScrollAnchors(ctx, fr)
	rd.DecodeAll(ctx, fr)
	rd.AutoScrollBottom(ctx, fr, time.Duration(r.cfg.ScrollMaxMs)*time.Millisecond)

	targets, expected := r.resolveTargets(ctx, pg, rd, fr, currentURL, expected)

	rd.Halt(ctx, pg)

	label := r.chapterLabel(ctx, rd, pg, targetURL, expectedToken, altLabel)
	fileTitle := util.SanitizeFilename(effectiveTitle)
	outPDF := filepath.Join(outDir, fmt.Sprintf("Ch%s - %s.pdf", label, fileTitle))
	tmpDir := filepath.Join(outDir, util.ScratchPrefix+label)

	if r.pm != nil {
		handle := r.pm.Register("Ch" + label)
		handle.SetTotal(expected)
		defer handle.MarkDone()
		acq.SetProgress(handle)
	}

	paths, failed, err := acq.Save(ctx, pg, fr, targets, tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		return ChapterResult{Chapter: label, Message: err.Error()}
	}
	if len(failed) > 0 && r.cfg.HardFailOnMissing {
		os.RemoveAll(tmpDir)
		return ChapterResult{Chapter: label, Message: fmt.Sprintf("missing %d pages: %v", len(failed), failed)}
	}
	if len(paths) == 0 {
		r.log.Warnf("Falling back to screenshots (targets=%d, expected=%d).\n", len(targets), expected)
		paths, _ = acq.CaptureAll(ctx, pg, fr, tmpDir, expected)
		if len(paths) == 0 {
			os.RemoveAll(tmpDir)
			return ChapterResult{Chapter: label, Message: "No images could be saved."}
		}
		if expected == 0 {
			expected = len(paths)
		}
	}

	return r.assemble(label, paths, expected, outPDF, tmpDir)
}

// chapterWithoutFrame handles readers that never produce a locatable strip:
// pages come from the page dropdown or, failing that, raw screenshots.
func (r *Runner) chapterWithoutFrame(ctx context.Context, pg *browser.Page, rd *reader.Reader, acq *reader.Acquirer, targetURL, title, outDir, expectedToken, altLabel string) ChapterResult {
	label := r.chapterLabel(ctx, rd, pg, targetURL, expectedToken, altLabel)
	fileTitle := util.SanitizeFilename(title)
	outPDF := filepath.Join(outDir, fmt.Sprintf("Ch%s - %s.pdf", label, fileTitle))
	tmpDir := filepath.Join(outDir, util.ScratchPrefix+label)

	currentURL, _ := pg.CurrentURL(ctx)

	if r.pm != nil {
		handle := r.pm.Register("Ch" + label)
		defer handle.MarkDone()
		acq.SetProgress(handle)
	}

	var paths []string
	expected := 0

	if optURLs := rd.PageSelectValues(ctx, pg); len(optURLs) > 0 {
		expected = len(optURLs)
		targets := reader.SelectTargetsLoose(optURLs, currentURL)
		paths, _, _ = acq.Save(ctx, pg, nil, targets, tmpDir)
	}

	if len(paths) == 0 {
		r.log.Warnf("Reader frame missing; using screenshot fallback (expected=%d).\n", expected)
		if frames, err := pg.Frames(ctx); err == nil && len(frames) > 0 {
			paths, _ = acq.CaptureAll(ctx, pg, frames[0], tmpDir, expected)
		}
		if len(paths) == 0 {
			os.RemoveAll(tmpDir)
			return ChapterResult{Chapter: label, Message: "Could not collect image targets for chapter."}
		}
		if expected == 0 {
			expected = len(paths)
		}
	}

	return r.assemble(label, paths, expected, outPDF, tmpDir)
}

// resolveTargets prefers the page dropdown's explicit list, then the DOM
// collection, capped at whichever expected count is known.
func (r *Runner) resolveTargets(ctx context.Context, pg *browser.Page, rd *reader.Reader, fr *browser.Frame, baseURL string, anchorCount int) ([]reader.Target, int) {
	selectExpected := 0
	var selectTargets []reader.Target

	if optURLs := rd.PageSelectValues(ctx, pg); len(optURLs) > 0 {
		selectExpected = len(optURLs)
		r.log.Debugf("Page dropdown provided %d options.\n", selectExpected)

		selectTargets = reader.Dedupe(reader.SelectTargets(optURLs, baseURL), selectExpected)
		r.log.Debugf("Page dropdown yielded %d usable targets.\n", len(selectTargets))
	}

	expected := anchorCount
	if selectExpected > 0 {
		expected = selectExpected
	}

	targets := selectTargets
	if len(targets) == 0 {
		collected := rd.CollectStable(ctx, pg, fr, baseURL, expected)
		deduped := reader.Dedupe(collected, selectExpected)
		if len(deduped) > 0 {
			targets = deduped
		} else {
			targets = collected
		}
		r.log.Debugf("Using %d targets after dedupe.\n", len(targets))
	}

	if expected == 0 {
		expected = len(targets)
	} else if len(targets) > expected {
		targets = targets[:expected]
	}

	return targets, expected
}

// chapterLabel settles the chapter number from the strongest available hint:
// expected token, target URL, canonical/og URL, current URL, dropdown label,
// alt-host heading.
func (r *Runner) chapterLabel(ctx context.Context, rd *reader.Reader, pg *browser.Page, targetURL, expectedToken, altLabel string) string {
	candidates := []string{expectedToken, ExtractChapterToken(targetURL)}

	if meta := rd.MetaURL(ctx, pg); meta != "" {
		candidates = append(candidates, ExtractChapterToken(meta))
	}
	if cur, err := pg.CurrentURL(ctx); err == nil {
		candidates = append(candidates, ExtractChapterToken(cur))
	}
	if label := rd.ChapterLabel(ctx, pg); label != "" {
		candidates = append(candidates, LabelToToken(label))
	}
	if altLabel != "" {
		candidates = append(candidates, LabelToToken(altLabel))
	}

	for _, c := range candidates {
		if util.IsChapterToken(c) {
			if s := util.SanitizeFilename(c); s != "" {
				return s
			}
		}
	}

	return "NA"
}

// assemble normalizes, builds and validates the PDF, cleaning scratch state
// on every exit path.
func (r *Runner) assemble(label string, paths []string, expected int, outPDF, tmpDir string) ChapterResult {
	jpegs, normTmp, err := pdf.Normalize(paths, filepath.Dir(tmpDir), r.log)
	defer func() {
		os.RemoveAll(tmpDir)
		if normTmp != "" {
			os.RemoveAll(normTmp)
		}
	}()
	if err != nil {
		return ChapterResult{Chapter: label, Message: err.Error()}
	}
	if len(jpegs) == 0 {
		return ChapterResult{Chapter: label, Message: "No images available after normalisation."}
	}

	r.log.Infof("Generating PDF: %s\n", filepath.Base(outPDF))
	if err := pdf.Build(jpegs, outPDF); err != nil {
		return ChapterResult{Chapter: label, Message: err.Error()}
	}

	if expected == 0 {
		expected = len(jpegs)
	}
	report := pdf.Validate(outPDF, expected, pdf.Limits{
		MinSizeBytes:       r.cfg.PDFMinSizeBytes,
		MinPageBytes:       r.cfg.PDFMinPageBytes,
		MinTotalForMulti:   r.cfg.PDFMinTotalForMulti,
		MultiPageThreshold: r.cfg.PDFMultiPageThreshold,
	})
	if !report.OK {
		os.Remove(outPDF)
		return ChapterResult{
			Chapter: label,
			Message: fmt.Sprintf("PDF validation failed (pages=%d, size=%d).", report.Pages, report.Size),
		}
	}

	return ChapterResult{
		Chapter:   label,
		PDFPath:   outPDF,
		Success:   true,
		Pages:     report.Pages,
		SizeBytes: report.Size,
	}
}

// primedClient builds the direct-fetch HTTP client carrying the browser's
// cookies so CDN auth set during rendering applies to raw fetches too.
func (r *Runner) primedClient(ctx context.Context, pg *browser.Page, pageURL string) (*http.Client, error) {
	client, err := r.httpClient()
	if err != nil {
		return nil, err
	}

	cookies, err := pg.Cookies(ctx)
	if err != nil || client.Jar == nil {
		return client, nil
	}

	byHost := make(map[string][]*http.Cookie)
	for _, c := range cookies {
		host := strings.TrimPrefix(c.Domain, ".")
		if host == "" {
			host = util.HostOf(pageURL)
		}
		if host == "" {
			continue
		}
		byHost[host] = append(byHost[host], c)
	}
	for host, cs := range byHost {
		u := &url.URL{Scheme: "https", Host: host, Path: "/"}
		client.Jar.SetCookies(u, cs)
	}

	return client, nil
}

func (r *Runner) httpClient() (*http.Client, error) {
	return util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:     120 * time.Second,
		UserAgent:   util.PickUserAgent(r.cfg.UserAgent),
		DebugLogger: r.log,
	})
}

func fallbackLabel(expectedToken, chapterURL string) string {
	if expectedToken != "" {
		return util.SanitizeFilename(expectedToken)
	}
	if tok := ExtractChapterToken(chapterURL); tok != "" {
		return util.SanitizeFilename(tok)
	}

	return "NA"
}
