package browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/brogergvhs/lectord/internal/util"
)

// Page is one tab under supervision: traffic filtered, responses captured,
// main-frame navigations streamed to the navigation guard.
type Page struct {
	s      *Session
	ctx    context.Context
	cancel context.CancelFunc

	// response metadata remembered between ResponseReceived and
	// LoadingFinished so the body can be attributed to its locator.
	pendingMu sync.Mutex
	pending   map[network.RequestID]pendingResponse

	navEvents chan NavEvent
}

type pendingResponse struct {
	url         string
	contentType string
}

// NavEvent is one main-frame navigation observed on a supervised page.
type NavEvent struct {
	URL string
}

// NewPage opens a tab with the traffic filter installed before any
// navigation. Subresources pause at the request stage; document requests also
// pause at the response stage so redirects can be inspected before commit.
func (s *Session) NewPage(parent context.Context) (*Page, error) {
	ctx, cancel := chromedp.NewContext(s.browserCtx)

	p := &Page{
		s:         s,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[network.RequestID]pendingResponse),
		navEvents: make(chan NavEvent, 16),
	}
	p.listen()

	err := chromedp.Run(ctx,
		network.Enable(),
		fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
			{
				URLPattern:   "*",
				ResourceType: network.ResourceTypeDocument,
				RequestStage: fetch.RequestStageResponse,
			},
		}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("page setup: %w", err)
	}

	return p, nil
}

func (p *Page) Close() {
	p.cancel()
}

// NavEvents exposes the main-frame navigation stream consumed by the guard.
func (p *Page) NavEvents() <-chan NavEvent { return p.navEvents }

func (p *Page) listen() {
	c := chromedp.FromContext(p.ctx)

	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go p.handlePaused(c, e)

		case *network.EventResponseReceived:
			p.rememberResponse(e)

		case *network.EventLoadingFinished:
			go p.captureBody(c, e.RequestID)

		case *page.EventFrameNavigated:
			if e.Frame.ParentID == "" {
				select {
				case p.navEvents <- NavEvent{URL: e.Frame.URL}:
				default:
				}
			}
		}
	})
}

// handlePaused applies the filter to one intercepted request.
func (p *Page) handlePaused(c *chromedp.Context, ev *fetch.EventRequestPaused) {
	exec := cdp.WithExecutor(p.ctx, c.Target)
	f := p.s.filter

	host := util.HostOf(ev.Request.URL)
	path := util.PathOf(ev.Request.URL)
	isNav := ev.ResourceType == network.ResourceTypeDocument
	atResponse := ev.ResponseStatusCode != 0 || len(ev.ResponseHeaders) > 0

	switch {
	case isNav && atResponse:
		if isRedirectStatus(ev.ResponseStatusCode) {
			dest := redirectLocation(ev.ResponseHeaders, ev.Request.URL)
			if f.DecideRedirect(util.HostOf(dest)) == RedirectBlock {
				p.s.log.Warnf("%s\n", describeBlockedRedirect(ev.Request.URL, dest, ev.ResponseStatusCode))
				if err := fulfillBlockedAction(ev.RequestID, ev.Request.URL, dest).Do(exec); err != nil {
					_ = abortAction(ev.RequestID).Do(exec)
				}
				return
			}
			_ = fetch.ContinueResponse(ev.RequestID).Do(exec)
			return
		}

		if f.DecideNavigation(host) == VerdictAbort {
			_ = abortAction(ev.RequestID).Do(exec)
			return
		}
		if host != "" && !p.s.Hosts.Has(host) {
			p.s.Hosts.Add(host)
			p.s.log.Debugf("Allowing new host during navigation: %s\n", host)
		}
		_ = fetch.ContinueResponse(ev.RequestID).Do(exec)

	case isNav:
		if f.DecideNavigation(host) == VerdictAbort {
			_ = abortAction(ev.RequestID).Do(exec)
			return
		}
		_ = fetch.ContinueRequest(ev.RequestID).Do(exec)

	default:
		if f.DecideResource(host, path, ev.ResourceType) == VerdictAbort {
			_ = abortAction(ev.RequestID).Do(exec)
			return
		}
		_ = fetch.ContinueRequest(ev.RequestID).Do(exec)
	}
}

func (p *Page) rememberResponse(ev *network.EventResponseReceived) {
	url := ev.Response.URL
	ct := strings.ToLower(ev.Response.MimeType)
	if !strings.HasPrefix(ct, "image/") && !util.HasImageExt(url) {
		return
	}

	p.pendingMu.Lock()
	p.pending[ev.RequestID] = pendingResponse{url: url, contentType: ct}
	p.pendingMu.Unlock()
}

// captureBody pulls an image body off the wire into the response cache.
func (p *Page) captureBody(c *chromedp.Context, id network.RequestID) {
	p.pendingMu.Lock()
	meta, ok := p.pending[id]
	if ok {
		delete(p.pending, id)
	}
	p.pendingMu.Unlock()
	if !ok {
		return
	}

	exec := cdp.WithExecutor(p.ctx, c.Target)
	body, err := network.GetResponseBody(id).Do(exec)
	if err != nil || len(body) == 0 {
		return
	}

	key := util.CanonicalKey(meta.url)
	p.s.Cache.Observe(key, body, util.InferExt(meta.url, meta.contentType))
}

// --- navigation driver ---

// Goto navigates and waits for the document to be ready.
func (p *Page) Goto(ctx context.Context, url string) error {
	runCtx, cancel := p.deadline(ctx)
	defer cancel()

	return chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Back pops one history entry.
func (p *Page) Back(ctx context.Context) error {
	runCtx, cancel := p.deadline(ctx)
	defer cancel()

	return chromedp.Run(runCtx, chromedp.NavigateBack())
}

// CurrentURL reports the main frame's location.
func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	runCtx, cancel := p.deadline(ctx)
	defer cancel()

	var u string
	err := chromedp.Run(runCtx, chromedp.Location(&u))

	return u, err
}

// RedirectBlocked checks for the placeholder marker left by the traffic
// filter when it refused to follow a redirect.
func (p *Page) RedirectBlocked(ctx context.Context) (bool, error) {
	var flagged bool
	err := p.Eval(ctx, "Boolean(window._redirectBlocked || window.__redirectBlocked)", &flagged)

	return flagged, err
}

// Eval runs an expression in the main frame's main world.
func (p *Page) Eval(ctx context.Context, js string, out interface{}) error {
	runCtx, cancel := p.deadline(ctx)
	defer cancel()

	if out == nil {
		return chromedp.Run(runCtx, chromedp.Evaluate(js, nil))
	}

	return chromedp.Run(runCtx, chromedp.Evaluate(js, out))
}

// Sleep suspends cooperatively, bailing when the page context dies.
func (p *Page) Sleep(d time.Duration) {
	select {
	case <-p.ctx.Done():
	case <-time.After(d):
	}
}

func (p *Page) Closed() bool {
	return p.ctx.Err() != nil
}

// Cookies exports the context's cookies for the direct-fetch HTTP client.
func (p *Page) Cookies(ctx context.Context, urls ...string) ([]*http.Cookie, error) {
	runCtx, cancel := p.deadline(ctx)
	defer cancel()

	exec := cdp.WithExecutor(runCtx, chromedp.FromContext(p.ctx).Target)

	params := network.GetCookies()
	if len(urls) > 0 {
		params = params.WithURLs(urls)
	}
	raw, err := params.Do(exec)
	if err != nil {
		return nil, err
	}

	out := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		out = append(out, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}

	return out, nil
}

// deadline derives a command context bound to both the caller and the page.
func (p *Page) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithCancel(p.ctx)
	}
	if dl, ok := ctx.Deadline(); ok {
		return context.WithDeadline(p.ctx, dl)
	}

	return context.WithCancel(p.ctx)
}
