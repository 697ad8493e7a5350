package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/brogergvhs/lectord/internal/config"
	"github.com/brogergvhs/lectord/internal/ui"
	"github.com/brogergvhs/lectord/internal/util"
)

// Session owns one browser context and the state shared across its pages: the
// allowed-host set, the passively filled response cache, and the traffic
// filter. Chapters within a job run sequentially on one session.
type Session struct {
	cfg    *config.Config
	log    *ui.Logger
	policy *Policy
	filter *Filter

	Hosts *HostSet
	Cache *ResponseCache

	browserCtx  context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewSession launches the browser. A launch failure is the one error in the
// engine that is fatal for the whole job.
func NewSession(parent context.Context, cfg *config.Config, log *ui.Logger, block Blocker) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(util.PickUserAgent(cfg.UserAgent)),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("browser launch: %w", err)
	}

	s := &Session{
		cfg:         cfg,
		log:         log,
		policy:      NewPolicy(cfg),
		Hosts:       NewHostSet(),
		Cache:       NewResponseCache(),
		browserCtx:  browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
	}
	s.filter = NewFilter(s.policy, block, s.Hosts, log)
	s.watchPopups()

	return s, nil
}

func (s *Session) Policy() *Policy { return s.policy }

func (s *Session) Close() {
	s.cancelCtx()
	s.cancelAlloc()
}

// AllowHost seeds the allowed-host set, typically with the job's start host.
func (s *Session) AllowHost(u string) {
	if host := util.HostOf(u); host != "" {
		s.Hosts.Add(host)
	}
}

// watchPopups closes popup windows opened by the page (opener present) whose
// host never made it into the allowed set.
func (s *Session) watchPopups() {
	c := chromedp.FromContext(s.browserCtx)

	chromedp.ListenBrowser(s.browserCtx, func(ev interface{}) {
		var info *target.Info
		switch e := ev.(type) {
		case *target.EventTargetCreated:
			info = e.TargetInfo
		case *target.EventTargetInfoChanged:
			info = e.TargetInfo
		default:
			return
		}

		if info.Type != "page" || info.OpenerID == "" || info.URL == "" || info.URL == "about:blank" {
			return
		}
		host := util.HostOf(info.URL)
		if host == "" || s.Hosts.Has(host) {
			return
		}

		targetID := info.TargetID
		go func() {
			exec := cdp.WithExecutor(s.browserCtx, c.Browser)
			if err := target.CloseTarget(targetID).Do(exec); err != nil {
				s.log.Debugf("closing popup %s failed: %v\n", info.URL, err)
			} else {
				s.log.Infof("Closed popup window: %s\n", info.URL)
			}
		}()
	})
}
