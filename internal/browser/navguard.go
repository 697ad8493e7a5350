package browser

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/brogergvhs/lectord/internal/ui"
	"github.com/brogergvhs/lectord/internal/util"
)

// Driver is the slice of page behavior the navigation guard needs. Page
// satisfies it; tests supply scripted fakes.
type Driver interface {
	Goto(ctx context.Context, url string) error
	Back(ctx context.Context) error
	CurrentURL(ctx context.Context) (string, error)
	RedirectBlocked(ctx context.Context) (bool, error)
}

// Guard keeps a page parked on its intended chapter URL. Reader sites shove
// the tab toward ad landings and index pages; the guard walks it back.
type Guard struct {
	drv    Driver
	policy *Policy
	log    *ui.Logger

	mu     sync.Mutex
	target string
}

func NewGuard(drv Driver, policy *Policy, log *ui.Logger) *Guard {
	return &Guard{drv: drv, policy: policy, log: log}
}

// SetTarget declares the URL the page is supposed to stay on.
func (g *Guard) SetTarget(url string) {
	g.mu.Lock()
	g.target = url
	g.mu.Unlock()
}

func (g *Guard) Target() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.target
}

// Run consumes navigation events until the context dies or the channel
// closes. Intended as a goroutine alongside page interaction.
func (g *Guard) Run(ctx context.Context, events <-chan NavEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			g.Handle(ctx, ev)
		}
	}
}

// Handle inspects one main-frame navigation and recovers when the page has
// been dragged off its target host.
func (g *Guard) Handle(ctx context.Context, ev NavEvent) {
	target := g.Target()
	if target == "" || ev.URL == "" || strings.HasPrefix(ev.URL, "about:") {
		return
	}

	if g.accepted(ev.URL, target) {
		return
	}

	g.log.Warnf("Navigation hijack to %s, recovering\n", ev.URL)
	g.recover(ctx, ev.URL, target)
}

// accepted reports whether a landed URL counts as on-target: same host,
// trusted, or a promotable alias of the target host, and not an index page
// when the target is a deep link.
func (g *Guard) accepted(landed, target string) bool {
	lh := util.HostOf(landed)
	th := util.HostOf(target)
	if lh == "" || th == "" {
		return false
	}

	if promoted := g.policy.PromoteHost(lh); promoted != "" {
		lh = promoted
	}

	hostOK := lh == th || g.policy.Trusted(lh)
	if !hostOK {
		return false
	}
	if util.IsIndexPath(landed) && !util.IsIndexPath(target) {
		return false
	}

	return true
}

// recover first tries a promoted rewrite of the hijack URL, then history
// back, then a direct re-navigation to the target.
func (g *Guard) recover(ctx context.Context, landed, target string) {
	if rewritten := g.policy.PromoteURL(landed); rewritten != "" && rewritten != landed {
		if err := g.drv.Goto(ctx, rewritten); err == nil {
			if cur, err := g.drv.CurrentURL(ctx); err == nil && g.accepted(cur, target) {
				return
			}
		}
	}

	if err := g.drv.Back(ctx); err == nil {
		if cur, err := g.drv.CurrentURL(ctx); err == nil && g.accepted(cur, target) {
			return
		}
	}

	if err := g.drv.Goto(ctx, target); err != nil {
		g.log.Warnf("Recovery navigation failed: %s\n", err.Error())
	}
}

// Verify settles the page on its target before scraping begins. It makes a
// bounded number of passes through the recovery ladder; exhaustion is logged
// rather than fatal so the caller can still attempt extraction.
func (g *Guard) Verify(ctx context.Context) bool {
	const maxPasses = 4

	target := g.Target()
	if target == "" {
		return true
	}

	for pass := 0; pass < maxPasses; pass++ {
		cur, err := g.drv.CurrentURL(ctx)
		if err != nil {
			return false
		}

		if strings.HasPrefix(cur, "chrome-error://") {
			g.log.Warnf("Error page after navigation, retrying target\n")
			_ = g.drv.Goto(ctx, target)
			continue
		}

		if blocked, err := g.drv.RedirectBlocked(ctx); err == nil && blocked {
			g.log.Warnf("Redirect placeholder detected, stepping back\n")
			if err := g.drv.Back(ctx); err != nil {
				_ = g.drv.Goto(ctx, target)
			}
			continue
		}

		if g.accepted(cur, target) {
			return true
		}

		g.recover(ctx, cur, target)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(500 * time.Millisecond):
		}
	}

	g.log.Warnf("Page did not settle on %s after %d passes\n", target, maxPasses)

	return false
}
