package browser

import (
	"strings"
	"testing"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"

	"github.com/brogergvhs/lectord/internal/config"
	"github.com/brogergvhs/lectord/internal/ui"
)

type fakeBlocker struct {
	hosts map[string]bool
	ips   map[string]bool
}

func (b *fakeBlocker) ShouldBlockHost(host string) bool { return b.hosts[host] }
func (b *fakeBlocker) ShouldBlockIP(ip string) bool     { return b.ips[ip] }

func newTestFilter(blocked ...string) (*Filter, *HostSet) {
	b := &fakeBlocker{hosts: map[string]bool{}, ips: map[string]bool{}}
	for _, h := range blocked {
		b.hosts[h] = true
	}

	cfg := config.DefaultConfig()
	hosts := NewHostSet()
	f := NewFilter(NewPolicy(cfg), b, hosts, ui.NewLogger(false))

	return f, hosts
}

func TestDecideResource_BlocklistedHostAborts(t *testing.T) {
	f, _ := newTestFilter("ads.evil.com")

	v := f.DecideResource("ads.evil.com", "/banner.js", network.ResourceTypeScript)
	assert.Equal(t, VerdictAbort, v)
}

func TestDecideResource_CDNCarveOut(t *testing.T) {
	// the rotating CDN domain lands on public blocklists but still serves
	// the chapter images
	f, hosts := newTestFilter("t34798ndc.com")

	v := f.DecideResource("t34798ndc.com", "/pages/001.jpg", network.ResourceTypeImage)
	assert.Equal(t, VerdictAllow, v)
	assert.True(t, hosts.Has("t34798ndc.com"))

	// the carve-out is asset-only; a document request to the same host aborts
	v = f.DecideNavigation("t34798ndc.com")
	assert.Equal(t, VerdictAbort, v)
}

func TestDecideResource_ScriptGate(t *testing.T) {
	f, _ := newTestFilter()

	// allow-listed host under a static prefix
	assert.Equal(t, VerdictAllow,
		f.DecideResource("leercapitulo.com", "/assets/reader.js", network.ResourceTypeScript))

	// allow-listed host, wrong prefix
	assert.Equal(t, VerdictAbort,
		f.DecideResource("leercapitulo.com", "/gen/inline.js", network.ResourceTypeScript))

	// unknown host
	assert.Equal(t, VerdictAbort,
		f.DecideResource("cdn.random.net", "/assets/x.js", network.ResourceTypeScript))

	// non-script resources from unknown hosts pass
	assert.Equal(t, VerdictAllow,
		f.DecideResource("cdn.random.net", "/img/x.jpg", network.ResourceTypeImage))
}

func TestDecideNavigation(t *testing.T) {
	f, _ := newTestFilter("trap.example.com")

	assert.Equal(t, VerdictAbort, f.DecideNavigation("trap.example.com"))
	assert.Equal(t, VerdictAllow, f.DecideNavigation("leercapitulo.com"))
	assert.Equal(t, VerdictAllow, f.DecideNavigation(""))
}

func TestDecideRedirect(t *testing.T) {
	f, hosts := newTestFilter("trap.example.com")

	assert.Equal(t, RedirectBlock, f.DecideRedirect("trap.example.com"))

	// legitimate destinations grow the allowed-host set
	assert.False(t, hosts.Has("mirror.leercapitulo.co"))
	assert.Equal(t, RedirectFollow, f.DecideRedirect("mirror.leercapitulo.co"))
	assert.True(t, hosts.Has("mirror.leercapitulo.co"))

	assert.Equal(t, RedirectFollow, f.DecideRedirect(""))
}

func TestBlockedPlaceholderCarriesMarker(t *testing.T) {
	html := BlockedPlaceholder("https://a.com/x", "https://trap.example.com/y")
	assert.Contains(t, html, RedirectBlockedMarker)
	assert.Contains(t, html, "trap.example.com")

	html = BlockedPlaceholder("https://a.com/x", "")
	assert.Contains(t, html, "unknown")
}

func TestRedirectLocation(t *testing.T) {
	headers := []*fetch.HeaderEntry{
		{Name: "content-type", Value: "text/html"},
		{Name: "LOCATION", Value: "/next/"},
	}
	assert.Equal(t, "https://a.com/next/", redirectLocation(headers, "https://a.com/leer/x/"))

	assert.Equal(t, "", redirectLocation(nil, "https://a.com/"))

	abs := []*fetch.HeaderEntry{{Name: "Location", Value: "https://b.com/land"}}
	assert.Equal(t, "https://b.com/land", redirectLocation(abs, "https://a.com/"))
}

func TestIsRedirectStatus(t *testing.T) {
	assert.True(t, isRedirectStatus(301))
	assert.True(t, isRedirectStatus(302))
	assert.True(t, isRedirectStatus(307))
	assert.False(t, isRedirectStatus(200))
	assert.False(t, isRedirectStatus(404))
}

func TestDescribeBlockedRedirect(t *testing.T) {
	msg := describeBlockedRedirect("https://a.com", "https://b.com", 302)
	assert.True(t, strings.Contains(msg, "302"))
}
