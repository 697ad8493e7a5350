package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brogergvhs/lectord/internal/config"
	"github.com/brogergvhs/lectord/internal/ui"
)

// scriptedDriver plays back a URL history: Goto appends the requested URL,
// Back pops one entry.
type scriptedDriver struct {
	history []string
	blocked bool

	gotos []string
	backs int
}

func (d *scriptedDriver) Goto(_ context.Context, url string) error {
	d.gotos = append(d.gotos, url)
	d.history = append(d.history, url)
	return nil
}

func (d *scriptedDriver) Back(_ context.Context) error {
	d.backs++
	if len(d.history) > 1 {
		d.history = d.history[:len(d.history)-1]
	}
	return nil
}

func (d *scriptedDriver) CurrentURL(_ context.Context) (string, error) {
	if len(d.history) == 0 {
		return "", nil
	}
	return d.history[len(d.history)-1], nil
}

func (d *scriptedDriver) RedirectBlocked(_ context.Context) (bool, error) {
	b := d.blocked
	d.blocked = false
	return b, nil
}

func newTestGuard(drv Driver) *Guard {
	cfg := config.DefaultConfig()
	cfg.PromoteHosts = map[string]string{"leercapituylo.com": "leercapitulo.com"}

	return NewGuard(drv, NewPolicy(cfg), ui.NewLogger(false))
}

const chapterURL = "https://leercapitulo.com/leer/es/solo/105/#1"

func TestGuard_AcceptsOnTarget(t *testing.T) {
	drv := &scriptedDriver{history: []string{chapterURL}}
	g := newTestGuard(drv)
	g.SetTarget(chapterURL)

	assert.True(t, g.Verify(context.Background()))
	assert.Empty(t, drv.gotos)
	assert.Zero(t, drv.backs)
}

func TestGuard_RecoversFromHijackViaBack(t *testing.T) {
	drv := &scriptedDriver{history: []string{chapterURL, "https://trap.example.com/land"}}
	g := newTestGuard(drv)
	g.SetTarget(chapterURL)

	g.Handle(context.Background(), NavEvent{URL: "https://trap.example.com/land"})

	assert.Equal(t, 1, drv.backs)
	cur, _ := drv.CurrentURL(context.Background())
	assert.Equal(t, chapterURL, cur)
}

func TestGuard_PromotesMirrorHost(t *testing.T) {
	// the mirror spelling promotes back to the primary domain, which counts
	// as on-target without any recovery navigation
	mirror := "https://leercapituylo.com/leer/es/solo/105/#1"
	drv := &scriptedDriver{history: []string{mirror}}
	g := newTestGuard(drv)
	g.SetTarget(chapterURL)

	g.Handle(context.Background(), NavEvent{URL: mirror})

	assert.Empty(t, drv.gotos)
	assert.Zero(t, drv.backs)
}

func TestGuard_RejectsIndexLanding(t *testing.T) {
	// same trusted host, but an index page is never the chapter
	index := "https://leercapitulo.com/index"
	drv := &scriptedDriver{history: []string{chapterURL, index}}
	g := newTestGuard(drv)
	g.SetTarget(chapterURL)

	g.Handle(context.Background(), NavEvent{URL: index})

	cur, _ := drv.CurrentURL(context.Background())
	assert.Equal(t, chapterURL, cur)
}

func TestGuard_VerifyStepsBackFromPlaceholder(t *testing.T) {
	drv := &scriptedDriver{
		history: []string{chapterURL, "https://leercapitulo.com/leer/es/solo/105/#1"},
		blocked: true,
	}
	g := newTestGuard(drv)
	g.SetTarget(chapterURL)

	assert.True(t, g.Verify(context.Background()))
	assert.Equal(t, 1, drv.backs)
}

func TestGuard_VerifyRetriesErrorPage(t *testing.T) {
	drv := &scriptedDriver{history: []string{"chrome-error://chromewebdata/"}}
	g := newTestGuard(drv)
	g.SetTarget(chapterURL)

	assert.True(t, g.Verify(context.Background()))
	assert.Contains(t, drv.gotos, chapterURL)
}

func TestGuard_NoTargetAlwaysPasses(t *testing.T) {
	g := newTestGuard(&scriptedDriver{})

	assert.True(t, g.Verify(context.Background()))
	g.Handle(context.Background(), NavEvent{URL: "https://anything.example.com/"})
}
