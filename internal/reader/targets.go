package reader

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/brogergvhs/lectord/internal/browser"
	"github.com/brogergvhs/lectord/internal/util"
)

// Target binds a page number to the canonical key of its image URL.
type Target struct {
	Page int
	Key  string
}

// Collect reads page/URL pairs out of the reader frame. Anchored strips give
// real page numbers; flat strips fall back to document order. Only URLs that
// look like page images survive, either by extension or by CDN hint.
func (r *Reader) Collect(ctx context.Context, fr *browser.Frame, baseURL string) ([]Target, error) {
	var items []struct {
		Page int    `json:"page"`
		URL  string `json:"url"`
	}
	js := collectScript(r.cfg.AnchorSelector(), r.cfg.ImageSelector())
	if err := fr.Eval(ctx, js, &items); err != nil {
		return nil, fmt.Errorf("collect targets: %w", err)
	}

	hintRe, _ := regexp.Compile(r.cfg.CDNHintPattern)

	seen := make(map[string]bool)
	out := make([]Target, 0, len(items))
	for _, it := range items {
		u := util.AbsURL(it.URL, baseURL)
		key := util.CanonicalKey(u)
		if key == "" || seen[key] {
			continue
		}
		if !util.HasImageExt(key) && (hintRe == nil || !hintRe.MatchString(key)) {
			continue
		}
		out = append(out, Target{Page: it.Page, Key: key})
		seen[key] = true
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Page < out[j].Page })

	return out, nil
}

// CollectStable retries collection when the page count keeps falling short of
// what the dropdown promised, re-scrolling and re-decoding between passes.
func (r *Reader) CollectStable(ctx context.Context, pg *browser.Page, fr *browser.Frame, baseURL string, expected int) []Target {
	var best []Target

	for attempt := 1; attempt <= r.cfg.CollectRetries; attempt++ {
		targets, err := r.Collect(ctx, fr, baseURL)
		if err != nil {
			r.log.Debugf("Target collection attempt %d failed: %s\n", attempt, err.Error())
		} else if len(targets) > len(best) {
			best = targets
		}

		if expected <= 0 || len(best) >= expected {
			return best
		}
		if attempt == r.cfg.CollectRetries {
			break
		}

		r.log.Debugf("Found %d/%d targets, nudging loaders (attempt %d)\n", len(best), expected, attempt)
		r.ScrollAnchors(ctx, fr)
		r.DecodeAll(ctx, fr)
		pg.Sleep(800 * time.Millisecond)
	}

	return best
}

// Dedupe keeps the first key seen for each page number, optionally capping
// the list at the expected page count.
func Dedupe(targets []Target, limit int) []Target {
	seen := make(map[int]bool)
	out := make([]Target, 0, len(targets))

	for _, t := range targets {
		if t.Page <= 0 || t.Key == "" || seen[t.Page] {
			continue
		}
		out = append(out, t)
		seen[t.Page] = true
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out
}

// SelectTargets maps page-dropdown option URLs to targets in option order,
// page numbers following option position. Only URLs with a recognized image
// extension survive; duplicate keys keep the first occurrence.
func SelectTargets(optURLs []string, baseURL string) []Target {
	seen := make(map[string]bool)
	out := make([]Target, 0, len(optURLs))
	for i, raw := range optURLs {
		abs := util.AbsURL(raw, baseURL)
		if abs == "" || !util.HasImageExt(abs) {
			continue
		}
		key := util.CanonicalKey(abs)
		if key == "" || seen[key] {
			continue
		}
		out = append(out, Target{Page: i + 1, Key: key})
		seen[key] = true
	}

	return out
}

// SelectTargetsLoose is SelectTargets without the extension filter. Frameless
// readers put proxy URLs in the dropdown that carry no image extension, so
// every non-empty option becomes a target.
func SelectTargetsLoose(optURLs []string, baseURL string) []Target {
	out := make([]Target, 0, len(optURLs))
	for i, raw := range optURLs {
		if raw == "" {
			continue
		}
		out = append(out, Target{Page: i + 1, Key: util.CanonicalKey(util.AbsURL(raw, baseURL))})
	}

	return out
}

// PageSelectValues reads the page dropdown, first in the main frame and then
// in every nested frame. Some sites expose pages only through this dropdown.
func (r *Reader) PageSelectValues(ctx context.Context, pg *browser.Page) []string {
	js := selectValuesScript(r.cfg.PageSelectSelector())

	var vals []string
	if err := pg.Eval(ctx, js, &vals); err == nil && len(vals) > 0 {
		return vals
	}

	frames, err := pg.Frames(ctx)
	if err != nil {
		return nil
	}
	for _, fr := range frames {
		if err := fr.Eval(ctx, js, &vals); err == nil && len(vals) > 0 {
			return vals
		}
	}

	return nil
}

// anchorImgSelectors builds the per-page selector ladder, most specific
// first: named anchors inside known containers down to bare nth-of-type.
func anchorImgSelectors(containers []string, pageNum int) []string {
	var out []string
	add := func(s string) {
		for _, have := range out {
			if have == s {
				return
			}
		}
		out = append(out, s)
	}

	variants := func(prefix string) {
		add(fmt.Sprintf("%sa[name='%d'] img", prefix, pageNum))
		add(fmt.Sprintf("%sa#page%d img", prefix, pageNum))
		add(fmt.Sprintf("%sa[data-page='%d'] img", prefix, pageNum))
		add(fmt.Sprintf("%simg[data-page='%d']", prefix, pageNum))
		add(fmt.Sprintf("%simg[data-num='%d']", prefix, pageNum))
		add(fmt.Sprintf("%simg[data-index='%d']", prefix, pageNum))
		add(fmt.Sprintf("%simg:nth-of-type(%d)", prefix, pageNum))
	}

	for _, base := range containers {
		if base == "" {
			continue
		}
		variants(base + " ")
	}
	variants("")

	return out
}

// OptionEntry is one dropdown option, value and display text.
type OptionEntry struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// ChapterEntries reads the chapter dropdown's options with their labels.
func (r *Reader) ChapterEntries(ctx context.Context, pg *browser.Page) []OptionEntry {
	js := chapterEntriesScript(r.cfg.ChapterSelectSelector())

	var entries []OptionEntry
	if err := pg.Eval(ctx, js, &entries); err == nil && len(entries) > 0 {
		return entries
	}

	frames, err := pg.Frames(ctx)
	if err != nil {
		return nil
	}
	for _, fr := range frames {
		if err := fr.Eval(ctx, js, &entries); err == nil && len(entries) > 0 {
			return entries
		}
	}

	return nil
}
