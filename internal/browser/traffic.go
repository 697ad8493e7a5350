package browser

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"

	"github.com/brogergvhs/lectord/internal/ui"
	"github.com/brogergvhs/lectord/internal/util"
)

// Verdict is the typed outcome of a block decision.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictAbort
)

// RedirectOutcome is the typed outcome of inspecting a navigation redirect.
type RedirectOutcome int

const (
	RedirectFollow RedirectOutcome = iota
	RedirectBlock
)

// RedirectBlockedMarker is embedded in the synthesized placeholder so the
// navigation verifier can detect a blocked redirect from page JS.
const RedirectBlockedMarker = "window._redirectBlocked=true"

// Filter applies block decisions to every request of a browsing context.
type Filter struct {
	policy *Policy
	block  Blocker
	hosts  *HostSet
	log    *ui.Logger
}

func NewFilter(policy *Policy, block Blocker, hosts *HostSet, log *ui.Logger) *Filter {
	return &Filter{policy: policy, block: block, hosts: hosts, log: log}
}

// assetTypes are the resource types the CDN carve-out applies to.
func isAssetType(t network.ResourceType) bool {
	switch t {
	case network.ResourceTypeImage, network.ResourceTypeMedia,
		network.ResourceTypeScript, network.ResourceTypeStylesheet,
		network.ResourceTypeFont:
		return true
	}

	return false
}

// DecideResource decides a non-navigation request. Blocklisted hosts abort
// unless they look like the reader's CDN serving an asset type; scripts must
// additionally come from an allow-listed host under a static-asset prefix.
func (f *Filter) DecideResource(host, path string, rtype network.ResourceType) Verdict {
	if host == "" {
		return VerdictAllow
	}

	if f.block.ShouldBlockHost(host) {
		if f.policy.CDNHint(host) && isAssetType(rtype) {
			f.log.Debugf("Allowing CDN host despite blocklist: %s\n", host)
		} else {
			return VerdictAbort
		}
	}
	if f.block.ShouldBlockIP(host) {
		return VerdictAbort
	}
	if rtype == network.ResourceTypeScript && !f.policy.ScriptAllowed(host, path) {
		f.log.Warnf("Blocked script resource: https://%s%s\n", host, path)
		return VerdictAbort
	}

	f.hosts.Add(host)
	return VerdictAllow
}

// DecideNavigation decides a navigation request before its response arrives.
// The CDN carve-out covers asset types only; a document request to a
// blocklisted host aborts even when the host matches the CDN hint.
func (f *Filter) DecideNavigation(host string) Verdict {
	if host == "" {
		return VerdictAllow
	}
	if f.block.ShouldBlockHost(host) {
		return VerdictAbort
	}
	if f.block.ShouldBlockIP(host) {
		return VerdictAbort
	}

	return VerdictAllow
}

// DecideRedirect inspects a 3xx destination before the browser follows it.
// Legitimate destinations grow the allowed-host set.
func (f *Filter) DecideRedirect(destHost string) RedirectOutcome {
	if destHost == "" {
		return RedirectFollow
	}
	if f.block.ShouldBlockHost(destHost) || f.block.ShouldBlockIP(destHost) {
		return RedirectBlock
	}
	if !f.hosts.Has(destHost) {
		f.hosts.Add(destHost)
		f.log.Debugf("Allowing redirect destination host: %s\n", destHost)
	}

	return RedirectFollow
}

// BlockedPlaceholder builds the synthetic response body served instead of a
// blocked redirect target.
func BlockedPlaceholder(from, to string) string {
	if to == "" {
		to = "unknown"
	}

	return "<html><body>" +
		"<h3>Redirect blocked</h3>" +
		"<p>From: " + from + "</p>" +
		"<p>To: " + to + "</p>" +
		"<script>" + RedirectBlockedMarker + ";</script>" +
		"</body></html>"
}

// abortAction and fulfillBlockedAction build the CDP responses for a paused
// request; they are small helpers so the page wiring stays readable.

func abortAction(id fetch.RequestID) *fetch.FailRequestParams {
	return fetch.FailRequest(id, network.ErrorReasonBlockedByClient)
}

func fulfillBlockedAction(id fetch.RequestID, from, to string) *fetch.FulfillRequestParams {
	body := base64.StdEncoding.EncodeToString([]byte(BlockedPlaceholder(from, to)))

	return fetch.FulfillRequest(id, 200).
		WithResponseHeaders([]*fetch.HeaderEntry{
			{Name: "Content-Type", Value: "text/html; charset=utf-8"},
		}).
		WithBody(body)
}

// redirectLocation resolves a redirect's destination from paused response
// headers, absolute against the request URL.
func redirectLocation(headers []*fetch.HeaderEntry, requestURL string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, "Location") {
			return util.AbsURL(h.Value, requestURL)
		}
	}

	return ""
}

// isRedirectStatus covers the 3xx range the filter must intercept.
func isRedirectStatus(status int64) bool {
	return status >= 300 && status < 400
}

func describeBlockedRedirect(from, to string, status int64) string {
	return fmt.Sprintf("Blocked redirect %s -> %s (status=%d)", from, to, status)
}
