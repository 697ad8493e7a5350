package browser

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/brogergvhs/lectord/internal/config"
)

// Blocker is the blocklist collaborator consumed by the traffic filter.
type Blocker interface {
	ShouldBlockHost(host string) bool
	ShouldBlockIP(ip string) bool
}

// Policy bundles the host-level trust rules: which hosts belong to the reader,
// which hijacked hosts promote back to a primary domain, which hosts may serve
// scripts, and which blocklisted-looking CDN hosts still carry chapter assets.
type Policy struct {
	trustedHosts    map[string]struct{}
	trustedSuffixes []string
	scriptHosts     map[string]struct{}
	scriptSuffixes  []string
	scriptPrefixes  []string
	promoteHosts    map[string]string
	promoteSuffixes map[string]string
	cdnHint         *regexp.Regexp
}

func NewPolicy(cfg *config.Config) *Policy {
	p := &Policy{
		trustedHosts:    make(map[string]struct{}, len(cfg.TrustedHosts)),
		trustedSuffixes: cfg.TrustedSuffixes,
		scriptHosts:     make(map[string]struct{}, len(cfg.ScriptAllowedHosts)),
		scriptSuffixes:  cfg.ScriptAllowedSuffixes,
		scriptPrefixes:  cfg.ScriptPathPrefixes,
		promoteHosts:    cfg.PromoteHosts,
		promoteSuffixes: cfg.PromoteSuffixes,
	}
	for _, h := range cfg.TrustedHosts {
		p.trustedHosts[strings.ToLower(h)] = struct{}{}
	}
	for _, h := range cfg.ScriptAllowedHosts {
		p.scriptHosts[strings.ToLower(h)] = struct{}{}
	}
	if cfg.CDNHintPattern != "" {
		if re, err := regexp.Compile("(?i)" + cfg.CDNHintPattern); err == nil {
			p.cdnHint = re
		}
	}

	return p
}

// Trusted reports whether the host is a known reader host or subdomain.
func (p *Policy) Trusted(host string) bool {
	if host == "" {
		return false
	}
	host = strings.ToLower(host)
	if _, ok := p.trustedHosts[host]; ok {
		return true
	}
	for _, suffix := range p.trustedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}

	return false
}

// PromoteHost maps a hijacked mirror host onto its primary equivalent, or ""
// when no mapping exists.
func (p *Policy) PromoteHost(host string) string {
	if host == "" {
		return ""
	}
	host = strings.ToLower(host)
	if promoted, ok := p.promoteHosts[host]; ok {
		return promoted
	}
	for suffix, replacement := range p.promoteSuffixes {
		if strings.HasSuffix(host, suffix) {
			return strings.TrimSuffix(host, suffix) + replacement
		}
	}

	return ""
}

// PromoteURL rewrites the URL's host through the promotion mapping, returning
// the input unchanged when no mapping applies.
func (p *Policy) PromoteURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	promoted := p.PromoteHost(u.Hostname())
	if promoted == "" {
		return raw
	}
	if port := u.Port(); port != "" {
		u.Host = promoted + ":" + port
	} else {
		u.Host = promoted
	}

	return u.String()
}

// ScriptAllowed gates script resources: the host must be on the explicit
// allow-list and the path must sit under a recognized static-asset prefix.
func (p *Policy) ScriptAllowed(host, path string) bool {
	if host == "" || path == "" {
		return false
	}
	host = strings.ToLower(host)

	allowed := false
	if _, ok := p.scriptHosts[host]; ok {
		allowed = true
	} else {
		for _, suffix := range p.scriptSuffixes {
			if strings.HasSuffix(host, suffix) {
				allowed = true
				break
			}
		}
	}
	if !allowed {
		return false
	}

	for _, prefix := range p.scriptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

// CDNHint reports whether the host looks like the reader's asset CDN, whose
// rotating domains often land on public blocklists.
func (p *Policy) CDNHint(host string) bool {
	return p.cdnHint != nil && p.cdnHint.MatchString(host)
}
