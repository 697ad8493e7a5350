package util

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	reImgExt    = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp|avif)(?:\?|$)`)
	reExtInType = regexp.MustCompile(`(?i)(jpeg|jpg|png|webp|avif)`)
	reBadChars  = regexp.MustCompile(`[\\/*?:"<>|]+`)
	reToken     = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	reIndexPath = regexp.MustCompile(`/(index|home)/?$`)
)

// HasImageExt reports whether the URL path ends in a recognized image
// extension (query string tolerated).
func HasImageExt(u string) bool {
	return reImgExt.MatchString(u)
}

// HostOf extracts the lowercase hostname (no port) from a URL, or "" when the
// URL does not parse.
func HostOf(u string) string {
	p, err := url.Parse(u)
	if err != nil {
		return ""
	}

	return strings.ToLower(p.Hostname())
}

// PathOf returns the lowercase path component of a URL.
func PathOf(u string) string {
	p, err := url.Parse(u)
	if err != nil {
		return ""
	}

	return strings.ToLower(p.Path)
}

// IsIndexPath reports whether a path looks like an index/home placeholder the
// reader never serves chapters from.
func IsIndexPath(path string) bool {
	return reIndexPath.MatchString(strings.ToLower(path))
}

// AbsURL resolves u against base. Protocol-relative URLs get https.
func AbsURL(u, base string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	if strings.HasPrefix(u, "http") {
		return u
	}

	b, err := url.Parse(base)
	if err != nil {
		return u
	}
	ref, err := url.Parse(u)
	if err != nil {
		return u
	}

	return b.ResolveReference(ref).String()
}

// CanonicalKey strips query and fragment, leaving scheme://host/path. The
// result is a stable cache key: canonicalizing twice yields the same value.
// The path keeps its percent-encoding so keys compare equal to the
// origin+pathname form the page-side scripts produce.
func CanonicalKey(u string) string {
	if u == "" {
		return u
	}
	p, err := url.Parse(u)
	if err != nil {
		return u
	}

	return p.Scheme + "://" + p.Host + p.EscapedPath()
}

// WithPageFragment appends a trailing slash and a "#1" fragment so the reader
// opens on its first page.
func WithPageFragment(u string) string {
	if u == "" {
		return u
	}
	p, err := url.Parse(u)
	if err != nil {
		return u
	}
	if !strings.HasSuffix(p.Path, "/") {
		p.Path += "/"
	}
	p.Fragment = "1"

	return p.String()
}

// InferExt picks an image file extension from the URL, then the content type,
// defaulting to jpg.
func InferExt(u, contentType string) string {
	if m := reImgExt.FindStringSubmatch(u); m != nil {
		return strings.ToLower(m[1])
	}
	if m := reExtInType.FindStringSubmatch(contentType); m != nil {
		return strings.ToLower(m[1])
	}

	return "jpg"
}

// SanitizeFilename replaces characters that are unsafe in file names.
func SanitizeFilename(s string) string {
	out := strings.TrimSpace(reBadChars.ReplaceAllString(s, "_"))
	if out == "" {
		return "File"
	}

	return out
}

// IsChapterToken reports whether s is a plain or decimal chapter number
// ("84", "10.5").
func IsChapterToken(s string) bool {
	return reToken.MatchString(s)
}

// UniquePreserve removes duplicates keeping first-seen order.
func UniquePreserve(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}

	return out
}
