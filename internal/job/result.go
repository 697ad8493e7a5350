package job

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/brogergvhs/lectord/internal/browser"
	"github.com/brogergvhs/lectord/internal/util"
)

// ChapterResult is the outcome of one chapter download.
type ChapterResult struct {
	Chapter   string
	PDFPath   string
	Success   bool
	Message   string
	Pages     int
	SizeBytes int64
}

var (
	readerPathRe   = regexp.MustCompile(`^/leer/[^/]+/[^/]+/(\d+(?:\.\d+)?)/`)
	trailingNumRe  = regexp.MustCompile(`/(\d+(?:\.\d+)?)/?$`)
	labelNumRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	seriesPathRe   = regexp.MustCompile(`^/leer/([^/]+)/([^/]+)/`)
	titleCleanRe   = regexp.MustCompile(`(?i)[^a-z0-9 ]+`)
	titleSpacesRe  = regexp.MustCompile(`\s+`)
)

// ExtractChapterToken pulls the chapter number out of a reader URL: the
// third segment of a /leer/ path, otherwise the last numeric path segment.
func ExtractChapterToken(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	if m := readerPathRe.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	if m := trailingNumRe.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}

	return ""
}

// LabelToToken extracts the first numeric token from a dropdown label like
// "Capítulo 105.5".
func LabelToToken(label string) string {
	return labelNumRe.FindString(label)
}

// DeriveSeriesBase reduces a chapter URL to the series URL that chapter
// numbers append to.
func DeriveSeriesBase(rawURL string, policy *browser.Policy) string {
	rawURL = promote(rawURL, policy)
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	var basePath string
	if m := seriesPathRe.FindStringSubmatch(u.Path); m != nil {
		basePath = fmt.Sprintf("/leer/%s/%s/", m[1], m[2])
	} else {
		trimmed := strings.TrimRight(u.Path, "/")
		parts := strings.Split(trimmed, "/")
		if len(parts) > 0 && util.IsChapterToken(parts[len(parts)-1]) {
			basePath = strings.Join(parts[:len(parts)-1], "/") + "/"
		} else if strings.HasSuffix(u.Path, "/") {
			basePath = u.Path
		} else {
			basePath = u.Path + "/"
		}
	}

	base := url.URL{Scheme: u.Scheme, Host: u.Host, Path: basePath}

	return promote(base.String(), policy)
}

// BuildChapterURL appends a chapter token to the series base, landing on the
// first page.
func BuildChapterURL(baseAbs, token string, policy *browser.Policy) string {
	baseAbs = promote(baseAbs, policy)
	u, err := url.Parse(baseAbs)
	if err != nil {
		return baseAbs
	}

	path := u.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = path + token + "/"
	u.Fragment = "1"

	return promote(u.String(), policy)
}

// DeriveTitleFromURL guesses a series title from the URL path when the user
// gave none.
func DeriveTitleFromURL(rawURL string) string {
	if rawURL == "" {
		return "Chapter"
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "Chapter"
	}

	var parts []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}

	var candidate string
	switch {
	case len(parts) >= 3 && strings.EqualFold(parts[0], "leer"):
		candidate = parts[2]
	case len(parts) >= 2:
		candidate = parts[len(parts)-2]
	case len(parts) == 1:
		candidate = parts[0]
	default:
		candidate = u.Host
	}
	if candidate == "" {
		return "Chapter"
	}

	candidate = strings.NewReplacer("_", " ", "-", " ").Replace(candidate)
	candidate = titleCleanRe.ReplaceAllString(candidate, " ")
	candidate = strings.TrimSpace(titleSpacesRe.ReplaceAllString(candidate, " "))
	if candidate == "" {
		return "Chapter"
	}

	return titleCase(candidate)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}

	return strings.Join(words, " ")
}

func promote(rawURL string, policy *browser.Policy) string {
	if policy == nil {
		return rawURL
	}

	return policy.PromoteURL(rawURL)
}
