package blocklist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/brogergvhs/lectord/internal/util"
)

// RemoteSource describes one public list to ingest.
type RemoteSource struct {
	Name   string
	URL    string
	Format string // "hosts" or "lines"
	Kind   string
}

// DefaultSources are curated public lists that are safe to merge wholesale.
var DefaultSources = []RemoteSource{
	{
		Name:   "Malware Filter phishing",
		URL:    "https://malware-filter.gitlab.io/malware-filter/phishing-filter-hosts.txt",
		Format: "hosts",
		Kind:   "domain",
	},
	{
		Name:   "Malware Filter malware",
		URL:    "https://malware-filter.gitlab.io/malware-filter/malware-filter-hosts.txt",
		Format: "hosts",
		Kind:   "domain",
	},
	{
		Name:   "StevenBlack unified hosts",
		URL:    "https://raw.githubusercontent.com/StevenBlack/hosts/master/hosts",
		Format: "hosts",
		Kind:   "domain",
	},
}

// ParseHosts extracts domains from a hosts-format file. Lines may be plain
// domains or "0.0.0.0 domain" sinkhole entries.
func ParseHosts(content string) []string {
	var out []string
	seen := make(map[string]bool)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		domain := line
		if strings.HasPrefix(line, "0.0.0.0") || strings.HasPrefix(line, "127.0.0.1") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			domain = fields[1]
		}

		domain = normalizeDomain(domain)
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		out = append(out, domain)
	}

	return out
}

// Sync fetches every source and merges its entries into the store. A source
// that fails to download is skipped, not fatal. limit caps entries per source
// (testing aid).
func Sync(ctx context.Context, client *http.Client, store *Store, sources []RemoteSource, limit int, log interface {
	Infof(string, ...any)
	Warnf(string, ...any)
}) (int, error) {
	if len(sources) == 0 {
		sources = DefaultSources
	}

	total := 0

	for _, src := range sources {
		log.Infof("Fetching blocklist %s (%s)\n", src.Name, src.URL)

		content, err := fetchList(ctx, client, src.URL)
		if err != nil {
			log.Warnf("Could not fetch %s: %v\n", src.URL, err)
			continue
		}

		var patterns []string
		if src.Format == "hosts" {
			patterns = ParseHosts(content)
		} else {
			for _, line := range strings.Split(content, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					patterns = append(patterns, line)
				}
			}
		}

		if limit > 0 && len(patterns) > limit {
			patterns = patterns[:limit]
		}

		entries := make([]Entry, len(patterns))
		for i, p := range patterns {
			entries[i] = Entry{Pattern: p, Kind: src.Kind}
		}

		added, err := store.Add(entries, src.Name)
		if err != nil {
			return total, fmt.Errorf("merging %s: %w", src.Name, err)
		}
		total += added
		log.Infof("Added %d entries from %s\n", added, src.Name)
	}

	return total, nil
}

func fetchList(ctx context.Context, client *http.Client, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}

	resp, err := util.DoWithRetry(client, req, 3, 500*time.Millisecond)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	return string(data), err
}
