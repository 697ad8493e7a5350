package blocklist

import (
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one persisted block pattern.
type Entry struct {
	Pattern string
	Kind    string // domain, keyword, regex, ip
	Source  string
	AddedAt int64
}

// Store matches hosts and IPs against a SQLite-backed pattern set. Entries are
// loaded lazily and reloaded whenever the database file's mtime changes, so an
// external sync is picked up without restarting.
type Store struct {
	path string

	mu       sync.Mutex
	loadedAt time.Time
	haveLoad bool

	domains  map[string]struct{}
	keywords []string
	regexes  []*regexp.Regexp
	ips      map[string]struct{}
}

func Open(path string) *Store {
	return &Store{path: path}
}

func (s *Store) open() (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS blocked_entries (
			pattern  TEXT PRIMARY KEY,
			kind     TEXT NOT NULL,
			source   TEXT NOT NULL,
			added_at INTEGER NOT NULL
		)`)

	return err
}

func (s *Store) mtime() time.Time {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}
	}

	return info.ModTime()
}

func (s *Store) ensureLoaded() error {
	current := s.mtime()
	if s.haveLoad && current.Equal(s.loadedAt) {
		return nil
	}

	db, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := seedDefaults(db); err != nil {
		return err
	}

	rows, err := db.Query(`SELECT pattern, kind FROM blocked_entries`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	domains := make(map[string]struct{})
	keywords := []string{}
	regexes := []*regexp.Regexp{}
	ips := make(map[string]struct{})

	for rows.Next() {
		var pattern, kind string
		if err := rows.Scan(&pattern, &kind); err != nil {
			return err
		}
		if pattern == "" {
			continue
		}

		switch strings.ToLower(kind) {
		case "domain":
			domains[normalizeDomain(pattern)] = struct{}{}
		case "keyword":
			keywords = append(keywords, strings.ToLower(pattern))
		case "regex":
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				continue
			}
			regexes = append(regexes, re)
		case "ip":
			ips[strings.TrimSpace(pattern)] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.domains = domains
	s.keywords = keywords
	s.regexes = regexes
	s.ips = ips
	s.loadedAt = s.mtime()
	s.haveLoad = true

	return nil
}

// ShouldBlockHost reports whether the host matches any keyword, domain suffix,
// regex or literal-IP entry.
func (s *Store) ShouldBlockHost(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return false
	}

	for _, kw := range s.keywords {
		if strings.Contains(host, kw) {
			return true
		}
	}
	for domain := range s.domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	for _, re := range s.regexes {
		if re.MatchString(host) {
			return true
		}
	}
	if net.ParseIP(host) != nil {
		_, ok := s.ips[host]
		return ok
	}

	return false
}

// ShouldBlockIP matches literal-IP entries only.
func (s *Store) ShouldBlockIP(ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return false
	}

	_, ok := s.ips[ip]
	return ok
}

// Add inserts entries, ignoring patterns already present. The in-memory cache
// is invalidated so the next lookup reloads.
func (s *Store) Add(entries []Entry, source string) (int, error) {
	db, err := s.open()
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO blocked_entries(pattern, kind, source, added_at)
		VALUES(?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().Unix()
	n := 0
	for _, e := range entries {
		pattern := strings.ToLower(strings.TrimSpace(e.Pattern))
		if pattern == "" {
			continue
		}
		kind := strings.ToLower(e.Kind)
		if kind == "" {
			kind = "domain"
		}
		src := e.Source
		if src == "" {
			src = source
		}
		if _, err := stmt.Exec(pattern, kind, src, now); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.haveLoad = false
	s.mu.Unlock()

	return n, nil
}

// Export returns all entries ordered by pattern.
func (s *Store) Export() ([]Entry, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	if err := seedDefaults(db); err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT pattern, kind, source, added_at FROM blocked_entries ORDER BY pattern`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Pattern, &e.Kind, &e.Source, &e.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

func normalizeDomain(pattern string) string {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	for _, prefix := range []string{"0.0.0.0 ", "127.0.0.1 "} {
		if strings.HasPrefix(pattern, prefix) {
			pattern = strings.TrimSpace(strings.TrimPrefix(pattern, prefix))
		}
	}

	return strings.TrimLeft(pattern, ".")
}

func seedDefaults(db *sql.DB) error {
	now := time.Now().Unix()
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	for _, e := range defaultEntries {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO blocked_entries(pattern, kind, source, added_at)
			VALUES(?, ?, ?, ?)`,
			strings.ToLower(e.Pattern), e.Kind, "local-default", now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("seeding blocklist: %w", err)
		}
	}

	return tx.Commit()
}

// Ad and redirect networks seen hijacking the reader, plus the rotating
// interstitial domain family.
var defaultEntries = []Entry{
	{Pattern: "treasurequestluck.com", Kind: "domain"},
	{Pattern: "aplasted.com", Kind: "domain"},
	{Pattern: "shakhasewn.com", Kind: "domain"},
	{Pattern: "pubadx.one", Kind: "domain"},
	{Pattern: "doubleclick.net", Kind: "domain"},
	{Pattern: "googlesyndication.com", Kind: "domain"},
	{Pattern: "googletagmanager.com", Kind: "domain"},
	{Pattern: "google-analytics.com", Kind: "domain"},
	{Pattern: "adservice.google.com", Kind: "domain"},
	{Pattern: "taboola.com", Kind: "domain"},
	{Pattern: "outbrain.com", Kind: "domain"},
	{Pattern: "zedo.com", Kind: "domain"},
	{Pattern: "rubiconproject.com", Kind: "domain"},
	{Pattern: "pubmatic.com", Kind: "domain"},
	{Pattern: "scorecardresearch.com", Kind: "domain"},
	{Pattern: "criteo.com", Kind: "domain"},
	{Pattern: "moatads.com", Kind: "domain"},
	{Pattern: "adskeeper.com", Kind: "domain"},
	{Pattern: "adsterra.com", Kind: "domain"},
	{Pattern: "revcontent.com", Kind: "domain"},
	{Pattern: "onetag.com", Kind: "domain"},
	{Pattern: "onesignal.com", Kind: "domain"},
	{Pattern: "exoclick.com", Kind: "domain"},
	{Pattern: "trafficjunky.net", Kind: "domain"},
	{Pattern: "adnxs.com", Kind: "domain"},
	{Pattern: "contextual.media.net", Kind: "domain"},
	{Pattern: "4798ndc", Kind: "keyword"},
	{Pattern: `t\d+4798ndc\.com`, Kind: "regex"},
}
