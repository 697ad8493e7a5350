package blocklist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *Store {
	t.Helper()

	return Open(filepath.Join(t.TempDir(), "blocklist.db"))
}

func TestShouldBlockHost_SeededDefaults(t *testing.T) {
	s := tempStore(t)

	// seeded ad domains match exactly and by subdomain
	assert.True(t, s.ShouldBlockHost("doubleclick.net"))
	assert.True(t, s.ShouldBlockHost("ads.doubleclick.net"))
	assert.True(t, s.ShouldBlockHost("pubadx.one"))

	// the rotating interstitial family matches by keyword and regex
	assert.True(t, s.ShouldBlockHost("t34798ndc.com"))
	assert.True(t, s.ShouldBlockHost("t99994798ndc.com"))

	assert.False(t, s.ShouldBlockHost("leercapitulo.com"))
	assert.False(t, s.ShouldBlockHost(""))
}

func TestShouldBlockHost_PortStripped(t *testing.T) {
	s := tempStore(t)

	assert.True(t, s.ShouldBlockHost("doubleclick.net:443"))
}

func TestAddAndExport(t *testing.T) {
	s := tempStore(t)

	n, err := s.Add([]Entry{
		{Pattern: "Evil.Example.com", Kind: "domain"},
		{Pattern: "203.0.113.7", Kind: "ip"},
		{Pattern: ""},
	}, "test")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.True(t, s.ShouldBlockHost("evil.example.com"))
	assert.True(t, s.ShouldBlockHost("sub.evil.example.com"))
	assert.True(t, s.ShouldBlockIP("203.0.113.7"))
	assert.False(t, s.ShouldBlockIP("203.0.113.8"))

	entries, err := s.Export()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), len(defaultEntries)+2)

	found := false
	for _, e := range entries {
		if e.Pattern == "evil.example.com" {
			found = true
			assert.Equal(t, "test", e.Source)
		}
	}
	assert.True(t, found)
}

func TestAddIgnoresDuplicates(t *testing.T) {
	s := tempStore(t)

	_, err := s.Add([]Entry{{Pattern: "dup.example.com"}}, "one")
	require.NoError(t, err)

	before, err := s.Export()
	require.NoError(t, err)

	_, err = s.Add([]Entry{{Pattern: "dup.example.com"}}, "two")
	require.NoError(t, err)

	after, err := s.Export()
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))
}

func TestParseHosts(t *testing.T) {
	content := `# comment
0.0.0.0 ads.example.com
127.0.0.1 tracker.example.net

plain.example.org
0.0.0.0
ads.example.com
`
	domains := ParseHosts(content)
	assert.Equal(t, []string{"ads.example.com", "tracker.example.net", "plain.example.org"}, domains)
}
