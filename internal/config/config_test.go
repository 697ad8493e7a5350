package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMerged_MissingFileUsesDefaults(t *testing.T) {
	cfg, used, err := LoadMerged(filepath.Join(t.TempDir(), "nope.yaml"), Options{})

	require.NoError(t, err)
	assert.Equal(t, "(default config in memory)", used)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 180_000, cfg.ReadyTimeoutMs)
	assert.Equal(t, 5, cfg.MaxImageRetries)
}

func TestLoadMerged_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "output: /tmp/chapters\nmax_image_retries: 9\nretry_backoff: 0.5\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, used, err := LoadMerged(path, Options{})

	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "/tmp/chapters", cfg.Output)
	assert.Equal(t, 9, cfg.MaxImageRetries)
	// a backoff factor at or below 1 never terminates, snap to default
	assert.Equal(t, 1.8, cfg.RetryBackoff)
}

func TestLoadMerged_OptionsWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: /from/file\nheadless: true\n"), 0o644))

	cfg, _, err := LoadMerged(path, Options{
		Output:   "/from/flag",
		Headed:   true,
		HardFail: true,
		Debug:    true,
	})

	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.Output)
	assert.False(t, cfg.Headless)
	assert.True(t, cfg.HardFailOnMissing)
	assert.True(t, cfg.Debug)
}

func TestLoadMerged_IgnoreConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_image_retries: 42\n"), 0o644))

	cfg, used, err := LoadMerged(path, Options{IgnoreConfig: true})

	require.NoError(t, err)
	assert.Equal(t, "(ignored config)", used)
	assert.Equal(t, 5, cfg.MaxImageRetries)
}

func TestLoadMerged_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: [unclosed"), 0o644))

	_, _, err := LoadMerged(path, Options{})

	assert.Error(t, err)
}

func TestSelectorJoins(t *testing.T) {
	cfg := &Config{
		ContainerSelectors:  []string{".reader"},
		ImageSelectors:      []string{".reader img", "img[data-src]"},
		ScoreExtraSelectors: []string{"a[data-page] img"},
	}

	assert.Equal(t, ".reader img, img[data-src]", cfg.ImageSelector())
	assert.Equal(t, ".reader img, img[data-src], .reader a[name] img, a[data-page] img", cfg.ScoreSelector())
}
