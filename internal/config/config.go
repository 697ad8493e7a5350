package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable of the acquisition engine. The thresholds are
// empirically tuned against the target reader; treat them as defaults to
// override per site, not as structural constants.
type Config struct {
	Output   string `yaml:"output"`
	Headless bool   `yaml:"headless"`
	Debug    bool   `yaml:"debug"`

	UserAgent   string `yaml:"user_agent"`
	BlocklistDB string `yaml:"blocklist_db"`

	// Navigation / rendering waits (milliseconds).
	ReadyTimeoutMs   int `yaml:"ready_timeout_ms"`
	ScrollMaxMs      int `yaml:"scroll_max_ms"`
	PostSwitchIdleMs int `yaml:"post_switch_idle_ms"`
	AnchorStableMs   int `yaml:"anchor_stable_ms"`

	// Per-image retry budget.
	MaxImageRetries int     `yaml:"max_image_retries"`
	RetryBaseMs     int     `yaml:"retry_base_ms"`
	RetryBackoff    float64 `yaml:"retry_backoff"`

	// Per-chapter retry budget.
	ChapterRetries    int     `yaml:"chapter_retries"`
	ChapterBackoffSec float64 `yaml:"chapter_backoff_sec"`

	// Target re-collection attempts when fewer targets than expected.
	CollectRetries int `yaml:"collect_retries"`

	// Artifact validation floors (bytes).
	PDFMinSizeBytes       int64 `yaml:"pdf_min_size_bytes"`
	PDFMinPageBytes       int64 `yaml:"pdf_min_page_bytes"`
	PDFMinTotalForMulti   int64 `yaml:"pdf_min_total_for_multi"`
	PDFMultiPageThreshold int   `yaml:"pdf_multi_page_threshold"`

	// When true a chapter fails as soon as any page cannot be saved. The
	// default tolerates partial loss and reports the missing pages instead.
	HardFailOnMissing bool `yaml:"hard_fail_on_missing"`

	// Host policy.
	TrustedHosts          []string          `yaml:"trusted_hosts"`
	TrustedSuffixes       []string          `yaml:"trusted_suffixes"`
	ScriptAllowedHosts    []string          `yaml:"script_allowed_hosts"`
	ScriptAllowedSuffixes []string          `yaml:"script_allowed_suffixes"`
	ScriptPathPrefixes    []string          `yaml:"script_path_prefixes"`
	PromoteHosts          map[string]string `yaml:"promote_hosts"`
	PromoteSuffixes       map[string]string `yaml:"promote_suffixes"`
	CDNHintPattern        string            `yaml:"cdn_hint_pattern"`

	// Reader DOM structure, broadest variant last.
	ContainerSelectors  []string `yaml:"container_selectors"`
	AnchorSelectors     []string `yaml:"anchor_selectors"`
	ImageSelectors      []string `yaml:"image_selectors"`
	ScoreExtraSelectors []string `yaml:"score_extra_selectors"`
	PageSelectors       []string `yaml:"page_select_selectors"`
	ChapterSelectors    []string `yaml:"chapter_select_selectors"`

	// Alternate reader host metadata scraping.
	AltHostSuffix    string `yaml:"alt_host_suffix"`
	AltTitleSelector string `yaml:"alt_title_selector"`
}

type Options struct {
	IgnoreConfig bool
	Debug        bool
	Output       string
	UserAgent    string
	BlocklistDB  string
	HardFail     bool
	Headed       bool
}

func DefaultConfig() *Config {
	return &Config{
		Output:   ".",
		Headless: true,

		BlocklistDB: defaultBlocklistPath(),

		ReadyTimeoutMs:   180_000,
		ScrollMaxMs:      120_000,
		PostSwitchIdleMs: 10_000,
		AnchorStableMs:   3_500,

		MaxImageRetries: 5,
		RetryBaseMs:     250,
		RetryBackoff:    1.8,

		ChapterRetries:    3,
		ChapterBackoffSec: 4.0,

		CollectRetries: 3,

		PDFMinSizeBytes:       100_000,
		PDFMinPageBytes:       100_000,
		PDFMinTotalForMulti:   200_000,
		PDFMultiPageThreshold: 2,

		TrustedHosts: []string{
			"leercapitulo.com", "www.leercapitulo.com",
			"leercapitulo.co", "www.leercapitulo.co",
			"leercapituylo.com", "www.leercapituylo.com",
			"leercapituylo.co", "www.leercapituylo.co",
			"manhwaweb.com", "www.manhwaweb.com",
		},
		TrustedSuffixes: []string{
			".leercapitulo.com", ".leercapitulo.co",
			".leercapituylo.com", ".leercapituylo.co",
			".manhwaweb.com",
		},
		ScriptAllowedHosts: []string{
			"leercapitulo.com", "www.leercapitulo.com",
			"leercapitulo.co", "www.leercapitulo.co",
			"leercapituylo.com", "www.leercapituylo.com",
			"leercapituylo.co", "www.leercapituylo.co",
			"manhwaweb.com", "www.manhwaweb.com",
		},
		ScriptAllowedSuffixes: []string{
			".leercapitulo.com", ".leercapitulo.co",
			".leercapituylo.com", ".leercapituylo.co",
			".manhwaweb.com",
		},
		ScriptPathPrefixes: []string{"/assets/", "/cdn-cgi/"},
		PromoteHosts:       map[string]string{},
		PromoteSuffixes:    map[string]string{},
		CDNHintPattern:     `t\d+4798ndc\.com|t34798ndc\.com`,

		ContainerSelectors: []string{
			".comic_wraCon.text-center",
			".comic_wraCon",
			"div[class*='flex-col'][class*='justify-center'][class*='items-center']",
		},
		AnchorSelectors: []string{
			".comic_wraCon.text-center a[name]",
			".comic_wraCon a[name]",
			"div[class*='flex-col'][class*='justify-center'][class*='items-center'] a[name]",
		},
		ImageSelectors: []string{
			".comic_wraCon.text-center img",
			".comic_wraCon img",
			"div[class*='flex-col'][class*='justify-center'][class*='items-center'] img.w-full",
			"div[class*='flex-col'][class*='justify-center'][class*='items-center'] img",
			"img[data-original]",
			"img[data-src]",
			"img[src]",
			"img",
		},
		ScoreExtraSelectors: []string{
			"a[id^='page'] img",
			"a[data-page] img",
		},
		PageSelectors: []string{
			"#page_select", "select#page_select", "select[name='select']",
		},
		ChapterSelectors: []string{
			"select[rel='chap-select']", "select.dropdown-manga",
			"select#chap-select", "select[name='chap-select']",
		},

		AltHostSuffix:    "manhwaweb.com",
		AltTitleSelector: `div.text-center.xs\:text-lg.md\:text-3xl.pt-4.px-3`,
	}
}

func defaultBlocklistPath() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return xdg + "/lectord/blocklist.db"
	}
	home, _ := os.UserHomeDir()

	return home + "/.local/share/lectord/blocklist.db"
}

func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg + "/lectord/config.yaml"
	}
	home, _ := os.UserHomeDir()

	return home + "/.config/lectord/config.yaml"
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadMerged loads the YAML config (if any) and applies CLI overrides on top.
func LoadMerged(path string, opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)", nil
	}

	cfg, err := loadYAML(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", path, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, path, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.Debug {
		c.Debug = true
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.BlocklistDB != "" {
		c.BlocklistDB = o.BlocklistDB
	}
	if o.HardFail {
		c.HardFailOnMissing = true
	}
	if o.Headed {
		c.Headless = false
	}
}

func normalizeDefaults(c *Config) {
	d := DefaultConfig()

	if c.Output == "" {
		c.Output = "."
	}
	if c.ReadyTimeoutMs <= 0 {
		c.ReadyTimeoutMs = d.ReadyTimeoutMs
	}
	if c.ScrollMaxMs <= 0 {
		c.ScrollMaxMs = d.ScrollMaxMs
	}
	if c.PostSwitchIdleMs <= 0 {
		c.PostSwitchIdleMs = d.PostSwitchIdleMs
	}
	if c.AnchorStableMs <= 0 {
		c.AnchorStableMs = d.AnchorStableMs
	}
	if c.MaxImageRetries <= 0 {
		c.MaxImageRetries = d.MaxImageRetries
	}
	if c.RetryBaseMs <= 0 {
		c.RetryBaseMs = d.RetryBaseMs
	}
	if c.RetryBackoff <= 1 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.ChapterRetries <= 0 {
		c.ChapterRetries = d.ChapterRetries
	}
	if c.ChapterBackoffSec <= 0 {
		c.ChapterBackoffSec = d.ChapterBackoffSec
	}
	if c.CollectRetries <= 0 {
		c.CollectRetries = d.CollectRetries
	}
	if c.PDFMinSizeBytes <= 0 {
		c.PDFMinSizeBytes = d.PDFMinSizeBytes
	}
	if c.PDFMinPageBytes <= 0 {
		c.PDFMinPageBytes = d.PDFMinPageBytes
	}
	if c.PDFMinTotalForMulti <= 0 {
		c.PDFMinTotalForMulti = d.PDFMinTotalForMulti
	}
	if c.PDFMultiPageThreshold <= 0 {
		c.PDFMultiPageThreshold = d.PDFMultiPageThreshold
	}
	if len(c.ContainerSelectors) == 0 {
		c.ContainerSelectors = d.ContainerSelectors
	}
	if len(c.AnchorSelectors) == 0 {
		c.AnchorSelectors = d.AnchorSelectors
	}
	if len(c.ImageSelectors) == 0 {
		c.ImageSelectors = d.ImageSelectors
	}
	if len(c.PageSelectors) == 0 {
		c.PageSelectors = d.PageSelectors
	}
	if len(c.ChapterSelectors) == 0 {
		c.ChapterSelectors = d.ChapterSelectors
	}
	if c.BlocklistDB == "" {
		c.BlocklistDB = d.BlocklistDB
	}
}

// Joined selector chains for querySelectorAll.

func (c *Config) ContainerSelector() string { return strings.Join(c.ContainerSelectors, ", ") }
func (c *Config) AnchorSelector() string    { return strings.Join(c.AnchorSelectors, ", ") }
func (c *Config) ImageSelector() string     { return strings.Join(c.ImageSelectors, ", ") }
func (c *Config) PageSelectSelector() string {
	return strings.Join(c.PageSelectors, ", ")
}
func (c *Config) ChapterSelectSelector() string {
	return strings.Join(c.ChapterSelectors, ", ")
}

// ScoreSelector widens the image chain with anchor-wrapped variants used only
// for frame scoring.
func (c *Config) ScoreSelector() string {
	parts := make([]string, 0, len(c.ImageSelectors)+len(c.ContainerSelectors)+len(c.ScoreExtraSelectors))
	parts = append(parts, c.ImageSelectors...)
	for _, base := range c.ContainerSelectors {
		parts = append(parts, base+" a[name] img")
	}
	parts = append(parts, c.ScoreExtraSelectors...)

	return strings.Join(parts, ", ")
}

func (c *Config) Print() {
	fmt.Printf(" -output: %s\n", c.Output)
	fmt.Printf(" -headless: %t\n", c.Headless)
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
	fmt.Printf(" -blocklist_db: %s\n", c.BlocklistDB)
	fmt.Printf(" -max_image_retries: %d\n", c.MaxImageRetries)
	fmt.Printf(" -chapter_retries: %d\n", c.ChapterRetries)
	if c.HardFailOnMissing {
		fmt.Printf(" -hard_fail_on_missing: %t\n", c.HardFailOnMissing)
	}
}
