package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Strategy names the child pipeline the launcher runs.
const (
	StrategyStreamlink = "streamlink" // streamlink driving mpv/VLC, cookies passed as a header
	StrategyHeadless   = "headless"   // ffplay while a headless browser holds the session open
)

const (
	DefaultBaseURL        = "https://daddylivestream.com"
	DefaultIndirectionURL = "https://raw.githubusercontent.com/thecrewwh/dl_url/refs/heads/main/dl.xml"
	DefaultWatchBase      = "https://dlhd.dad"
	DefaultStreamOrigin   = "https://truncatedactivitiplay.xyz"

	DefaultListingUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36"
	DefaultStreamUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"

	DefaultHostTemplate = "https://{name}new.newkso.ru"
	DefaultPathTemplate = "/{name}/premium{id}/mono.m3u8"
)

// DefaultMirrors is the mirror token priority list; earlier entries win ties.
var DefaultMirrors = []string{"nfs", "dokko1", "zeko", "ddy6", "wind"}

// Config holds listing, resolver, browser and playback settings.
// Load from env (LIVETV_*) and optionally overlay a YAML file with LoadFile.
type Config struct {
	// Listing source
	BaseURL            string // fallback when the indirection file cannot be used
	IndirectionURL     string // remote file whose first src="..." names the live site; "" = skip
	IndirectionTimeout time.Duration
	ListingUserAgent   string
	ChannelsTimeout    time.Duration
	EventsTimeout      time.Duration
	RequestsPerSecond  float64 // per-host pacing for listing requests; 0 = unlimited

	// Stream site
	WatchBase       string // per-channel watch page host (watch.php?id=N)
	StreamOrigin    string
	StreamReferer   string
	StreamUserAgent string

	// Mirror resolution
	Mirrors        []string // tried in order
	HostTemplate   string   // {name} is replaced by the mirror token
	PathTemplate   string   // {name} and {id} are replaced
	FallbackServer string   // scheme+host probed once when every mirror fails; "" = none
	FallbackName   string   // token used in PathTemplate for FallbackServer
	ProbeTimeout   time.Duration

	// Browser session
	BrowserPath string // "" = let the launcher find or download Chromium
	SettleDelay time.Duration

	// Launcher
	Strategy       string
	StreamlinkPath string
	FFplayPath     string
	PlayerPath     string // "" = auto-detect mpv, then VLC
	DefaultChannel int

	// Playback session
	GraceDelay       time.Duration
	TerminateTimeout time.Duration
	KillTimeout      time.Duration
	DiagnosticLimit  int // characters of child output kept in launch errors

	// Ambient
	MetricsAddr string // "" = metrics not served
	LogLevel    string
}

// Load reads config from environment. Call LoadEnvFile(".env") before Load() to use a .env file.
func Load() *Config {
	c := &Config{
		BaseURL:            getEnv("LIVETV_BASE_URL", DefaultBaseURL),
		IndirectionURL:     getEnvAllowEmpty("LIVETV_INDIRECTION_URL", DefaultIndirectionURL),
		IndirectionTimeout: getEnvDuration("LIVETV_INDIRECTION_TIMEOUT", 5*time.Second),
		ListingUserAgent:   getEnv("LIVETV_LISTING_USER_AGENT", DefaultListingUserAgent),
		ChannelsTimeout:    getEnvDuration("LIVETV_CHANNELS_TIMEOUT", 10*time.Second),
		EventsTimeout:      getEnvDuration("LIVETV_EVENTS_TIMEOUT", 15*time.Second),
		RequestsPerSecond:  getEnvFloat("LIVETV_REQUESTS_PER_SECOND", 2),
		WatchBase:          getEnv("LIVETV_WATCH_BASE", DefaultWatchBase),
		StreamOrigin:       getEnv("LIVETV_STREAM_ORIGIN", DefaultStreamOrigin),
		StreamReferer:      os.Getenv("LIVETV_STREAM_REFERER"),
		StreamUserAgent:    getEnv("LIVETV_STREAM_USER_AGENT", DefaultStreamUserAgent),
		Mirrors:            getEnvList("LIVETV_MIRRORS", DefaultMirrors),
		HostTemplate:       getEnv("LIVETV_MIRROR_HOST_TEMPLATE", DefaultHostTemplate),
		PathTemplate:       getEnv("LIVETV_MIRROR_PATH_TEMPLATE", DefaultPathTemplate),
		FallbackServer:     os.Getenv("LIVETV_FALLBACK_SERVER"),
		FallbackName:       getEnv("LIVETV_FALLBACK_NAME", "dokko1"),
		ProbeTimeout:       getEnvDuration("LIVETV_PROBE_TIMEOUT", 4*time.Second),
		BrowserPath:        os.Getenv("LIVETV_BROWSER_PATH"),
		SettleDelay:        getEnvDuration("LIVETV_SETTLE_DELAY", 3*time.Second),
		Strategy:           strings.ToLower(getEnv("LIVETV_STRATEGY", StrategyStreamlink)),
		StreamlinkPath:     getEnv("LIVETV_STREAMLINK_PATH", "streamlink"),
		FFplayPath:         getEnv("LIVETV_FFPLAY_PATH", "ffplay"),
		PlayerPath:         os.Getenv("LIVETV_PLAYER_PATH"),
		DefaultChannel:     getEnvInt("LIVETV_DEFAULT_CHANNEL", 32),
		GraceDelay:         getEnvDuration("LIVETV_GRACE_DELAY", 2*time.Second),
		TerminateTimeout:   getEnvDuration("LIVETV_TERMINATE_TIMEOUT", 3*time.Second),
		KillTimeout:        getEnvDuration("LIVETV_KILL_TIMEOUT", 2*time.Second),
		DiagnosticLimit:    getEnvInt("LIVETV_DIAGNOSTIC_LIMIT", 300),
		MetricsAddr:        os.Getenv("LIVETV_METRICS_ADDR"),
		LogLevel:           getEnv("LIVETV_LOG_LEVEL", "info"),
	}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.DiagnosticLimit <= 0 {
		c.DiagnosticLimit = 300
	}
	if c.DefaultChannel <= 0 {
		c.DefaultChannel = 32
	}
	if c.RequestsPerSecond < 0 {
		c.RequestsPerSecond = 0
	}
}

// Validate reports the first setting that would make resolution or playback unusable.
func (c *Config) Validate() error {
	if len(c.Mirrors) == 0 {
		return fmt.Errorf("mirrors: at least one mirror token required")
	}
	if !strings.Contains(c.PathTemplate, "{id}") {
		return fmt.Errorf("path template %q: missing {id}", c.PathTemplate)
	}
	if !isHTTPOrHTTPS(expandName(c.HostTemplate, c.Mirrors[0])) {
		return fmt.Errorf("host template %q: not an http(s) URL", c.HostTemplate)
	}
	if c.FallbackServer != "" && !isHTTPOrHTTPS(c.FallbackServer) {
		return fmt.Errorf("fallback server %q: not an http(s) URL", c.FallbackServer)
	}
	if !isHTTPOrHTTPS(c.BaseURL) {
		return fmt.Errorf("base url %q: not an http(s) URL", c.BaseURL)
	}
	switch c.Strategy {
	case StrategyStreamlink, StrategyHeadless:
	default:
		return fmt.Errorf("strategy %q: want %s or %s", c.Strategy, StrategyStreamlink, StrategyHeadless)
	}
	for name, d := range map[string]time.Duration{
		"probe timeout":     c.ProbeTimeout,
		"grace delay":       c.GraceDelay,
		"terminate timeout": c.TerminateTimeout,
		"kill timeout":      c.KillTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	return nil
}

// StreamHeaders returns the Origin/Referer/User-Agent set the stream CDN expects.
func (c *Config) StreamHeaders() map[string]string {
	return map[string]string{
		"Origin":     c.StreamOrigin,
		"Referer":    c.Referer(),
		"User-Agent": c.StreamUserAgent,
	}
}

// Referer returns StreamReferer, or StreamOrigin with a trailing slash when unset.
func (c *Config) Referer() string {
	if c.StreamReferer != "" {
		return c.StreamReferer
	}
	return strings.TrimSuffix(c.StreamOrigin, "/") + "/"
}

// WatchPageURL returns the per-channel page that sets the session cookies.
func (c *Config) WatchPageURL(channelID int) string {
	return strings.TrimSuffix(c.WatchBase, "/") + "/watch.php?id=" + strconv.Itoa(channelID)
}

func expandName(tmpl, name string) string {
	return strings.ReplaceAll(tmpl, "{name}", name)
}

func isHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return (s == "http" || s == "https") && parsed.Host != ""
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvAllowEmpty distinguishes unset (default) from explicitly empty (disabled).
func getEnvAllowEmpty(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return defaultVal
		}
		return f
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return append([]string(nil), defaultVal...)
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultVal...)
	}
	return out
}
