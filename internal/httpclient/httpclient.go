package httpclient

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
)

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout: DefaultTimeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: MaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		},
	}
}

// Default returns the shared tuned HTTP client for probes and health checks.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout and the same transport as Default (or a copy).
func WithTimeout(timeout time.Duration) *http.Client {
	t, ok := defaultClient.Transport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t.Clone(),
	}
}

// SessionOptions configures NewSession.
type SessionOptions struct {
	// Timeout bounds each request. 0 = DefaultTimeout.
	Timeout time.Duration
	// Limiter paces requests per host. nil = no pacing.
	Limiter *HostLimiter
}

// NewSession returns a browser-like client for scraping: cookies persist across
// requests (like a requests.Session), brotli/gzip bodies are decoded, and
// requests are paced per host when a limiter is set.
func NewSession(opts SessionOptions) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := http.RoundTripper(defaultClient.Transport)
	if t, ok := defaultClient.Transport.(*http.Transport); ok {
		base = t.Clone()
	}
	var rt http.RoundTripper = &decodingTransport{base: base}
	if opts.Limiter != nil {
		rt = &pacedTransport{base: rt, limiter: opts.Limiter}
	}
	// cookiejar.New only fails on a nil-safe option error; with a PSL it cannot.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
		Jar:       jar,
	}
}

// SetBrowserHeaders sets the headers the listing site expects from a real browser.
// origin may be empty to skip Origin/Referer.
func SetBrowserHeaders(req *http.Request, userAgent, origin string) {
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Connection", "keep-alive")
	if origin != "" {
		req.Header.Set("Origin", origin)
		req.Header.Set("Referer", origin+"/")
	}
}
