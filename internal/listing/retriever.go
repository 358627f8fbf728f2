// Package listing scrapes the live-TV site for its 24/7 channel list and
// event schedule. The site's markup changes often; the matching rules live in
// ParseChannels and ParseEvents so they can be adjusted in isolation.
package listing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snapetech/livetv-player/internal/catalog"
	"github.com/snapetech/livetv-player/internal/httpclient"
	"github.com/snapetech/livetv-player/internal/metrics"
)

// Listing pages, relative to the resolved site address.
const (
	ChannelsPath = "/24-7-channels.php"
	SchedulePath = "/schedule/schedule-generated.php"

	maxBodyBytes = 16 << 20
)

// Config drives a Retriever. Zero values are replaced with defaults by New.
type Config struct {
	// BaseURL is the resolved site root (see ResolveBaseURL), without trailing slash.
	BaseURL   string
	UserAgent string

	ChannelsTimeout time.Duration // default 10s
	EventsTimeout   time.Duration // default 15s

	// Client may be nil to use a fresh httpclient session.
	Client  *http.Client
	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
	Clock   Clock
}

func (c *Config) applyDefaults() {
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.ChannelsTimeout <= 0 {
		c.ChannelsTimeout = 10 * time.Second
	}
	if c.EventsTimeout <= 0 {
		c.EventsTimeout = 15 * time.Second
	}
	if c.Client == nil {
		c.Client = httpclient.NewSession(httpclient.SessionOptions{})
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
}

// Retriever fetches listings from one site. Each call makes exactly one
// request; refreshing is the caller's decision.
type Retriever struct {
	cfg Config
}

// New returns a Retriever for cfg.
func New(cfg Config) *Retriever {
	cfg.applyDefaults()
	return &Retriever{cfg: cfg}
}

// BaseURL returns the site root this retriever scrapes.
func (r *Retriever) BaseURL() string { return r.cfg.BaseURL }

// FetchChannels returns the 24/7 channels, de-duplicated by ID in page order.
func (r *Retriever) FetchChannels(ctx context.Context) ([]catalog.Channel, error) {
	u := r.cfg.BaseURL + ChannelsPath
	body, err := r.get(ctx, "channels", u, r.cfg.ChannelsTimeout)
	if err != nil {
		r.cfg.Metrics.ListingFetch("channels", err)
		return nil, err
	}
	channels, err := ParseChannels(body)
	if err != nil {
		err = &ParseError{Op: "channels", URL: u, Err: err}
		r.cfg.Metrics.ListingFetch("channels", err)
		return nil, err
	}
	r.cfg.Metrics.ListingFetch("channels", nil)
	r.cfg.Logger.WithFields(logrus.Fields{"count": len(channels), "url": u}).Info("channels loaded")
	return channels, nil
}

// FetchEvents returns the flattened schedule.
func (r *Retriever) FetchEvents(ctx context.Context) ([]catalog.Event, error) {
	u := r.cfg.BaseURL + SchedulePath
	body, err := r.get(ctx, "events", u, r.cfg.EventsTimeout)
	if err != nil {
		r.cfg.Metrics.ListingFetch("events", err)
		return nil, err
	}
	events, err := ParseEvents(body, r.cfg.Clock)
	if err != nil {
		err = &ParseError{Op: "events", URL: u, Err: err}
		r.cfg.Metrics.ListingFetch("events", err)
		return nil, err
	}
	r.cfg.Metrics.ListingFetch("events", nil)
	r.cfg.Logger.WithFields(logrus.Fields{"count": len(events), "url": u}).Info("events loaded")
	return events, nil
}

func (r *Retriever) get(ctx context.Context, op, u string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &ConnectivityError{Op: op, URL: u, Err: err}
	}
	httpclient.SetBrowserHeaders(req, r.cfg.UserAgent, r.cfg.BaseURL)
	resp, err := r.cfg.Client.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Op: op, URL: u, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &ConnectivityError{Op: op, URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &ConnectivityError{Op: op, URL: u, Err: err}
	}
	return body, nil
}
