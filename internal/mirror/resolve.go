// Package mirror turns a channel id into a playable stream URL by probing the
// rotating set of CDN mirror hosts in priority order.
package mirror

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snapetech/livetv-player/internal/httpclient"
	"github.com/snapetech/livetv-player/internal/metrics"
)

// Source says how a Resolution was reached.
type Source string

const (
	SourceCandidate Source = "candidate" // a mirror answered the probe
	SourceFallback  Source = "fallback"  // only the override server answered
	SourceGuess     Source = "guess"     // nothing answered; first candidate returned unverified
)

// Resolution is the URL chosen for a channel.
type Resolution struct {
	URL    string
	Source Source
}

// Verified reports whether some probe confirmed URL.
func (r Resolution) Verified() bool { return r.Source != SourceGuess }

type Config struct {
	Mirrors      []string // priority order
	HostTemplate string   // {name}
	PathTemplate string   // {name}, {id}

	// FallbackServer is probed once, with FallbackName in PathTemplate, after
	// every mirror fails. Empty disables it.
	FallbackServer string
	FallbackName   string

	ProbeTimeout time.Duration // per probe; default 4s
	Headers      map[string]string

	Client  *http.Client
	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
}

// Resolver picks stream URLs. It keeps no state between calls.
type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) *Resolver {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 4 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.WithTimeout(cfg.ProbeTimeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Resolver{cfg: cfg}
}

// Candidates returns the mirror URLs for channelID in probe order.
func (r *Resolver) Candidates(channelID int) []string {
	out := make([]string, 0, len(r.cfg.Mirrors))
	for _, name := range r.cfg.Mirrors {
		out = append(out, r.streamURL(r.cfg.HostTemplate, name, channelID))
	}
	return out
}

// FallbackURL returns the override server URL for channelID, or "".
func (r *Resolver) FallbackURL(channelID int) string {
	if r.cfg.FallbackServer == "" {
		return ""
	}
	return r.streamURL(r.cfg.FallbackServer, r.cfg.FallbackName, channelID)
}

func (r *Resolver) streamURL(host, name string, channelID int) string {
	host = strings.TrimSuffix(strings.ReplaceAll(host, "{name}", name), "/")
	path := strings.NewReplacer("{name}", name, "{id}", strconv.Itoa(channelID)).Replace(r.cfg.PathTemplate)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return host + path
}

// Resolve probes the candidates in order and returns the first reachable one.
// If none is, the fallback server is tried; if that fails too the first
// candidate is returned unverified. Resolve never fails; a guess may not play.
func (r *Resolver) Resolve(ctx context.Context, channelID int) Resolution {
	log := r.cfg.Logger.WithField("channel", channelID)
	candidates := r.Candidates(channelID)
	for _, u := range candidates {
		res := r.probe(ctx, u)
		log.WithFields(logrus.Fields{"url": u, "status": res.Status, "latency_ms": res.LatencyMs}).Debug("mirror probe")
		if res.Status == StatusOK {
			return r.resolved(log, u, SourceCandidate)
		}
	}
	if fb := r.FallbackURL(channelID); fb != "" {
		res := r.probe(ctx, fb)
		log.WithFields(logrus.Fields{"url": fb, "status": res.Status}).Debug("fallback probe")
		if res.Status == StatusOK {
			return r.resolved(log, fb, SourceFallback)
		}
	}
	guess := ""
	if len(candidates) > 0 {
		guess = candidates[0]
	} else if fb := r.FallbackURL(channelID); fb != "" {
		guess = fb
	}
	log.WithField("url", guess).Warn("no mirror answered; using best guess")
	return r.resolved(log, guess, SourceGuess)
}

func (r *Resolver) resolved(log logrus.FieldLogger, u string, src Source) Resolution {
	r.cfg.Metrics.Resolution(string(src))
	if src != SourceGuess {
		log.WithFields(logrus.Fields{"url": u, "source": src}).Info("stream resolved")
	}
	return Resolution{URL: u, Source: src}
}

// ProbeAll probes every candidate and the fallback, in probe order, for diagnostics.
func (r *Resolver) ProbeAll(ctx context.Context, channelID int) []Result {
	urls := r.Candidates(channelID)
	if fb := r.FallbackURL(channelID); fb != "" {
		urls = append(urls, fb)
	}
	out := make([]Result, 0, len(urls))
	for _, u := range urls {
		out = append(out, r.probe(ctx, u))
	}
	return out
}

func (r *Resolver) probe(ctx context.Context, u string) Result {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()
	res := ProbeOne(ctx, r.cfg.Client, u, r.cfg.Headers)
	r.cfg.Metrics.Probe(string(res.Status), time.Duration(res.LatencyMs)*time.Millisecond)
	return res
}
