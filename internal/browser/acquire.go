// Package browser harvests the session cookies a stream host sets on its
// watch page, using a real headless browser so the page's scripts run.
package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snapetech/livetv-player/internal/metrics"
)

// Cookie is one name/value pair from the browser's jar.
type Cookie struct {
	Name  string
	Value string
}

// Session is an open browser showing a watch page.
type Session interface {
	Cookies() ([]Cookie, error)
	Close() error
}

// Opener starts a browser and navigates it to pageURL.
type Opener interface {
	Open(ctx context.Context, pageURL string) (Session, error)
}

// Credential is the cookie header harvested from a watch page.
type Credential struct {
	Cookie string // "a=1; b=2"
	Count  int
}

// JoinCookies renders cookies as a single Cookie header value in jar order.
func JoinCookies(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

type Config struct {
	Opener Opener
	// PageURL maps a channel id to its watch page.
	PageURL func(channelID int) string
	// SettleDelay is how long the page may run scripts before cookies are read.
	SettleDelay time.Duration

	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
}

// Acquirer turns a channel id into a Credential. Failures never propagate;
// callers get ok=false and carry on without cookies.
type Acquirer struct {
	cfg Config
}

var errNoPageURL = errors.New("no watch page configured")

func NewAcquirer(cfg Config) *Acquirer {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	return &Acquirer{cfg: cfg}
}

// Acquire opens the watch page, waits the settle delay, reads the cookies and
// closes the browser whatever happened.
func (a *Acquirer) Acquire(ctx context.Context, channelID int) (Credential, bool) {
	cred, ok, release := a.Hold(ctx, channelID)
	release()
	return cred, ok
}

// Hold is Acquire without the close: the browser stays open, keeping the
// host's session alive, until release is called. release is never nil and
// may be called more than once. ok is false when no cookie was read, even if
// a browser is being held.
func (a *Acquirer) Hold(ctx context.Context, channelID int) (Credential, bool, func()) {
	log := a.cfg.Logger.WithField("channel", channelID)
	noop := func() {}
	if a.cfg.Opener == nil || a.cfg.PageURL == nil {
		log.WithError(errNoPageURL).Warn("cookie acquisition skipped")
		a.cfg.Metrics.Credential(false)
		return Credential{}, false, noop
	}
	pageURL := a.cfg.PageURL(channelID)
	sess, err := a.cfg.Opener.Open(ctx, pageURL)
	if err != nil {
		log.WithError(err).WithField("url", pageURL).Warn("could not open watch page; continuing without cookies")
		a.cfg.Metrics.Credential(false)
		return Credential{}, false, noop
	}
	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := sess.Close(); err != nil {
				log.WithError(err).Debug("browser close")
			}
		})
	}

	if err := sleepCtx(ctx, a.cfg.SettleDelay); err != nil {
		log.WithError(err).Warn("cookie acquisition cancelled")
		a.cfg.Metrics.Credential(false)
		return Credential{}, false, release
	}
	cookies, err := sess.Cookies()
	if err != nil {
		log.WithError(err).Warn("could not read cookies; continuing without them")
		a.cfg.Metrics.Credential(false)
		return Credential{}, false, release
	}
	cred := Credential{Cookie: JoinCookies(cookies), Count: len(cookies)}
	if cred.Cookie == "" {
		log.Warn("watch page set no cookies")
		a.cfg.Metrics.Credential(false)
		return Credential{}, false, release
	}
	log.WithField("count", cred.Count).Info("session cookies acquired")
	a.cfg.Metrics.Credential(true)
	return cred, true, release
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
