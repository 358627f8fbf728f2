package browser

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/stealth"
)

// RodOpener launches a fresh headless Chromium per Open via go-rod. Each
// browser gets its own temporary profile, removed again on Close.
type RodOpener struct {
	// Bin is the Chromium binary; "" lets the launcher find or download one.
	Bin       string
	UserAgent string
	// Visible shows the browser window. Useful when a site needs a human click.
	Visible bool
}

// Open implements Opener.
func (o *RodOpener) Open(ctx context.Context, pageURL string) (Session, error) {
	l := launcher.New().
		Context(ctx).
		Headless(!o.Visible).
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")
	if o.Bin != "" {
		l = l.Bin(o.Bin)
	}
	if o.UserAgent != "" {
		l = l.Set("user-agent", o.UserAgent)
	}
	u, err := l.Launch()
	if err != nil {
		// Cleanup waits for a process exit that never comes when the
		// process never started, so only the profile is removed here.
		if dir := l.Get(flags.UserDataDir); dir != "" {
			_ = os.RemoveAll(dir)
		}
		return nil, fmt.Errorf("launch headless browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect to headless browser: %w", err)
	}
	s := &rodSession{launcher: l, browser: b}

	page, err := stealth.Page(b)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create tab: %w", err)
	}
	s.page = page
	if err := page.Context(ctx).Navigate(pageURL); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("navigate to %s: %w", pageURL, err)
	}
	return s, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	once sync.Once
	err  error
}

// Cookies returns the cookies visible to the current page URL.
func (s *rodSession) Cookies() ([]Cookie, error) {
	raw, err := s.page.Cookies([]string{})
	if err != nil {
		return nil, err
	}
	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		out = append(out, Cookie{Name: c.Name, Value: c.Value})
	}
	return out, nil
}

// Close shuts the browser down and removes its profile directory. Safe to call twice.
func (s *rodSession) Close() error {
	s.once.Do(func() {
		s.err = s.browser.Close()
		if s.err != nil {
			s.launcher.Kill()
		}
		s.launcher.Cleanup()
	})
	return s.err
}
