package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/snapetech/livetv-player/internal/httpclient"
)

// CheckSource fetches the listing site root with a browser User-Agent.
// Returns nil if it answered 200, an error describing the failure if not.
func CheckSource(ctx context.Context, baseURL, userAgent string) error {
	if baseURL == "" {
		return fmt.Errorf("no listing site configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return err
	}
	httpclient.SetBrowserHeaders(req, userAgent, "")
	resp, err := httpclient.WithTimeout(15 * time.Second).Do(req)
	if err != nil {
		return fmt.Errorf("listing site unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("listing site returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// CheckPages hits each path under baseURL and returns the first error or nil.
func CheckPages(ctx context.Context, baseURL, userAgent string, paths ...string) error {
	client := httpclient.WithTimeout(10 * time.Second)
	for _, path := range paths {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		httpclient.SetBrowserHeaders(req, userAgent, baseURL)
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
		}
	}
	return nil
}

// Binary is an external program playback depends on.
type Binary struct {
	Label string // shown to the user, e.g. "streamlink"
	Name  string // looked up on $PATH
	Hint  string // how to install it
}

// CheckBinaries resolves each binary with lookPath. The result has one entry
// per binary: the resolved path, or an error carrying the install hint.
func CheckBinaries(lookPath func(string) (string, error), bins []Binary) ([]string, []error) {
	paths := make([]string, len(bins))
	errs := make([]error, len(bins))
	for i, b := range bins {
		p, err := lookPath(b.Name)
		if err != nil {
			errs[i] = fmt.Errorf("%s not found (%s): %s", b.Label, b.Name, b.Hint)
			continue
		}
		paths[i] = p
	}
	return paths, errs
}
