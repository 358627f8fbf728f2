package listing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/snapetech/livetv-player/internal/httpclient"
)

// iframeSrc matches the first src = "..." assignment in the indirection file.
var iframeSrc = regexp.MustCompile(`src\s*=\s*"([^"]*)"`)

// ResolveBaseURL fetches the remote indirection file and returns the scheme+host
// of the first src="..." URL it names. On any failure it returns fallback together
// with the reason, so the caller can log it; the returned URL is always usable.
func ResolveBaseURL(ctx context.Context, client *http.Client, indirectionURL, fallback, userAgent string, timeout time.Duration) (string, error) {
	fallback = strings.TrimSuffix(fallback, "/")
	if strings.TrimSpace(indirectionURL) == "" {
		return fallback, nil
	}
	if client == nil {
		client = httpclient.Default()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indirectionURL, nil)
	if err != nil {
		return fallback, err
	}
	httpclient.SetBrowserHeaders(req, userAgent, "")
	resp, err := client.Do(req)
	if err != nil {
		return fallback, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fallback, fmt.Errorf("indirection file returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fallback, err
	}
	m := iframeSrc.FindSubmatch(body)
	if m == nil {
		return fallback, fmt.Errorf("indirection file has no src attribute")
	}
	u, err := url.Parse(strings.TrimSpace(string(m[1])))
	if err != nil {
		return fallback, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fallback, fmt.Errorf("indirection src %q is not an http(s) URL", m[1])
	}
	return u.Scheme + "://" + u.Host, nil
}
