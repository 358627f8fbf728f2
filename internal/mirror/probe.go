package mirror

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Result is the outcome of probing one candidate stream URL.
type Result struct {
	URL        string
	Status     Status
	StatusCode int
	LatencyMs  int64
}

type Status string

const (
	StatusOK         Status = "ok"
	StatusCloudflare Status = "cloudflare"
	StatusBadStatus  Status = "bad_status"
	StatusTimeout    Status = "timeout"
	StatusError      Status = "error"
)

// ProbeOne sends a HEAD request for streamURL with the given headers. 200 and
// 206 count as reachable; anything else, including redirects the client could
// not follow to a 200, does not. Bodies are never read.
func ProbeOne(ctx context.Context, client *http.Client, streamURL string, headers map[string]string) Result {
	if client == nil {
		client = &http.Client{Timeout: 4 * time.Second}
	}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, streamURL, nil)
	if err != nil {
		return Result{URL: streamURL, Status: StatusError, LatencyMs: time.Since(start).Milliseconds()}
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		if isTimeout(err) {
			return Result{URL: streamURL, Status: StatusTimeout, LatencyMs: latency}
		}
		return Result{URL: streamURL, Status: StatusError, LatencyMs: latency}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
	code := resp.StatusCode
	switch code {
	case http.StatusOK, http.StatusPartialContent:
		return Result{URL: streamURL, Status: StatusOK, StatusCode: code, LatencyMs: latency}
	}
	// A HEAD has no challenge body to inspect, so only trust the Server header.
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get("Server")), "cloudflare") &&
		(code == 403 || code == 503 || code == 520 || code == 521 || code == 524) {
		return Result{URL: streamURL, Status: StatusCloudflare, StatusCode: code, LatencyMs: latency}
	}
	return Result{URL: streamURL, Status: StatusBadStatus, StatusCode: code, LatencyMs: latency}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "timeout") || strings.Contains(s, "deadline")
}
