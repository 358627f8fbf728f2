package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter paces requests per scheme+host so a listing refresh does not
// hammer the source site. All clients sharing a limiter share its budget.
//
//	lim := NewHostLimiter(2, 1)
//	if err := lim.Wait(ctx, req.URL); err != nil { ... }
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewHostLimiter allows perSecond requests per host with the given burst.
// perSecond <= 0 means unlimited.
func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Wait blocks until u's host may be contacted or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, u *url.URL) error {
	return h.limiterFor(u).Wait(ctx)
}

func (h *HostLimiter) limiterFor(u *url.URL) *rate.Limiter {
	key := u.Scheme + "://" + u.Host
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[key]
	if !ok {
		l = rate.NewLimiter(h.limit, h.burst)
		h.limiters[key] = l
	}
	return l
}

type pacedTransport struct {
	base    http.RoundTripper
	limiter *HostLimiter
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context(), req.URL); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
