package browser

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/snapetech/livetv-player/internal/logging"
	"github.com/snapetech/livetv-player/internal/metrics"
)

type fakeSession struct {
	mu        sync.Mutex
	cookies   []Cookie
	cookieErr error
	closed    int
}

func (s *fakeSession) Cookies() ([]Cookie, error) { return s.cookies, s.cookieErr }

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeOpener struct {
	sess   *fakeSession
	err    error
	opened []string
}

func (o *fakeOpener) Open(_ context.Context, pageURL string) (Session, error) {
	o.opened = append(o.opened, pageURL)
	if o.err != nil {
		return nil, o.err
	}
	return o.sess, nil
}

func watchURL(id int) string { return "https://watch.example/watch.php?id=" + strconv.Itoa(id) }

func newTestAcquirer(o Opener, m *metrics.Metrics) *Acquirer {
	return NewAcquirer(Config{
		Opener:      o,
		PageURL:     watchURL,
		SettleDelay: 10 * time.Millisecond,
		Logger:      logging.Discard(),
		Metrics:     m,
	})
}

func TestJoinCookies(t *testing.T) {
	got := JoinCookies([]Cookie{{"a", "1"}, {"", "skip"}, {"b", "x=y"}})
	if got != "a=1; b=x=y" {
		t.Errorf("JoinCookies = %q", got)
	}
	if JoinCookies(nil) != "" {
		t.Error("nil cookies should join to empty")
	}
}

func TestAcquire_ok(t *testing.T) {
	sess := &fakeSession{cookies: []Cookie{{"cf", "abc"}, {"sid", "42"}}}
	o := &fakeOpener{sess: sess}
	m := metrics.New(prometheus.NewRegistry())
	cred, ok := newTestAcquirer(o, m).Acquire(context.Background(), 51)
	if !ok || cred.Cookie != "cf=abc; sid=42" || cred.Count != 2 {
		t.Errorf("Acquire = %+v, %v", cred, ok)
	}
	if len(o.opened) != 1 || o.opened[0] != "https://watch.example/watch.php?id=51" {
		t.Errorf("opened = %v", o.opened)
	}
	if sess.closeCount() != 1 {
		t.Errorf("closed %d times", sess.closeCount())
	}
	if v := testutil.ToFloat64(m.Credentials.WithLabelValues("ok")); v != 1 {
		t.Errorf("ok credentials = %v", v)
	}
}

func TestAcquire_openFails(t *testing.T) {
	o := &fakeOpener{err: errors.New("no chromium")}
	cred, ok := newTestAcquirer(o, nil).Acquire(context.Background(), 1)
	if ok || cred.Cookie != "" {
		t.Errorf("Acquire = %+v, %v", cred, ok)
	}
}

func TestAcquire_cookieErrorStillCloses(t *testing.T) {
	sess := &fakeSession{cookieErr: errors.New("target closed")}
	_, ok := newTestAcquirer(&fakeOpener{sess: sess}, nil).Acquire(context.Background(), 1)
	if ok {
		t.Error("expected no credential")
	}
	if sess.closeCount() != 1 {
		t.Errorf("closed %d times", sess.closeCount())
	}
}

func TestAcquire_noCookies(t *testing.T) {
	sess := &fakeSession{}
	_, ok := newTestAcquirer(&fakeOpener{sess: sess}, nil).Acquire(context.Background(), 1)
	if ok {
		t.Error("expected no credential for empty jar")
	}
	if sess.closeCount() != 1 {
		t.Errorf("closed %d times", sess.closeCount())
	}
}

func TestAcquire_cancelledDuringSettle(t *testing.T) {
	sess := &fakeSession{cookies: []Cookie{{"a", "1"}}}
	a := NewAcquirer(Config{
		Opener:      &fakeOpener{sess: sess},
		PageURL:     watchURL,
		SettleDelay: time.Minute,
		Logger:      logging.Discard(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, ok := a.Acquire(ctx, 1)
	if ok {
		t.Error("expected no credential")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("settle delay ignored cancellation")
	}
	if sess.closeCount() != 1 {
		t.Errorf("closed %d times", sess.closeCount())
	}
}

func TestHold_keepsBrowserUntilRelease(t *testing.T) {
	sess := &fakeSession{cookies: []Cookie{{"a", "1"}}}
	cred, ok, release := newTestAcquirer(&fakeOpener{sess: sess}, nil).Hold(context.Background(), 7)
	if !ok || cred.Cookie != "a=1" {
		t.Fatalf("Hold = %+v, %v", cred, ok)
	}
	if sess.closeCount() != 0 {
		t.Fatal("browser closed before release")
	}
	release()
	release()
	if sess.closeCount() != 1 {
		t.Errorf("closed %d times, want 1", sess.closeCount())
	}
}

func TestHold_unconfigured(t *testing.T) {
	_, ok, release := NewAcquirer(Config{Logger: logging.Discard()}).Hold(context.Background(), 1)
	if ok || release == nil {
		t.Fatalf("ok=%v release nil=%v", ok, release == nil)
	}
	release()
}
