package playback

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/snapetech/livetv-player/internal/logging"
	"github.com/snapetech/livetv-player/internal/metrics"
)

// shLauncher runs script under sh for every channel and counts launches.
func shLauncher(t *testing.T, script string, launches *int32) Launcher {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	return LauncherFunc(func(int) (*exec.Cmd, error) {
		if launches != nil {
			atomic.AddInt32(launches, 1)
		}
		return exec.Command("sh", "-c", script), nil
	})
}

func newTestManager(l Launcher, m *metrics.Metrics) *Manager {
	return NewManager(Options{
		Launcher:         l,
		GraceDelay:       150 * time.Millisecond,
		TerminateTimeout: 300 * time.Millisecond,
		KillTimeout:      time.Second,
		DiagnosticLimit:  300,
		Logger:           logging.Discard(),
		Metrics:          m,
	})
}

// collect drains a session's events until the channel closes.
func collect(t *testing.T, s *Session) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("events not closed; got %#v", out)
		}
	}
}

func waitStarted(t *testing.T, s *Session) Started {
	t.Helper()
	select {
	case ev := <-s.Events():
		st, ok := ev.(Started)
		if !ok {
			t.Fatalf("first event = %#v, want Started", ev)
		}
		return st
	case <-time.After(5 * time.Second):
		t.Fatal("no Started event")
	}
	return Started{}
}

func kinds(events []Event) string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		switch ev.(type) {
		case Started:
			names = append(names, "started")
		case Failed:
			names = append(names, "failed")
		case Stopped:
			names = append(names, "stopped")
		}
	}
	return strings.Join(names, ",")
}

func TestSession_runsToNaturalEnd(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	mgr := newTestManager(shLauncher(t, "sleep 0.5", nil), m)
	s, err := mgr.Start(context.Background(), 51, nil)
	if err != nil {
		t.Fatal(err)
	}
	if st := waitStarted(t, s); st.ChannelID != 51 || st.PID == 0 || st.SessionID != s.ID() {
		t.Errorf("Started = %+v", st)
	}
	if s.State() != StateRunning {
		t.Errorf("State = %s, want running", s.State())
	}
	rest := collect(t, s)
	if kinds(rest) != "stopped" {
		t.Fatalf("events after Started = %s", kinds(rest))
	}
	if code := rest[0].(Stopped).ExitCode; code != 0 {
		t.Errorf("ExitCode = %d", code)
	}
	if err := s.Wait(); err != nil {
		t.Errorf("Wait = %v", err)
	}
	if s.State() != StateIdle || mgr.Active() != nil {
		t.Errorf("State = %s, Active = %v", s.State(), mgr.Active())
	}
	if v := testutil.ToFloat64(m.SessionEvents.WithLabelValues("started")); v != 1 {
		t.Errorf("started = %v", v)
	}
	if v := testutil.ToFloat64(m.SessionEvents.WithLabelValues("stopped")); v != 1 {
		t.Errorf("stopped = %v", v)
	}
}

func TestSession_exitDuringGraceFails(t *testing.T) {
	mgr := newTestManager(shLauncher(t, "echo boom >&2; exit 3", nil), nil)
	mgr.opts.GraceDelay = 2 * time.Second
	s, err := mgr.Start(context.Background(), 7, nil)
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, s)
	if kinds(events) != "failed,stopped" {
		t.Fatalf("events = %s", kinds(events))
	}
	var le *LaunchError
	if !errors.As(events[0].(Failed).Err, &le) {
		t.Fatalf("Failed.Err = %v", events[0].(Failed).Err)
	}
	if le.ExitCode != 3 || le.Output != "boom" || le.ChannelID != 7 {
		t.Errorf("LaunchError = %+v", le)
	}
	if !strings.Contains(le.Error(), "boom") {
		t.Errorf("Error() = %q", le.Error())
	}
	if !errors.As(s.Wait(), &le) {
		t.Errorf("Wait = %v", s.Wait())
	}
	if s.State() != StateIdle {
		t.Errorf("State = %s", s.State())
	}
}

func TestSession_cleanExitDuringGraceStillFails(t *testing.T) {
	mgr := newTestManager(shLauncher(t, "echo done; exit 0", nil), nil)
	mgr.opts.GraceDelay = 2 * time.Second
	s, _ := mgr.Start(context.Background(), 7, nil)
	events := collect(t, s)
	if kinds(events) != "failed,stopped" {
		t.Fatalf("events = %s", kinds(events))
	}
	le := events[0].(Failed).Err.(*LaunchError)
	if le.ExitCode != 0 || le.Output != "done" {
		t.Errorf("LaunchError = %+v", le)
	}
}

func TestSession_diagnosticTruncated(t *testing.T) {
	mgr := newTestManager(shLauncher(t, "printf 'x%.0s' $(seq 1 1000) >&2; exit 1", nil), nil)
	mgr.opts.GraceDelay = 2 * time.Second
	s, _ := mgr.Start(context.Background(), 1, nil)
	var le *LaunchError
	if !errors.As(s.Wait(), &le) {
		t.Fatalf("Wait = %v", s.Wait())
	}
	if len(le.Output) != 300 {
		t.Errorf("len(Output) = %d, want 300", len(le.Output))
	}
}

func TestSession_stopTerminates(t *testing.T) {
	mgr := newTestManager(shLauncher(t, "exec sleep 30", nil), nil)
	s, _ := mgr.Start(context.Background(), 1, nil)
	waitStarted(t, s)
	start := time.Now()
	s.Stop()
	if d := time.Since(start); d > 2*time.Second {
		t.Errorf("Stop took %v", d)
	}
	if kinds(collect(t, s)) != "stopped" {
		t.Error("want exactly one Stopped after Started")
	}
	if s.State() != StateIdle || mgr.Active() != nil {
		t.Errorf("State = %s, Active = %v", s.State(), mgr.Active())
	}
	s.Stop()
}

func TestSession_stopKillsStubbornChild(t *testing.T) {
	mgr := newTestManager(shLauncher(t, "trap '' TERM; exec sleep 30", nil), nil)
	s, _ := mgr.Start(context.Background(), 1, nil)
	waitStarted(t, s)
	start := time.Now()
	mgr.Stop()
	d := time.Since(start)
	if d < mgr.opts.TerminateTimeout {
		t.Errorf("killed after %v, before terminate timeout", d)
	}
	if d > 5*time.Second {
		t.Errorf("Stop took %v", d)
	}
	events := collect(t, s)
	if kinds(events) != "stopped" {
		t.Fatalf("events = %s", kinds(events))
	}
	if code := events[0].(Stopped).ExitCode; code != -1 {
		t.Errorf("ExitCode = %d, want -1 for a killed child", code)
	}
}

func TestSession_stopDuringGrace(t *testing.T) {
	mgr := newTestManager(shLauncher(t, "exec sleep 30", nil), nil)
	mgr.opts.GraceDelay = 5 * time.Second
	s, _ := mgr.Start(context.Background(), 1, nil)
	time.Sleep(100 * time.Millisecond)
	s.Stop()
	if kinds(collect(t, s)) != "stopped" {
		t.Error("stop during startup should emit only Stopped")
	}
	if s.Wait() != nil {
		t.Errorf("Wait = %v", s.Wait())
	}
}

func TestSession_contextCancelStops(t *testing.T) {
	mgr := newTestManager(shLauncher(t, "exec sleep 30", nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	s, _ := mgr.Start(ctx, 1, nil)
	waitStarted(t, s)
	cancel()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session survived context cancel")
	}
}

func TestSession_launcherError(t *testing.T) {
	mgr := newTestManager(LauncherFunc(func(int) (*exec.Cmd, error) {
		return nil, errors.New("no executable")
	}), nil)
	s, _ := mgr.Start(context.Background(), 4, nil)
	events := collect(t, s)
	if kinds(events) != "failed,stopped" {
		t.Fatalf("events = %s", kinds(events))
	}
	le := events[0].(Failed).Err.(*LaunchError)
	if le.ExitCode != -1 || !strings.Contains(le.Error(), "no executable") {
		t.Errorf("LaunchError = %+v", le)
	}
}

func TestSession_binaryMissing(t *testing.T) {
	mgr := newTestManager(LauncherFunc(func(int) (*exec.Cmd, error) {
		return exec.Command("/nonexistent/livetv-player-child"), nil
	}), nil)
	s, _ := mgr.Start(context.Background(), 4, nil)
	var le *LaunchError
	if !errors.As(s.Wait(), &le) || le.ExitCode != -1 {
		t.Errorf("Wait = %v", s.Wait())
	}
}

func TestManager_confirmDeclinedKeepsSession(t *testing.T) {
	var launches int32
	mgr := newTestManager(shLauncher(t, "exec sleep 30", &launches), nil)
	defer mgr.Stop()
	first, _ := mgr.Start(context.Background(), 1, nil)
	waitStarted(t, first)

	asked := false
	s, err := mgr.Start(context.Background(), 2, func() bool { asked = true; return false })
	if !errors.Is(err, ErrBusy) || s != nil {
		t.Fatalf("Start = %v, %v; want ErrBusy", s, err)
	}
	if !asked {
		t.Error("confirm not consulted")
	}
	if _, err := mgr.Start(context.Background(), 3, nil); !errors.Is(err, ErrBusy) {
		t.Errorf("nil confirm: err = %v", err)
	}
	if mgr.Active() != first || first.State() != StateRunning {
		t.Errorf("active = %v state = %s", mgr.Active(), first.State())
	}
	if n := atomic.LoadInt32(&launches); n != 1 {
		t.Errorf("launches = %d, want 1", n)
	}
}

func TestManager_confirmAcceptedReplaces(t *testing.T) {
	var launches int32
	mgr := newTestManager(shLauncher(t, "exec sleep 30", &launches), nil)
	defer mgr.Stop()
	first, _ := mgr.Start(context.Background(), 1, nil)
	waitStarted(t, first)

	second, err := mgr.Start(context.Background(), 2, func() bool { return true })
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-first.Done():
	default:
		t.Fatal("previous session still running after replacement")
	}
	if kinds(collect(t, first)) != "stopped" {
		t.Error("previous session should end with Stopped")
	}
	if mgr.Active() != second || second.ChannelID() != 2 {
		t.Errorf("active = %v", mgr.Active())
	}
	if second.ID() == first.ID() {
		t.Error("session ids must differ")
	}
	waitStarted(t, second)
	if n := atomic.LoadInt32(&launches); n != 2 {
		t.Errorf("launches = %d", n)
	}
}

func TestManager_startAfterEndNeedsNoConfirm(t *testing.T) {
	mgr := newTestManager(shLauncher(t, "exit 1", nil), nil)
	s, _ := mgr.Start(context.Background(), 1, nil)
	_ = s.Wait()
	s2, err := mgr.Start(context.Background(), 2, nil)
	if err != nil {
		t.Fatalf("Start after end = %v", err)
	}
	_ = s2.Wait()
}

func TestStateString(t *testing.T) {
	for st, want := range map[State]string{
		StateIdle: "idle", StateStarting: "starting", StateRunning: "running",
		StateStopping: "stopping", StateFailed: "failed",
	} {
		if st.String() != want {
			t.Errorf("%d.String() = %q", int(st), st.String())
		}
	}
}

func TestTerminatedError(t *testing.T) {
	err := error(&TerminatedError{SessionID: "x", ChannelID: 9})
	var te *TerminatedError
	if !errors.As(err, &te) || !strings.Contains(err.Error(), "9") {
		t.Errorf("err = %v", err)
	}
}
