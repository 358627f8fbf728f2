// Package playback owns the child process that plays a channel. A Manager
// keeps at most one Session alive; replacing it requires the caller's consent.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/snapetech/livetv-player/internal/metrics"
)

type Options struct {
	Launcher Launcher

	GraceDelay       time.Duration // child must survive this long to count as started; default 2s
	TerminateTimeout time.Duration // default 3s
	KillTimeout      time.Duration // default 2s
	DiagnosticLimit  int           // characters of output in a LaunchError; default 300

	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
}

func (o *Options) applyDefaults() {
	if o.Launcher == nil {
		o.Launcher = SelfLauncher{}
	}
	if o.GraceDelay <= 0 {
		o.GraceDelay = 2 * time.Second
	}
	if o.TerminateTimeout <= 0 {
		o.TerminateTimeout = 3 * time.Second
	}
	if o.KillTimeout <= 0 {
		o.KillTimeout = 2 * time.Second
	}
	if o.DiagnosticLimit <= 0 {
		o.DiagnosticLimit = 300
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
}

// Manager runs one playback session at a time.
type Manager struct {
	opts Options

	startMu sync.Mutex // serializes Start's confirm-stop-launch sequence

	mu     sync.Mutex
	active *Session
}

func NewManager(opts Options) *Manager {
	opts.applyDefaults()
	return &Manager{opts: opts}
}

// Start launches playback of channelID. If a session is active, confirm is
// asked whether to replace it: nil or false returns ErrBusy and leaves the
// active session alone; true stops it, waits for it to end, then launches.
//
// Launch failures are reported on the returned session's events, not here.
// The session is stopped when ctx is done.
func (m *Manager) Start(ctx context.Context, channelID int, confirm func() bool) (*Session, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	if cur := m.Active(); cur != nil {
		if confirm == nil || !confirm() {
			return nil, ErrBusy
		}
		m.opts.Logger.WithFields(logrus.Fields{"session": cur.ID(), "channel": cur.ChannelID()}).Info("replacing active session")
		cur.Stop()
	}

	s := newSession(uuid.NewString(), channelID, &m.opts)
	m.mu.Lock()
	m.active = s
	m.mu.Unlock()
	go s.run(ctx, m.release)
	return s, nil
}

// Active returns the running session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Stop ends the active session, if any, and waits for it.
func (m *Manager) Stop() {
	if s := m.Active(); s != nil {
		s.Stop()
	}
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == s {
		m.active = nil
	}
}
