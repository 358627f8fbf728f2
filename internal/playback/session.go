package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

const outputCap = 8 << 10

// Session is one run of the child pipeline for a channel.
type Session struct {
	id        string
	channelID int
	opts      *Options
	log       logrus.FieldLogger

	events chan Event
	stopCh chan struct{}
	done   chan struct{}

	stopOnce sync.Once

	mu    sync.Mutex
	state State
	err   error
}

func newSession(id string, channelID int, opts *Options) *Session {
	return &Session{
		id:        id,
		channelID: channelID,
		opts:      opts,
		log:       opts.Logger.WithFields(logrus.Fields{"session": id, "channel": channelID}),
		// Started or Failed, then Stopped: never more than three.
		events: make(chan Event, 3),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		state:  StateStarting,
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) ChannelID() int { return s.channelID }

// Events delivers Started or Failed, then Stopped, then is closed.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed once the child is gone and Stopped has been sent.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Wait blocks until the session ends and returns its *LaunchError, if any.
func (s *Session) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop asks the child to exit and waits for the session to end. Safe to call
// repeatedly and after the session has ended.
func (s *Session) Stop() {
	s.requestStop()
	<-s.done
}

func (s *Session) requestStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		s.log.WithField("state", st).Debug("session state")
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warnf("dropped %T event", ev)
	}
}

// run owns the child from launch to cleanup. onEnd runs just before Stopped is sent.
func (s *Session) run(ctx context.Context, onEnd func(*Session)) {
	var (
		cmd    *exec.Cmd
		waitCh chan error
		exit   = -1
	)
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("session panic: %v", r)
		}
		if cmd != nil && cmd.Process != nil && waitCh != nil {
			exit = s.reap(cmd, waitCh, exit)
		}
		s.setState(StateIdle)
		if onEnd != nil {
			onEnd(s)
		}
		s.opts.Metrics.SessionEvent("stopped")
		s.emit(Stopped{SessionID: s.id, ChannelID: s.channelID, ExitCode: exit, At: time.Now()})
		close(s.events)
		close(s.done)
	}()

	var err error
	cmd, err = s.opts.Launcher.Command(s.channelID)
	if err != nil {
		cmd = nil
		s.fail(&LaunchError{ChannelID: s.channelID, ExitCode: -1, Err: err})
		return
	}
	stdout, stderr := newHeadBuffer(outputCap), newHeadBuffer(outputCap)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	cmd.Stdin = nil
	// Grandchildren may hold the output pipes open after the child exits.
	cmd.WaitDelay = s.opts.KillTimeout
	if err := cmd.Start(); err != nil {
		cmd = nil
		s.fail(&LaunchError{ChannelID: s.channelID, ExitCode: -1, Err: err})
		return
	}
	pid := cmd.Process.Pid
	s.log.WithField("pid", pid).Info("child started")
	waitCh = make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	grace := time.NewTimer(s.opts.GraceDelay)
	defer grace.Stop()
	select {
	case werr := <-waitCh:
		waitCh = nil
		code := exitCode(cmd, werr)
		s.fail(&LaunchError{
			ChannelID: s.channelID,
			ExitCode:  code,
			Output:    diagnostic(stderr.String(), stdout.String(), s.opts.DiagnosticLimit),
			Err:       fmt.Errorf("exited within %s: %w", s.opts.GraceDelay, errOrExit(werr)),
		})
		exit = code
		return
	case <-s.stopCh:
		s.log.Info("stop requested during startup")
		return
	case <-ctx.Done():
		return
	case <-grace.C:
	}

	s.setState(StateRunning)
	s.opts.Metrics.SessionEvent("started")
	s.emit(Started{SessionID: s.id, ChannelID: s.channelID, PID: pid, At: time.Now()})

	select {
	case werr := <-waitCh:
		waitCh = nil
		exit = exitCode(cmd, werr)
		s.log.WithField("code", exit).Info("child exited")
	case <-s.stopCh:
		s.log.Info("stop requested")
	case <-ctx.Done():
		s.log.Info("context done; stopping")
	}
}

func (s *Session) fail(err *LaunchError) {
	s.setState(StateFailed)
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.log.WithError(err).Warn("launch failed")
	s.opts.Metrics.SessionEvent("failed")
	s.emit(Failed{SessionID: s.id, ChannelID: s.channelID, Err: err, At: time.Now()})
}

// reap terminates the child if it is still running: SIGTERM, then a kill
// after TerminateTimeout, then give up after KillTimeout.
func (s *Session) reap(cmd *exec.Cmd, waitCh <-chan error, exit int) int {
	s.setState(StateStopping)
	if err := terminate(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.log.WithError(err).Debug("terminate")
	}
	select {
	case werr := <-waitCh:
		return exitCode(cmd, werr)
	case <-time.After(s.opts.TerminateTimeout):
	}
	s.log.Warn("child ignored terminate; killing")
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.log.WithError(err).Debug("kill")
	}
	select {
	case werr := <-waitCh:
		return exitCode(cmd, werr)
	case <-time.After(s.opts.KillTimeout):
		s.log.Error("child did not exit after kill")
		return exit
	}
}

func terminate(p *os.Process) error {
	if err := p.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return err
		}
		return p.Kill()
	}
	return nil
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

func errOrExit(err error) error {
	if err == nil {
		return errors.New("exit status 0")
	}
	return err
}
