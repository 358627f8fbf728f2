package playback

import (
	"errors"
	"fmt"
	"time"
)

// State of a Session. A session moves Idle → Starting → Running → Stopping →
// Idle; a launch that dies during the grace window passes through Failed.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is delivered on Session.Events: Started, Failed or Stopped.
type Event interface {
	Session() string
}

// Started is sent once the child survived the grace window.
type Started struct {
	SessionID string
	ChannelID int
	PID       int
	At        time.Time
}

// Failed is sent when the child could not be started or exited during the
// grace window. Err is a *LaunchError.
type Failed struct {
	SessionID string
	ChannelID int
	Err       error
	At        time.Time
}

// Stopped is always the last event of a session, sent once the child is gone.
type Stopped struct {
	SessionID string
	ChannelID int
	ExitCode  int // -1 when unknown or killed
	At        time.Time
}

func (e Started) Session() string { return e.SessionID }
func (e Failed) Session() string  { return e.SessionID }
func (e Stopped) Session() string { return e.SessionID }

// ErrBusy is returned by Manager.Start when a session is active and the
// caller declined to replace it.
var ErrBusy = errors.New("playback: a session is already active")

// LaunchError reports a child that failed to start or died during the grace window.
type LaunchError struct {
	ChannelID int
	ExitCode  int    // -1 when the process never ran
	Output    string // leading child output, truncated
	Err       error
}

func (e *LaunchError) Error() string {
	out := e.Output
	if out == "" {
		out = "No output"
	}
	if e.ExitCode < 0 {
		return fmt.Sprintf("channel %d: player failed to start: %v; details: %s", e.ChannelID, e.Err, out)
	}
	return fmt.Sprintf("channel %d: player exited during startup (exit code %d); details: %s", e.ChannelID, e.ExitCode, out)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// TerminatedError describes a session the user stopped. The manager never
// produces it; front ends wrap user-initiated stops in it to tell them apart
// from streams that ended on their own.
type TerminatedError struct {
	SessionID string
	ChannelID int
}

func (e *TerminatedError) Error() string {
	return fmt.Sprintf("channel %d: playback stopped by user", e.ChannelID)
}
