// Package player is the child side of a playback session: it gathers a
// cookie, picks a mirror and runs the external pipeline until it exits.
package player

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snapetech/livetv-player/internal/browser"
	"github.com/snapetech/livetv-player/internal/config"
	"github.com/snapetech/livetv-player/internal/mirror"
)

// StreamResolver picks the URL to play.
type StreamResolver interface {
	Resolve(ctx context.Context, channelID int) mirror.Resolution
}

// CredentialSource supplies watch-page cookies.
type CredentialSource interface {
	Acquire(ctx context.Context, channelID int) (browser.Credential, bool)
	Hold(ctx context.Context, channelID int) (browser.Credential, bool, func())
}

type Options struct {
	ChannelID int
	Strategy  string // config.StrategyStreamlink or config.StrategyHeadless

	StreamlinkPath string
	FFplayPath     string
	PlayerPath     string // "" = auto-detect

	// Headers go to the stream host on every request, in order.
	Headers []Header

	Resolver    StreamResolver
	Credentials CredentialSource // nil = play without cookies
	Finder      *Finder          // nil = DefaultFinder()

	// StopTimeout is how long the child gets to exit after ctx is done.
	StopTimeout time.Duration

	Logger logrus.FieldLogger
}

const (
	hintPlayer = "install mpv (recommended, e.g. `winget install mpv.mpv`, `brew install mpv`, `apt install mpv`) or VLC"
	hintStream = "install streamlink: `pip install streamlink` or https://github.com/streamlink/streamlink/releases"
	hintFFplay = "install ffmpeg, which provides ffplay"
)

// Run plays opts.ChannelID and returns a process exit code: 0 when the
// pipeline ended normally or ctx was cancelled, non-zero on launch failure or
// a failing child.
func Run(ctx context.Context, opts Options) int {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Finder == nil {
		f := DefaultFinder()
		opts.Finder = &f
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 3 * time.Second
	}
	log := opts.Logger.WithFields(logrus.Fields{"channel": opts.ChannelID, "strategy": opts.Strategy})
	if opts.Resolver == nil {
		log.Error("no stream resolver configured")
		return 1
	}
	switch opts.Strategy {
	case config.StrategyHeadless:
		return runHeadless(ctx, log, opts)
	case config.StrategyStreamlink, "":
		return runStreamlink(ctx, log, opts)
	default:
		log.Errorf("unknown strategy %q", opts.Strategy)
		return 1
	}
}

func runStreamlink(ctx context.Context, log *logrus.Entry, opts Options) int {
	player := opts.Finder.Player(opts.PlayerPath)
	if player == "" {
		log.Error("no suitable video player found; " + hintPlayer)
		return 1
	}
	streamlink, err := opts.Finder.Binary(opts.StreamlinkPath)
	if err != nil {
		log.WithError(err).Error("streamlink not found; " + hintStream)
		return 1
	}

	var cookie string
	if opts.Credentials != nil {
		if cred, ok := opts.Credentials.Acquire(ctx, opts.ChannelID); ok {
			cookie = cred.Cookie
		}
	}
	res := opts.Resolver.Resolve(ctx, opts.ChannelID)
	if ctx.Err() != nil {
		log.Info("cancelled before launch")
		return 0
	}
	log.WithFields(logrus.Fields{"player": player, "url": res.URL, "source": res.Source, "cookie": cookie != ""}).Info("starting streamlink")
	return runChild(ctx, log.WithField("proc", "streamlink"), streamlink, StreamlinkArgs(player, opts.Headers, cookie, res.URL), opts.StopTimeout)
}

func runHeadless(ctx context.Context, log *logrus.Entry, opts Options) int {
	ffplay, err := opts.Finder.Binary(opts.FFplayPath)
	if err != nil {
		log.WithError(err).Error("ffplay not found; " + hintFFplay)
		return 1
	}
	headers := append([]Header(nil), opts.Headers...)
	if opts.Credentials != nil {
		cred, ok, release := opts.Credentials.Hold(ctx, opts.ChannelID)
		// The browser keeps the host's session token alive while ffplay runs.
		defer release()
		if ok {
			headers = append(headers, Header{Name: "Cookie", Value: cred.Cookie})
		}
	}
	res := opts.Resolver.Resolve(ctx, opts.ChannelID)
	if ctx.Err() != nil {
		log.Info("cancelled before launch")
		return 0
	}
	log.WithFields(logrus.Fields{"url": res.URL, "source": res.Source}).Info("starting ffplay")
	return runChild(ctx, log.WithField("proc", "ffplay"), ffplay, FFplayArgs(headers, res.URL), opts.StopTimeout)
}

func runChild(ctx context.Context, log *logrus.Entry, path string, args []string, stopTimeout time.Duration) int {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Cancel = func() error { return terminate(cmd.Process) }
	cmd.WaitDelay = stopTimeout

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		pw.Close()
		log.WithError(err).Error("start failed")
		return 1
	}
	log.WithField("pid", cmd.Process.Pid).Debug("child started")

	copied := make(chan struct{})
	go func() {
		defer close(copied)
		logLines(log, pr)
	}()
	err := cmd.Wait()
	pw.Close()
	<-copied

	if err == nil {
		log.Info("exited normally")
		return 0
	}
	if ctx.Err() != nil {
		log.Info("stopped")
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code := ee.ExitCode()
		if code <= 0 {
			code = 1
		}
		log.WithField("code", code).Warn("exited with error")
		return code
	}
	log.WithError(err).Warn("wait failed")
	return 1
}

// StopBudget is the StopTimeout for a pipeline whose parent waits
// parentTerminate before killing this process: half of it, so the pipeline is
// killed and reaped here first.
func StopBudget(parentTerminate time.Duration) time.Duration {
	if parentTerminate <= 0 {
		parentTerminate = 3 * time.Second
	}
	return parentTerminate / 2
}

// terminate asks p to exit, falling back to a kill where SIGTERM is unsupported.
func terminate(p *os.Process) error {
	if p == nil {
		return nil
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		return p.Kill()
	}
	return nil
}

func logLines(log *logrus.Entry, r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		log.Info(sc.Text())
	}
	if err := sc.Err(); err != nil {
		log.WithError(err).Debug("output read")
		_, _ = io.Copy(io.Discard, r)
	}
}
