// Package console is the interactive front end: it lists channels and events,
// starts and stops playback, and reports streams that end on their own.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/snapetech/livetv-player/internal/catalog"
	"github.com/snapetech/livetv-player/internal/listing"
	"github.com/snapetech/livetv-player/internal/playback"
)

// Lister fetches listings. *listing.Retriever implements it.
type Lister interface {
	FetchChannels(ctx context.Context) ([]catalog.Channel, error)
	FetchEvents(ctx context.Context) ([]catalog.Event, error)
}

type Config struct {
	In     io.Reader
	Out    io.Writer
	Color  *bool // nil = colour when Out is a terminal
	Lister Lister
	Player *playback.Manager
	Logger logrus.FieldLogger
}

// Console runs the menu loop. It is not safe for concurrent Run calls.
type Console struct {
	in      *bufio.Reader
	out     io.Writer
	lister  Lister
	player  *playback.Manager
	log     logrus.FieldLogger
	catalog *catalog.Catalog

	outMu sync.Mutex
	title *color.Color
	ok    *color.Color
	warn  *color.Color
	dim   *color.Color

	// rows is the last printed listing; "p #n" picks from it.
	rows []int

	stopMu      sync.Mutex
	userStopped map[string]bool

	// closing is set once Run is shutting down; every stop after that is ours.
	closing  atomic.Bool
	watchers sync.WaitGroup
}

func New(cfg Config) *Console {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	useColor := isTerminal(cfg.Out)
	if cfg.Color != nil {
		useColor = *cfg.Color
	}
	c := &Console{
		in:          bufio.NewReader(cfg.In),
		out:         cfg.Out,
		lister:      cfg.Lister,
		player:      cfg.Player,
		log:         cfg.Logger,
		catalog:     catalog.New(),
		title:       color.New(color.FgCyan, color.Bold),
		ok:          color.New(color.FgGreen),
		warn:        color.New(color.FgYellow),
		dim:         color.New(color.Faint),
		userStopped: make(map[string]bool),
	}
	for _, col := range []*color.Color{c.title, c.ok, c.warn, c.dim} {
		if useColor {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Catalog exposes the listings loaded so far.
func (c *Console) Catalog() *catalog.Catalog { return c.catalog }

// Run loads listings and serves commands until "q", end of input or ctx is
// done. Any active playback is stopped, and reported, before Run returns.
func (c *Console) Run(ctx context.Context) error {
	defer c.shutdown()

	loaded := make(chan error, 1)
	go func() { loaded <- c.Refresh(ctx) }()
	c.println(c.title, "Live TV player")
	c.printf(nil, "Loading listings...\n")
	if err := <-loaded; err == nil {
		c.printChannels()
	}
	c.help()

	for {
		c.printf(nil, "> ")
		line, err := c.readLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if quit := c.dispatch(ctx, line); quit {
			return nil
		}
	}
}

func (c *Console) dispatch(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(cmd) {
	case "":
	case "c", "channels":
		c.printChannels()
	case "e", "events":
		c.printEvents()
	case "p", "play":
		c.play(ctx, arg)
	case "s", "stop":
		c.stop()
	case "r", "refresh":
		if err := c.Refresh(ctx); err == nil {
			c.printf(c.ok, "Listings updated.\n")
		}
	case "h", "help", "?":
		c.help()
	case "q", "quit", "exit":
		return true
	default:
		c.printf(c.warn, "Unknown command %q\n", cmd)
	}
	return false
}

func (c *Console) help() {
	c.printf(c.dim, "commands: c channels | e events | p <id|#row> play | s stop | r refresh | q quit\n")
}

// Refresh fetches channels and events concurrently. On any failure the
// current listings are kept and the remediation hint is printed.
func (c *Console) Refresh(ctx context.Context) error {
	var (
		channels []catalog.Channel
		events   []catalog.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		channels, err = c.lister.FetchChannels(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = c.lister.FetchEvents(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		c.log.WithError(err).Warn("listing refresh failed")
		c.printf(c.warn, "Error loading listings: %v\n%s\n", err, listing.Remediation(err))
		return err
	}
	c.catalog.Replace(channels, events)
	return nil
}

func (c *Console) printChannels() {
	channels, _ := c.catalog.Snapshot()
	c.println(c.title, fmt.Sprintf("24/7 channels (%d)", len(channels)))
	c.rows = c.rows[:0]
	for i, ch := range channels {
		c.rows = append(c.rows, ch.ID)
		c.printf(nil, "%4d  %-40s %s\n", i+1, ch.Name, c.dim.Sprintf("id %d", ch.ID))
	}
}

func (c *Console) printEvents() {
	_, events := c.catalog.Snapshot()
	playable := catalog.PlayableEvents(events)
	c.println(c.title, fmt.Sprintf("Scheduled events (%d playable of %d)", len(playable), len(events)))
	c.rows = c.rows[:0]
	for i, ev := range playable {
		id, _ := ev.ChannelNumber()
		c.rows = append(c.rows, id)
		c.printf(nil, "%4d  %-10s %-18s %s  %s\n", i+1, ev.TimeLocal, ev.Category, ev.Title, c.dim.Sprintf("%s (%s)", ev.ChannelName, ev.ChannelID))
	}
}

// parseTarget accepts a channel id or "#n" for row n of the last listing.
func (c *Console) parseTarget(arg string) (int, error) {
	if strings.HasPrefix(arg, "#") {
		n, err := strconv.Atoi(arg[1:])
		if err != nil || n < 1 || n > len(c.rows) {
			return 0, fmt.Errorf("no row %s in the last listing", arg)
		}
		return c.rows[n-1], nil
	}
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("channel id must be a positive number, got %q", arg)
	}
	return id, nil
}

func (c *Console) play(ctx context.Context, arg string) {
	id, err := c.parseTarget(arg)
	if err != nil {
		c.printf(c.warn, "%v\n", err)
		return
	}
	name := c.channelName(id)
	var replaced *playback.Session
	confirm := func() bool {
		cur := c.player.Active()
		if cur == nil {
			return true
		}
		c.printf(c.warn, "Channel %d is playing. Stop it and play %s? [y/N] ", cur.ChannelID(), name)
		answer, err := c.readLine(ctx)
		if err != nil {
			return false
		}
		yes := strings.EqualFold(strings.TrimSpace(answer), "y") || strings.EqualFold(strings.TrimSpace(answer), "yes")
		if yes {
			replaced = cur
			c.markUserStopped(cur)
		}
		return yes
	}
	s, err := c.player.Start(ctx, id, confirm)
	if errors.Is(err, playback.ErrBusy) {
		c.printf(nil, "Keeping the current stream.\n")
		return
	}
	if err != nil {
		c.printf(c.warn, "Could not start playback: %v\n", err)
		return
	}
	if replaced != nil {
		c.log.WithField("session", replaced.ID()).Debug("replaced by new session")
	}
	c.printf(nil, "Starting %s...\n", name)
	c.watchers.Add(1)
	go func() {
		defer c.watchers.Done()
		c.watch(ctx, s, name)
	}()
}

func (c *Console) stop() {
	cur := c.player.Active()
	if cur == nil {
		c.printf(nil, "Nothing is playing.\n")
		return
	}
	c.markUserStopped(cur)
	cur.Stop()
}

// shutdown stops playback as an explicit stop and waits for its report.
func (c *Console) shutdown() {
	c.closing.Store(true)
	if cur := c.player.Active(); cur != nil {
		c.markUserStopped(cur)
	}
	c.player.Stop()
	c.watchers.Wait()
}

func (c *Console) markUserStopped(s *playback.Session) {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	c.userStopped[s.ID()] = true
}

func (c *Console) takeUserStopped(s *playback.Session) bool {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	stopped := c.userStopped[s.ID()]
	delete(c.userStopped, s.ID())
	return stopped
}

// watch reports one session's lifecycle. A session that ends after ctx is
// done or during shutdown was stopped by us, not by the stream.
func (c *Console) watch(ctx context.Context, s *playback.Session, name string) {
	failed := false
	for ev := range s.Events() {
		switch ev := ev.(type) {
		case playback.Started:
			c.printf(c.ok, "Playing %s.\n", name)
		case playback.Failed:
			failed = true
			c.printf(c.warn, "Playback failed: %v\nMake sure streamlink and mpv or VLC are installed, or try another channel.\n", ev.Err)
		case playback.Stopped:
			switch {
			case c.takeUserStopped(s) || c.closing.Load() || ctx.Err() != nil:
				c.log.WithError(&playback.TerminatedError{SessionID: s.ID(), ChannelID: s.ChannelID()}).Debug("session ended")
				c.printf(nil, "Stopped %s.\n", name)
			case failed:
			default:
				c.printf(c.warn, "Stream Ended: %s ended unexpectedly.\nThe stream may be offline, the player window was closed, or the connection dropped. Retry with a VPN if it keeps happening.\n", name)
			}
		}
	}
}

func (c *Console) channelName(id int) string {
	channels, _ := c.catalog.Snapshot()
	if ch, ok := catalog.FindChannel(channels, id); ok {
		return fmt.Sprintf("%s (%d)", ch.Name, id)
	}
	return fmt.Sprintf("channel %d", id)
}

// readLine reads one line, giving up when ctx is done.
func (c *Console) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		if err != nil && line != "" && errors.Is(err, io.EOF) {
			err = nil
		}
		ch <- result{line, err}
	}()
	select {
	case r := <-ch:
		return strings.TrimRight(r.line, "\r\n"), r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Console) printf(col *color.Color, format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if col == nil {
		fmt.Fprintf(c.out, format, args...)
		return
	}
	_, _ = col.Fprintf(c.out, format, args...)
}

func (c *Console) println(col *color.Color, s string) {
	c.printf(col, "%s\n", s)
}
