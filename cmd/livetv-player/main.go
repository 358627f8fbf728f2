// Command livetv-player lists live TV channels and scheduled events from the
// aggregation site and plays them through streamlink or ffplay.
//
//	channels  List 24/7 channels
//	events    List scheduled events (--playable hides rows without a channel)
//	play      Play a channel in the foreground until the stream ends or Ctrl-C
//	launch    Run the player pipeline for one channel (what play/menu spawn)
//	probe     Probe every mirror for a channel and report which would be used
//	menu      Interactive menu
//	doctor    Check the listing site, config and external binaries
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		os.Exit(ec.code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

// exitCodeError carries a child pipeline's exit code out of a command.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string { return fmt.Sprintf("exit code %d", e.code) }
