package playback

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Launcher builds the child command for a channel. The session starts it.
type Launcher interface {
	Command(channelID int) (*exec.Cmd, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(channelID int) (*exec.Cmd, error)

func (f LauncherFunc) Command(channelID int) (*exec.Cmd, error) { return f(channelID) }

// SelfLauncher re-executes the running binary as `launch <id> --silent`, so
// the player pipeline lives in its own process that can be stopped as a unit.
type SelfLauncher struct {
	// Exe overrides os.Executable.
	Exe string
	// ExtraArgs are appended after the launch arguments (e.g. --config path).
	ExtraArgs []string
	// Env overrides entries of the inherited environment.
	Env map[string]string
}

func (l SelfLauncher) Command(channelID int) (*exec.Cmd, error) {
	exe := l.Exe
	if exe == "" {
		p, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			p = resolved
		}
		exe = p
	}
	args := append([]string{"launch", strconv.Itoa(channelID), "--silent"}, l.ExtraArgs...)
	cmd := exec.Command(exe, args...)
	cmd.Env = mergedEnv(os.Environ(), l.Env)
	return cmd, nil
}

func mergedEnv(base []string, overrides map[string]string) []string {
	out := filterChildBaseEnv(base)
	if len(overrides) == 0 {
		return out
	}
	idx := make(map[string]int, len(out))
	for i, kv := range out {
		k, _, ok := strings.Cut(kv, "=")
		if ok {
			idx[k] = i
		}
	}
	for k, v := range overrides {
		kv := k + "=" + v
		if i, ok := idx[k]; ok {
			out[i] = kv
		} else {
			out = append(out, kv)
		}
	}
	return out
}

func filterChildBaseEnv(base []string) []string {
	if len(base) == 0 {
		return nil
	}
	out := make([]string, 0, len(base))
	for _, kv := range base {
		k, _, ok := strings.Cut(kv, "=")
		if !ok || shouldDropChildInheritedEnv(k) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// The parent serves metrics; a child binding the same port would fail.
func shouldDropChildInheritedEnv(key string) bool {
	return key == "LIVETV_METRICS_ADDR"
}
