package player

import (
	"os"
	"os/exec"
	"path/filepath"
)

// Finder locates external binaries. Fields are swappable for tests.
type Finder struct {
	LookPath func(file string) (string, error)
	Exists   func(path string) bool
	Home     string
}

// DefaultFinder searches $PATH and the real filesystem.
func DefaultFinder() Finder {
	home, _ := os.UserHomeDir()
	return Finder{
		LookPath: exec.LookPath,
		Exists: func(p string) bool {
			st, err := os.Stat(p)
			return err == nil && !st.IsDir()
		},
		Home: home,
	}
}

func (f Finder) mpvPaths() []string {
	paths := []string{
		`C:\Program Files\mpv\mpv.exe`,
		`C:\Program Files (x86)\mpv\mpv.exe`,
		"/Applications/mpv.app/Contents/MacOS/mpv",
		"/opt/homebrew/bin/mpv",
		"/usr/local/bin/mpv",
		"/snap/bin/mpv",
	}
	if f.Home != "" {
		paths = append(paths, filepath.Join(f.Home, "AppData", "Local", "mpv", "mpv.exe"))
	}
	return paths
}

var vlcPaths = []string{
	`C:\Program Files\VideoLAN\VLC\vlc.exe`,
	`C:\Program Files (x86)\VideoLAN\VLC\vlc.exe`,
	"/Applications/VLC.app/Contents/MacOS/VLC",
	"/snap/bin/vlc",
}

// Player returns the media player streamlink should drive: configured if set,
// otherwise mpv, then VLC, from $PATH or a usual install location. "" when
// nothing is installed.
func (f Finder) Player(configured string) string {
	if configured != "" {
		if p, err := f.LookPath(configured); err == nil {
			return p
		}
		if f.Exists(configured) {
			return configured
		}
		return ""
	}
	if _, err := f.LookPath("mpv"); err == nil {
		return "mpv"
	}
	for _, p := range f.mpvPaths() {
		if f.Exists(p) {
			return p
		}
	}
	if _, err := f.LookPath("vlc"); err == nil {
		return "vlc"
	}
	for _, p := range vlcPaths {
		if f.Exists(p) {
			return p
		}
	}
	return ""
}

// Binary resolves name through $PATH, accepting an existing absolute path as is.
func (f Finder) Binary(name string) (string, error) {
	p, err := f.LookPath(name)
	if err == nil {
		return p, nil
	}
	if filepath.IsAbs(name) && f.Exists(name) {
		return name, nil
	}
	return "", err
}
