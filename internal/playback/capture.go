package playback

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// headBuffer keeps the first max bytes written to it and discards the rest,
// so a chatty child cannot grow memory.
type headBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newHeadBuffer(max int) *headBuffer {
	return &headBuffer{max: max}
}

func (h *headBuffer) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room := h.max - len(h.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		h.buf = append(h.buf, p[:room]...)
	}
	return len(p), nil
}

func (h *headBuffer) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return string(h.buf)
}

// diagnostic picks stderr, or stdout when stderr is empty, trimmed and cut to
// limit characters.
func diagnostic(stderr, stdout string, limit int) string {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = strings.TrimSpace(stdout)
	}
	return truncateRunes(msg, limit)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
