package logging

import (
	"bytes"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{" WARN ", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"chatty", logrus.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_silentDiscards(t *testing.T) {
	logger := New("debug", true)
	if logger.Out != io.Discard {
		t.Fatalf("silent logger writes to %T", logger.Out)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v", logger.GetLevel())
	}
}

func TestNew_writesFields(t *testing.T) {
	logger := New("info", false)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.WithFields(Fields{"channel": 51}).Info("resolved")
	if !bytes.Contains(buf.Bytes(), []byte("channel=51")) {
		t.Fatalf("missing field in %q", buf.String())
	}
}
