package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/snapetech/livetv-player/internal/catalog"
	"github.com/snapetech/livetv-player/internal/listing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	args = append(args, "--env-file", filepath.Join(t.TempDir(), "none.env"), "--log-level", "error")
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func listingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case listing.ChannelsPath:
			w.Write([]byte(`<a href="/stream/stream-51.php">ABC USA</a><a href="/stream/stream-44.php">ESPN</a>`))
		case listing.SchedulePath:
			w.Write([]byte(`{"Saturday 14th Jun 2025 - Schedule": {"Soccer": [
				{"time": "14:30", "event": "Final", "channels": [{"channel_name": "One", "channel_id": "51"}]},
				{"time": "16:00", "event": "Lonely", "channels": []}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	t.Setenv("LIVETV_BASE_URL", srv.URL)
	t.Setenv("LIVETV_INDIRECTION_URL", "")
	t.Setenv("LIVETV_METRICS_ADDR", "")
	return srv
}

func TestRoot_helpListsCommands(t *testing.T) {
	out, err := execute(t)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"channels", "events", "play", "launch", "probe", "menu", "doctor"} {
		if !strings.Contains(out, name) {
			t.Errorf("help missing %q:\n%s", name, out)
		}
	}
	if !strings.Contains(out, "livetv-player menu") {
		t.Errorf("help missing menu tip:\n%s", out)
	}
}

func TestRoot_invalidConfig(t *testing.T) {
	t.Setenv("LIVETV_STRATEGY", "vlc")
	_, err := execute(t, "channels")
	if err == nil || !strings.Contains(err.Error(), "strategy") {
		t.Fatalf("err = %v, want strategy error", err)
	}
}

func TestChannels_json(t *testing.T) {
	listingServer(t)
	out, err := execute(t, "channels", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var got []catalog.Channel
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(got) != 2 || got[0].ID != 51 || got[1].Name != "ESPN" {
		t.Errorf("channels = %+v", got)
	}
}

func TestEvents_playableFilter(t *testing.T) {
	listingServer(t)
	out, err := execute(t, "events", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var all []catalog.Event
	if err := json.Unmarshal([]byte(out), &all); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "events", "--json", "--playable")
	if err != nil {
		t.Fatal(err)
	}
	var playable []catalog.Event
	if err := json.Unmarshal([]byte(out), &playable); err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || len(playable) != 1 || playable[0].ChannelID != "51" {
		t.Errorf("all = %+v\nplayable = %+v", all, playable)
	}
}

func TestChannels_unreachableShowsRemediation(t *testing.T) {
	srv := listingServer(t)
	srv.Close()
	_, err := execute(t, "channels")
	if err == nil || !strings.Contains(err.Error(), "retry with a VPN") {
		t.Fatalf("err = %v, want VPN remediation", err)
	}
}

func TestPlay_badChannel(t *testing.T) {
	_, err := execute(t, "play", "abc")
	if err == nil || !strings.Contains(err.Error(), "positive number") {
		t.Fatalf("err = %v", err)
	}
}

func TestLaunch_exitCodeFromPipeline(t *testing.T) {
	t.Setenv("LIVETV_STREAMLINK_PATH", filepath.Join(t.TempDir(), "no-streamlink"))
	t.Setenv("LIVETV_MIRRORS", "m")
	t.Setenv("LIVETV_MIRROR_HOST_TEMPLATE", "http://127.0.0.1:1/{name}")
	t.Setenv("LIVETV_PROBE_TIMEOUT", "200ms")
	t.Setenv("LIVETV_WATCH_BASE", "http://127.0.0.1:1")
	t.Setenv("LIVETV_SETTLE_DELAY", "1ms")
	_, err := execute(t, "launch", "51", "--silent")
	var ec *exitCodeError
	if !errors.As(err, &ec) || ec.code == 0 {
		t.Fatalf("err = %v, want non-zero exit code", err)
	}
}
