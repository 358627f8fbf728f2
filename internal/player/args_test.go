package player

import (
	"reflect"
	"testing"
)

var testHeaders = []Header{
	{"Referer", "https://origin.example/"},
	{"Origin", "https://origin.example"},
	{"User-Agent", "UA/1.0"},
}

func TestStreamlinkArgs(t *testing.T) {
	got := StreamlinkArgs("mpv", testHeaders, "a=1; b=2", "https://h.example/x/premium5/mono.m3u8")
	want := []string{
		"--player", "mpv",
		"--http-header", "Referer=https://origin.example/",
		"--http-header", "Origin=https://origin.example",
		"--http-header", "User-Agent=UA/1.0",
		"--http-cookie", "a=1; b=2",
		"hlsvariant://https://h.example/x/premium5/mono.m3u8", "best",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestStreamlinkArgs_noCookie(t *testing.T) {
	got := StreamlinkArgs("vlc", nil, "", "https://h.example/s.m3u8")
	want := []string{"--player", "vlc", "hlsvariant://https://h.example/s.m3u8", "best"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q", got)
	}
}

func TestFFplayArgs(t *testing.T) {
	got := FFplayArgs(append(testHeaders, Header{"Cookie", ""}), "https://h.example/s.m3u8")
	block := "Referer: https://origin.example/\r\nOrigin: https://origin.example\r\nUser-Agent: UA/1.0\r\n"
	want := []string{"-loglevel", "quiet", "-headers", block, "https://h.example/s.m3u8"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q\nwant %q", got, want)
	}
}
