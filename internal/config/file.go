package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	BaseURL            string   `yaml:"base_url"`
	IndirectionURL     *string  `yaml:"indirection_url"`
	IndirectionTimeout string   `yaml:"indirection_timeout"`
	ListingUserAgent   string   `yaml:"listing_user_agent"`
	ChannelsTimeout    string   `yaml:"channels_timeout"`
	EventsTimeout      string   `yaml:"events_timeout"`
	RequestsPerSecond  *float64 `yaml:"requests_per_second"`

	WatchBase       string `yaml:"watch_base"`
	StreamOrigin    string `yaml:"stream_origin"`
	StreamReferer   string `yaml:"stream_referer"`
	StreamUserAgent string `yaml:"stream_user_agent"`

	Mirrors        []string `yaml:"mirrors"`
	HostTemplate   string   `yaml:"host_template"`
	PathTemplate   string   `yaml:"path_template"`
	FallbackServer string   `yaml:"fallback_server"`
	FallbackName   string   `yaml:"fallback_name"`
	ProbeTimeout   string   `yaml:"probe_timeout"`

	BrowserPath string `yaml:"browser_path"`
	SettleDelay string `yaml:"settle_delay"`

	Strategy       string `yaml:"strategy"`
	StreamlinkPath string `yaml:"streamlink_path"`
	FFplayPath     string `yaml:"ffplay_path"`
	PlayerPath     string `yaml:"player_path"`
	DefaultChannel int    `yaml:"default_channel"`

	GraceDelay       string `yaml:"grace_delay"`
	TerminateTimeout string `yaml:"terminate_timeout"`
	KillTimeout      string `yaml:"kill_timeout"`
	DiagnosticLimit  int    `yaml:"diagnostic_limit"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// LoadFile overlays the YAML file at path onto c. Only keys present in the file
// change c; durations use time.ParseDuration syntax ("4s", "500ms").
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	setString(&c.BaseURL, f.BaseURL)
	if f.IndirectionURL != nil {
		c.IndirectionURL = strings.TrimSpace(*f.IndirectionURL)
	}
	setString(&c.ListingUserAgent, f.ListingUserAgent)
	if f.RequestsPerSecond != nil {
		c.RequestsPerSecond = *f.RequestsPerSecond
	}
	setString(&c.WatchBase, f.WatchBase)
	setString(&c.StreamOrigin, f.StreamOrigin)
	setString(&c.StreamReferer, f.StreamReferer)
	setString(&c.StreamUserAgent, f.StreamUserAgent)
	if len(f.Mirrors) > 0 {
		c.Mirrors = append([]string(nil), f.Mirrors...)
	}
	setString(&c.HostTemplate, f.HostTemplate)
	setString(&c.PathTemplate, f.PathTemplate)
	setString(&c.FallbackServer, f.FallbackServer)
	setString(&c.FallbackName, f.FallbackName)
	setString(&c.BrowserPath, f.BrowserPath)
	setString(&c.Strategy, strings.ToLower(f.Strategy))
	setString(&c.StreamlinkPath, f.StreamlinkPath)
	setString(&c.FFplayPath, f.FFplayPath)
	setString(&c.PlayerPath, f.PlayerPath)
	if f.DefaultChannel > 0 {
		c.DefaultChannel = f.DefaultChannel
	}
	if f.DiagnosticLimit > 0 {
		c.DiagnosticLimit = f.DiagnosticLimit
	}
	setString(&c.MetricsAddr, f.MetricsAddr)
	setString(&c.LogLevel, f.LogLevel)

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"indirection_timeout", f.IndirectionTimeout, &c.IndirectionTimeout},
		{"channels_timeout", f.ChannelsTimeout, &c.ChannelsTimeout},
		{"events_timeout", f.EventsTimeout, &c.EventsTimeout},
		{"probe_timeout", f.ProbeTimeout, &c.ProbeTimeout},
		{"settle_delay", f.SettleDelay, &c.SettleDelay},
		{"grace_delay", f.GraceDelay, &c.GraceDelay},
		{"terminate_timeout", f.TerminateTimeout, &c.TerminateTimeout},
		{"kill_timeout", f.KillTimeout, &c.KillTimeout},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	c.applyDefaults()
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
