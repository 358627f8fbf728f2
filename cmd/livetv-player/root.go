package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/snapetech/livetv-player/internal/browser"
	"github.com/snapetech/livetv-player/internal/config"
	"github.com/snapetech/livetv-player/internal/httpclient"
	"github.com/snapetech/livetv-player/internal/listing"
	"github.com/snapetech/livetv-player/internal/logging"
	"github.com/snapetech/livetv-player/internal/metrics"
	"github.com/snapetech/livetv-player/internal/mirror"
	"github.com/snapetech/livetv-player/internal/playback"
	"github.com/snapetech/livetv-player/internal/player"
)

// app holds what every subcommand shares once flags and config are loaded.
type app struct {
	cfgFile     string
	envFile     string
	logLevel    string
	metricsAddr string
	silent      bool

	cfg      *config.Config
	log      *logrus.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// NewRootCmd returns the root command for livetv-player.
func NewRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "livetv-player",
		Short:         "Browse and play live TV channels and events",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			fmt.Fprintln(cmd.OutOrStdout(), "\nTip: run 'livetv-player menu' for an interactive start.")
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file overlaid on LIVETV_* environment settings")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", ".env file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug|info|warn|error (default LIVETV_LOG_LEVEL or info)")
	rootCmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")

	rootCmd.AddCommand(newChannelsCmd(a))
	rootCmd.AddCommand(newEventsCmd(a))
	rootCmd.AddCommand(newPlayCmd(a))
	rootCmd.AddCommand(newLaunchCmd(a))
	rootCmd.AddCommand(newProbeCmd(a))
	rootCmd.AddCommand(newMenuCmd(a))
	rootCmd.AddCommand(newDoctorCmd(a))
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return fmt.Errorf("env file %s: %w", a.envFile, err)
	}
	cfg := config.Load()
	if a.cfgFile != "" {
		if err := cfg.LoadFile(a.cfgFile); err != nil {
			return fmt.Errorf("config %s: %w", a.cfgFile, err)
		}
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.metricsAddr != "" {
		cfg.MetricsAddr = a.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg
	a.log = logging.New(cfg.LogLevel, a.silent)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)
	if cfg.MetricsAddr != "" && !a.silent {
		go func() {
			if err := metrics.Serve(cmd.Context(), cfg.MetricsAddr, a.registry); err != nil {
				a.log.WithError(err).Warn("metrics server stopped")
			}
		}()
		a.log.WithField("addr", cfg.MetricsAddr).Info("serving metrics")
	}
	return nil
}

// retriever resolves the live site address and returns a listing retriever for it.
func (a *app) retriever(ctx context.Context) *listing.Retriever {
	client := httpclient.NewSession(httpclient.SessionOptions{
		Limiter: httpclient.NewHostLimiter(a.cfg.RequestsPerSecond, 1),
	})
	base, err := listing.ResolveBaseURL(ctx, client, a.cfg.IndirectionURL, a.cfg.BaseURL, a.cfg.ListingUserAgent, a.cfg.IndirectionTimeout)
	if a.cfg.IndirectionURL != "" {
		a.metrics.ListingFetch("base_url", err)
	}
	if err != nil {
		a.log.WithError(err).WithField("fallback", base).Warn("could not resolve live site address; using fallback")
	} else {
		a.log.WithField("base", base).Debug("listing site")
	}
	return listing.New(listing.Config{
		BaseURL:         base,
		UserAgent:       a.cfg.ListingUserAgent,
		ChannelsTimeout: a.cfg.ChannelsTimeout,
		EventsTimeout:   a.cfg.EventsTimeout,
		Client:          client,
		Logger:          a.log,
		Metrics:         a.metrics,
	})
}

func (a *app) resolver() *mirror.Resolver {
	return mirror.NewResolver(mirror.Config{
		Mirrors:        a.cfg.Mirrors,
		HostTemplate:   a.cfg.HostTemplate,
		PathTemplate:   a.cfg.PathTemplate,
		FallbackServer: a.cfg.FallbackServer,
		FallbackName:   a.cfg.FallbackName,
		ProbeTimeout:   a.cfg.ProbeTimeout,
		Headers:        a.cfg.StreamHeaders(),
		Logger:         a.log,
		Metrics:        a.metrics,
	})
}

func (a *app) acquirer() *browser.Acquirer {
	return browser.NewAcquirer(browser.Config{
		Opener:      &browser.RodOpener{Bin: a.cfg.BrowserPath, UserAgent: a.cfg.StreamUserAgent},
		PageURL:     a.cfg.WatchPageURL,
		SettleDelay: a.cfg.SettleDelay,
		Logger:      a.log,
		Metrics:     a.metrics,
	})
}

// manager spawns `launch` children of this binary with the same config.
func (a *app) manager() *playback.Manager {
	var extra []string
	if a.cfgFile != "" {
		extra = append(extra, "--config", a.cfgFile)
	}
	if a.envFile != "" {
		extra = append(extra, "--env-file", a.envFile)
	}
	return playback.NewManager(playback.Options{
		Launcher:         playback.SelfLauncher{ExtraArgs: extra},
		GraceDelay:       a.cfg.GraceDelay,
		TerminateTimeout: a.cfg.TerminateTimeout,
		KillTimeout:      a.cfg.KillTimeout,
		DiagnosticLimit:  a.cfg.DiagnosticLimit,
		Logger:           a.log,
		Metrics:          a.metrics,
	})
}

func (a *app) streamHeaders() []player.Header {
	return []player.Header{
		{Name: "Referer", Value: a.cfg.Referer()},
		{Name: "Origin", Value: a.cfg.StreamOrigin},
		{Name: "User-Agent", Value: a.cfg.StreamUserAgent},
	}
}
