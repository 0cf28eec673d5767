package commands

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/docsmith/internal/logfields"
	"git.home.luguber.info/inful/docsmith/internal/metrics"
	"git.home.luguber.info/inful/docsmith/internal/preview"
	"git.home.luguber.info/inful/docsmith/internal/site"
	"git.home.luguber.info/inful/docsmith/internal/watch"
)

// DevCmd implements the 'dev' command.
type DevCmd struct {
	Host    string `default:"127.0.0.1" help:"Interface to listen on"`
	Port    int    `short:"p" help:"Port to listen on (overrides dev.port)"`
	Poll    string `help:"Rebuild on a fixed interval, e.g. 2s (overrides dev.poll_interval)"`
	NoWatch bool   `name:"no-watch" help:"Disable file system notifications"`
}

func (d *DevCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if d.Port != 0 {
		cfg.Dev.Port = d.Port
	}
	if d.Poll != "" {
		cfg.Dev.PollInterval = d.Poll
		if cfg.Dev.Poll() == 0 {
			return errors.ValidationError("--poll must be a positive duration").WithContext("value", d.Poll).Build()
		}
	}

	var recorder metrics.Recorder
	var metricsHandler http.Handler
	if cfg.Monitoring.Metrics.Enabled {
		reg := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		metricsHandler = metrics.HTTPHandler(reg)
	}

	loop := watch.NewLoop(d.rebuild(root, cfg), watch.NewHolder(nil), recorder)
	if _, err := loop.Rebuild(ctx, "startup"); err != nil {
		slog.Warn("Initial build failed; serving error status until the next successful rebuild", logfields.Error(err))
	}

	srv := preview.NewServer(cfg, loop.Holder(), preview.Options{Metrics: metricsHandler, Status: loop.Err})
	defer srv.Attach(loop)()

	if !d.NoWatch {
		targets, err := watch.TargetsFor(cfg)
		if err != nil {
			return err
		}
		fw, err := watch.NewFSWatcher(targets, loop)
		if err != nil {
			return errors.WrapError(err, errors.CategoryRuntime, "failed to start file watcher").Fatal().Build()
		}
		defer func() { _ = fw.Close() }()
		defer fw.Follow(loop)()
		go fw.Run(ctx)
	}
	if interval := cfg.Dev.Poll(); interval > 0 {
		poller, err := watch.NewPoller(interval, loop)
		if err != nil {
			return errors.WrapError(err, errors.CategoryRuntime, "failed to start poller").Fatal().Build()
		}
		poller.Start()
		defer func() { _ = poller.Stop() }()
	}
	go loop.Run(ctx)

	addr := net.JoinHostPort(d.Host, strconv.Itoa(cfg.Dev.Port))
	if err := srv.Run(ctx, addr); err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "preview server failed").
			Fatal().WithContext("addr", addr).Build()
	}
	slog.Info("Preview server stopped")
	return nil
}

// rebuild reloads the configuration on every pass so section and API edits
// apply without a restart. A broken configuration keeps the last good one.
func (d *DevCmd) rebuild(root *CLI, initial *config.Config) watch.BuildFunc {
	current := initial
	return func(ctx context.Context) (*site.Snapshot, error) {
		start := time.Now()
		cfg, err := config.LoadProject(current.Root, root.Config)
		if err != nil {
			return nil, err
		}
		cfg.Dev = current.Dev
		current = cfg
		snap, err := Snapshot(ctx, cfg, true)
		if err != nil {
			return nil, err
		}
		slog.Debug("Snapshot ready", logfields.Count(len(snap.Routes)), logfields.Since(start))
		return snap, nil
	}
}
