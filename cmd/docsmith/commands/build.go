package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"git.home.luguber.info/inful/docsmith/internal/build"
	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/docsmith/internal/logfields"
)

// ReportDir is where build reports are persisted, relative to the project root.
const ReportDir = ".docsmith/reports"

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Out      string `short:"o" help:"Output directory (overrides out_dir)"`
	Diagrams string `placeholder:"STRATEGY" help:"Diagram strategy (build|client), overrides diagrams.strategy"`
	Drafts   bool   `help:"Include draft sections"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if b.Out != "" {
		cfg.OutDir = b.Out
	}
	switch s := config.DiagramStrategy(b.Diagrams); s {
	case "":
	case config.DiagramsBuild, config.DiagramsClient:
		cfg.Diagrams.Strategy = s
	default:
		return errors.ValidationError("--diagrams must be build or client").WithContext("value", b.Diagrams).Build()
	}

	snap, err := Snapshot(ctx, cfg, b.Drafts)
	if err != nil {
		return err
	}

	opts := build.Options{OutDir: cfg.Path(cfg.OutDir)}
	slog.Info("Starting build",
		slog.String("site", cfg.DisplayName()),
		logfields.Path(opts.OutDir),
		logfields.Strategy(string(cfg.Diagrams.Strategy)))

	report, runErr := build.Run(ctx, cfg, snap, opts)
	if report != nil {
		reportDir := cfg.Path(ReportDir)
		if err := report.Persist(reportDir); err != nil {
			slog.Warn("Failed to persist build report", logfields.Path(reportDir), logfields.Error(err))
		}
		_, _ = fmt.Fprintln(g.out(), report.Summary())
		for _, fr := range report.FailedRoutes {
			_, _ = fmt.Fprintf(g.out(), "  failed %s: %s\n", fr.Path, fr.Error)
		}
	}
	if runErr != nil {
		if errors.IsClassified(runErr) {
			return runErr
		}
		return errors.WrapError(runErr, errors.CategoryBuild, "build failed").
			Fatal().WithContext("out_dir", opts.OutDir).Build()
	}
	slog.Info("Build complete", logfields.Path(filepath.Clean(opts.OutDir)), logfields.Count(report.RenderedPages))
	return nil
}
