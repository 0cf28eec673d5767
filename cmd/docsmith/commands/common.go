package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/docsmith/internal/logfields"
	"git.home.luguber.info/inful/docsmith/internal/site"
)

// Global carries state shared by all subcommands.
type Global struct {
	// Out receives command output (reports, JSON). Logs go to stderr.
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Dir     string           `short:"C" help:"Project directory" default:"." type:"existingdir"`
	Config  string           `short:"c" help:"Configuration file path (default: docsmith.yaml, docsmith.yml or docsmith.toml in the project directory)"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build BuildCmd `cmd:"" help:"Build the static site"`
	Check CheckCmd `cmd:"" help:"Check internal links"`
	Dev   DevCmd   `cmd:"" help:"Serve the site with live rebuilds"`
	Index IndexCmd `cmd:"" help:"Print the route table or search index as JSON"`
}

// AfterApply runs after flag parsing; sets up a provisional logger until
// the project configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// LoadConfig loads the project configuration and applies its logging settings.
func (c *CLI) LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadProject(c.Dir, c.Config)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(NewLogger(cfg.Monitoring.Logging, c.Verbose, os.Stderr))
	slog.Debug("Configuration loaded", logfields.Path(cfg.Root), slog.String("name", cfg.Name))
	return cfg, nil
}

// NewLogger builds the process logger. --verbose always wins over the configured level.
func NewLogger(lc config.LoggingConfig, verbose bool, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.Level.Slog()}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if lc.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Snapshot scans the project. Unclassified scan failures are reported as scan errors.
func Snapshot(ctx context.Context, cfg *config.Config, includeDrafts bool) (*site.Snapshot, error) {
	snap, err := site.Build(ctx, cfg, site.Options{IncludeDrafts: includeDrafts})
	if err != nil {
		if errors.IsClassified(err) {
			return nil, err
		}
		return nil, errors.WrapError(err, errors.CategoryScan, "failed to scan project").
			Fatal().WithContext("root", cfg.Root).Build()
	}
	return snap, nil
}
