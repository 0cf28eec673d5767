// Package config loads docsmith project configuration and resolves it into
// the section descriptors the rest of the build consumes.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/docsmith/internal/project"
)

// CandidateFiles lists the configuration file names looked up in a project root, in order.
var CandidateFiles = []string{"docsmith.yaml", "docsmith.yml", "docsmith.toml"}

// Config is the on-disk project configuration.
type Config struct {
	Name       string           `yaml:"name" toml:"name"`
	DocsDir    string           `yaml:"docs_dir" toml:"docs_dir"`
	OutDir     string           `yaml:"out_dir" toml:"out_dir"`
	SiteURL    string           `yaml:"site_url" toml:"site_url"`
	Exclude    []string         `yaml:"exclude" toml:"exclude"`
	Sections   []SectionConfig  `yaml:"sections" toml:"sections"`
	Navigation []NavItem        `yaml:"navigation" toml:"navigation"`
	APIs       []APIConfig      `yaml:"apis" toml:"apis"`
	Diagrams   DiagramsConfig   `yaml:"diagrams" toml:"diagrams"`
	Build      BuildConfig      `yaml:"build" toml:"build"`
	Dev        DevConfig        `yaml:"dev" toml:"dev"`
	Theme      ThemeConfig      `yaml:"theme" toml:"theme"`
	Monitoring MonitoringConfig `yaml:"monitoring" toml:"monitoring"`

	// Root is the project directory relative paths are resolved against. Not read from the file.
	Root string `yaml:"-" toml:"-"`
}

// SectionConfig is one entry of the sections list.
type SectionConfig struct {
	Label    string   `yaml:"label" toml:"label"`
	DocsDir  string   `yaml:"docs_dir" toml:"docs_dir"`
	BasePath string   `yaml:"base_path" toml:"base_path"`
	Draft    bool     `yaml:"draft" toml:"draft"`
	Sitemap  *bool    `yaml:"sitemap" toml:"sitemap"`
	Exclude  []string `yaml:"exclude" toml:"exclude"`
}

// NavItem is a manually configured navigation entry (single-section projects only).
type NavItem struct {
	Label    string    `yaml:"label" toml:"label"`
	Path     string    `yaml:"path" toml:"path"`
	Icon     string    `yaml:"icon" toml:"icon"`
	Children []NavItem `yaml:"children" toml:"children"`
}

// APIConfig points at an external API description rendered under BasePath.
type APIConfig struct {
	Spec     string `yaml:"spec" toml:"spec"`
	BasePath string `yaml:"base_path" toml:"base_path"`
	Label    string `yaml:"label" toml:"label"`
}

// DiagramStrategy selects where diagrams are rendered.
type DiagramStrategy string

const (
	DiagramsClient DiagramStrategy = "client"
	DiagramsBuild  DiagramStrategy = "build"
)

type DiagramsConfig struct {
	Strategy   DiagramStrategy `yaml:"strategy" toml:"strategy"`
	CacheDir   string          `yaml:"cache_dir" toml:"cache_dir"`
	ScriptURL  string          `yaml:"script_url" toml:"script_url"`
	Timeout    string          `yaml:"timeout" toml:"timeout"`
	ChromePath string          `yaml:"chrome_path" toml:"chrome_path"`
}

// RenderTimeout returns the parsed per-diagram timeout.
func (d DiagramsConfig) RenderTimeout() time.Duration {
	if v, err := time.ParseDuration(d.Timeout); err == nil && v > 0 {
		return v
	}
	return defaultDiagramTimeout
}

type BuildConfig struct {
	IncludeDrafts    bool `yaml:"include_drafts" toml:"include_drafts"`
	KeepServerOutput bool `yaml:"keep_server_output" toml:"keep_server_output"`
	SQLiteSearch     bool `yaml:"sqlite_search" toml:"sqlite_search"`
}

type DevConfig struct {
	Port         int    `yaml:"port" toml:"port"`
	PollInterval string `yaml:"poll_interval" toml:"poll_interval"`
}

// Poll returns the polling interval, or zero when polling is disabled.
func (d DevConfig) Poll() time.Duration {
	v, err := time.ParseDuration(d.PollInterval)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

// ThemeMode is the color scheme of the generated site.
type ThemeMode string

const (
	ThemeAuto  ThemeMode = "auto"
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
)

type ThemeConfig struct {
	PrimaryColor string    `yaml:"primary_color" toml:"primary_color"`
	Mode         ThemeMode `yaml:"mode" toml:"mode"`
}

type MonitoringConfig struct {
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Slog maps the level onto slog.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

type LoggingConfig struct {
	Level  LogLevel  `yaml:"level" toml:"level"`
	Format LogFormat `yaml:"format" toml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Load reads a configuration file, then runs normalization, defaults and validation.
// The file format is chosen by extension; ".toml" uses TOML, everything else YAML.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read config file").
			WithContext("path", configPath).Build()
	}

	loadEnvFiles(filepath.Dir(configPath))
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		_, err = toml.Decode(expanded, &cfg)
	} else {
		err = yaml.Unmarshal([]byte(expanded), &cfg)
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse config file").
			Fatal().WithContext("path", configPath).Build()
	}

	cfg.Root = filepath.Dir(configPath)
	if err := finalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadProject loads the configuration for the project in root. An explicit
// path wins; otherwise the candidate files are tried. A project without a
// configuration file gets defaults and a detected name.
func LoadProject(root, explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}
	for _, name := range CandidateFiles {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}

	slog.Debug("No configuration file found, using defaults", "root", root)
	loadEnvFiles(root)
	cfg := &Config{Root: root}
	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finalize(cfg *Config) error {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if abs, err := filepath.Abs(cfg.Root); err == nil {
		cfg.Root = abs
	}
	res := Normalize(cfg)
	for _, w := range res.Warnings {
		slog.Warn("Config normalization", "detail", w)
	}
	applyDefaults(cfg)
	return Validate(cfg)
}

// Path resolves p against the project root.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// DisplayName is the configured name, or the detected project name, title-cased.
func (c *Config) DisplayName() string {
	if strings.TrimSpace(c.Name) != "" {
		return c.Name
	}
	return TitleCase(project.DetectName(c.Root))
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{name=%q docs=%q sections=%d}", c.Name, c.DocsDir, len(c.Sections))
}
