package config

import (
	"time"

	"git.home.luguber.info/inful/docsmith/internal/project"
)

const (
	DefaultDocsDir        = "./docs"
	DefaultOutDir         = "./docs-dist"
	DefaultDiagramCache   = ".docsmith/diagrams"
	DefaultMermaidScript  = "https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.esm.min.mjs"
	DefaultDevPort        = 4747
	DefaultPrimaryColor   = "#3B82F6"
	DefaultMetricsPath    = "/metrics"
	DefaultAPIBasePath    = "/api"
	defaultDiagramTimeout = 30 * time.Second
)

func applyDefaults(c *Config) {
	if c.Name == "" {
		c.Name = TitleCase(project.DetectName(c.Root))
	}
	if c.DocsDir == "" {
		c.DocsDir = DefaultDocsDir
	}
	if c.OutDir == "" {
		c.OutDir = DefaultOutDir
	}

	for i := range c.APIs {
		if c.APIs[i].BasePath == "" {
			c.APIs[i].BasePath = DefaultAPIBasePath
		}
		if c.APIs[i].Label == "" {
			c.APIs[i].Label = "API Reference"
		}
	}

	d := &c.Diagrams
	if d.Strategy == "" {
		d.Strategy = DiagramsClient
	}
	if d.CacheDir == "" {
		d.CacheDir = DefaultDiagramCache
	}
	if d.ScriptURL == "" {
		d.ScriptURL = DefaultMermaidScript
	}
	if d.Timeout == "" {
		d.Timeout = defaultDiagramTimeout.String()
	}

	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultDevPort
	}
	if c.Theme.PrimaryColor == "" {
		c.Theme.PrimaryColor = DefaultPrimaryColor
	}
	if c.Theme.Mode == "" {
		c.Theme.Mode = ThemeAuto
	}
	if c.Monitoring.Logging.Level == "" {
		c.Monitoring.Logging.Level = LogLevelInfo
	}
	if c.Monitoring.Logging.Format == "" {
		c.Monitoring.Logging.Format = LogFormatText
	}
	if c.Monitoring.Metrics.Path == "" {
		c.Monitoring.Metrics.Path = DefaultMetricsPath
	}
}
