package config

import (
	"fmt"
	"strings"
)

// NormalizationResult captures adjustments and warnings from the normalization pass.
type NormalizationResult struct{ Warnings []string }

// Normalize canonicalizes enumerations, paths and lists in place before defaults are applied.
func Normalize(c *Config) *NormalizationResult {
	res := &NormalizationResult{}
	if c == nil {
		return res
	}
	c.Name = strings.TrimSpace(c.Name)
	c.SiteURL = strings.TrimRight(strings.TrimSpace(c.SiteURL), "/")
	c.Exclude = normalizeStringSlice("exclude", c.Exclude, res)

	for i := range c.Sections {
		s := &c.Sections[i]
		s.Label = strings.TrimSpace(s.Label)
		if s.BasePath != "" {
			s.BasePath = NormalizeBasePath(s.BasePath)
		}
		s.Exclude = normalizeStringSlice(fmt.Sprintf("sections[%d].exclude", i), s.Exclude, res)
	}
	for i := range c.APIs {
		if c.APIs[i].BasePath != "" {
			c.APIs[i].BasePath = NormalizeBasePath(c.APIs[i].BasePath)
		}
	}

	c.Diagrams.Strategy = normalizeEnum(res, "diagrams.strategy", c.Diagrams.Strategy,
		[]DiagramStrategy{DiagramsClient, DiagramsBuild}, DiagramsClient)
	c.Theme.Mode = normalizeEnum(res, "theme.mode", c.Theme.Mode,
		[]ThemeMode{ThemeAuto, ThemeLight, ThemeDark}, ThemeAuto)
	c.Monitoring.Logging.Level = normalizeEnum(res, "monitoring.logging.level", c.Monitoring.Logging.Level,
		[]LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}, LogLevelInfo)
	c.Monitoring.Logging.Format = normalizeEnum(res, "monitoring.logging.format", c.Monitoring.Logging.Format,
		[]LogFormat{LogFormatText, LogFormatJSON}, LogFormatText)
	return res
}

// normalizeEnum case-folds raw and maps unknown values to fallback with a warning.
// Empty values stay empty so defaults can fill them in.
func normalizeEnum[T ~string](res *NormalizationResult, field string, raw T, valid []T, fallback T) T {
	cleaned := T(strings.ToLower(strings.TrimSpace(string(raw))))
	if cleaned == "" {
		return ""
	}
	for _, v := range valid {
		if v == cleaned {
			if cleaned != raw {
				res.Warnings = append(res.Warnings, fmt.Sprintf("normalized %s from %q to %q", field, raw, cleaned))
			}
			return cleaned
		}
	}
	res.Warnings = append(res.Warnings, fmt.Sprintf("unknown %s %q, using %q", field, raw, fallback))
	return fallback
}

// normalizeStringSlice trims and dedupes, preserving first-seen order.
func normalizeStringSlice(label string, in []string, res *NormalizationResult) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		t := strings.TrimSpace(v)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: dropped duplicate %q", label, t))
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// NormalizeBasePath returns p with a leading slash and no trailing slash. The root stays "/".
func NormalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, "/")
	if p == "" {
		return "/"
	}
	return "/" + p
}
