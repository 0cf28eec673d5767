package config

import (
	"fmt"
	"net/url"
	"time"

	"git.home.luguber.info/inful/docsmith/internal/foundation/errors"
)

// Validate checks a normalized, defaulted configuration. Section base path
// conflicts are detected here so they fail before any content is scanned.
func Validate(c *Config) error {
	if c.SiteURL != "" {
		u, err := url.Parse(c.SiteURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.ValidationError("site_url must be an absolute http(s) URL").
				WithContext("site_url", c.SiteURL).Build()
		}
	}
	if c.Dev.PollInterval != "" {
		if _, err := time.ParseDuration(c.Dev.PollInterval); err != nil {
			return errors.WrapError(err, errors.CategoryValidation, "invalid dev.poll_interval").
				Fatal().WithContext("value", c.Dev.PollInterval).Build()
		}
	}
	if _, err := time.ParseDuration(c.Diagrams.Timeout); err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "invalid diagrams.timeout").
			Fatal().WithContext("value", c.Diagrams.Timeout).Build()
	}
	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return errors.ValidationError("dev.port out of range").WithContext("port", c.Dev.Port).Build()
	}

	for i, s := range c.Sections {
		if s.Label == "" {
			return errors.ValidationError(fmt.Sprintf("sections[%d]: label is required", i)).Build()
		}
		if s.DocsDir == "" {
			return errors.ValidationError(fmt.Sprintf("sections[%d]: docs_dir is required", i)).
				WithContext("section", s.Label).Build()
		}
	}
	seenAPI := map[string]bool{}
	for i, a := range c.APIs {
		if a.Spec == "" {
			return errors.ValidationError(fmt.Sprintf("apis[%d]: spec is required", i)).Build()
		}
		if seenAPI[a.BasePath] {
			return errors.ConfigError("duplicate API base path").WithContext("base_path", a.BasePath).Build()
		}
		seenAPI[a.BasePath] = true
	}

	_, err := ResolveSections(c)
	return err
}
