// Package logfields holds the canonical slog attribute keys used across docsmith.
package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeySection    = "section"
	KeyRoute      = "route"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyHash       = "hash"
	KeyStrategy   = "strategy"
	KeyCount      = "count"
	KeyMethod     = "method"
	KeyURL        = "url"
	KeyError      = "error"
)

func BuildID(id string) slog.Attr { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Section(s string) slog.Attr { return slog.String(KeySection, s) }
func Route(r string) slog.Attr { return slog.String(KeyRoute, r) }
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }
func File(f string) slog.Attr { return slog.String(KeyFile, f) }
func Hash(h string) slog.Attr { return slog.String(KeyHash, h) }
func Strategy(s string) slog.Attr { return slog.String(KeyStrategy, s) }
func Count(n int) slog.Attr { return slog.Int(KeyCount, n) }
func Method(m string) slog.Attr { return slog.String(KeyMethod, m) }
func URL(u string) slog.Attr { return slog.String(KeyURL, u) }
func Since(start time.Time) slog.Attr { return DurationMS(float64(time.Since(start).Milliseconds())) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
