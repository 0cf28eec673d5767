package diagram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/docsmith/internal/logfields"
	"git.home.luguber.info/inful/docsmith/internal/metrics"
)

// Theme selects the visual variant a backend renders.
type Theme string

const (
	ThemeLight Theme = "default"
	ThemeDark  Theme = "dark"
)

var (
	// ErrNotStarted is returned when a render needs the backend before Start.
	ErrNotStarted = errors.New("diagram renderer not started")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("diagram renderer closed")
)

// Backend renders one definition in one theme. Implementations are warmed
// once by Start and torn down by Close.
type Backend interface {
	Start(ctx context.Context) error
	Render(ctx context.Context, definition string, theme Theme, id string) (string, error)
	Close() error
}

// Renderer is a scoped render session over a cache and a backend. All cache
// reads and writes of a run go through one Renderer.
type Renderer struct {
	cache    *Cache
	backend  Backend
	recorder metrics.Recorder

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewRenderer creates a session. Start must be called before anything that
// is not already cached can be rendered.
func NewRenderer(cache *Cache, backend Backend, recorder metrics.Recorder) *Renderer {
	return &Renderer{cache: cache, backend: backend, recorder: metrics.OrNoop(recorder)}
}

// Start warms the backend once.
func (r *Renderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.started {
		return nil
	}
	if err := r.backend.Start(ctx); err != nil {
		return fmt.Errorf("start diagram backend: %w", err)
	}
	r.started = true
	return nil
}

// Close tears down the backend. It is safe to call more than once.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if !r.started {
		return nil
	}
	r.started = false
	return r.backend.Close()
}

// Cached returns a cached entry without touching the backend.
func (r *Renderer) Cached(definition string) (Entry, bool) {
	return r.cache.Get(Hash(definition))
}

// Render returns the light/dark pair for definition, rendering and caching it on a miss.
func (r *Renderer) Render(ctx context.Context, definition string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renderLocked(ctx, Hash(definition), definition)
}

func (r *Renderer) renderLocked(ctx context.Context, hash, definition string) (Entry, error) {
	if e, ok := r.cache.Get(hash); ok {
		r.recorder.IncDiagramCache(metrics.CacheHit)
		return e, nil
	}
	if r.closed {
		return Entry{}, ErrClosed
	}
	if !r.started {
		return Entry{}, ErrNotStarted
	}
	r.recorder.IncDiagramCache(metrics.CacheMiss)

	light, err := r.backend.Render(ctx, definition, ThemeLight, "light-"+hash)
	if err != nil {
		return Entry{}, fmt.Errorf("render %s (light): %w", hash, err)
	}
	dark, err := r.backend.Render(ctx, definition, ThemeDark, "dark-"+hash)
	if err != nil {
		return Entry{}, fmt.Errorf("render %s (dark): %w", hash, err)
	}
	e := Entry{LightOutput: light, DarkOutput: dark}
	if err := r.cache.Put(hash, e); err != nil {
		slog.Warn("Failed to persist diagram", logfields.Hash(hash), logfields.Error(err))
	}
	return e, nil
}

// RenderBatch renders every definition, skipping cached ones. A failing
// definition is logged and left out of the result; it never aborts the batch.
// The result is keyed by hash.
func (r *Renderer) RenderBatch(ctx context.Context, definitions []string) (map[string]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Entry, len(definitions))
	pending := make(map[string]string)
	var order []string
	for _, def := range definitions {
		hash := Hash(def)
		if _, seen := out[hash]; seen {
			continue
		}
		if _, seen := pending[hash]; seen {
			continue
		}
		if e, ok := r.cache.Get(hash); ok {
			r.recorder.IncDiagramCache(metrics.CacheHit)
			out[hash] = e
			continue
		}
		pending[hash] = def
		order = append(order, hash)
	}
	if len(order) == 0 {
		return out, nil
	}
	if r.closed {
		return out, ErrClosed
	}
	if !r.started {
		return out, ErrNotStarted
	}

	for _, hash := range order {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		e, err := r.renderLocked(ctx, hash, pending[hash])
		if err != nil {
			r.recorder.IncDiagramCache(metrics.CacheFailure)
			slog.Warn("Failed to render diagram", logfields.Hash(hash), logfields.Error(err))
			continue
		}
		out[hash] = e
	}
	return out, nil
}
