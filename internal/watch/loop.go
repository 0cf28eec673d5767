package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/docsmith/internal/logfields"
	"git.home.luguber.info/inful/docsmith/internal/metrics"
	"git.home.luguber.info/inful/docsmith/internal/site"
)

// BuildFunc produces a fresh snapshot from the current state of the project.
type BuildFunc func(ctx context.Context) (*site.Snapshot, error)

// Requester accepts rebuild requests.
type Requester interface {
	Request(reason string)
}

// Update is delivered to subscribers after a rebuild changed the snapshot.
type Update struct {
	Snapshot *site.Snapshot
	Previous *site.Snapshot
	Reason   string
}

// Loop serializes rebuilds. Requests arriving while a rebuild runs collapse
// into a single follow-up rebuild.
type Loop struct {
	build    BuildFunc
	holder   *Holder
	recorder metrics.Recorder
	requests chan string

	mu      sync.Mutex
	subs    map[int]func(Update)
	nextSub int
	lastErr error
}

// NewLoop creates a loop publishing into holder.
func NewLoop(build BuildFunc, holder *Holder, recorder metrics.Recorder) *Loop {
	return &Loop{
		build:    build,
		holder:   holder,
		recorder: metrics.OrNoop(recorder),
		requests: make(chan string, 1),
		subs:     make(map[int]func(Update)),
	}
}

// Holder returns the snapshot holder the loop publishes into.
func (l *Loop) Holder() *Holder { return l.holder }

// Request enqueues a rebuild without blocking.
func (l *Loop) Request(reason string) {
	select {
	case l.requests <- reason:
	default:
		// a rebuild is already pending
	}
}

// Subscribe registers fn for snapshot changes and returns a function removing it.
func (l *Loop) Subscribe(fn func(Update)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

// Err returns the error of the most recent rebuild, or nil when it succeeded.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Run processes requests until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-l.requests:
			_, _ = l.Rebuild(ctx, reason)
		}
	}
}

// Rebuild builds a snapshot synchronously and publishes it when the
// fingerprint changed. Callers other than Run must not overlap with it.
func (l *Loop) Rebuild(ctx context.Context, reason string) (bool, error) {
	start := time.Now()
	snap, err := l.build(ctx)
	l.recorder.ObserveRebuildDuration(time.Since(start))

	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
	if err != nil {
		slog.Warn("Rebuild failed", slog.String("reason", reason), logfields.Error(err))
		return false, err
	}

	prev := l.holder.Current()
	if !l.holder.Swap(snap) {
		slog.Debug("Rebuild produced no changes", slog.String("reason", reason), logfields.Since(start))
		return false, nil
	}
	slog.Info("Site rebuilt",
		slog.String("reason", reason),
		logfields.Hash(snap.Fingerprint()),
		logfields.Count(len(snap.Routes)),
		logfields.Since(start))
	l.notify(Update{Snapshot: snap, Previous: prev, Reason: reason})
	return true, nil
}

func (l *Loop) notify(u Update) {
	l.mu.Lock()
	subs := make([]func(Update), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()
	for _, fn := range subs {
		fn(u)
	}
}
