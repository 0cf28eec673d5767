package watch

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Poller requests a rebuild on a fixed interval, for file systems that do
// not deliver change events. Unchanged rebuilds are dropped by fingerprint.
type Poller struct {
	scheduler gocron.Scheduler
	interval  time.Duration
}

// NewPoller schedules periodic rebuild requests. Call Start to begin.
func NewPoller(interval time.Duration, req Requester) (*Poller, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { req.Request("poll") }),
		gocron.WithName("docsmith-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create poll job: %w", err)
	}
	return &Poller{scheduler: s, interval: interval}, nil
}

func (p *Poller) Start() {
	slog.Info("Starting rebuild poller", slog.Duration("interval", p.interval))
	p.scheduler.Start()
}

func (p *Poller) Stop() error {
	return p.scheduler.Shutdown()
}
