package build

import (
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docsmith/internal/logfields"
	"git.home.luguber.info/inful/docsmith/internal/metrics"
)

// Observer receives callbacks around stage execution and build lifecycle.
type Observer interface {
	OnStageStart(stage StageName)
	OnStageComplete(stage StageName, duration time.Duration, result StageResult)
	OnBuildComplete(report *Report)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnStageStart(_ StageName)                                    {}
func (NoopObserver) OnStageComplete(_ StageName, _ time.Duration, _ StageResult) {}
func (NoopObserver) OnBuildComplete(_ *Report)                                   {}

// RecorderObserver adapts metrics.Recorder into an Observer.
type RecorderObserver struct{ Recorder metrics.Recorder }

func (r RecorderObserver) OnStageStart(_ StageName) {}
func (r RecorderObserver) OnStageComplete(stage StageName, d time.Duration, _ StageResult) {
	if r.Recorder != nil {
		r.Recorder.ObserveStageDuration(string(stage), d)
	}
}

func (r RecorderObserver) OnBuildComplete(report *Report) {
	if r.Recorder != nil {
		r.Recorder.ObserveBuildDuration(report.Duration())
		r.Recorder.IncBuildOutcome(metrics.BuildOutcomeLabel(report.Outcome))
	}
}

// LogObserver writes stage progress to the default slog logger.
type LogObserver struct{ BuildID string }

func (l LogObserver) OnStageStart(stage StageName) {
	slog.Debug("Stage started", logfields.BuildID(l.BuildID), logfields.Stage(string(stage)))
}

func (l LogObserver) OnStageComplete(stage StageName, d time.Duration, result StageResult) {
	slog.Info("Stage complete",
		logfields.BuildID(l.BuildID),
		logfields.Stage(string(stage)),
		logfields.DurationMS(float64(d.Milliseconds())),
		slog.String("result", string(result)))
}

func (l LogObserver) OnBuildComplete(report *Report) {
	slog.Info("Build complete", logfields.BuildID(l.BuildID), slog.String("summary", report.Summary()))
}

type multiObserver []Observer

func (m multiObserver) OnStageStart(stage StageName) {
	for _, o := range m {
		o.OnStageStart(stage)
	}
}

func (m multiObserver) OnStageComplete(stage StageName, d time.Duration, result StageResult) {
	for _, o := range m {
		o.OnStageComplete(stage, d, result)
	}
}

func (m multiObserver) OnBuildComplete(report *Report) {
	for _, o := range m {
		o.OnBuildComplete(report)
	}
}
