package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/metrics"
)

// BuildOutcome is the typed enumeration of final build result states.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning"
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// ReportIssueCode enumerates machine-parseable issue identifiers.
type ReportIssueCode string

const (
	IssueBundleFailure     ReportIssueCode = "BUNDLE_FAILURE"
	IssuePageRender        ReportIssueCode = "PAGE_RENDER"
	IssueDiagramBackend    ReportIssueCode = "DIAGRAM_BACKEND"
	IssueCanceled          ReportIssueCode = "BUILD_CANCELED"
	IssueGenericStageError ReportIssueCode = "GENERIC_STAGE_ERROR"
)

// IssueSeverity represents normalized severity levels.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// ReportIssue is a structured taxonomy entry describing a discrete problem encountered.
type ReportIssue struct {
	Code     ReportIssueCode `json:"code"`
	Stage    StageName       `json:"stage"`
	Severity IssueSeverity   `json:"severity"`
	Message  string          `json:"message"`
}

// FailedRoute records a route whose page could not be pre-rendered.
type FailedRoute struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// StageCount aggregates counts of outcomes for a stage.
type StageCount struct {
	Success  int `json:"success"`
	Warning  int `json:"warning"`
	Fatal    int `json:"fatal"`
	Canceled int `json:"canceled"`
}

// Report captures the outcome of one build run.
type Report struct {
	BuildID         string
	Start           time.Time
	End             time.Time
	Errors          []error // fatal errors causing build abortion
	Warnings        []error
	Issues          []ReportIssue
	StageDurations  map[StageName]time.Duration
	StageErrorKinds map[StageName]StageErrorKind
	StageCounts     map[StageName]StageCount
	Routes          int
	RenderedPages   int
	FailedRoutes    []FailedRoute
	Diagrams        int
	DiagramStrategy config.DiagramStrategy
	Outcome         BuildOutcome
}

// NewReport constructs an empty report for a build.
func NewReport(buildID string) *Report {
	return &Report{
		BuildID:         buildID,
		Start:           time.Now(),
		StageDurations:  make(map[StageName]time.Duration),
		StageErrorKinds: make(map[StageName]StageErrorKind),
		StageCounts:     make(map[StageName]StageCount),
	}
}

// AddIssue appends a structured issue and mirrors severity into Errors/Warnings slices.
func (r *Report) AddIssue(code ReportIssueCode, stage StageName, severity IssueSeverity, err error) {
	if err == nil {
		return
	}
	r.Issues = append(r.Issues, ReportIssue{Code: code, Stage: stage, Severity: severity, Message: err.Error()})
	switch severity {
	case SeverityError:
		r.Errors = append(r.Errors, err)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, err)
	}
}

// Finish sets the end time of the report.
func (r *Report) Finish() { r.End = time.Now() }

// Duration is the wall time of the build.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// RecordStageResult updates counters and emits metrics.
func (r *Report) RecordStageResult(stage StageName, res StageResult, recorder metrics.Recorder) {
	recorder = metrics.OrNoop(recorder)
	sc := r.StageCounts[stage]
	switch res {
	case StageResultSuccess:
		sc.Success++
		recorder.IncStageResult(string(stage), metrics.ResultSuccess)
	case StageResultWarning:
		sc.Warning++
		recorder.IncStageResult(string(stage), metrics.ResultWarning)
	case StageResultFatal:
		sc.Fatal++
		recorder.IncStageResult(string(stage), metrics.ResultFatal)
	case StageResultCanceled:
		sc.Canceled++
		recorder.IncStageResult(string(stage), metrics.ResultCanceled)
	case StageResultSkipped:
		recorder.IncStageResult(string(stage), metrics.ResultSkipped)
	}
	r.StageCounts[stage] = sc
}

// DeriveOutcome sets the Outcome field based on recorded errors/warnings.
func (r *Report) DeriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			var se *StageError
			if errors.As(e, &se) && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
				return
			}
		}
		r.Outcome = OutcomeFailed
		return
	}
	if len(r.Warnings) > 0 {
		r.Outcome = OutcomeWarning
		return
	}
	r.Outcome = OutcomeSuccess
}

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("routes=%d rendered=%d failed=%d diagrams=%d duration=%s errors=%d warnings=%d outcome=%s",
		r.Routes, r.RenderedPages, len(r.FailedRoutes), r.Diagrams, r.Duration().Truncate(time.Millisecond),
		len(r.Errors), len(r.Warnings), r.Outcome)
}

// Serializable mirrors Report with string errors for JSON output.
type Serializable struct {
	BuildID         string                `json:"build_id"`
	Start           time.Time             `json:"start"`
	End             time.Time             `json:"end"`
	Errors          []string              `json:"errors"`
	Warnings        []string              `json:"warnings"`
	Issues          []ReportIssue         `json:"issues"`
	StageDurations  map[string]int64      `json:"stage_durations_ms"`
	StageErrorKinds map[string]string     `json:"stage_error_kinds"`
	StageCounts     map[string]StageCount `json:"stage_counts"`
	Routes          int                   `json:"routes"`
	RenderedPages   int                   `json:"rendered_pages"`
	FailedRoutes    []FailedRoute         `json:"failed_routes,omitempty"`
	Diagrams        int                   `json:"diagrams,omitempty"`
	DiagramStrategy string                `json:"diagram_strategy"`
	Outcome         string                `json:"outcome"`
}

// SanitizedCopy converts the report for JSON output.
func (r *Report) SanitizedCopy() *Serializable {
	s := &Serializable{
		BuildID:         r.BuildID,
		Start:           r.Start,
		End:             r.End,
		Errors:          make([]string, len(r.Errors)),
		Warnings:        make([]string, len(r.Warnings)),
		Issues:          r.Issues,
		StageDurations:  make(map[string]int64, len(r.StageDurations)),
		StageErrorKinds: make(map[string]string, len(r.StageErrorKinds)),
		StageCounts:     make(map[string]StageCount, len(r.StageCounts)),
		Routes:          r.Routes,
		RenderedPages:   r.RenderedPages,
		FailedRoutes:    r.FailedRoutes,
		Diagrams:        r.Diagrams,
		DiagramStrategy: string(r.DiagramStrategy),
		Outcome:         string(r.Outcome),
	}
	if s.Issues == nil {
		s.Issues = []ReportIssue{}
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	for k, v := range r.StageDurations {
		s.StageDurations[string(k)] = v.Milliseconds()
	}
	for k, v := range r.StageErrorKinds {
		s.StageErrorKinds[string(k)] = string(v)
	}
	for k, v := range r.StageCounts {
		s.StageCounts[string(k)] = v
	}
	return s
}

// Persist writes build-report.json and build-report.txt atomically into dir.
func (r *Report) Persist(dir string) error {
	if r.End.IsZero() {
		r.Finish()
		r.DeriveOutcome()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("ensure dir for report: %w", err)
	}
	jb, err := json.MarshalIndent(r.SanitizedCopy(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "build-report.json"), jb); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, "build-report.txt"), []byte(r.Summary()+"\n"))
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
