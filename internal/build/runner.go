package build

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StageOutcome is the normalized result of a stage execution.
type StageOutcome struct {
	Stage     StageName
	Error     *StageError
	Result    StageResult
	IssueCode ReportIssueCode
	Severity  IssueSeverity
	Abort     bool
}

// RunStages executes stages in order, recording timing and stopping on the
// first fatal or canceled stage. Stages after an abort are recorded as skipped.
func RunStages(ctx context.Context, bc *BuildContext, stages []StageDef) error {
	obs := bc.observer()
	for i, st := range stages {
		select {
		case <-ctx.Done():
			se := NewCanceledStageError(st.Name, ctx.Err())
			bc.Report.StageErrorKinds[st.Name] = se.Kind
			bc.Report.AddIssue(IssueCanceled, st.Name, SeverityError, se)
			bc.Report.RecordStageResult(st.Name, StageResultCanceled, bc.Recorder)
			obs.OnStageComplete(st.Name, 0, StageResultCanceled)
			skipRemaining(bc, stages[i+1:])
			return se
		default:
		}

		obs.OnStageStart(st.Name)
		t0 := time.Now()
		err := st.Fn(ctx, bc)
		dur := time.Since(t0)
		bc.Report.StageDurations[st.Name] = dur

		out := ClassifyStageResult(st.Name, err)
		if out.Error != nil {
			bc.Report.StageErrorKinds[st.Name] = out.Error.Kind
			bc.Report.AddIssue(out.IssueCode, out.Stage, out.Severity, out.Error)
		}
		bc.Report.RecordStageResult(st.Name, out.Result, bc.Recorder)
		obs.OnStageComplete(st.Name, dur, out.Result)

		if out.Abort {
			skipRemaining(bc, stages[i+1:])
			if out.Error != nil {
				return out.Error
			}
			return fmt.Errorf("stage %s aborted", st.Name)
		}
	}
	return nil
}

func skipRemaining(bc *BuildContext, rest []StageDef) {
	for _, st := range rest {
		bc.Report.RecordStageResult(st.Name, StageResultSkipped, bc.Recorder)
	}
}

// ClassifyStageResult converts a raw error from a stage into a StageOutcome.
func ClassifyStageResult(stage StageName, err error) StageOutcome {
	if err == nil {
		return StageOutcome{Stage: stage, Result: StageResultSuccess}
	}

	var se *StageError
	if !errors.As(err, &se) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			se = NewCanceledStageError(stage, err)
		} else {
			se = NewFatalStageError(stage, err)
		}
	}

	switch se.Kind {
	case StageErrorCanceled:
		return StageOutcome{Stage: stage, Error: se, Result: StageResultCanceled, IssueCode: IssueCanceled, Severity: SeverityError, Abort: true}
	case StageErrorWarning:
		return StageOutcome{Stage: stage, Error: se, Result: StageResultWarning, IssueCode: issueCode(se), Severity: SeverityWarning}
	default:
		return StageOutcome{Stage: stage, Error: se, Result: StageResultFatal, IssueCode: issueCode(se), Severity: SeverityError, Abort: true}
	}
}

func issueCode(se *StageError) ReportIssueCode {
	switch {
	case errors.Is(se.Err, ErrBundle):
		return IssueBundleFailure
	case errors.Is(se.Err, ErrPageRender):
		return IssuePageRender
	case errors.Is(se.Err, ErrDiagramBackend):
		return IssueDiagramBackend
	default:
		return IssueGenericStageError
	}
}
