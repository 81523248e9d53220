package core

import "fmt"

// Outcome is how an enrichment stage ended.
type Outcome int

const (
	// OutcomeOK means the stage wrote its result to the store.
	OutcomeOK Outcome = iota
	// OutcomeSkipped means the stage did not apply (wrong host, no credentials).
	OutcomeSkipped
	// OutcomeFailed means the stage ran and gave up. The record keeps a null field.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StageResult reports one stage of a bookmark's enrichment. Err is the
// failure or skip reason and is nil for OutcomeOK.
type StageResult struct {
	Stage   string
	Outcome Outcome
	Err     error
}

func (r StageResult) String() string {
	if r.Err == nil {
		return fmt.Sprintf("%s: %s", r.Stage, r.Outcome)
	}
	return fmt.Sprintf("%s: %s (%v)", r.Stage, r.Outcome, r.Err)
}

func stageOK(stage string) StageResult {
	return StageResult{Stage: stage, Outcome: OutcomeOK}
}

func stageSkipped(stage string, reason error) StageResult {
	return StageResult{Stage: stage, Outcome: OutcomeSkipped, Err: reason}
}

func stageFailed(stage string, err error) StageResult {
	return StageResult{Stage: stage, Outcome: OutcomeFailed, Err: err}
}

// recoverStage turns a panic inside a stage into a failed result.
func recoverStage(stage string, res *StageResult) {
	if r := recover(); r != nil {
		*res = stageFailed(stage, fmt.Errorf("panic: %v", r))
	}
}
