package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/aiopshq/assistant/internal/plan"
)

// Status is the resolution of one executed step.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPartial Status = "partial"
)

// StepResult is the outcome of one planned step. Invariants: a failed
// result carries no data and a non-empty error; a successful result
// carries no error.
type StepResult struct {
	StepNumber      int         `json:"step_number"`
	Status          Status      `json:"status"`
	Data            interface{} `json:"data"`
	Error           string      `json:"error,omitempty"`
	ExecutionTimeMs int64       `json:"execution_time_ms"`
}

// ExecutionResult aggregates one StepResult per planned step, in planned
// order, regardless of how many steps failed or in which order they
// completed. StepsCompleted + StepsFailed always equals len(Results).
type ExecutionResult struct {
	Success        bool         `json:"success"`
	StepsCompleted int          `json:"steps_completed"`
	StepsFailed    int          `json:"steps_failed"`
	Results        []StepResult `json:"results"`
	ExecutionLog   []string     `json:"execution_log"`
}

// VerificationResult is the verifier's structured judgment over one
// (plan, execution) pair. It is never fed back into re-execution.
type VerificationResult struct {
	IsComplete      bool     `json:"is_complete"`
	IsCorrect       bool     `json:"is_correct"`
	ConfidenceScore float64  `json:"confidence_score"`
	Issues          []string `json:"issues"`
	FormattedOutput string   `json:"formatted_output"`
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// PipelineResult is the full triple returned to the caller whenever
// planning succeeded, even if every tool call failed.
type PipelineResult struct {
	ID             string             `json:"id"`
	Query          string             `json:"query"`
	Plan           plan.Plan          `json:"plan"`
	Execution      ExecutionResult    `json:"execution"`
	Verification   VerificationResult `json:"verification"`
	ProcessingTime time.Duration      `json:"processing_time"`
	CreatedAt      time.Time          `json:"created_at"`
}

// PlanningError is fatal to the invocation: no usable plan exists. It is
// the only error processQuery propagates.
type PlanningError struct {
	Reason string
	Err    error
}

func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planning failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("planning failed: %s", e.Reason)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// ProcessingStatus tracks one pipeline invocation for status polling.
type ProcessingStatus struct {
	QueryID        string    `json:"query_id"`
	Status         string    `json:"status"` // pending, planning, executing, verifying, completed, failed
	Progress       float64   `json:"progress"`
	CurrentStep    string    `json:"current_step,omitempty"`
	CompletedSteps int       `json:"completed_steps"`
	TotalSteps     int       `json:"total_steps"`
	Error          string    `json:"error,omitempty"`
	LastUpdated    time.Time `json:"last_updated"`
	CreatedAt      time.Time `json:"created_at"`
}

// PlannerInterface turns a query into a validated plan.
type PlannerInterface interface {
	CreatePlan(ctx context.Context, query string) (plan.Plan, error)
}

// PlanExecutorInterface runs a validated plan to completion.
type PlanExecutorInterface interface {
	Execute(ctx context.Context, p plan.Plan) (ExecutionResult, error)
}

// VerifierInterface judges an execution result against its plan.
type VerifierInterface interface {
	Verify(ctx context.Context, p plan.Plan, exec ExecutionResult) VerificationResult
}
