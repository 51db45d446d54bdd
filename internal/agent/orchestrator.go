package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aiopshq/assistant/config"
	"github.com/aiopshq/assistant/internal/llm"
	"github.com/aiopshq/assistant/internal/plan"
	"github.com/aiopshq/assistant/internal/telemetry"
	"github.com/aiopshq/assistant/internal/tool"
)

// Orchestrator drives the plan, execute, verify pipeline and tracks
// in-flight queries for status polling.
type Orchestrator struct {
	planner   PlannerInterface
	executor  PlanExecutorInterface
	verifier  VerifierInterface
	telemetry *telemetry.Telemetry
	logger    *log.Logger

	mu         sync.RWMutex
	processing map[string]*ProcessingStatus
	semaphore  chan struct{}
}

const maxConcurrentQueries = 10

// NewOrchestrator wires the full pipeline from configuration: the tool
// registry, the plan validator derived from it, one model backend per
// routed stage, and the three pipeline stages.
func NewOrchestrator(cfg *config.Config, tel *telemetry.Telemetry) (*Orchestrator, error) {
	registry := tool.NewRegistry(
		tool.NewGitHubTool(cfg.Tools.GitHub),
		tool.NewWeatherTool(cfg.Tools.Weather),
		tool.NewWikipediaTool(cfg.Tools.Wikipedia),
	)
	validator := plan.NewValidator(registry.ParamSchemas())

	planningLLM, err := llm.NewProvider(cfg.LLM, cfg.LLM.Routing.Planning, tel.RecordLLMUsage)
	if err != nil {
		return nil, fmt.Errorf("planning backend: %w", err)
	}
	verificationLLM, err := llm.NewProvider(cfg.LLM, cfg.LLM.Routing.Verification, tel.RecordLLMUsage)
	if err != nil {
		return nil, fmt.Errorf("verification backend: %w", err)
	}

	steps := NewStepExecutor(registry, cfg.Executor, tel)
	return &Orchestrator{
		planner:    NewPlanner(planningLLM, validator, tel),
		executor:   NewPlanExecutor(steps, validator, cfg.Executor, tel),
		verifier:   NewVerifier(verificationLLM, tel),
		telemetry:  tel,
		logger:     log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags),
		processing: make(map[string]*ProcessingStatus),
		semaphore:  make(chan struct{}, maxConcurrentQueries),
	}, nil
}

// NewOrchestratorWithStages builds an orchestrator from pre-constructed
// stages. Used by tests and by callers that substitute a stage.
func NewOrchestratorWithStages(p PlannerInterface, e PlanExecutorInterface, v VerifierInterface, tel *telemetry.Telemetry) *Orchestrator {
	return &Orchestrator{
		planner:    p,
		executor:   e,
		verifier:   v,
		telemetry:  tel,
		logger:     log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags),
		processing: make(map[string]*ProcessingStatus),
		semaphore:  make(chan struct{}, maxConcurrentQueries),
	}
}

// ProcessQuery runs one query through the pipeline. Planning failure is
// the only fatal outcome; once a plan exists the full triple is returned
// even if every step failed.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query string) (PipelineResult, error) {
	startTime := time.Now()
	id := uuid.New().String()

	status := &ProcessingStatus{
		QueryID:     id,
		Status:      "pending",
		CreatedAt:   time.Now(),
		LastUpdated: time.Now(),
	}

	o.mu.Lock()
	o.processing[id] = status
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.processing, id)
		o.mu.Unlock()
	}()

	select {
	case o.semaphore <- struct{}{}:
		defer func() { <-o.semaphore }()
	case <-ctx.Done():
		o.telemetry.RecordQuery("cancelled")
		return PipelineResult{}, ctx.Err()
	}

	o.logger.Printf("processing query %s: %q", id, query)
	o.updateStatus(status, "planning", 0.1, "Creating execution plan")

	p, err := o.planner.CreatePlan(ctx, query)
	if err != nil {
		o.updateStatus(status, "failed", 0.0, fmt.Sprintf("Planning failed: %v", err))
		o.telemetry.RecordQuery("planning_failed")
		var perr *PlanningError
		if errors.As(err, &perr) {
			return PipelineResult{}, err
		}
		return PipelineResult{}, &PlanningError{Reason: "planner error", Err: err}
	}
	o.logger.Printf("query %s: plan has %d step(s), intent=%s", id, len(p.Steps), p.Intent)

	o.mu.Lock()
	status.TotalSteps = len(p.Steps)
	o.mu.Unlock()
	o.updateStatus(status, "executing", 0.3, "Executing plan steps")

	exec, err := o.executor.Execute(ctx, p)
	if err != nil {
		// Execute errors only on an invalid plan.
		o.updateStatus(status, "failed", 0.3, fmt.Sprintf("Execution rejected plan: %v", err))
		o.telemetry.RecordQuery("planning_failed")
		return PipelineResult{}, &PlanningError{Reason: "plan rejected at execution", Err: err}
	}
	o.mu.Lock()
	status.CompletedSteps = exec.StepsCompleted
	o.mu.Unlock()
	o.updateStatus(status, "verifying", 0.8, "Verifying results")

	verification := o.verifier.Verify(ctx, p, exec)

	outcome := "success"
	if !exec.Success {
		outcome = "partial_failure"
	}
	o.telemetry.RecordQuery(outcome)
	o.updateStatus(status, "completed", 1.0, "")

	result := PipelineResult{
		ID:             id,
		Query:          query,
		Plan:           p,
		Execution:      exec,
		Verification:   verification,
		ProcessingTime: time.Since(startTime),
		CreatedAt:      startTime,
	}
	o.logger.Printf("query %s finished in %v: completed=%d failed=%d confidence=%.2f",
		id, result.ProcessingTime, exec.StepsCompleted, exec.StepsFailed, verification.ConfidenceScore)
	return result, nil
}

// GetStatus returns the processing status for an in-flight query.
func (o *Orchestrator) GetStatus(queryID string) (ProcessingStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	status, ok := o.processing[queryID]
	if !ok {
		return ProcessingStatus{}, fmt.Errorf("no active query with ID %s", queryID)
	}
	return *status, nil
}

func (o *Orchestrator) updateStatus(status *ProcessingStatus, newStatus string, progress float64, currentStep string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	status.Status = newStatus
	status.Progress = progress
	status.CurrentStep = currentStep
	status.LastUpdated = time.Now()
}
