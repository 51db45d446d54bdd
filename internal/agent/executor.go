package agent

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/aiopshq/assistant/config"
	"github.com/aiopshq/assistant/internal/plan"
	"github.com/aiopshq/assistant/internal/telemetry"
	"github.com/aiopshq/assistant/internal/tool"
)

// PlanExecutor runs a validated plan: independent steps are dispatched
// concurrently through a bounded worker pool, dependent steps are
// serialized after their dependencies, and one StepResult is collected per
// planned step no matter how many fail.
type PlanExecutor struct {
	steps     *StepExecutor
	validator *plan.Validator
	telemetry *telemetry.Telemetry
	logger    *log.Logger
	workers   int
}

// NewPlanExecutor creates a plan executor over the given step executor.
func NewPlanExecutor(steps *StepExecutor, validator *plan.Validator, cfg config.ExecutorConfig, tel *telemetry.Telemetry) *PlanExecutor {
	workers := cfg.MaxConcurrentSteps
	if workers <= 0 {
		workers = 5
	}
	return &PlanExecutor{
		steps:     steps,
		validator: validator,
		telemetry: tel,
		logger:    log.New(log.Writer(), "[EXECUTOR] ", log.LstdFlags),
		workers:   workers,
	}
}

// stepRefPattern matches textual references to a prior step's output inside
// parameter values: "step 2", "step_2", "$step2", "{{step 2}}".
var stepRefPattern = regexp.MustCompile(`(?i)\$?\bstep[ _]?(\d+)\b`)

// dependencies returns the step numbers this step's parameters reference.
// Only references to earlier steps count; anything else is treated as
// literal text.
func dependencies(s plan.Step) []int {
	seen := map[int]struct{}{}
	var deps []int
	for _, v := range s.Parameters {
		str, ok := v.(string)
		if !ok {
			continue
		}
		for _, m := range stepRefPattern.FindAllStringSubmatch(str, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n <= 0 || n >= s.StepNumber {
				continue
			}
			if _, dup := seen[n]; !dup {
				seen[n] = struct{}{}
				deps = append(deps, n)
			}
		}
	}
	return deps
}

// Execute runs every step of p and aggregates the results in planned order.
// It returns an error only when p fails the fast precondition check; tool
// faults never surface here, they land in the result.
func (e *PlanExecutor) Execute(ctx context.Context, p plan.Plan) (ExecutionResult, error) {
	if err := e.validator.Check(p); err != nil {
		return ExecutionResult{}, err
	}

	start := time.Now()
	n := len(p.Steps)
	e.logger.Printf("executing plan %q with %d steps", p.TaskDescription, n)

	results := make([]StepResult, n)
	resolved := make([]bool, n)

	var (
		mu        sync.Mutex
		execLog   []string
		semaphore = make(chan struct{}, e.workers)
	)
	appendLog := func(format string, args ...interface{}) {
		mu.Lock()
		execLog = append(execLog, fmt.Sprintf("[%s] %s", time.Now().Format("2006-01-02 15:04:05"), fmt.Sprintf(format, args...)))
		mu.Unlock()
	}

	deps := make([][]int, n)
	for i, s := range p.Steps {
		deps[i] = dependencies(s)
	}

	remaining := n
	for remaining > 0 {
		var ready []int
		for i := range p.Steps {
			if resolved[i] {
				continue
			}
			ok := true
			for _, d := range deps[i] {
				if !resolved[d-1] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, i)
			}
		}
		if len(ready) == 0 {
			// Unreachable for validated plans: dependencies only point backwards.
			return ExecutionResult{}, fmt.Errorf("no runnable steps among %d remaining", remaining)
		}

		var wg sync.WaitGroup
		for _, idx := range ready {
			wg.Add(1)
			go func(i int, step plan.Step) {
				defer wg.Done()
				semaphore <- struct{}{}
				defer func() { <-semaphore }()

				var res StepResult
				if ctx.Err() != nil {
					res = StepResult{
						StepNumber: step.StepNumber,
						Status:     StatusFailed,
						Error:      tool.NewFault(step.Tool, tool.CodeCancelled, "pipeline cancelled before dispatch: %v", ctx.Err()).Error(),
					}
					e.telemetry.RecordStep(string(StatusFailed), step.Tool)
				} else {
					res = e.steps.ExecuteStep(ctx, step)
				}

				// Distinct slot per step number; no lock needed for the write.
				results[i] = res
				if res.Status == StatusFailed {
					appendLog("step %d: FAILED - %s", step.StepNumber, res.Error)
				} else {
					appendLog("step %d: %s - %s (%dms)", step.StepNumber, res.Status, summarizeData(res.Data), res.ExecutionTimeMs)
				}
			}(idx, p.Steps[idx])
		}
		wg.Wait()

		for _, idx := range ready {
			resolved[idx] = true
		}
		remaining -= len(ready)
	}

	out := ExecutionResult{Results: results, ExecutionLog: execLog}
	for _, r := range results {
		if r.Status == StatusFailed {
			out.StepsFailed++
		} else {
			out.StepsCompleted++
		}
	}
	out.Success = out.StepsFailed == 0

	e.telemetry.ObserveStage("execution", time.Since(start))
	e.logger.Printf("plan execution finished in %v: %d completed, %d failed",
		time.Since(start), out.StepsCompleted, out.StepsFailed)
	return out, nil
}

// summarizeData renders a short description of step data for the log.
func summarizeData(data interface{}) string {
	switch v := data.(type) {
	case nil:
		return "no data"
	case []tool.Repository:
		return fmt.Sprintf("%d repositories", len(v))
	case tool.WeatherReport:
		return fmt.Sprintf("weather for %s", v.City)
	case tool.ArticleSummary:
		return fmt.Sprintf("article %q", v.Title)
	case []interface{}:
		return fmt.Sprintf("%d items", len(v))
	default:
		s := fmt.Sprintf("%v", v)
		if len(s) > 50 {
			s = s[:50] + "..."
		}
		return s
	}
}
