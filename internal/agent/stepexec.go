package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aiopshq/assistant/config"
	"github.com/aiopshq/assistant/internal/plan"
	"github.com/aiopshq/assistant/internal/telemetry"
	"github.com/aiopshq/assistant/internal/tool"
)

// retryState is the explicit state of the per-step retry machine.
type retryState int

const (
	stateAttempting retryState = iota
	stateBackingOff
	stateSucceeded
	stateExhausted
)

// BackoffPolicy controls retry behaviour for transient tool faults.
// Defaults: delays 1s, 2s, 4s, 3 retries (4 total attempts).
type BackoffPolicy struct {
	MaxRetries int
	Initial    time.Duration
	Factor     float64
}

// Delay returns the backoff before retry n (1-based).
func (b BackoffPolicy) Delay(retry int) time.Duration {
	d := float64(b.Initial)
	for i := 1; i < retry; i++ {
		d *= b.Factor
	}
	return time.Duration(d)
}

func backoffFromConfig(cfg config.ExecutorConfig) BackoffPolicy {
	p := BackoffPolicy{MaxRetries: cfg.MaxRetries, Initial: cfg.InitialBackoff, Factor: cfg.BackoffFactor}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Initial <= 0 {
		p.Initial = time.Second
	}
	if p.Factor <= 0 {
		p.Factor = 2.0
	}
	return p
}

// StepExecutor runs one step against its registered tool. A tool fault is
// never propagated as an error: every outcome becomes a StepResult.
type StepExecutor struct {
	registry  *tool.Registry
	backoff   BackoffPolicy
	telemetry *telemetry.Telemetry
	logger    *log.Logger

	// sleep is injectable so retry tests do not wait out real backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewStepExecutor creates a step executor over the tool registry.
func NewStepExecutor(registry *tool.Registry, cfg config.ExecutorConfig, tel *telemetry.Telemetry) *StepExecutor {
	return &StepExecutor{
		registry:  registry,
		backoff:   backoffFromConfig(cfg),
		telemetry: tel,
		logger:    log.New(log.Writer(), "[EXECUTOR] ", log.LstdFlags),
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExecuteStep runs step with retry on transient faults. ExecutionTimeMs
// covers the whole attempt sequence including backoff sleeps, so callers
// can observe retry cost.
func (e *StepExecutor) ExecuteStep(ctx context.Context, step plan.Step) StepResult {
	start := time.Now()
	result := StepResult{StepNumber: step.StepNumber}

	t, ok := e.registry.Get(step.Tool)
	if !ok {
		result.Status = StatusFailed
		result.Error = fmt.Sprintf("tool %q not registered", step.Tool)
		result.ExecutionTimeMs = time.Since(start).Milliseconds()
		e.telemetry.RecordStep(string(result.Status), step.Tool)
		return result
	}

	maxAttempts := e.backoff.MaxRetries + 1
	state := stateAttempting
	attempt := 0
	var data interface{}
	var lastFault *tool.Fault
	var lastErr error

	for state == stateAttempting || state == stateBackingOff {
		if state == stateBackingOff {
			delay := e.backoff.Delay(attempt)
			e.logger.Printf("step %d: retry %d/%d for tool %s after %v (%s)",
				step.StepNumber, attempt, e.backoff.MaxRetries, step.Tool, delay, lastFault.Code)
			e.telemetry.RecordRetry(step.Tool)
			if err := e.sleep(ctx, delay); err != nil {
				lastFault = tool.NewFault(step.Tool, tool.CodeCancelled, "cancelled during backoff: %v", err)
				lastErr = lastFault
				state = stateExhausted
				break
			}
			state = stateAttempting
		}

		attempt++
		e.logger.Printf("step %d: attempt %d/%d invoking tool %s", step.StepNumber, attempt, maxAttempts, step.Tool)
		var err error
		data, err = t.Invoke(ctx, step.Parameters)
		if err == nil {
			state = stateSucceeded
			break
		}
		lastErr = err

		fault, isFault := tool.AsFault(err)
		if !isFault {
			fault = tool.NewFault(step.Tool, tool.CodeTransientNetwork, "%v", err)
		}
		lastFault = fault

		if ctx.Err() != nil {
			lastFault = tool.NewFault(step.Tool, tool.CodeCancelled, "cancelled: %v", ctx.Err())
			lastErr = lastFault
			state = stateExhausted
			break
		}
		if tool.Classify(fault.Code) == tool.Permanent {
			state = stateExhausted
			break
		}
		if attempt >= maxAttempts {
			state = stateExhausted
			break
		}
		state = stateBackingOff
	}

	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	switch state {
	case stateSucceeded:
		result.Status = StatusSuccess
		result.Data = data
		e.logger.Printf("step %d: succeeded on attempt %d in %dms", step.StepNumber, attempt, result.ExecutionTimeMs)
	default:
		if data != nil {
			// The tool returned usable data alongside the fault.
			result.Status = StatusPartial
			result.Data = data
		} else {
			result.Status = StatusFailed
		}
		result.Error = lastErr.Error()
		e.logger.Printf("step %d: %s after %d attempt(s) in %dms: %v",
			step.StepNumber, result.Status, attempt, result.ExecutionTimeMs, lastErr)
	}
	e.telemetry.RecordStep(string(result.Status), step.Tool)
	return result
}
