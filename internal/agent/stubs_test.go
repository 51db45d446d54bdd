package agent

import (
	"context"
	"sync"
	"time"

	"github.com/aiopshq/assistant/config"
	"github.com/aiopshq/assistant/internal/llm"
	"github.com/aiopshq/assistant/internal/telemetry"
	"github.com/aiopshq/assistant/internal/tool"
)

// disabledTelemetry is safe to share: every method is a no-op.
var disabledTelemetry = telemetry.New(config.TelemetryConfig{Enabled: false}, nil)

// scriptedOutcome is one Invoke result for scriptedTool.
type scriptedOutcome struct {
	data interface{}
	err  error
}

// scriptedTool replays a fixed sequence of outcomes, repeating the last one
// when the script runs out.
type scriptedTool struct {
	name     string
	required []string
	script   []scriptedOutcome

	mu    sync.Mutex
	calls int
}

func (s *scriptedTool) Name() string             { return s.name }
func (s *scriptedTool) Description() string      { return "scripted test tool" }
func (s *scriptedTool) RequiredParams() []string { return s.required }

func (s *scriptedTool) Invoke(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	out := s.script[idx]
	return out.data, out.err
}

func (s *scriptedTool) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubLLM returns scripted JSON responses in order.
type stubLLM struct {
	responses []string
	errs      []error

	mu    sync.Mutex
	calls int
}

func (s *stubLLM) CompleteText(ctx context.Context, messages []llm.Message, maxTokens int) (string, error) {
	raw, err := s.CompleteJSON(ctx, messages, maxTokens)
	return string(raw), err
}

func (s *stubLLM) CompleteJSON(ctx context.Context, messages []llm.Message, maxTokens int) ([]byte, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return []byte(s.responses[idx]), nil
}

func (s *stubLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testExecutorConfig() config.ExecutorConfig {
	return config.ExecutorConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, BackoffFactor: 2.0, MaxConcurrentSteps: 5}
}

// newTestStepExecutor builds a step executor whose backoff sleeps return
// immediately, so retry tests run in real time.
func newTestStepExecutor(tools ...tool.Tool) (*StepExecutor, *tool.Registry) {
	registry := tool.NewRegistry(tools...)
	e := NewStepExecutor(registry, testExecutorConfig(), disabledTelemetry)
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return e, registry
}
