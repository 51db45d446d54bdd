package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aiopshq/assistant/internal/plan"
	"github.com/aiopshq/assistant/internal/tool"
)

func newTestPlanExecutor(tools ...tool.Tool) (*PlanExecutor, *plan.Validator) {
	steps, registry := newTestStepExecutor(tools...)
	validator := plan.NewValidator(registry.ParamSchemas())
	return NewPlanExecutor(steps, validator, testExecutorConfig(), disabledTelemetry), validator
}

func comparisonPlan(cities ...string) plan.Plan {
	p := plan.Plan{
		TaskDescription: "compare weather",
		Intent:          plan.IntentCompare,
		ComparisonMode:  true,
		Entities:        cities,
	}
	for i, city := range cities {
		p.Steps = append(p.Steps, weatherStep(i+1, city))
	}
	return p
}

func TestExecuteCollectsResultInPlannedOrder(t *testing.T) {
	st := &scriptedTool{name: "weather", required: []string{"city"}, script: []scriptedOutcome{
		{data: tool.WeatherReport{City: "x"}},
	}}
	e, _ := newTestPlanExecutor(st)

	res, err := e.Execute(context.Background(), comparisonPlan("London", "Paris", "Berlin"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(res.Results))
	}
	for i, r := range res.Results {
		if r.StepNumber != i+1 {
			t.Fatalf("result %d has step number %d", i, r.StepNumber)
		}
	}
	if !res.Success || res.StepsCompleted != 3 || res.StepsFailed != 0 {
		t.Fatalf("aggregate = %+v", res)
	}
}

func TestExecuteContinuesPastFailedStep(t *testing.T) {
	// Middle city fails permanently; the other two still run.
	calls := make(map[string]bool)
	var mu sync.Mutex
	ft := &funcTool{name: "weather", required: []string{"city"}, fn: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		city := params["city"].(string)
		mu.Lock()
		calls[city] = true
		mu.Unlock()
		if city == "Paris" {
			return nil, tool.NewFault("weather", tool.CodeNotFound, "no such city")
		}
		return tool.WeatherReport{City: city, Temperature: 11}, nil
	}}
	e, _ := newTestPlanExecutor(ft)

	res, err := e.Execute(context.Background(), comparisonPlan("London", "Paris", "Berlin"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Success {
		t.Fatalf("a failed step must clear Success")
	}
	if res.StepsCompleted != 2 || res.StepsFailed != 1 {
		t.Fatalf("completed=%d failed=%d, want 2/1", res.StepsCompleted, res.StepsFailed)
	}
	if res.StepsCompleted+res.StepsFailed != len(res.Results) {
		t.Fatalf("aggregate counts must partition the results")
	}
	for _, city := range []string{"London", "Paris", "Berlin"} {
		if !calls[city] {
			t.Fatalf("step for %s was never dispatched", city)
		}
	}
	if res.Results[1].Status != StatusFailed {
		t.Fatalf("Paris result = %s, want failed", res.Results[1].Status)
	}
}

func TestExecuteRejectsInvalidPlan(t *testing.T) {
	st := &scriptedTool{name: "weather", required: []string{"city"}, script: []scriptedOutcome{{data: "x"}}}
	e, _ := newTestPlanExecutor(st)

	_, err := e.Execute(context.Background(), plan.Plan{Intent: plan.IntentSearch})
	if err == nil {
		t.Fatalf("expected precondition failure for empty plan")
	}
}

func TestExecuteSerializesDependentSteps(t *testing.T) {
	var mu sync.Mutex
	var order []int
	ft := &funcTool{name: "wikipedia", required: []string{"topic"}, fn: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		topic := params["topic"].(string)
		n := 1
		if topic != "Go" {
			n = 2
		} else {
			// Let the dependent step overtake if it were dispatched concurrently.
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
		return tool.ArticleSummary{Title: topic}, nil
	}}
	e, _ := newTestPlanExecutor(ft)

	p := plan.Plan{
		TaskDescription: "chained lookup",
		Intent:          plan.IntentMixed,
		Steps: []plan.Step{
			{StepNumber: 1, Action: "lookup", Tool: "wikipedia", Parameters: map[string]interface{}{"topic": "Go"}, Critical: true},
			{StepNumber: 2, Action: "follow up", Tool: "wikipedia", Parameters: map[string]interface{}{"topic": "refine using step 1 output"}, Critical: true},
		},
	}
	res, err := e.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("execution failed: %v", res.Results)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("dispatch order = %v, want [1 2]", order)
	}
}

func TestExecuteCancelledContextFailsRemainingSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := &scriptedTool{name: "weather", required: []string{"city"}, script: []scriptedOutcome{{data: "x"}}}
	e, _ := newTestPlanExecutor(st)

	res, err := e.Execute(ctx, comparisonPlan("London", "Paris"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Success || res.StepsFailed != 2 {
		t.Fatalf("cancelled run should fail every step, got %+v", res)
	}
}

func TestExecuteComparisonSymmetry(t *testing.T) {
	ft := &funcTool{name: "weather", required: []string{"city"}, fn: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return tool.WeatherReport{City: params["city"].(string), Temperature: 9}, nil
	}}
	e, _ := newTestPlanExecutor(ft)

	resAB, err := e.Execute(context.Background(), comparisonPlan("London", "Paris"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	resBA, err := e.Execute(context.Background(), comparisonPlan("Paris", "London"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	cities := func(res ExecutionResult) map[string]bool {
		out := map[string]bool{}
		for _, r := range res.Results {
			out[r.Data.(tool.WeatherReport).City] = true
		}
		return out
	}
	a, b := cities(resAB), cities(resBA)
	if len(a) != 2 || len(b) != 2 || !a["London"] || !b["London"] || !a["Paris"] || !b["Paris"] {
		t.Fatalf("entity data sets differ: %v vs %v", a, b)
	}
	// Only the sequence order may differ.
	if resAB.Results[0].Data.(tool.WeatherReport).City != "London" || resBA.Results[0].Data.(tool.WeatherReport).City != "Paris" {
		t.Fatalf("results must follow planned order")
	}
}

func TestDependenciesParsing(t *testing.T) {
	cases := []struct {
		value string
		want  []int
	}{
		{"use step 1 output", []int{1}},
		{"$step2 and step_1", []int{2, 1}},
		{"{{step 3}}", []int{3}},
		{"stepping stones", nil},
		{"step 9", nil}, // forward reference, ignored
	}
	for _, tc := range cases {
		s := plan.Step{StepNumber: 5, Parameters: map[string]interface{}{"q": tc.value}}
		got := dependencies(s)
		if len(got) != len(tc.want) {
			t.Fatalf("dependencies(%q) = %v, want %v", tc.value, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("dependencies(%q) = %v, want %v", tc.value, got, tc.want)
			}
		}
	}
}

// funcTool adapts a function to the tool contract.
type funcTool struct {
	name     string
	required []string
	fn       func(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

func (f *funcTool) Name() string             { return f.name }
func (f *funcTool) Description() string      { return "function-backed test tool" }
func (f *funcTool) RequiredParams() []string { return f.required }
func (f *funcTool) Invoke(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return f.fn(ctx, params)
}
