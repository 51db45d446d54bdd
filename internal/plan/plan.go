package plan

import "strings"

// Intent classifies what the user is trying to accomplish.
type Intent string

const (
	IntentSearch    Intent = "search"
	IntentCompare   Intent = "compare"
	IntentSummarize Intent = "summarize"
	IntentMixed     Intent = "mixed"
)

// ValidIntents lists every intent the planner may emit.
var ValidIntents = []Intent{IntentSearch, IntentCompare, IntentSummarize, IntentMixed}

// Plan is a validated sequence of tool-invocation steps derived from a
// natural-language query. It is constructed once by the planner and never
// mutated afterwards; the executor consumes it read-only.
type Plan struct {
	TaskDescription string   `json:"task_description"`
	Intent          Intent   `json:"intent"`
	Steps           []Step   `json:"steps"`
	ComparisonMode  bool     `json:"comparison_mode"`
	Entities        []string `json:"entities,omitempty"`
}

// Step is one planned tool invocation. Critical defaults to true: a failed
// critical step makes the execution incomplete, a failed non-critical step
// does not.
type Step struct {
	StepNumber     int                    `json:"step_number"`
	Action         string                 `json:"action"`
	Tool           string                 `json:"tool"`
	Parameters     map[string]interface{} `json:"parameters"`
	ExpectedOutput string                 `json:"expected_output"`
	Critical       bool                   `json:"critical"`
}

// DistinctEntities returns the number of distinct entries in Entities,
// compared after trimming whitespace and folding case.
func (p Plan) DistinctEntities() int {
	seen := make(map[string]struct{}, len(p.Entities))
	for _, e := range p.Entities {
		key := strings.ToLower(strings.TrimSpace(e))
		if key == "" {
			continue
		}
		seen[key] = struct{}{}
	}
	return len(seen)
}
