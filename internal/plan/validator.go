package plan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ValidationError enumerates every rule a candidate plan violated. The
// planner echoes Violations back to the model when asking for a repaired
// plan, so each entry is phrased as an instruction the model can act on.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("plan validation failed: %s", strings.Join(e.Violations, "; "))
}

// Validator checks candidate plans against the registered tool set.
// Tools maps each registered tool name to its required parameter keys.
type Validator struct {
	Tools map[string][]string
}

// NewValidator builds a validator over the given tool parameter schemas.
func NewValidator(tools map[string][]string) *Validator {
	return &Validator{Tools: tools}
}

// Parse validates raw model output and materializes a Plan. It runs the
// embedded JSON Schema first (field presence and typing), then every
// semantic rule, collecting all violations into a single *ValidationError
// so the planner can feed them back to the model in one repair prompt.
func (v *Validator) Parse(data []byte) (Plan, error) {
	if err := ValidateDocument(data); err != nil {
		return Plan{}, &ValidationError{Violations: []string{err.Error()}}
	}

	var raw struct {
		TaskDescription string   `json:"task_description"`
		Intent          Intent   `json:"intent"`
		ComparisonMode  bool     `json:"comparison_mode"`
		Entities        []string `json:"entities"`
		Steps           []struct {
			StepNumber     int                    `json:"step_number"`
			Action         string                 `json:"action"`
			Tool           string                 `json:"tool"`
			Parameters     map[string]interface{} `json:"parameters"`
			ExpectedOutput string                 `json:"expected_output"`
			Critical       *bool                  `json:"critical"`
		} `json:"steps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Plan{}, &ValidationError{Violations: []string{fmt.Sprintf("plan is not valid JSON: %v", err)}}
	}

	p := Plan{
		TaskDescription: raw.TaskDescription,
		Intent:          raw.Intent,
		ComparisonMode:  raw.ComparisonMode,
		Entities:        raw.Entities,
	}
	for _, rs := range raw.Steps {
		critical := true
		if rs.Critical != nil {
			critical = *rs.Critical
		}
		params := rs.Parameters
		if params == nil {
			params = map[string]interface{}{}
		}
		p.Steps = append(p.Steps, Step{
			StepNumber:     rs.StepNumber,
			Action:         rs.Action,
			Tool:           rs.Tool,
			Parameters:     params,
			ExpectedOutput: rs.ExpectedOutput,
			Critical:       critical,
		})
	}

	if violations := v.violations(p); len(violations) > 0 {
		return Plan{}, &ValidationError{Violations: violations}
	}
	return p, nil
}

// Check is the fast precondition used by the plan executor: it reports only
// the first violated rule.
func (v *Validator) Check(p Plan) error {
	if violations := v.violations(p); len(violations) > 0 {
		return fmt.Errorf("invalid plan: %s", violations[0])
	}
	return nil
}

// violations applies the semantic rules in spec order and returns every
// violation found.
func (v *Validator) violations(p Plan) []string {
	var out []string

	validIntent := false
	for _, in := range ValidIntents {
		if p.Intent == in {
			validIntent = true
			break
		}
	}
	if !validIntent {
		out = append(out, fmt.Sprintf("intent %q is not one of search, compare, summarize, mixed", p.Intent))
	}

	if len(p.Steps) == 0 {
		out = append(out, "steps must contain at least one step")
		return out
	}

	for i, s := range p.Steps {
		if s.StepNumber != i+1 {
			out = append(out, fmt.Sprintf("step at position %d has step_number %d, expected %d (step numbers must be contiguous from 1)", i, s.StepNumber, i+1))
		}
	}

	for _, s := range p.Steps {
		required, registered := v.Tools[s.Tool]
		if !registered {
			out = append(out, fmt.Sprintf("step %d uses unregistered tool %q (registered: %s)", s.StepNumber, s.Tool, strings.Join(v.toolNames(), ", ")))
			continue
		}
		for _, key := range required {
			if _, ok := s.Parameters[key]; !ok {
				out = append(out, fmt.Sprintf("step %d is missing required parameter %q for tool %q", s.StepNumber, key, s.Tool))
			}
		}
	}

	if p.Intent == IntentCompare || p.ComparisonMode {
		if p.DistinctEntities() < 2 {
			out = append(out, "comparison plans must list at least 2 distinct entities")
		}
	}

	return out
}

func (v *Validator) toolNames() []string {
	names := make([]string, 0, len(v.Tools))
	for name := range v.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
