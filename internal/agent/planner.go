package agent

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/aiopshq/assistant/internal/llm"
	"github.com/aiopshq/assistant/internal/plan"
	"github.com/aiopshq/assistant/internal/telemetry"
)

const planningMaxTokens = 2000

// Planner turns a natural-language query into a validated execution plan
// via the model backend. On a validation failure it re-prompts once with
// the violated rules; a second failure surfaces a *PlanningError.
type Planner struct {
	provider  llm.Provider
	validator *plan.Validator
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewPlanner creates a planner over the given model backend and validator.
func NewPlanner(provider llm.Provider, validator *plan.Validator, tel *telemetry.Telemetry) *Planner {
	return &Planner{
		provider:  provider,
		validator: validator,
		telemetry: tel,
		logger:    log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// CreatePlan produces a validated plan for query.
func (p *Planner) CreatePlan(ctx context.Context, query string) (plan.Plan, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return plan.Plan{}, &PlanningError{Reason: "query is empty"}
	}

	start := time.Now()
	hint := DetectComparison(query)
	p.logger.Printf("creating plan for query %q (comparison hint: %v)", query, hint)

	messages := []llm.Message{
		{Role: "system", Content: planningSystemPrompt},
		{Role: "user", Content: planningUserPrompt(query, hint)},
	}

	raw, err := p.provider.CompleteJSON(ctx, messages, planningMaxTokens)
	if err != nil {
		return plan.Plan{}, &PlanningError{Reason: "model backend unavailable", Err: err}
	}

	candidate, err := p.validator.Parse(raw)
	if err == nil {
		p.telemetry.ObserveStage("planning", time.Since(start))
		p.logger.Printf("plan created with %d steps in %v", len(candidate.Steps), time.Since(start))
		return candidate, nil
	}

	var verr *plan.ValidationError
	if !errors.As(err, &verr) {
		return plan.Plan{}, &PlanningError{Reason: "plan validation failed", Err: err}
	}

	// One bounded repair attempt, echoing the violated rules.
	p.logger.Printf("plan rejected (%d violations), requesting repair", len(verr.Violations))
	repair := append(messages,
		llm.Message{Role: "assistant", Content: string(raw)},
		llm.Message{Role: "user", Content: repairUserPrompt(query, verr.Violations)},
	)
	raw, err = p.provider.CompleteJSON(ctx, repair, planningMaxTokens)
	if err != nil {
		return plan.Plan{}, &PlanningError{Reason: "model backend unavailable during repair", Err: err}
	}
	candidate, err = p.validator.Parse(raw)
	if err != nil {
		return plan.Plan{}, &PlanningError{Reason: "plan still invalid after repair attempt", Err: err}
	}
	p.telemetry.ObserveStage("planning", time.Since(start))
	p.logger.Printf("repaired plan created with %d steps in %v", len(candidate.Steps), time.Since(start))
	return candidate, nil
}

var comparisonPhrases = []string{
	"compare", "comparison", " vs ", " vs. ", "versus",
	"difference between", "differences between",
	"which is better", "better than", "contrast",
}

var multiEntityPattern = regexp.MustCompile(`\b\w[\w-]*(?:,\s*\w[\w-]*)*\s+(?:and|or)\s+\w[\w-]*\b`)

// DetectComparison scans a query for multi-entity comparison cues. It is a
// heuristic hint to the planning prompt, never a hard override.
func DetectComparison(query string) bool {
	lower := strings.ToLower(query)
	for _, phrase := range comparisonPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	// "weather in London, Paris and Tokyo"
	if strings.Contains(lower, ",") && (strings.Contains(lower, " and ") || strings.Contains(lower, " or ")) {
		return true
	}
	// Conjunction joining at least two capitalized entities.
	if multiEntityPattern.MatchString(query) {
		caps := 0
		for _, w := range strings.Fields(query) {
			r := []rune(strings.Trim(w, ",.?!"))
			if len(r) > 0 && r[0] >= 'A' && r[0] <= 'Z' {
				caps++
			}
		}
		// Discount the sentence-initial capital.
		if caps >= 3 {
			return true
		}
	}
	return false
}
