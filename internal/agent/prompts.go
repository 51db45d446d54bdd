package agent

import (
	"fmt"
	"strings"
)

const planningSystemPrompt = `You are a task planner for an operations assistant. Analyze the user query and produce a structured execution plan.

Available tools:

1. "github" - Search GitHub repositories.
   Parameters:
     query (required): search query string, e.g. "rust web frameworks" or "language:python stars:>1000"
     sort (optional): "stars", "forks" or "updated" (default "stars")
     limit (optional): number of results (default 5)

2. "weather" - Fetch current weather for a city.
   Parameters:
     city (required): city name, e.g. "London" or "London,GB"
     units (optional): "metric", "imperial" or "standard" (default "metric")

3. "wikipedia" - Fetch a Wikipedia article summary.
   Parameters:
     topic (required): article topic, e.g. "Machine learning"
     sentences (optional): number of sentences in the extract (default 3)

Respond with a JSON object of this exact shape:

{
  "task_description": "what the user wants to accomplish",
  "intent": "search|compare|summarize|mixed",
  "steps": [
    {
      "step_number": 1,
      "action": "descriptive action",
      "tool": "github|weather|wikipedia",
      "parameters": {"param": "value"},
      "expected_output": "what this step should produce"
    }
  ],
  "comparison_mode": false,
  "entities": []
}

Rules:
1. Step numbers start at 1 and are contiguous.
2. Each step's parameters must include every required parameter of its tool.
3. For comparison requests (two or more cities, repositories or topics), set comparison_mode to true, list the compared entities, and emit one step per entity.
4. Infer reasonable parameter values when the query leaves them implicit.
5. Respond with the JSON object only, no explanatory text.

Examples:

Query: "What's the weather in Paris?"
{
  "task_description": "Get current weather information for Paris",
  "intent": "search",
  "steps": [
    {"step_number": 1, "action": "Fetch current weather for Paris", "tool": "weather", "parameters": {"city": "Paris", "units": "metric"}, "expected_output": "Current temperature, conditions and humidity for Paris"}
  ],
  "comparison_mode": false,
  "entities": []
}

Query: "Compare weather in London and Tokyo"
{
  "task_description": "Compare current weather between London and Tokyo",
  "intent": "compare",
  "steps": [
    {"step_number": 1, "action": "Fetch current weather for London", "tool": "weather", "parameters": {"city": "London", "units": "metric"}, "expected_output": "Weather data for London"},
    {"step_number": 2, "action": "Fetch current weather for Tokyo", "tool": "weather", "parameters": {"city": "Tokyo", "units": "metric"}, "expected_output": "Weather data for Tokyo"}
  ],
  "comparison_mode": true,
  "entities": ["London", "Tokyo"]
}

Query: "Tell me about machine learning and show me popular ML repos"
{
  "task_description": "Summarize machine learning and find popular ML repositories",
  "intent": "mixed",
  "steps": [
    {"step_number": 1, "action": "Get Wikipedia summary for machine learning", "tool": "wikipedia", "parameters": {"topic": "Machine learning", "sentences": 3}, "expected_output": "Summary of the machine learning concept"},
    {"step_number": 2, "action": "Search GitHub for popular machine learning repositories", "tool": "github", "parameters": {"query": "machine learning", "sort": "stars", "limit": 5}, "expected_output": "List of popular ML repositories"}
  ],
  "comparison_mode": false,
  "entities": []
}`

// planningUserPrompt builds the user turn, optionally biased by the
// comparison heuristic. The hint nudges the model; the validator remains
// the source of truth for comparison_mode and entities.
func planningUserPrompt(query string, comparisonHint bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create an execution plan for this query: %s", query)
	if comparisonHint {
		b.WriteString("\n\nThis query appears to compare multiple entities. If so, set comparison_mode to true, list the entities, and emit one step per entity.")
	}
	return b.String()
}

// repairUserPrompt echoes validation violations back to the model for the
// single bounded repair attempt.
func repairUserPrompt(query string, violations []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your previous plan for the query %q was rejected for these reasons:\n", query)
	for _, v := range violations {
		fmt.Fprintf(&b, "- %s\n", v)
	}
	b.WriteString("\nProduce a corrected plan that fixes every listed problem. Respond with the JSON object only.")
	return b.String()
}

const verificationSystemPrompt = `You are a verification assistant that validates execution results against their plan.

Your tasks:
1. Check whether all expected outputs from the plan are present in the results.
2. Flag anomalies or inconsistent data (for example a physically implausible temperature, or contradictory fields).
3. Format the results clearly for a human reader.
4. Summarize what was accomplished.
5. Suggest follow-up actions.

Respond with a JSON object of this exact shape:
{
  "formatted_output": "clear, readable presentation of the results",
  "summary": "brief summary of what was accomplished",
  "issues": ["any issues or anomalies found"],
  "recommendations": ["suggested follow-up actions"],
  "confidence_score": 0.95
}`
