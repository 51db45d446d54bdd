package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/aiopshq/assistant/config"
)

// Message is one turn in a model conversation.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Provider is the opaque model backend the pipeline calls. Both methods may
// fail or return malformed output; callers own all recovery.
type Provider interface {
	// CompleteText generates free-form text.
	CompleteText(ctx context.Context, messages []Message, maxTokens int) (string, error)

	// CompleteJSON generates a structured response and returns the raw JSON
	// object bytes. It fails with ErrMalformedOutput when the model response
	// contains no JSON object.
	CompleteJSON(ctx context.Context, messages []Message, maxTokens int) ([]byte, error)
}

// Backend failure taxonomy.
var (
	ErrTimeout         = errors.New("model backend timed out")
	ErrAuth            = errors.New("model backend rejected credentials")
	ErrMalformedOutput = errors.New("model backend returned malformed output")
)

// UsageRecorder receives token counts after each successful call.
type UsageRecorder func(promptTokens, completionTokens int64)

// NewProvider builds the model backend for the given routing key.
func NewProvider(cfg config.LLMConfig, route string, onUsage UsageRecorder) (Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no model providers configured")
	}
	name := route
	if _, ok := cfg.Providers[name]; !ok {
		// Fall back to the sole configured provider when routing is unset.
		if len(cfg.Providers) == 1 {
			for n := range cfg.Providers {
				name = n
			}
		}
	}
	pc, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("model provider %q not configured", name)
	}
	switch pc.Type {
	case "openai", "":
		return NewOpenAIClient(pc, onUsage), nil
	default:
		return nil, fmt.Errorf("unsupported model provider type: %s", pc.Type)
	}
}

// ExtractJSON finds the first balanced JSON object in a model response.
// Models occasionally wrap the object in prose despite instructions.
func ExtractJSON(response string) ([]byte, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(response); i++ {
		ch := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return []byte(response[start : i+1]), nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: no JSON object found in response", ErrMalformedOutput)
}
