package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aiopshq/assistant/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient implements Provider against the OpenAI chat completions API
// (or any compatible endpoint via base_url).
type OpenAIClient struct {
	cfg     config.LLMProviderConfig
	http    *http.Client
	onUsage UsageRecorder
}

// NewOpenAIClient builds a client from provider configuration.
func NewOpenAIClient(cfg config.LLMProviderConfig, onUsage UsageRecorder) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		onUsage: onUsage,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// CompleteText generates free-form text.
func (c *OpenAIClient) CompleteText(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	return c.complete(ctx, messages, maxTokens, nil)
}

// CompleteJSON generates a structured response, asking the API for JSON
// mode and falling back to balanced-brace extraction for backends that
// ignore response_format.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, messages []Message, maxTokens int) ([]byte, error) {
	text, err := c.complete(ctx, messages, maxTokens, &responseFormat{Type: "json_object"})
	if err != nil {
		return nil, err
	}
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: extracted object is not valid JSON", ErrMalformedOutput)
	}
	return raw, nil
}

func (c *OpenAIClient) complete(ctx context.Context, messages []Message, maxTokens int, format *responseFormat) (string, error) {
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	reqBody := chatRequest{
		Model:          c.cfg.Model,
		Messages:       messages,
		Temperature:    c.cfg.Temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: format,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	baseURL := c.cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("model request failed: %s: %s", resp.Status, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("model error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrMalformedOutput)
	}
	if c.onUsage != nil {
		c.onUsage(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	}
	return parsed.Choices[0].Message.Content, nil
}
