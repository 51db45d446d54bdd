package tool

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aiopshq/assistant/config"
)

// ArticleSummary is a trimmed Wikipedia article extract.
type ArticleSummary struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	URL     string `json:"url"`
}

// WikipediaTool fetches article summaries from the Wikipedia REST API.
type WikipediaTool struct {
	cfg  config.WikipediaToolConfig
	http *HTTPClient
}

// NewWikipediaTool builds the article summary tool.
func NewWikipediaTool(cfg config.WikipediaToolConfig) *WikipediaTool {
	return &WikipediaTool{cfg: cfg, http: NewHTTPClient(cfg.Timeout)}
}

func (t *WikipediaTool) Name() string { return "wikipedia" }

func (t *WikipediaTool) Description() string {
	return "Fetch a factual summary of a Wikipedia article by topic"
}

func (t *WikipediaTool) RequiredParams() []string { return []string{"topic"} }

// Invoke fetches an article summary. Parameters: topic (required),
// sentences (default from config).
func (t *WikipediaTool) Invoke(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	topic, err := stringParam(t.Name(), params, "topic")
	if err != nil {
		return nil, err
	}
	sentences := intParam(params, "sentences", t.cfg.Sentences)
	if sentences <= 0 {
		sentences = 3
	}

	endpoint := t.cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://en.wikipedia.org/api/rest_v1"
	}
	title := strings.ReplaceAll(strings.TrimSpace(topic), " ", "_")
	reqURL := fmt.Sprintf("%s/page/summary/%s", endpoint, url.PathEscape(title))

	var resp struct {
		Title   string `json:"title"`
		Extract string `json:"extract"`
		Content struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
	}
	if err := t.http.GetJSON(ctx, t.Name(), reqURL, nil, &resp); err != nil {
		return nil, err
	}

	return ArticleSummary{
		Title:   resp.Title,
		Extract: firstSentences(resp.Extract, sentences),
		URL:     resp.Content.Desktop.Page,
	}, nil
}

// firstSentences trims text to at most n sentences. Splitting on ". " is
// what the upstream summary format expects; abbreviations are rare enough
// in lead extracts not to matter.
func firstSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	if text == "" || n <= 0 {
		return text
	}
	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '.' && text[i] != '!' && text[i] != '?' {
			continue
		}
		if i+1 == len(text) || text[i+1] == ' ' {
			count++
			if count == n {
				return text[:i+1]
			}
		}
	}
	return text
}
