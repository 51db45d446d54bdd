package tool

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aiopshq/assistant/config"
)

// Repository is one repository search hit.
type Repository struct {
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`
	Language    string `json:"language"`
	OpenIssues  int    `json:"open_issues"`
	UpdatedAt   string `json:"updated_at"`
}

// GitHubTool searches repositories via the GitHub search API.
type GitHubTool struct {
	cfg  config.GitHubToolConfig
	http *HTTPClient
}

// NewGitHubTool builds the repository search tool.
func NewGitHubTool(cfg config.GitHubToolConfig) *GitHubTool {
	return &GitHubTool{cfg: cfg, http: NewHTTPClient(cfg.Timeout)}
}

func (g *GitHubTool) Name() string { return "github" }

func (g *GitHubTool) Description() string {
	return "Search GitHub repositories by query, sorted by stars, forks or last update"
}

func (g *GitHubTool) RequiredParams() []string { return []string{"query"} }

// Invoke runs a repository search. Parameters: query (required),
// sort (stars|forks|updated, default stars), limit (default from config).
func (g *GitHubTool) Invoke(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	query, err := stringParam(g.Name(), params, "query")
	if err != nil {
		return nil, err
	}
	sortBy := stringParamOr(params, "sort", "stars")
	switch sortBy {
	case "stars", "forks", "updated":
	default:
		return nil, NewFault(g.Name(), CodeInvalidParameters, "sort must be stars, forks or updated, got %q", sortBy)
	}
	limit := intParam(params, "limit", g.cfg.MaxResults)
	if limit <= 0 {
		limit = 5
	}

	endpoint := g.cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.github.com"
	}
	reqURL := fmt.Sprintf("%s/search/repositories?q=%s&sort=%s&order=desc&per_page=%d",
		endpoint, url.QueryEscape(query), sortBy, limit)

	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if g.cfg.Token != "" {
		headers["Authorization"] = "Bearer " + g.cfg.Token
	}

	var resp struct {
		TotalCount int `json:"total_count"`
		Items      []struct {
			FullName        string `json:"full_name"`
			HTMLURL         string `json:"html_url"`
			Description     string `json:"description"`
			StargazersCount int    `json:"stargazers_count"`
			ForksCount      int    `json:"forks_count"`
			Language        string `json:"language"`
			OpenIssuesCount int    `json:"open_issues_count"`
			UpdatedAt       string `json:"updated_at"`
		} `json:"items"`
	}
	if err := g.http.GetJSON(ctx, g.Name(), reqURL, headers, &resp); err != nil {
		return nil, err
	}

	repos := make([]Repository, 0, len(resp.Items))
	for _, item := range resp.Items {
		repos = append(repos, Repository{
			FullName:    item.FullName,
			Description: item.Description,
			URL:         item.HTMLURL,
			Stars:       item.StargazersCount,
			Forks:       item.ForksCount,
			Language:    item.Language,
			OpenIssues:  item.OpenIssuesCount,
			UpdatedAt:   item.UpdatedAt,
		})
	}
	return repos, nil
}
