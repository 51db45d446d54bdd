package tool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aiopshq/assistant/config"
)

func TestFaultCodeForStatus(t *testing.T) {
	cases := []struct {
		status int
		want   Code
	}{
		{http.StatusNotFound, CodeNotFound},
		{http.StatusUnauthorized, CodeUnauthorized},
		{http.StatusForbidden, CodeUnauthorized},
		{http.StatusTooManyRequests, CodeRateLimited},
		{http.StatusInternalServerError, CodeTransientNetwork},
		{http.StatusBadGateway, CodeTransientNetwork},
		{http.StatusBadRequest, CodeInvalidParameters},
	}
	for _, tc := range cases {
		if got := faultCodeForStatus(tc.status); got != tc.want {
			t.Fatalf("faultCodeForStatus(%d) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	transient := []Code{CodeRateLimited, CodeTransientNetwork}
	for _, c := range transient {
		if Classify(c) != Transient {
			t.Fatalf("%s should be transient", c)
		}
	}
	permanent := []Code{CodeNotFound, CodeUnauthorized, CodeInvalidParameters, CodeCancelled}
	for _, c := range permanent {
		if Classify(c) != Permanent {
			t.Fatalf("%s should be permanent", c)
		}
	}
}

func TestWeatherInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "London" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("units"); got != "metric" {
			t.Errorf("units = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "London",
			"sys": {"country": "GB"},
			"main": {"temp": 14.2, "feels_like": 13.1, "humidity": 71},
			"weather": [{"description": "overcast clouds"}],
			"wind": {"speed": 4.6},
			"dt": 1700000000
		}`))
	}))
	defer srv.Close()

	wt := NewWeatherTool(config.WeatherToolConfig{Endpoint: srv.URL, APIKey: "k", Units: "metric"})
	data, err := wt.Invoke(context.Background(), map[string]interface{}{"city": "London"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	report, ok := data.(WeatherReport)
	if !ok {
		t.Fatalf("data type %T", data)
	}
	if report.City != "London" || report.Temperature != 14.2 || report.Conditions != "overcast clouds" {
		t.Fatalf("report = %+v", report)
	}
	if report.Timestamp == "" {
		t.Fatalf("timestamp missing")
	}
}

func TestWeatherNotFoundFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":"404","message":"city not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	wt := NewWeatherTool(config.WeatherToolConfig{Endpoint: srv.URL, APIKey: "k"})
	_, err := wt.Invoke(context.Background(), map[string]interface{}{"city": "Nowhereville"})
	fault, ok := AsFault(err)
	if !ok {
		t.Fatalf("expected *Fault, got %v", err)
	}
	if fault.Code != CodeNotFound {
		t.Fatalf("code = %s, want not_found", fault.Code)
	}
}

func TestWeatherMissingCityParameter(t *testing.T) {
	wt := NewWeatherTool(config.WeatherToolConfig{})
	_, err := wt.Invoke(context.Background(), map[string]interface{}{})
	fault, ok := AsFault(err)
	if !ok || fault.Code != CodeInvalidParameters {
		t.Fatalf("expected invalid_parameters fault, got %v", err)
	}
}

func TestGitHubInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("sort"); got != "stars" {
			t.Errorf("sort = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"total_count": 1,
			"items": [{
				"full_name": "golang/go",
				"html_url": "https://github.com/golang/go",
				"description": "The Go programming language",
				"stargazers_count": 120000,
				"forks_count": 17000,
				"language": "Go",
				"open_issues_count": 9000,
				"updated_at": "2024-01-01T00:00:00Z"
			}]
		}`))
	}))
	defer srv.Close()

	gt := NewGitHubTool(config.GitHubToolConfig{Endpoint: srv.URL, Token: "tok", MaxResults: 5})
	data, err := gt.Invoke(context.Background(), map[string]interface{}{"query": "language:go"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	repos, ok := data.([]Repository)
	if !ok {
		t.Fatalf("data type %T", data)
	}
	if len(repos) != 1 || repos[0].FullName != "golang/go" || repos[0].Stars != 120000 {
		t.Fatalf("repos = %+v", repos)
	}
}

func TestGitHubRejectsBadSort(t *testing.T) {
	gt := NewGitHubTool(config.GitHubToolConfig{})
	_, err := gt.Invoke(context.Background(), map[string]interface{}{"query": "x", "sort": "popularity"})
	fault, ok := AsFault(err)
	if !ok || fault.Code != CodeInvalidParameters {
		t.Fatalf("expected invalid_parameters fault, got %v", err)
	}
}

func TestGitHubRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"API rate limit exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gt := NewGitHubTool(config.GitHubToolConfig{Endpoint: srv.URL})
	_, err := gt.Invoke(context.Background(), map[string]interface{}{"query": "x"})
	fault, ok := AsFault(err)
	if !ok || fault.Code != CodeRateLimited {
		t.Fatalf("expected rate_limited fault, got %v", err)
	}
}

func TestWikipediaInvokeTrimsSentences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page/summary/Machine_learning" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"title": "Machine learning",
			"extract": "First sentence. Second sentence. Third sentence. Fourth sentence.",
			"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/Machine_learning"}}
		}`))
	}))
	defer srv.Close()

	wt := NewWikipediaTool(config.WikipediaToolConfig{Endpoint: srv.URL, Sentences: 3})
	data, err := wt.Invoke(context.Background(), map[string]interface{}{"topic": "Machine learning", "sentences": float64(2)})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	summary, ok := data.(ArticleSummary)
	if !ok {
		t.Fatalf("data type %T", data)
	}
	if summary.Extract != "First sentence. Second sentence." {
		t.Fatalf("extract = %q", summary.Extract)
	}
}

func TestFirstSentences(t *testing.T) {
	cases := []struct {
		text string
		n    int
		want string
	}{
		{"One. Two. Three.", 2, "One. Two."},
		{"One. Two.", 5, "One. Two."},
		{"No terminator here", 1, "No terminator here"},
		{"Ends abruptly.", 1, "Ends abruptly."},
		{"", 3, ""},
	}
	for _, tc := range cases {
		if got := firstSentences(tc.text, tc.n); got != tc.want {
			t.Fatalf("firstSentences(%q, %d) = %q, want %q", tc.text, tc.n, got, tc.want)
		}
	}
}

func TestRegistryParamSchemas(t *testing.T) {
	r := NewRegistry(
		NewGitHubTool(config.GitHubToolConfig{}),
		NewWeatherTool(config.WeatherToolConfig{}),
		NewWikipediaTool(config.WikipediaToolConfig{}),
	)
	schemas := r.ParamSchemas()
	if len(schemas) != 3 {
		t.Fatalf("schemas = %v", schemas)
	}
	if got := schemas["weather"]; len(got) != 1 || got[0] != "city" {
		t.Fatalf("weather schema = %v", got)
	}
	names := r.Names()
	if len(names) != 3 || names[0] != "github" {
		t.Fatalf("names = %v", names)
	}
}
