package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	toolcore "github.com/harunnryd/kuroko/internal/tool"
)

const (
	defaultSearchBaseURL = "https://api.duckduckgo.com"

	// maxSearchResults bounds a per-call max_results override.
	maxSearchResults = 10
)

func init() {
	toolcore.RegisterBuiltin("web_search", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		timeout := options.SearchTimeout
		if timeout <= 0 {
			timeout = toolcore.DefaultBuiltinSearchTimeout
		}

		baseURL := strings.TrimSpace(options.SearchBaseURL)
		if baseURL == "" {
			baseURL = defaultSearchBaseURL
		}

		maxResults := options.SearchMaxResults
		if maxResults <= 0 {
			maxResults = 5
		}

		return &WebSearchTool{
			Client:     &http.Client{Timeout: timeout},
			BaseURL:    baseURL,
			MaxResults: maxResults,
		}, nil
	})
}

// WebSearchTool answers queries via the DuckDuckGo instant answer API.
type WebSearchTool struct {
	Client     *http.Client
	BaseURL    string
	MaxResults int
}

type ddgRelatedTopic struct {
	Text     string            `json:"Text"`
	FirstURL string            `json:"FirstURL"`
	Topics   []ddgRelatedTopic `json:"Topics"`
}

type ddgResponse struct {
	Abstract      string            `json:"Abstract"`
	AbstractURL   string            `json:"AbstractURL"`
	Answer        string            `json:"Answer"`
	Definition    string            `json:"Definition"`
	DefinitionURL string            `json:"DefinitionURL"`
	Heading       string            `json:"Heading"`
	RelatedTopics []ddgRelatedTopic `json:"RelatedTopics"`
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for a query and return an instant answer or a short list of results."
}

func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query",
			},
			"site": map[string]interface{}{
				"type":        "string",
				"description": "Optional site to restrict results to (for example: go.dev)",
			},
			"max_results": map[string]interface{}{
				"type":        "integer",
				"description": "Optional cap on the number of results (1-10)",
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Query      string `json:"query"`
		Site       string `json:"site"`
		MaxResults int    `json:"max_results"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	maxResults := t.MaxResults
	if args.MaxResults > 0 {
		maxResults = args.MaxResults
		if maxResults > maxSearchResults {
			maxResults = maxSearchResults
		}
	}

	query := strings.TrimSpace(args.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if site := strings.TrimSpace(args.Site); site != "" {
		query = fmt.Sprintf("site:%s %s", site, query)
	}

	endpoint, err := url.Parse(t.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid search base url: %w", err)
	}
	values := endpoint.Query()
	values.Set("q", query)
	values.Set("format", "json")
	values.Set("no_html", "1")
	values.Set("skip_disambig", "1")
	endpoint.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}

	var payload ddgResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := map[string]interface{}{
		"query": query,
	}

	// Instant answer beats abstract beats definition. Related topics are
	// the fallback when the API has no direct answer.
	switch {
	case payload.Answer != "":
		out["answer"] = payload.Answer
	case payload.Abstract != "":
		out["answer"] = payload.Abstract
		if payload.AbstractURL != "" {
			out["source"] = payload.AbstractURL
		}
	case payload.Definition != "":
		out["answer"] = payload.Definition
		if payload.DefinitionURL != "" {
			out["source"] = payload.DefinitionURL
		}
	}

	results := flattenTopics(payload.RelatedTopics, maxResults)
	if len(results) > 0 {
		out["results"] = results
	}
	if out["answer"] == nil && len(results) == 0 {
		out["message"] = fmt.Sprintf("No results found for %q", query)
	}

	return json.Marshal(out)
}

func flattenTopics(topics []ddgRelatedTopic, limit int) []map[string]string {
	results := make([]map[string]string, 0, limit)
	var walk func([]ddgRelatedTopic)
	walk = func(items []ddgRelatedTopic) {
		for _, item := range items {
			if len(results) >= limit {
				return
			}
			if len(item.Topics) > 0 {
				walk(item.Topics)
				continue
			}
			if item.Text == "" {
				continue
			}
			results = append(results, map[string]string{
				"title": item.Text,
				"url":   item.FirstURL,
			})
		}
	}
	walk(topics)
	return results
}
