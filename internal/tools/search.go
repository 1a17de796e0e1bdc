package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// Searcher is the subset of a langchaingo tool the search tool needs.
type Searcher interface {
	Call(ctx context.Context, input string) (string, error)
}

type SearchTool struct {
	client Searcher
}

func NewSearchTool(maxResults int) (*SearchTool, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	ddg, err := duckduckgo.New(maxResults, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, err
	}
	return &SearchTool{client: ddg}, nil
}

// NewSearchToolWith uses a custom backend.
func NewSearchToolWith(s Searcher) *SearchTool {
	return &SearchTool{client: s}
}

func (s *SearchTool) Name() string {
	return "search"
}

func (s *SearchTool) Description() string {
	return "Search the web with DuckDuckGo. Returns titles, links and snippets; optionally restricted to one site."
}

func (s *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to look up",
			},
			"site": map[string]any{
				"type":        "string",
				"description": "Optional domain to restrict results to, e.g. perseus.tufts.edu",
			},
		},
		"required": []string{"query"},
	}
}

func (s *SearchTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Query string `json:"query"`
		Site  string `json:"site"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}
	if site := strings.TrimSpace(args.Site); site != "" {
		query = "site:" + site + " " + query
	}

	res, err := s.client.Call(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if strings.TrimSpace(res) == "" {
		return "No results.", nil
	}
	return truncate(res), nil
}
