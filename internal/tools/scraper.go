package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type ScraperTool struct {
	UserAgent string
	Client    *http.Client
}

func NewScraperTool() *ScraperTool {
	return &ScraperTool{
		UserAgent: defaultUserAgent,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *ScraperTool) Name() string {
	return "scraper"
}

func (s *ScraperTool) Description() string {
	return "Fetch a webpage URL and extract the main content as clean, sanitized text."
}

func (s *ScraperTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The full URL of the webpage to scrape (e.g., https://example.com/article)",
			},
		},
		"required": []string{"url"},
	}
}

func (s *ScraperTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	u, err := parseHTTPURL(args.URL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode)
	}
	return Extract(resp.Body, u)
}

// Extract pulls the readable article out of an HTML document and returns it
// as a plain-text report.
func Extract(r io.Reader, u *url.URL) (string, error) {
	article, err := readability.FromReader(r, u)
	if err != nil {
		return "", fmt.Errorf("failed to parse article: %w", err)
	}

	sanitized := bluemonday.StrictPolicy().Sanitize(article.TextContent)

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", article.Title)
	if article.Excerpt != "" {
		fmt.Fprintf(&b, "EXCERPT: %s\n", article.Excerpt)
	}
	b.WriteString("\n-- CONTENT --\n")
	b.WriteString(truncate(strings.TrimSpace(sanitized)))
	return b.String(), nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	return u, nil
}
