package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// RenderTool loads a page in headless Chrome so script-built content is
// present, then extracts the article like the scraper. The browser starts on
// first use and stays up until Close.
type RenderTool struct {
	Timeout time.Duration

	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func NewRenderTool() *RenderTool {
	return &RenderTool{Timeout: 60 * time.Second}
}

func (b *RenderTool) Name() string {
	return "render"
}

func (b *RenderTool) Description() string {
	return "Open a URL in a headless browser, wait for it to render, and return the readable text. Use for pages that need JavaScript; prefer 'scraper' otherwise."
}

func (b *RenderTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to open",
			},
			"wait_selector": map[string]any{
				"type":        "string",
				"description": "Optional CSS selector to wait for before reading the page",
			},
		},
		"required": []string{"url"},
	}
}

func (b *RenderTool) initBrowser() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		select {
		case <-b.browserCtx.Done():
			b.cleanup()
		default:
			return b.browserCtx, nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)

	if err := chromedp.Run(b.browserCtx); err != nil {
		b.cleanup()
		return nil, err
	}
	return b.browserCtx, nil
}

func (b *RenderTool) cleanup() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx = nil
	b.allocCtx = nil
}

// Close shuts the browser down.
func (b *RenderTool) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanup()
	return nil
}

func (b *RenderTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		URL          string `json:"url"`
		WaitSelector string `json:"wait_selector"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	u, err := parseHTTPURL(args.URL)
	if err != nil {
		return "", err
	}

	browserCtx, err := b.initBrowser()
	if err != nil {
		return "", fmt.Errorf("failed to initialize browser: %w", err)
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, b.Timeout)
	defer cancel()

	// Stop the tab when the caller gives up.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	wait := args.WaitSelector
	if wait == "" {
		wait = "body"
	}

	var html string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(u.String()),
		chromedp.WaitReady(wait, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", u, err)
	}
	return Extract(strings.NewReader(html), u)
}
