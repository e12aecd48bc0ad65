package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const (
	webFetchTimeout   = 60 * time.Second
	webFetchMaxBody   = 5 << 20
	webFetchMaxOutput = 30_000
)

// WebFetchTool fetches a URL and returns its readable content as Markdown,
// a token-efficient view of the page instead of raw HTML.
type WebFetchTool struct {
	client *http.Client
}

func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{client: &http.Client{Timeout: webFetchTimeout}}
}

func (t *WebFetchTool) ID() string          { return "webfetch" }
func (t *WebFetchTool) Description() string { return "Fetch a URL and return its content as Markdown" }

func (t *WebFetchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "URL to fetch"}
		},
		"required": ["url"]
	}`)
}

func (t *WebFetchTool) Execute(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
	var params struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if !strings.HasPrefix(params.URL, "http://") && !strings.HasPrefix(params.URL, "https://") {
		return nil, fmt.Errorf("url must be http or https")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "opencode/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: HTTP %d", params.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, webFetchMaxBody))
	if err != nil {
		return nil, err
	}

	output := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		output, err = htmlToMarkdown(output)
		if err != nil {
			return nil, err
		}
	}
	if len(output) > webFetchMaxOutput {
		output = output[:webFetchMaxOutput] + "\n… (truncated)"
	}

	return &Result{
		Title:    params.URL,
		Output:   output,
		Metadata: map[string]any{"status": resp.StatusCode, "bytes": len(body)},
	}, nil
}

// htmlToMarkdown strips script/style/nav noise with goquery, then converts
// what remains to Markdown.
func htmlToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, nav, footer, iframe").Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return "", err
	}

	markdown, err := md.NewConverter("", true, nil).ConvertString(cleaned)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(markdown), nil
}
