package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"google.golang.org/genai"

	"termagent/internal/classify"
)

const maxFetchBody = 1024 * 1024

// WebFetchTool fetches a URL and returns its content as markdown-like text.
type WebFetchTool struct {
	client *http.Client
}

// NewWebFetchTool creates a web fetch tool.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *WebFetchTool) Name() string {
	return "web_fetch"
}

func (t *WebFetchTool) Description() string {
	return "Fetches content from a URL and returns it as markdown. Useful for reading documentation, articles, or any web content."
}

func (t *WebFetchTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"url": {
					Type:        genai.TypeString,
					Description: "The URL to fetch content from",
				},
			},
			Required: []string{"url"},
		},
	}
}

type webFetchParams struct {
	url string
}

func (t *WebFetchTool) ValidateParams(args map[string]any) (ValidatedParams, error) {
	urlStr, ok := GetString(args, "url")
	if !ok || urlStr == "" {
		return nil, NewValidationError("url", "is required")
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, NewValidationError("url", fmt.Sprintf("invalid URL: %s", err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, NewValidationError("url", "only http and https URLs are supported")
	}

	return webFetchParams{url: urlStr}, nil
}

func (t *WebFetchTool) CreateInvocation(params ValidatedParams) Invocation {
	return &webFetchInvocation{tool: t, params: params.(webFetchParams)}
}

type webFetchInvocation struct {
	tool   *WebFetchTool
	params webFetchParams
}

func (inv *webFetchInvocation) Execute(ctx context.Context) ToolResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inv.params.url, nil)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("failed to create request: %s", err), classify.ErrorTypeConfigurationError)
	}
	req.Header.Set("User-Agent", "termagent/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := inv.tool.client.Do(req)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("failed to fetch URL: %s", err), classify.ErrorTypeNetworkError)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewErrorResult(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status), classify.ErrorTypeNetworkError)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return NewErrorResult(fmt.Sprintf("failed to read response: %s", err), classify.ErrorTypeNetworkError)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	var content string
	if strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml") {
		content, err = htmlToText(string(body))
		if err != nil {
			return NewErrorResult(fmt.Sprintf("failed to parse HTML: %s", err), classify.ErrorTypeUnknown)
		}
	} else {
		content = string(body)
	}

	const maxLen = 50000
	if len(content) > maxLen {
		content = content[:maxLen] + "\n\n... (content truncated)"
	}

	return NewResult(content)
}

var (
	fetchSkipTags = map[string]bool{
		"script": true, "style": true, "nav": true, "footer": true,
		"header": true, "aside": true, "noscript": true, "iframe": true,
	}
	fetchBlockTags = map[string]bool{
		"p": true, "div": true, "section": true, "article": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"li": true, "tr": true, "blockquote": true, "pre": true, "table": true,
	}
	whitespaceRe = regexp.MustCompile(`\s+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// htmlToText converts an HTML document into markdown-like plain text,
// starting from the body element when one exists.
func htmlToText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	start := findBody(doc)
	if start == nil {
		start = doc
	}

	var content strings.Builder
	renderNode(&content, start)

	result := blankLinesRe.ReplaceAllString(content.String(), "\n\n")
	return strings.TrimSpace(result), nil
}

func renderNode(content *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		tag := strings.ToLower(n.Data)
		if fetchSkipTags[tag] {
			return
		}
		switch tag {
		case "h1":
			content.WriteString("\n# ")
		case "h2":
			content.WriteString("\n## ")
		case "h3":
			content.WriteString("\n### ")
		case "h4", "h5", "h6":
			content.WriteString("\n#### ")
		case "li":
			content.WriteString("\n- ")
		case "br":
			content.WriteString("\n")
		case "hr":
			content.WriteString("\n---\n")
		case "code":
			content.WriteString("`")
		case "pre":
			content.WriteString("\n```\n")
		case "strong", "b":
			content.WriteString("**")
		case "em", "i":
			content.WriteString("*")
		case "p", "div", "section", "article", "blockquote":
			content.WriteString("\n")
		}
	}

	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			content.WriteString(whitespaceRe.ReplaceAllString(text, " "))
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(content, c)
	}

	if n.Type == html.ElementNode {
		tag := strings.ToLower(n.Data)
		switch tag {
		case "code":
			content.WriteString("`")
		case "pre":
			content.WriteString("\n```\n")
		case "strong", "b":
			content.WriteString("**")
		case "em", "i":
			content.WriteString("*")
		case "a":
			for _, attr := range n.Attr {
				if attr.Key == "href" && attr.Val != "" &&
					!strings.HasPrefix(attr.Val, "#") && !strings.HasPrefix(attr.Val, "javascript:") {
					fmt.Fprintf(content, " (%s)", attr.Val)
					break
				}
			}
		}
		if fetchBlockTags[tag] {
			content.WriteString("\n")
		}
	}
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, "body") {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findBody(c); found != nil {
			return found
		}
	}
	return nil
}
