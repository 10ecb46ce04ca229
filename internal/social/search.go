package social

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"xcard-backend/internal/config"
	"xcard-backend/internal/utils"

	"golang.org/x/net/html"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Searcher 查找推文的背景资料
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// DuckDuckGo 抓取 html.duckduckgo.com 的结果摘要
type DuckDuckGo struct {
	httpClient *http.Client
	endpoint   string
	maxResults int
}

func NewDuckDuckGo(cfg config.SearchConfig) *DuckDuckGo {
	limit := cfg.MaxResults
	if limit <= 0 {
		limit = 3
	}
	return &DuckDuckGo{
		httpClient: utils.NewHTTPClient(cfg.Timeout, utils.WithUserAgent(userAgent)),
		endpoint:   cfg.Endpoint,
		maxResults: limit,
	}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	return extractSnippets(doc, d.maxResults), nil
}

func extractSnippets(root *html.Node, limit int) []string {
	var snippets []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(snippets) >= limit {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, "result__snippet") {
			if text := strings.Join(strings.Fields(textContent(n)), " "); text != "" {
				snippets = append(snippets, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return snippets
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
