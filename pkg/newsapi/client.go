package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/samvad-hq/samvad-news-reader/internal/domain"
	"github.com/samvad-hq/samvad-news-reader/pkg/httpclient"
)

// PageParam is the query parameter carrying the cursor.
const PageParam = "page"

// Client talks to the paginated feed API and the discovery endpoints.
type Client struct {
	http    httpclient.Client
	headers map[string]string
}

// NewClient wraps an HTTP client.
func NewClient(client httpclient.Client) *Client {
	return &Client{
		http: client,
		headers: map[string]string{
			"Accept": "application/json",
		},
	}
}

// PageURL returns base unchanged for an empty cursor, otherwise base with page=<cursor>.
func PageURL(base string, cursor domain.Cursor) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", errors.New("base url is empty")
	}
	if cursor.Empty() {
		return base, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set(PageParam, cursor.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchPage requests one page of the feed. An empty cursor requests the first page.
func (c *Client) FetchPage(ctx context.Context, baseURL string, cursor domain.Cursor) (domain.Page, error) {
	target, err := PageURL(baseURL, cursor)
	if err != nil {
		return domain.Page{}, &FetchError{Kind: KindTransport, URL: baseURL, Err: err}
	}

	var page domain.Page
	if err := c.getJSON(ctx, target, &page); err != nil {
		return domain.Page{}, err
	}
	return page, nil
}

// FetchHeadlines requests a discovery list.
func (c *Client) FetchHeadlines(ctx context.Context, target string) ([]domain.Headline, error) {
	var items []domain.Headline
	if err := c.getJSON(ctx, target, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	if c == nil || c.http == nil {
		return &FetchError{Kind: KindTransport, URL: target, Err: errors.New("http client is not configured")}
	}

	resp, err := c.http.Get(ctx, target, c.headers)
	if err != nil {
		return &FetchError{Kind: KindTransport, URL: target, Err: err}
	}

	body := resp.Body()
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return &FetchError{Kind: KindStatus, URL: target, Status: code, Err: errors.New(responseSnippet(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Kind: KindDecode, URL: target, Status: resp.StatusCode(), Err: err}
	}
	return nil
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
