package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Domain contains core models shared by the API client, the feed and the views.

// Article is one news item as returned by the feed API.
type Article struct {
	ID          string `json:"article_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	PubDate     string `json:"pubDate"`
	Link        string `json:"link"`
	SourceID    string `json:"source_id,omitempty"`
}

var pubDateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
}

// PublishedAt parses PubDate into UTC. The zero time is returned for unknown formats.
func (a Article) PublishedAt() time.Time {
	raw := strings.TrimSpace(a.PubDate)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Cursor is the opaque pagination token handed out by the API.
type Cursor string

// UnmarshalJSON accepts a string, a number or null.
func (c *Cursor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Cursor(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cursor must be a string, number or null: %w", err)
	}
	*c = Cursor(n.String())
	return nil
}

// Empty reports whether there is no further page.
func (c Cursor) Empty() bool { return c == "" }

func (c Cursor) String() string { return string(c) }

// Page is one response of the paginated feed endpoint.
type Page struct {
	Results  []Article `json:"results"`
	NextPage Cursor    `json:"nextPage"`
}

// Headline is a discovery card. Telugu endpoints use headline/imageUrl, the English one title/image_url.
type Headline struct {
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	URL      string `json:"url"`
}

// UnmarshalJSON normalizes both discovery payload shapes.
func (h *Headline) UnmarshalJSON(data []byte) error {
	var raw struct {
		Headline  string `json:"headline"`
		Title     string `json:"title"`
		ImageURL  string `json:"imageUrl"`
		ImageURL2 string `json:"image_url"`
		URL       string `json:"url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	h.Title = firstNonEmpty(raw.Headline, raw.Title)
	h.ImageURL = firstNonEmpty(raw.ImageURL, raw.ImageURL2)
	h.URL = strings.TrimSpace(raw.URL)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
