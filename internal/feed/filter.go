package feed

import (
	"html"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/samber/lo"
	"github.com/samvad-hq/samvad-news-reader/internal/domain"
)

// placeholders are values the API uses in place of a real description.
var placeholders = map[string]struct{}{
	"null":                         {},
	"undefined":                    {},
	"none":                         {},
	"n/a":                          {},
	"no description":               {},
	"only available in paid plans": {},
}

var stripPolicy = bluemonday.StrictPolicy()

// IsValidDescription reports whether desc carries readable text: not empty once
// markup is removed, not a placeholder, and containing at least one letter.
func IsValidDescription(desc string) bool {
	text := plainText(desc)
	if text == "" {
		return false
	}
	if _, ok := placeholders[strings.ToLower(text)]; ok {
		return false
	}
	return strings.IndexFunc(text, unicode.IsLetter) >= 0
}

// VisibleArticles filters out articles whose description is not renderable. The input is not modified.
func VisibleArticles(articles []domain.Article) []domain.Article {
	return lo.Filter(articles, func(a domain.Article, _ int) bool {
		return IsValidDescription(a.Description)
	})
}

// TruncateDescription strips markup and shortens desc to at most limit runes.
func TruncateDescription(desc string, limit int) string {
	text := html.UnescapeString(stripPolicy.Sanitize(desc))
	text = strings.Join(strings.Fields(text), " ")
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return strings.TrimSpace(string(runes[:limit-3])) + "..."
}

func plainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.ContainsRune(s, '<') {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}
