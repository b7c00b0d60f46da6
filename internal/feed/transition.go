package feed

import "github.com/samvad-hq/samvad-news-reader/internal/domain"

// Mode selects how a fetched page merges into the state.
type Mode int

const (
	// Replace discards existing articles (initial load).
	Replace Mode = iota
	// Append concatenates after existing articles (load more, prefetch).
	Append
)

// Transition computes the next state from the current one and a successful page.
// It never mutates s.
func Transition(s State, mode Mode, page domain.Page) State {
	next := State{
		NextCursor:   page.NextPage,
		ScrollOffset: s.ScrollOffset,
		Selection:    s.Selection,
	}

	switch mode {
	case Append:
		next.Articles = make([]domain.Article, 0, len(s.Articles)+len(page.Results))
		next.Articles = append(next.Articles, s.Articles...)
		next.Articles = append(next.Articles, page.Results...)
	default:
		next.Articles = append([]domain.Article(nil), page.Results...)
	}
	return next
}
