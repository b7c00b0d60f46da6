package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/samvad-hq/samvad-news-reader/internal/domain"
	"github.com/samvad-hq/samvad-news-reader/internal/logger"
	"github.com/samvad-hq/samvad-news-reader/pkg/sources"
)

// HeadlineFetcher retrieves the headlines of one discovery section.
type HeadlineFetcher interface {
	FetchHeadlines(ctx context.Context, url string) ([]domain.Headline, error)
}

// Section is one category on the board.
type Section struct {
	Title     string
	URL       string
	Headlines []domain.Headline
	Err       error
}

// Board is the loaded discovery page of a language.
type Board struct {
	Language string
	Sections []Section
}

// Err joins the errors of all failed sections.
func (b Board) Err() error {
	return errors.Join(lo.FilterMap(b.Sections, func(s Section, _ int) (error, bool) {
		return s.Err, s.Err != nil
	})...)
}

// Headlines returns all headlines in section order.
func (b Board) Headlines() []domain.Headline {
	return lo.FlatMap(b.Sections, func(s Section, _ int) []domain.Headline {
		return s.Headlines
	})
}

// Service loads discovery boards.
type Service struct {
	api HeadlineFetcher
	log logger.Logger
}

// NewService wires the discovery service.
func NewService(api HeadlineFetcher, log logger.Logger) *Service {
	return &Service{api: api, log: logger.Ensure(log)}
}

// Load fetches every section of lang concurrently. A failing section is kept
// with an empty headline list and its error; the others still load.
func (s *Service) Load(ctx context.Context, lang sources.Language) Board {
	board := Board{
		Language: lang.ID,
		Sections: make([]Section, len(lang.Discovery)),
	}

	var g errgroup.Group
	for i, sec := range lang.Discovery {
		board.Sections[i] = Section{Title: sec.Title, URL: sec.URL}
		g.Go(func() error {
			items, err := s.api.FetchHeadlines(ctx, sec.URL)
			if err != nil {
				board.Sections[i].Err = fmt.Errorf("section %q: %w", sec.Title, err)
				s.log.WarnObj("discovery section failed", "discovery_error", map[string]any{
					"language": lang.ID,
					"section":  sec.Title,
					"url":      sec.URL,
					"error":    err.Error(),
				})
				return nil
			}
			board.Sections[i].Headlines = lo.Filter(items, func(h domain.Headline, _ int) bool {
				return h.Title != ""
			})
			return nil
		})
	}
	_ = g.Wait()

	s.log.InfoObj("discovery loaded", "discovery_meta", map[string]any{
		"language":  lang.ID,
		"sections":  len(board.Sections),
		"headlines": len(board.Headlines()),
	})
	return board
}
