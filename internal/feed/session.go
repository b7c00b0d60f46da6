package feed

import (
	"sync"

	"github.com/samvad-hq/samvad-news-reader/internal/domain"
	"github.com/samvad-hq/samvad-news-reader/pkg/sources"
)

// State is the feed data a renderer reads.
type State struct {
	Articles     []domain.Article
	NextCursor   domain.Cursor
	ScrollOffset int
	Selection    sources.Selection
}

// Session owns the feed State for one run of the application. It outlives the
// Loader (the mounted view) so leaving and re-entering the feed keeps articles,
// scroll position and the backend selection.
type Session struct {
	mu    sync.RWMutex
	state State
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Articles = append([]domain.Article(nil), s.state.Articles...)
	return out
}

// Articles returns a copy of the stored sequence, invalid descriptions included.
func (s *Session) Articles() []domain.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Article(nil), s.state.Articles...)
}

// Len returns the number of stored articles.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.Articles)
}

// NextCursor returns the cursor of the next page, empty when the feed is exhausted or not loaded.
func (s *Session) NextCursor() domain.Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.NextCursor
}

// ScrollOffset returns the last recorded scroll position.
func (s *Session) ScrollOffset() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ScrollOffset
}

// SetScrollOffset records the scroll position.
func (s *Session) SetScrollOffset(offset int) {
	if offset < 0 {
		offset = 0
	}
	s.mu.Lock()
	s.state.ScrollOffset = offset
	s.mu.Unlock()
}

// Selection returns the backend the next request will use.
func (s *Session) Selection() sources.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Selection
}

// flipSelection switches to the other backend and returns the new selection.
func (s *Session) flipSelection() sources.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Selection = s.state.Selection.Flip()
	return s.state.Selection
}

// Reset drops everything, e.g. after a language switch.
func (s *Session) Reset() {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
}

// apply runs one transition atomically and returns the article counts around it.
func (s *Session) apply(mode Mode, page domain.Page) (before, after int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before = len(s.state.Articles)
	s.state = Transition(s.state, mode, page)
	return before, len(s.state.Articles)
}
