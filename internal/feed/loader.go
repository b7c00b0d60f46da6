package feed

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/samvad-news-reader/internal/domain"
	"github.com/samvad-hq/samvad-news-reader/internal/logger"
	"github.com/samvad-hq/samvad-news-reader/internal/storage"
	"github.com/samvad-hq/samvad-news-reader/pkg/sources"
	"github.com/samvad-hq/samvad-news-reader/pkg/throttle"
)

// PageFetcher retrieves one page of the feed.
type PageFetcher interface {
	FetchPage(ctx context.Context, baseURL string, cursor domain.Cursor) (domain.Page, error)
}

// Trigger names what started a fetch.
type Trigger string

const (
	TriggerInitial  Trigger = "initial"
	TriggerLoadMore Trigger = "load_more"
	TriggerPrefetch Trigger = "prefetch"
)

const (
	DefaultCursorTTL      = 3 * time.Hour
	DefaultLoadMoreBuffer = 500
	DefaultPrefetchEvery  = 7
	DefaultScrollThrottle = 100 * time.Millisecond
)

// Options tunes a Loader. A zero TTL or prefetch interval falls back to the
// defaults above; a zero buffer or throttle is honored as given.
type Options struct {
	CursorTTL      time.Duration
	LoadMoreBuffer int
	PrefetchEvery  int
	ScrollThrottle time.Duration
	// OnScroll observes every throttled scroll offset.
	OnScroll func(offset int)
	Now      func() time.Time
	Logger   logger.Logger
}

func (o Options) withDefaults() Options {
	if o.CursorTTL <= 0 {
		o.CursorTTL = DefaultCursorTTL
	}
	if o.LoadMoreBuffer < 0 {
		o.LoadMoreBuffer = DefaultLoadMoreBuffer
	}
	if o.PrefetchEvery <= 0 {
		o.PrefetchEvery = DefaultPrefetchEvery
	}
	if o.ScrollThrottle < 0 {
		o.ScrollThrottle = DefaultScrollThrottle
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	o.Logger = logger.Ensure(o.Logger)
	return o
}

// Viewport describes the visible window of the scrollable list, in the renderer's units.
type Viewport struct {
	Offset        int
	Height        int
	ContentHeight int
}

// NearBottom reports whether the window reaches within buffer units of the end.
func (v Viewport) NearBottom(buffer int) bool {
	return v.Offset+v.Height >= v.ContentHeight-buffer
}

// View is the render contract handed to the presentation layer.
type View struct {
	Articles     []domain.Article
	Total        int
	Loading      bool
	ScrollOffset int
	Selection    sources.Selection
}

// Loader paginates the feed of one language into a Session.
type Loader struct {
	lang    sources.Language
	api     PageFetcher
	session *Session
	cursors CursorStore
	opts    Options
	log     logger.Logger

	inFlight atomic.Bool
	closed   atomic.Bool

	scroll func(scrollEvent)
}

// NewLoader mounts a loader over session. store holds the persisted cursor record.
func NewLoader(lang sources.Language, api PageFetcher, session *Session, store storage.Store, opts Options) *Loader {
	if session == nil {
		session = NewSession()
	}
	opts = opts.withDefaults()
	return &Loader{
		lang:    lang,
		api:     api,
		session: session,
		cursors: NewCursorStore(store),
		opts:    opts,
		log:     opts.Logger,
		scroll:  throttle.Func(opts.ScrollThrottle, handleScroll, throttle.WithClock(opts.Now)),
	}
}

// Language returns the language id this loader serves.
func (l *Loader) Language() string { return l.lang.ID }

// Session returns the state the loader writes into.
func (l *Loader) Session() *Session { return l.session }

// Loading reports whether a fetch is in flight.
func (l *Loader) Loading() bool { return l.inFlight.Load() }

// Selection returns the backend the next request will use.
func (l *Loader) Selection() sources.Selection {
	return l.session.Selection()
}

// BaseURL returns the endpoint the next request will use.
func (l *Loader) BaseURL() string {
	return l.lang.BaseURL(l.Selection())
}

// Visible returns the stored articles that pass the description filter.
func (l *Loader) Visible() []domain.Article {
	return VisibleArticles(l.session.Articles())
}

// Snapshot returns everything a renderer needs in one call.
func (l *Loader) Snapshot() View {
	state := l.session.Snapshot()
	return View{
		Articles:     VisibleArticles(state.Articles),
		Total:        len(state.Articles),
		Loading:      l.inFlight.Load(),
		ScrollOffset: state.ScrollOffset,
		Selection:    state.Selection,
	}
}

// Close unmounts the loader. Fetches still running complete but no longer touch
// the session, the persisted cursor or the backend selection.
func (l *Loader) Close() {
	l.closed.Store(true)
}

// Closed reports whether Close was called.
func (l *Loader) Closed() bool { return l.closed.Load() }

// InitialLoad fetches the first screen when the session is empty: the stored
// cursor's page while the record is fresh, otherwise page one. The result replaces
// the session's articles.
func (l *Loader) InitialLoad(ctx context.Context) error {
	if l.closed.Load() || l.session.Len() > 0 {
		return nil
	}
	if !l.inFlight.CompareAndSwap(false, true) {
		return nil
	}

	before := l.session.Len()
	err := l.runInitial(ctx)
	l.settle(ctx, before)
	return err
}

func (l *Loader) runInitial(ctx context.Context) error {
	defer l.inFlight.Store(false)

	// Another caller may have filled the session between the check and the swap.
	if l.session.Len() > 0 {
		return nil
	}

	var cursor domain.Cursor
	rec, err := l.cursors.Load()
	if err != nil {
		l.log.WarnObj("pagination record unreadable", "feed_cursor_error", map[string]any{
			"language": l.lang.ID,
			"error":    err.Error(),
		})
	} else if rec.Resumable(l.lang.ID, l.opts.Now(), l.opts.CursorTTL) {
		cursor = rec.Cursor
	}

	return l.fetch(ctx, TriggerInitial, Replace, cursor)
}

// LoadMore appends the next page. It is a no-op without a next cursor or while
// another fetch is in flight.
func (l *Loader) LoadMore(ctx context.Context) error {
	before := l.session.Len()
	err := l.next(ctx, TriggerLoadMore)
	l.settle(ctx, before)
	return err
}

// Prefetch appends the next page ahead of the scroll position. It only runs when
// the article count is a positive multiple of the prefetch interval, and shares
// the in-flight guard with LoadMore.
func (l *Loader) Prefetch(ctx context.Context) error {
	before := l.session.Len()
	if !l.prefetchDue(before) {
		return nil
	}
	err := l.next(ctx, TriggerPrefetch)
	l.settle(ctx, before)
	return err
}

func (l *Loader) next(ctx context.Context, trig Trigger) error {
	if l.closed.Load() || l.session.NextCursor().Empty() {
		return nil
	}
	if !l.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer l.inFlight.Store(false)

	// Re-read under the guard: a fetch that just finished may have moved the cursor.
	cursor := l.session.NextCursor()
	if cursor.Empty() {
		return nil
	}
	return l.fetch(ctx, trig, Append, cursor)
}

// settle fires prefetches while each fetch lands the count on a new multiple of
// the prefetch interval.
func (l *Loader) settle(ctx context.Context, before int) {
	for !l.closed.Load() {
		after := l.session.Len()
		if after == before || !l.prefetchDue(after) {
			return
		}
		before = after
		_ = l.next(ctx, TriggerPrefetch)
	}
}

func (l *Loader) prefetchDue(count int) bool {
	return count > 0 && count%l.opts.PrefetchEvery == 0
}

// fetch performs one request. The caller holds the in-flight guard.
func (l *Loader) fetch(ctx context.Context, trig Trigger, mode Mode, cursor domain.Cursor) error {
	sel := l.Selection()
	base := l.lang.BaseURL(sel)

	page, err := l.api.FetchPage(ctx, base, cursor)
	if err != nil {
		l.onFailure(trig, sel, base, cursor, err)
		return err
	}
	l.onSuccess(trig, sel, mode, page)
	return nil
}

func (l *Loader) onSuccess(trig Trigger, sel sources.Selection, mode Mode, page domain.Page) {
	if l.closed.Load() {
		l.log.DebugObj("feed page dropped after unmount", "feed_page", map[string]any{
			"language": l.lang.ID,
			"trigger":  trig,
			"results":  len(page.Results),
		})
		return
	}

	before, after := l.session.apply(mode, page)

	rec := CursorRecord{Cursor: page.NextPage, Timestamp: l.opts.Now(), Language: l.lang.ID}
	if err := l.cursors.Save(rec); err != nil {
		l.log.WarnObj("pagination record not saved", "feed_cursor_error", map[string]any{
			"language": l.lang.ID,
			"error":    err.Error(),
		})
	}

	l.log.InfoObj("feed page loaded", "feed_page", map[string]any{
		"language":  l.lang.ID,
		"trigger":   trig,
		"selection": sel.String(),
		"results":   len(page.Results),
		"before":    before,
		"after":     after,
		"next_page": page.NextPage.String(),
	})
}

// onFailure flips the backend for languages that have a fallback. There is no
// retry; the next scroll-triggered load uses the other backend.
func (l *Loader) onFailure(trig Trigger, sel sources.Selection, base string, cursor domain.Cursor, err error) {
	if l.closed.Load() {
		l.log.DebugObj("feed fetch failed after unmount", "feed_error", map[string]any{
			"language": l.lang.ID,
			"trigger":  trig,
			"error":    err.Error(),
		})
		return
	}

	next := sel
	if l.lang.HasFallback() {
		next = l.session.flipSelection()
	}

	l.log.WarnObj("feed fetch failed", "feed_error", map[string]any{
		"language":       l.lang.ID,
		"trigger":        trig,
		"url":            base,
		"cursor":         cursor.String(),
		"selection":      sel.String(),
		"next_selection": next.String(),
		"error":          err.Error(),
	})
}

type scrollEvent struct {
	ctx    context.Context
	loader *Loader
	view   Viewport
}

// HandleScroll records the offset on every event; the observer callback and the
// load-more check run through the throttle.
func (l *Loader) HandleScroll(ctx context.Context, v Viewport) {
	if l.closed.Load() {
		return
	}
	l.session.SetScrollOffset(v.Offset)
	l.scroll(scrollEvent{ctx: ctx, loader: l, view: v})
}

func handleScroll(ev scrollEvent) {
	l := ev.loader
	if l.opts.OnScroll != nil {
		l.opts.OnScroll(ev.view.Offset)
	}
	if ev.view.NearBottom(l.opts.LoadMoreBuffer) {
		_ = l.LoadMore(ev.ctx)
	}
}
