package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-news-reader/internal/domain"
	"github.com/samvad-hq/samvad-news-reader/internal/storage"
	"github.com/samvad-hq/samvad-news-reader/pkg/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	telugu = sources.Language{
		ID:          "telugu",
		PrimaryURL:  "https://primary.test/telugu/news",
		FallbackURL: "https://fallback.test/telugutwo/news",
	}
	english = sources.Language{
		ID:         "english",
		PrimaryURL: "https://en.test/english/news",
	}
	errUpstream = errors.New("upstream down")
)

type request struct {
	Base   string
	Cursor domain.Cursor
	Count  int
}

type result struct {
	page  domain.Page
	err   error
	panic bool
}

// stubFetcher replays results in order and records every request.
type stubFetcher struct {
	session *Session

	mu       sync.Mutex
	requests []request
	results  []result

	started chan struct{}
	release chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
}

func newStub(session *Session, results ...result) *stubFetcher {
	return &stubFetcher{session: session, results: results}
}

func (s *stubFetcher) FetchPage(_ context.Context, base string, cursor domain.Cursor) (domain.Page, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, request{Base: base, Cursor: cursor, Count: s.session.Len()})
	var res result
	if len(s.results) > 0 {
		res = s.results[0]
		s.results = s.results[1:]
	}
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	if res.panic {
		panic("fetch exploded")
	}
	return res.page, res.err
}

func (s *stubFetcher) calls() []request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]request(nil), s.requests...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func articles(prefix string, from, to int) []domain.Article {
	out := make([]domain.Article, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, domain.Article{
			ID:          fmt.Sprintf("%s%d", prefix, i),
			Title:       fmt.Sprintf("title %d", i),
			Description: fmt.Sprintf("description of story %d", i),
		})
	}
	return out
}

func ok(next string, items []domain.Article) result {
	return result{page: domain.Page{Results: items, NextPage: domain.Cursor(next)}}
}

func fail() result { return result{err: errUpstream} }

func ids(items []domain.Article) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.ID
	}
	return out
}

type fixture struct {
	session *Session
	store   storage.Store
	clock   *fakeClock
	api     *stubFetcher
	loader  *Loader
}

func newFixture(t *testing.T, lang sources.Language, results ...result) *fixture {
	t.Helper()
	f := &fixture{
		session: NewSession(),
		store:   storage.NewMemoryStore(),
		clock:   newClock(),
	}
	f.api = newStub(f.session, results...)
	f.loader = NewLoader(lang, f.api, f.session, f.store, Options{
		LoadMoreBuffer: DefaultLoadMoreBuffer,
		Now:            f.clock.Now,
	})
	return f
}

func (f *fixture) seedCursor(t *testing.T, cursor string, age time.Duration, lang string) {
	t.Helper()
	rec := CursorRecord{Cursor: domain.Cursor(cursor), Timestamp: f.clock.Now().Add(-age), Language: lang}
	require.NoError(t, NewCursorStore(f.store).Save(rec))
}

func TestInitialLoadFromEmptyStorage(t *testing.T) {
	items := articles("a", 1, 10)
	items[3].Description = ""
	items[6].Description = "null"
	f := newFixture(t, telugu, ok("p2", items))

	require.NoError(t, f.loader.InitialLoad(context.Background()))

	calls := f.api.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, telugu.PrimaryURL, calls[0].Base)
	assert.True(t, calls[0].Cursor.Empty())

	assert.Equal(t, ids(items), ids(f.session.Articles()))
	assert.Equal(t, []string{"a1", "a2", "a3", "a5", "a6", "a8", "a9", "a10"}, ids(f.loader.Visible()))
	assert.Equal(t, domain.Cursor("p2"), f.session.NextCursor())

	rec, err := NewCursorStore(f.store).Load()
	require.NoError(t, err)
	assert.Equal(t, domain.Cursor("p2"), rec.Cursor)
	assert.True(t, rec.Timestamp.Equal(f.clock.Now()))
	assert.Equal(t, "telugu", rec.Language)

	raw, found, err := f.store.Get(storage.KeyNextPageTimestamp)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2024-06-01T12:00:00.000Z", raw)
}

func TestInitialLoadHonorsCursorAge(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want domain.Cursor
	}{
		{0, "p2"},
		{time.Hour, "p2"},
		{3*time.Hour - time.Second, "p2"},
		{3 * time.Hour, ""},
		{4 * time.Hour, ""},
	}
	for _, tc := range cases {
		t.Run(tc.age.String(), func(t *testing.T) {
			f := newFixture(t, telugu, ok("p3", articles("a", 1, 3)))
			f.seedCursor(t, "p2", tc.age, "telugu")

			require.NoError(t, f.loader.InitialLoad(context.Background()))

			calls := f.api.calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tc.want, calls[0].Cursor)
			assert.Equal(t, telugu.PrimaryURL, calls[0].Base)
		})
	}
}

func TestInitialLoadIgnoresCursorOfOtherLanguage(t *testing.T) {
	f := newFixture(t, english, ok("e2", articles("e", 1, 3)))
	f.seedCursor(t, "p2", time.Hour, "telugu")

	require.NoError(t, f.loader.InitialLoad(context.Background()))

	calls := f.api.calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Cursor.Empty())
	assert.Equal(t, english.PrimaryURL, calls[0].Base)
}

func TestInitialLoadRunsOnlyForEmptySession(t *testing.T) {
	f := newFixture(t, telugu, ok("p2", articles("a", 1, 3)), ok("p9", articles("z", 1, 3)))
	ctx := context.Background()

	require.NoError(t, f.loader.InitialLoad(ctx))
	require.NoError(t, f.loader.InitialLoad(ctx))

	assert.Len(t, f.api.calls(), 1)
	assert.Equal(t, []string{"a1", "a2", "a3"}, ids(f.session.Articles()))
}

func TestInitialLoadReplacesAndLaterCallsAppend(t *testing.T) {
	f := newFixture(t, telugu,
		ok("p2", articles("a", 1, 3)),
		ok("p3", articles("a", 4, 5)),
	)
	ctx := context.Background()

	require.NoError(t, f.loader.InitialLoad(ctx))
	require.NoError(t, f.loader.LoadMore(ctx))

	assert.Equal(t, []string{"a1", "a2", "a3", "a4", "a5"}, ids(f.session.Articles()))
	calls := f.api.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, domain.Cursor("p2"), calls[1].Cursor)
	assert.Equal(t, domain.Cursor("p3"), f.session.NextCursor())
}

func TestLoadMoreWithoutCursorIsNoop(t *testing.T) {
	f := newFixture(t, telugu, ok("", articles("a", 1, 3)))
	ctx := context.Background()

	require.NoError(t, f.loader.LoadMore(ctx))
	assert.Empty(t, f.api.calls())

	require.NoError(t, f.loader.InitialLoad(ctx))
	require.NoError(t, f.loader.LoadMore(ctx))
	assert.Len(t, f.api.calls(), 1)

	_, found, err := f.store.Get(storage.KeyNextPage)
	require.NoError(t, err)
	assert.False(t, found, "exhausted feed must not persist a cursor")
}

func TestLoadMoreWhileInFlightIsNoop(t *testing.T) {
	f := newFixture(t, telugu, ok("p2", articles("a", 1, 3)), ok("p3", articles("a", 4, 5)))
	ctx := context.Background()
	require.NoError(t, f.loader.InitialLoad(ctx))

	f.api.started = make(chan struct{}, 1)
	f.api.release = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- f.loader.LoadMore(ctx) }()
	<-f.api.started

	assert.True(t, f.loader.Loading())
	require.NoError(t, f.loader.LoadMore(ctx))
	assert.Len(t, f.api.calls(), 2)

	close(f.api.release)
	require.NoError(t, <-done)
	assert.False(t, f.loader.Loading())
	assert.Equal(t, []string{"a1", "a2", "a3", "a4", "a5"}, ids(f.session.Articles()))
}

func TestInFlightClearedAfterEveryOutcome(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newFixture(t, telugu, ok("p2", articles("a", 1, 2)))
		require.NoError(t, f.loader.InitialLoad(ctx))
		assert.False(t, f.loader.Loading())
	})

	t.Run("failure", func(t *testing.T) {
		f := newFixture(t, telugu, fail())
		err := f.loader.InitialLoad(ctx)
		assert.ErrorIs(t, err, errUpstream)
		assert.False(t, f.loader.Loading())
	})

	t.Run("panic", func(t *testing.T) {
		f := newFixture(t, telugu, ok("p2", articles("a", 1, 2)), result{panic: true})
		require.NoError(t, f.loader.InitialLoad(ctx))
		assert.Panics(t, func() { _ = f.loader.LoadMore(ctx) })
		assert.False(t, f.loader.Loading())
	})
}

func TestFailureSwitchesTeluguToFallback(t *testing.T) {
	f := newFixture(t, telugu,
		ok("p2", articles("a", 1, 3)),
		fail(),
		ok("p3", articles("a", 4, 5)),
	)
	ctx := context.Background()

	require.NoError(t, f.loader.InitialLoad(ctx))
	assert.Equal(t, sources.Primary, f.loader.Selection())

	assert.Error(t, f.loader.LoadMore(ctx))
	assert.Equal(t, sources.Fallback, f.loader.Selection())
	assert.Equal(t, []string{"a1", "a2", "a3"}, ids(f.session.Articles()))

	require.NoError(t, f.loader.LoadMore(ctx))

	calls := f.api.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, telugu.PrimaryURL, calls[1].Base)
	assert.Equal(t, telugu.FallbackURL, calls[2].Base)
	assert.Equal(t, domain.Cursor("p2"), calls[2].Cursor)
	assert.Equal(t, sources.Fallback, f.loader.Selection(), "success keeps the current backend")
}

func TestSelectionFlipsOncePerFailure(t *testing.T) {
	f := newFixture(t, telugu, fail(), fail(), fail())
	ctx := context.Background()

	want := []sources.Selection{sources.Fallback, sources.Primary, sources.Fallback}
	for i, sel := range want {
		assert.Error(t, f.loader.InitialLoad(ctx))
		assert.Equal(t, sel, f.loader.Selection(), "after failure %d", i+1)
	}

	calls := f.api.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, telugu.PrimaryURL, calls[0].Base)
	assert.Equal(t, telugu.FallbackURL, calls[1].Base)
	assert.Equal(t, telugu.PrimaryURL, calls[2].Base)
}

func TestFailureNeverFlipsLanguageWithoutFallback(t *testing.T) {
	f := newFixture(t, english, fail(), ok("e2", articles("e", 1, 2)), fail(), fail())
	ctx := context.Background()

	assert.Error(t, f.loader.InitialLoad(ctx))
	require.NoError(t, f.loader.InitialLoad(ctx))
	assert.Error(t, f.loader.LoadMore(ctx))
	assert.Error(t, f.loader.LoadMore(ctx))

	assert.Equal(t, sources.Primary, f.loader.Selection())
	for _, c := range f.api.calls() {
		assert.Equal(t, english.PrimaryURL, c.Base)
	}
}

func TestPrefetchFiresAtMultiplesOfSeven(t *testing.T) {
	f := newFixture(t, telugu,
		ok("p2", articles("a", 1, 7)),
		ok("p3", articles("a", 8, 14)),
		ok("p4", articles("a", 15, 21)),
		ok("p5", articles("a", 22, 24)),
		ok("p6", articles("a", 25, 26)),
	)

	require.NoError(t, f.loader.InitialLoad(context.Background()))

	calls := f.api.calls()
	require.Len(t, calls, 4)
	counts := []int{calls[0].Count, calls[1].Count, calls[2].Count, calls[3].Count}
	assert.Equal(t, []int{0, 7, 14, 21}, counts)
	assert.Equal(t, 24, f.session.Len())
	assert.Equal(t, domain.Cursor("p5"), f.session.NextCursor())
}

func TestPrefetchSkipsIntermediateCounts(t *testing.T) {
	f := newFixture(t, telugu,
		ok("p2", articles("a", 1, 5)),
		ok("p3", articles("a", 6, 7)),
		ok("p4", articles("a", 8, 10)),
	)
	ctx := context.Background()

	require.NoError(t, f.loader.InitialLoad(ctx))
	require.NoError(t, f.loader.Prefetch(ctx))
	assert.Len(t, f.api.calls(), 1, "5 articles is not a multiple of 7")

	require.NoError(t, f.loader.LoadMore(ctx))

	calls := f.api.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, 5, calls[1].Count)
	assert.Equal(t, 7, calls[2].Count)
	assert.Equal(t, 10, f.session.Len())
}

func TestPrefetchStopsAfterFailure(t *testing.T) {
	f := newFixture(t, telugu, ok("p2", articles("a", 1, 7)), fail())

	require.NoError(t, f.loader.InitialLoad(context.Background()))

	assert.Len(t, f.api.calls(), 2)
	assert.Equal(t, 7, f.session.Len())
	assert.Equal(t, sources.Fallback, f.loader.Selection())
	assert.False(t, f.loader.Loading())
}

func TestConcurrentLoadMoreIssuesOneRequest(t *testing.T) {
	f := newFixture(t, telugu, ok("p2", articles("a", 1, 3)), ok("p3", articles("a", 4, 5)))
	ctx := context.Background()
	require.NoError(t, f.loader.InitialLoad(ctx))

	f.api.started = make(chan struct{}, 1)
	f.api.release = make(chan struct{})
	var (
		wg       sync.WaitGroup
		returned atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.loader.LoadMore(ctx)
			_ = f.loader.Prefetch(ctx)
			returned.Add(1)
		}()
	}
	<-f.api.started
	require.Eventually(t, func() bool { return returned.Load() == 15 }, time.Second, time.Millisecond)
	close(f.api.release)
	wg.Wait()

	assert.EqualValues(t, 1, f.api.maxActive.Load())
	assert.Len(t, f.api.calls(), 2)
	assert.Equal(t, 5, f.session.Len())
}

func TestCloseDropsLateResults(t *testing.T) {
	f := newFixture(t, telugu, ok("p2", articles("a", 1, 3)))
	f.api.started = make(chan struct{}, 1)
	f.api.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.loader.InitialLoad(context.Background()) }()
	<-f.api.started

	f.loader.Close()
	close(f.api.release)
	require.NoError(t, <-done)

	assert.Zero(t, f.session.Len())
	assert.True(t, f.session.NextCursor().Empty())
	assert.False(t, f.loader.Loading())
	_, found, err := f.store.Get(storage.KeyNextPage)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCloseKeepsSelectionOnLateFailure(t *testing.T) {
	f := newFixture(t, telugu, fail())
	f.api.started = make(chan struct{}, 1)
	f.api.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.loader.InitialLoad(context.Background()) }()
	<-f.api.started

	f.loader.Close()
	close(f.api.release)
	assert.Error(t, <-done)
	assert.Equal(t, sources.Primary, f.loader.Selection())
	assert.False(t, f.loader.Loading())
}

func TestClosedLoaderIgnoresCalls(t *testing.T) {
	f := newFixture(t, telugu, ok("p2", articles("a", 1, 3)))
	f.loader.Close()
	ctx := context.Background()

	require.NoError(t, f.loader.InitialLoad(ctx))
	require.NoError(t, f.loader.LoadMore(ctx))
	f.loader.HandleScroll(ctx, Viewport{Offset: 40, Height: 10, ContentHeight: 50})

	assert.Empty(t, f.api.calls())
	assert.Zero(t, f.session.ScrollOffset())
}

func TestRemountKeepsSessionState(t *testing.T) {
	f := newFixture(t, telugu, ok("p2", articles("a", 1, 3)))
	ctx := context.Background()
	require.NoError(t, f.loader.InitialLoad(ctx))
	f.loader.HandleScroll(ctx, Viewport{Offset: 120, Height: 10, ContentHeight: 5000})
	f.loader.Close()

	api := newStub(f.session)
	again := NewLoader(telugu, api, f.session, f.store, Options{Now: f.clock.Now})
	require.NoError(t, again.InitialLoad(ctx))

	assert.Empty(t, api.calls())
	view := again.Snapshot()
	assert.Equal(t, 120, view.ScrollOffset)
	assert.Equal(t, 3, view.Total)
	assert.Len(t, view.Articles, 3)
}

func TestHandleScrollThrottlesObserverButRecordsOffset(t *testing.T) {
	session := NewSession()
	clock := newClock()
	var seen []int
	loader := NewLoader(telugu, newStub(session), session, nil, Options{
		ScrollThrottle: 100 * time.Millisecond,
		LoadMoreBuffer: DefaultLoadMoreBuffer,
		Now:            clock.Now,
		OnScroll:       func(offset int) { seen = append(seen, offset) },
	})
	ctx := context.Background()
	far := func(offset int) Viewport { return Viewport{Offset: offset, Height: 100, ContentHeight: 10000} }

	loader.HandleScroll(ctx, far(10))
	clock.Advance(40 * time.Millisecond)
	loader.HandleScroll(ctx, far(20))

	assert.Equal(t, []int{10}, seen)
	assert.Equal(t, 20, session.ScrollOffset())

	clock.Advance(70 * time.Millisecond)
	loader.HandleScroll(ctx, far(30))
	assert.Equal(t, []int{10, 30}, seen)
}

func TestHandleScrollLoadsMoreNearBottom(t *testing.T) {
	f := newFixture(t, telugu, ok("p2", articles("a", 1, 3)), ok("p3", articles("a", 4, 5)))
	ctx := context.Background()
	require.NoError(t, f.loader.InitialLoad(ctx))

	f.loader.HandleScroll(ctx, Viewport{Offset: 0, Height: 100, ContentHeight: 2000})
	assert.Len(t, f.api.calls(), 1)

	f.loader.HandleScroll(ctx, Viewport{Offset: 1400, Height: 100, ContentHeight: 2000})
	assert.Len(t, f.api.calls(), 2)
	assert.Equal(t, 5, f.session.Len())
}

func TestViewportNearBottom(t *testing.T) {
	v := Viewport{Offset: 1000, Height: 500, ContentHeight: 2000}
	assert.True(t, v.NearBottom(500))
	assert.False(t, v.NearBottom(499))
	assert.True(t, Viewport{Height: 300, ContentHeight: 200}.NearBottom(0))
}
