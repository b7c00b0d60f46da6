package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/samvad-hq/samvad-news-reader/internal/discovery"
	"github.com/samvad-hq/samvad-news-reader/internal/feed"
	"github.com/samvad-hq/samvad-news-reader/pkg/sources"
)

// Reader is the runtime the views read from.
type Reader interface {
	Language() sources.Language
	NewFeed(onScroll func(int)) *feed.Loader
	Discover(ctx context.Context) discovery.Board
}

type tab int

const (
	tabFeed tab = iota
	tabDiscover
)

// Each article occupies rowLines terminal lines. Scroll positions handed to the
// feed are in lineUnits per line so the load-more buffer keeps its usual scale.
const (
	rowLines  = 3
	lineUnits = 20
	chrome    = 3
)

type App struct {
	ctx    context.Context
	reader Reader
	loader *feed.Loader
	tab    tab

	width  int
	height int

	top      int
	selected int
	loading  bool
	lastErr  error

	spinner      spinner.Model
	board        *discovery.Board
	boardLoading bool
}

func NewApp(ctx context.Context, reader Reader) *App {
	if ctx == nil {
		ctx = context.Background()
	}
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	a := &App{ctx: ctx, reader: reader, spinner: sp}
	a.mountFeed()
	return a
}

func (a *App) Init() tea.Cmd {
	return a.initialLoadCmd()
}

// mountFeed attaches a new Loader and restores the stored scroll position.
func (a *App) mountFeed() {
	a.loader = a.reader.NewFeed(nil)
	a.tab = tabFeed
	a.top = a.loader.Session().ScrollOffset() / (rowLines * lineUnits)
	a.selected = a.top
	a.clamp()
}

func (a *App) unmountFeed() {
	if a.loader != nil {
		a.loader.Close()
		a.loader = nil
	}
}

func (a *App) initialLoadCmd() tea.Cmd {
	if a.loader == nil || a.loader.Session().Len() > 0 {
		return nil
	}
	loader := a.loader
	ctx := a.ctx
	a.loading = true
	return tea.Batch(a.spinner.Tick, func() tea.Msg {
		return pageLoadedMsg{err: loader.InitialLoad(ctx)}
	})
}

func (a *App) loadMoreCmd() tea.Cmd {
	if a.loader == nil {
		return nil
	}
	loader := a.loader
	ctx := a.ctx
	a.loading = true
	return tea.Batch(a.spinner.Tick, func() tea.Msg {
		return pageLoadedMsg{err: loader.LoadMore(ctx)}
	})
}

// scrollCmd reports the new position to the feed off the event loop; the
// feed may start a load from there.
func (a *App) scrollCmd() tea.Cmd {
	if a.loader == nil {
		return nil
	}
	loader := a.loader
	ctx := a.ctx
	vp := a.viewport()
	return func() tea.Msg {
		loader.HandleScroll(ctx, vp)
		return scrolledMsg{}
	}
}

func (a *App) loadBoardCmd() tea.Cmd {
	reader := a.reader
	ctx := a.ctx
	a.boardLoading = true
	return tea.Batch(a.spinner.Tick, func() tea.Msg {
		return boardLoadedMsg{board: reader.Discover(ctx)}
	})
}

func (a *App) viewport() feed.Viewport {
	return feed.Viewport{
		Offset:        a.top * rowLines * lineUnits,
		Height:        a.listLines() * lineUnits,
		ContentHeight: a.visibleCount() * rowLines * lineUnits,
	}
}

func (a *App) listLines() int {
	return max(rowLines, a.height-chrome)
}

func (a *App) rowsPerPage() int {
	return max(1, a.listLines()/rowLines)
}

func (a *App) visibleCount() int {
	if a.loader == nil {
		return 0
	}
	return len(a.loader.Visible())
}

func (a *App) clamp() {
	n := a.visibleCount()
	a.selected = min(max(a.selected, 0), max(n-1, 0))
	if a.selected < a.top {
		a.top = a.selected
	}
	if a.selected >= a.top+a.rowsPerPage() {
		a.top = a.selected - a.rowsPerPage() + 1
	}
	a.top = max(a.top, 0)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.clamp()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case pageLoadedMsg:
		a.lastErr = msg.err
		a.loading = a.loader != nil && a.loader.Loading()
		a.clamp()
		return a, nil

	case scrolledMsg:
		a.loading = a.loader != nil && a.loader.Loading()
		return a, nil

	case boardLoadedMsg:
		board := msg.board
		a.board = &board
		a.boardLoading = false
		return a, nil

	case spinner.TickMsg:
		if a.loading || a.boardLoading {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		a.unmountFeed()
		return a, tea.Quit
	case "tab":
		return a, a.switchTab()
	}

	if a.tab == tabDiscover {
		if msg.String() == "r" {
			return a, a.loadBoardCmd()
		}
		return a, nil
	}

	switch msg.String() {
	case "j", "down":
		return a, a.move(1)
	case "k", "up":
		return a, a.move(-1)
	case "pgdown", "ctrl+d", " ":
		return a, a.move(a.rowsPerPage())
	case "pgup", "ctrl+u":
		return a, a.move(-a.rowsPerPage())
	case "g", "home":
		return a, a.move(-a.selected)
	case "G", "end":
		return a, a.move(a.visibleCount())
	case "r":
		if a.loader != nil && a.loader.Session().Len() == 0 {
			return a, a.initialLoadCmd()
		}
		return a, a.loadMoreCmd()
	}
	return a, nil
}

func (a *App) move(delta int) tea.Cmd {
	a.selected += delta
	a.clamp()
	return a.scrollCmd()
}

func (a *App) switchTab() tea.Cmd {
	if a.tab == tabFeed {
		a.unmountFeed()
		a.tab = tabDiscover
		a.loading = false
		if a.board == nil && !a.boardLoading {
			return a.loadBoardCmd()
		}
		return nil
	}
	a.mountFeed()
	return a.initialLoadCmd()
}

func (a *App) View() string {
	if a.tab == tabDiscover {
		return a.discoverView()
	}
	return a.feedView()
}

// Run starts the terminal UI and blocks until the user quits.
func Run(ctx context.Context, reader Reader) error {
	app := NewApp(ctx, reader)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	app.unmountFeed()
	return err
}
