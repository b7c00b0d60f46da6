package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/samvad-hq/samvad-news-reader/internal/feed"
)

func (a *App) header() string {
	lang := a.reader.Language()
	tabs := []string{tabStyle.Render("feed"), tabStyle.Render("discover")}
	tabs[a.tab] = tabActiveStyle.Render([]string{"feed", "discover"}[a.tab])
	return lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Render("samvad · "+lang.Name),
		"  ",
		strings.Join(tabs, ""),
	)
}

func (a *App) statusBar(text string) string {
	w := max(a.width, lipgloss.Width(text)+2)
	return statusBarStyle.Width(w).Render(text)
}

func (a *App) descWidth() int {
	if a.width <= 0 {
		return 80
	}
	return max(10, a.width-4)
}

func (a *App) feedView() string {
	var b strings.Builder
	b.WriteString(a.header())
	b.WriteString("\n")

	if a.loader == nil {
		return b.String()
	}
	view := a.loader.Snapshot()

	if len(view.Articles) == 0 {
		switch {
		case view.Loading || a.loading:
			b.WriteString(a.spinner.View() + " Loading news...\n")
		case a.lastErr != nil:
			b.WriteString(warnStyle.Render("Could not reach the news service. Press r to retry.") + "\n")
		default:
			b.WriteString(itemDescStyle.Render("No stories yet. Press r to refresh.") + "\n")
		}
	} else {
		end := min(len(view.Articles), a.top+a.rowsPerPage())
		for i := a.top; i < end; i++ {
			art := view.Articles[i]
			title := itemTitleStyle.Render(art.Title)
			if i == a.selected {
				title = itemSelectedStyle.Render("> " + art.Title)
			}
			b.WriteString(title + "\n")
			b.WriteString(itemDescStyle.Render(feed.TruncateDescription(art.Description, a.descWidth())) + "\n\n")
		}
	}

	status := fmt.Sprintf("%d stories · %s backend", len(view.Articles), view.Selection)
	if view.Loading || a.loading {
		status = a.spinner.View() + " " + status + " · loading"
	}
	b.WriteString(a.statusBar(status + " · j/k scroll · r reload · tab discover · q quit"))
	return b.String()
}

func (a *App) discoverView() string {
	var b strings.Builder
	b.WriteString(a.header())
	b.WriteString("\n")

	switch {
	case a.boardLoading && a.board == nil:
		b.WriteString(a.spinner.View() + " Loading categories...\n")
	case a.board == nil || len(a.board.Sections) == 0:
		b.WriteString(itemDescStyle.Render("No categories for this language.") + "\n")
	default:
		for _, sec := range a.board.Sections {
			b.WriteString(sectionTitleStyle.Render(sec.Title) + "\n")
			if sec.Err != nil {
				b.WriteString(warnStyle.Render("  unavailable") + "\n")
				continue
			}
			for _, h := range sec.Headlines {
				b.WriteString("  " + itemTitleStyle.Render(h.Title) + "\n")
			}
		}
	}

	b.WriteString(a.statusBar("r reload · tab feed · q quit"))
	return b.String()
}
