package tui

import "github.com/samvad-hq/samvad-news-reader/internal/discovery"

type pageLoadedMsg struct {
	err error
}

type scrolledMsg struct{}

type boardLoadedMsg struct {
	board discovery.Board
}
