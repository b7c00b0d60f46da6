package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-news-reader/internal/feed"
	"github.com/samvad-hq/samvad-news-reader/internal/tui"
)

func newBrowseCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Open the interactive feed (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrowse(cmd, flags)
		},
	}
}

func runBrowse(cmd *cobra.Command, flags *rootFlags) error {
	s, err := open(cmd, flags, true)
	if err != nil {
		return err
	}
	defer s.close()
	return tui.Run(s.ctx, s.reader)
}

type articleOut struct {
	ID          string `json:"article_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	PubDate     string `json:"pubDate,omitempty"`
}

func newPagesCmd(flags *rootFlags) *cobra.Command {
	var (
		count  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Load the feed without the UI and print the visible articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 0 {
				return fmt.Errorf("--count must not be negative")
			}
			s, err := open(cmd, flags, false)
			if err != nil {
				return err
			}
			defer s.close()

			articles, err := s.reader.Walk(s.ctx, count)
			if err != nil {
				return fmt.Errorf("load feed: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				items := make([]articleOut, 0, len(articles))
				for _, a := range articles {
					items = append(items, articleOut{
						ID:          a.ID,
						Title:       a.Title,
						Description: feed.TruncateDescription(a.Description, 1<<16),
						Link:        a.Link,
						ImageURL:    a.ImageURL,
						PubDate:     a.PubDate,
					})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(items)
			}
			for _, a := range articles {
				fmt.Fprintf(out, "%s\n  %s\n", a.Title, feed.TruncateDescription(a.Description, 120))
			}
			fmt.Fprintf(out, "%d articles (%s)\n", len(articles), s.reader.Language().ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of pages to load after the first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print articles as JSON")
	return cmd
}

func newDiscoverCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Print the category headlines of the selected language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd, flags, false)
			if err != nil {
				return err
			}
			defer s.close()

			board := s.reader.Discover(s.ctx)
			out := cmd.OutOrStdout()
			for _, sec := range board.Sections {
				fmt.Fprintf(out, "== %s ==\n", sec.Title)
				if sec.Err != nil {
					fmt.Fprintln(out, "  (unavailable)")
					continue
				}
				for _, h := range sec.Headlines {
					fmt.Fprintf(out, "  - %s\n", h.Title)
				}
			}
			return nil
		},
	}
}

func newLanguageCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "language [name]",
		Short: "Show or persist the selected language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd, flags, false)
			if err != nil {
				return err
			}
			defer s.close()

			if len(args) == 1 {
				if err := s.reader.SwitchLanguage(args[0]); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			current := s.reader.Language().ID
			ids := make([]string, 0)
			for _, l := range s.reader.Languages() {
				ids = append(ids, l.ID)
			}
			fmt.Fprintf(out, "language: %s (available: %s)\n", current, strings.Join(ids, ", "))
			return nil
		},
	}
}

func newResetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the stored pagination cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd, flags, false)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.reader.ResetCursor(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pagination cursor cleared")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "samvad-news-reader %s (commit: %s)\n", version, commit)
		},
	}
}
