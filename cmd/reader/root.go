package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-news-reader/internal/app"
	"github.com/samvad-hq/samvad-news-reader/internal/config"
	"github.com/samvad-hq/samvad-news-reader/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
)

type rootFlags struct {
	envFile  string
	language string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "reader",
		Short:         "Paginated Telugu and English news feed in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrowse(cmd, flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.envFile, "config-env", config.DefaultEnvFile, "path to a .env file with READER_* settings")
	root.PersistentFlags().StringVar(&flags.language, "language", "", "feed language (persisted as the selected language)")

	root.AddCommand(
		newBrowseCmd(flags),
		newPagesCmd(flags),
		newDiscoverCmd(flags),
		newLanguageCmd(flags),
		newResetCmd(flags),
		newVersionCmd(),
	)
	return root
}

// session bundles what every command needs.
type session struct {
	cfg    *config.Config
	reader *app.Reader
	ctx    context.Context
	stop   context.CancelFunc
}

func (s *session) close() {
	if s.reader != nil {
		_ = s.reader.Close()
	}
	if s.stop != nil {
		s.stop()
	}
	_ = logger.Close()
}

// open loads config, starts the logger and builds the reader. interactive
// commands always log to a file so the terminal stays clean.
func open(cmd *cobra.Command, flags *rootFlags, interactive bool) (*session, error) {
	cfg, err := config.LoadEnv(flags.envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if interactive && strings.TrimSpace(cfg.LogFile) == "" {
		cfg.LogFile = config.DefaultLogPath()
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.InfoObj("reader starting", "config", cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	s := &session{cfg: cfg, ctx: ctx, stop: stop}

	reader, err := app.NewReader(cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize reader", "error", err)
		s.close()
		return nil, err
	}
	s.reader = reader

	if lang := strings.TrimSpace(flags.language); lang != "" {
		if err := reader.SwitchLanguage(lang); err != nil {
			s.close()
			return nil, err
		}
	}
	return s, nil
}
