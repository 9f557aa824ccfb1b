package main

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/cuivienor/carbon/internal/config"
	"github.com/cuivienor/carbon/internal/convert"
	"github.com/cuivienor/carbon/internal/download"
	"github.com/cuivienor/carbon/internal/queue"
	"github.com/cuivienor/carbon/internal/state"
	"github.com/cuivienor/carbon/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	if path, err := config.LogPath(); err == nil {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			defer f.Close()
			log.SetOutput(f)
		}
	}

	store := state.NewStore()
	downloader := download.NewRunner("", log)
	converter := convert.NewRunner("", "", log)

	q := queue.New(queue.Options{
		MaxConcurrent: cfg.MaxConcurrentDownloads,
		OutputDir:     cfg.OutputDirectory,
		AutoConvert:   cfg.AutoConvert,
		Logger:        log,
	}, downloader, converter)

	app := tui.NewApp(cfg, store, q, downloader)

	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to run program: %w", err)
	}
	return nil
}
