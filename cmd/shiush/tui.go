package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/shiush/internal/ui"
)

func runTUI(ctx context.Context, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	// The screen belongs to the program, so logs go to a file
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	logger := log.New(logFile, "shiush: ", log.LstdFlags)

	s, cleanup, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	app := ui.NewApp(s.engine, s.evaluator, cfg.Schedule.PollInterval, logger)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run application: %w", err)
	}
	return nil
}
