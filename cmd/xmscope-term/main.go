package main

import (
	"context"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quasilyte/xmscope"
	"github.com/quasilyte/xmscope/internal/config"
	"github.com/quasilyte/xmscope/internal/session"
	"github.com/quasilyte/xmscope/internal/termview"
)

// This tool is a terminal version of the xmscope viewer.
// The scopes are drawn with braille characters.
//
// Click a scope to mute the channel, hold the button for half
// a second to solo it. Use the wheel or arrows to scroll,
// SPACE to pause, r to reload the module and q to quit.

func main() {
	cmd := config.NewCommand("xmscope-term", "Show the XM channel scopes in a terminal", run)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	// The terminal is owned by the program, so the
	// logs can only go to a file.
	var logger *log.Logger
	if cfg.Verbose {
		f, err := tea.LogToFile("xmscope.log", "xmscope: ")
		if err != nil {
			return err
		}
		defer f.Close()
		logger = log.Default()
	}

	s, err := session.Open(cfg, logger)
	if err != nil {
		return err
	}

	columns := cfg.Columns
	if columns == 0 {
		columns = xmscope.AutoColumns
	}
	surface := termview.NewSurface(lipgloss.DefaultRenderer())
	viewer := xmscope.NewViewer(s.Stream, surface, xmscope.Options{
		Logger:  s.Logger,
		Strict:  cfg.Strict,
		Columns: columns,
	})
	if err := viewer.SetupFromSource(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := s.Start(ctx)

	model := termview.NewModel(viewer, surface, s.Stream, termview.ModelConfig{
		Title: s.Title,
		Reload: func() (string, error) {
			err := s.Reload()
			return s.Title, err
		},
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, runErr := p.Run()

	cancel()
	<-done
	return runErr
}
