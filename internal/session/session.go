// Package session wires a playback stream for the viewer programs.
package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/quasilyte/xmscope/internal/config"
	"github.com/quasilyte/xmscope/internal/xmgen"
	"github.com/quasilyte/xmscope/xmfile"
	"github.com/quasilyte/xmscope/xmplay"
)

// Session is a loaded module that is ready to be played.
type Session struct {
	Stream *xmplay.Stream

	// Title is a short module description for the window title
	// and status lines.
	Title string

	Logger *log.Logger

	cfg config.Config

	// parser is kept for the reloads: it reuses the memory
	// of the previously parsed module.
	parser *xmfile.Parser
}

// Open loads the configured module (or the built-in demo).
//
// The logger is only used when cfg.Verbose is set;
// a nil logger means the standard error.
func Open(cfg config.Config, logger *log.Logger) (*Session, error) {
	if !cfg.Verbose {
		logger = log.New(io.Discard, "", 0)
	} else if logger == nil {
		logger = log.New(os.Stderr, "xmscope: ", log.LstdFlags)
	}

	s := &Session{
		Stream: xmplay.NewStream(),
		Logger: logger,
		cfg:    cfg,
		parser: xmfile.NewParser(xmfile.ParserConfig{
			NeedStrings:   true,
			DecodeSamples: true,
		}),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload reads the module file again and restarts the song.
//
// The running playback picks up the new module right away,
// but the viewer has to be set up again by the caller.
// A stopped playback is not restarted.
//
// On error, the previous module keeps playing.
func (s *Session) Reload() error {
	data, title, err := s.readModule()
	if err != nil {
		return err
	}

	m, err := s.parser.ParseFromBytes(data)
	if err != nil {
		return fmt.Errorf("parse XM file: %w", err)
	}
	if m.Name != "" {
		title = fmt.Sprintf("%s (%s)", title, m.Name)
	}

	err = s.Stream.LoadModule(m, xmplay.LoadModuleConfig{
		BPM:          s.cfg.BPM,
		Tempo:        s.cfg.Tempo,
		LatencyTicks: s.cfg.LatencyTicks,
		Loop:         s.cfg.Loop,
		Logger:       s.Logger,
	})
	if err != nil {
		return fmt.Errorf("load XM module: %w", err)
	}
	s.Title = title

	info := s.Stream.GetInfo()
	s.Logger.Printf("loaded %q: %d channels, %d instruments, %d orders, tick=%v, mem=%d bytes",
		title, info.NumChannels, info.NumInstruments, info.SongLength, info.TickDuration, info.MemoryUsage)

	return nil
}

func (s *Session) readModule() (data []byte, title string, err error) {
	if s.cfg.ModulePath == "" {
		return xmgen.Encode(xmgen.Demo()), "demo", nil
	}
	data, err = os.ReadFile(s.cfg.ModulePath)
	if err != nil {
		return nil, "", fmt.Errorf("read XM file: %w", err)
	}
	return data, filepath.Base(s.cfg.ModulePath), nil
}

// Start runs the playback in a background goroutine.
// The returned channel is closed after the playback stops.
func (s *Session) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Stream.Run(ctx); err != nil {
			s.Logger.Printf("playback: %v", err)
			return
		}
		s.Logger.Printf("playback is finished")
	}()
	return done
}
