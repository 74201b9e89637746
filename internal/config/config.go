package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// Config holds the viewer runtime configuration.
//
// Every option can be set by a command-line flag; the flag defaults
// are taken from the XMSCOPE_* environment variables.
type Config struct {
	// ModulePath is an XM file to play.
	// An empty path plays the built-in demo module.
	ModulePath string

	// Window (or terminal canvas) size in pixels.
	Width  int
	Height int

	// Scale is a font scaling factor.
	Scale float64

	// Columns is the number of channel columns.
	// 0 selects it depending on the canvas width.
	Columns int

	// Playback settings.
	LatencyTicks int
	Loop         bool
	BPM          uint // 0 means "module default"
	Tempo        uint // 0 means "module default"

	// Strict makes the viewer reject malformed snapshots.
	Strict bool

	Verbose bool
}

// Default returns a config with sane defaults, ignoring the environment.
func Default() Config {
	return Config{
		Width:        640,
		Height:       480,
		Scale:        1,
		LatencyTicks: 2,
		Loop:         true,
	}
}

// NewCommand builds the program root command.
//
// The environment variables override the defaults, the flags override both.
// Malformed environment values are ignored.
// run is called with a validated config; it's not called for --help.
func NewCommand(name, short string, run func(Config) error) *cobra.Command {
	def := Default()

	var cfg Config
	cmd := &cobra.Command{
		Use:          name + " [flags] [path/to/music.xm]",
		Short:        short,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.ModulePath = args[0]
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.ModulePath, "module", "m", envStr("XMSCOPE_MODULE", ""),
		"XM file to play; the demo module is played if empty")
	flags.IntVar(&cfg.Width, "width", envInt("XMSCOPE_WIDTH", def.Width),
		"canvas width")
	flags.IntVar(&cfg.Height, "height", envInt("XMSCOPE_HEIGHT", def.Height),
		"canvas height")
	flags.Float64Var(&cfg.Scale, "scale", envFloat("XMSCOPE_SCALE", def.Scale),
		"font scaling factor")
	flags.IntVarP(&cfg.Columns, "columns", "c", envInt("XMSCOPE_COLUMNS", def.Columns),
		"number of channel columns (1 or 2); 0 picks it by the canvas width")
	flags.IntVar(&cfg.LatencyTicks, "latency", envInt("XMSCOPE_LATENCY", def.LatencyTicks),
		"snapshot latency in ticks")
	flags.BoolVar(&cfg.Loop, "loop", envBool("XMSCOPE_LOOP", def.Loop),
		"restart the song when it ends")
	flags.UintVar(&cfg.BPM, "bpm", uint(envInt("XMSCOPE_BPM", 0)),
		"override the module BPM")
	flags.UintVar(&cfg.Tempo, "tempo", uint(envInt("XMSCOPE_TEMPO", 0)),
		"override the module tempo (ticks per row)")
	flags.BoolVar(&cfg.Strict, "strict", envBool("XMSCOPE_STRICT", false),
		"reject snapshots with a wrong channel count")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", envBool("XMSCOPE_VERBOSE", false),
		"log the recoverable errors")

	return cmd
}

// Validate reports the first invalid option.
func (cfg *Config) Validate() error {
	switch {
	case cfg.Width <= 0 || cfg.Height <= 0:
		return fmt.Errorf("invalid canvas size %dx%d", cfg.Width, cfg.Height)
	case cfg.Scale <= 0:
		return errors.New("scale should be positive")
	case cfg.Columns < 0 || cfg.Columns > 2:
		return fmt.Errorf("columns is out of range: %d", cfg.Columns)
	case cfg.LatencyTicks < 0:
		return errors.New("latency can't be negative")
	case cfg.BPM > 255:
		return fmt.Errorf("bpm is out of range: %d", cfg.BPM)
	case cfg.Tempo > 31:
		return fmt.Errorf("tempo is out of range: %d", cfg.Tempo)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
