package config

import (
	"io"
	"testing"
)

// load runs the root command and returns the config passed to its action.
func load(args ...string) (Config, error) {
	var result Config
	cmd := NewCommand("xmscope", "test", func(cfg Config) error {
		result = cfg
		return nil
	})
	cmd.SetArgs(append([]string{}, args...))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return result, err
}

var envVars = []string{
	"XMSCOPE_MODULE", "XMSCOPE_WIDTH", "XMSCOPE_HEIGHT", "XMSCOPE_SCALE",
	"XMSCOPE_LATENCY", "XMSCOPE_LOOP", "XMSCOPE_BPM", "XMSCOPE_TEMPO",
	"XMSCOPE_STRICT", "XMSCOPE_VERBOSE", "XMSCOPE_COLUMNS",
}

func clearEnv(t *testing.T) {
	for _, k := range envVars {
		t.Setenv(k, "")
	}
}

func TestCommandDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Errorf("load() = %+v, want %+v", cfg, Default())
	}
	if cfg.ModulePath != "" {
		t.Errorf("ModulePath = %q, want empty", cfg.ModulePath)
	}
}

func TestCommandEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("XMSCOPE_MODULE", "song.xm")
	t.Setenv("XMSCOPE_WIDTH", "800")
	t.Setenv("XMSCOPE_SCALE", "1.5")
	t.Setenv("XMSCOPE_LOOP", "false")
	t.Setenv("XMSCOPE_BPM", "140")
	t.Setenv("XMSCOPE_VERBOSE", "1")

	cfg, err := load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ModulePath != "song.xm" {
		t.Errorf("ModulePath = %q", cfg.ModulePath)
	}
	if cfg.Width != 800 || cfg.Height != 480 {
		t.Errorf("size = %dx%d, want 800x480", cfg.Width, cfg.Height)
	}
	if cfg.Scale != 1.5 {
		t.Errorf("Scale = %f, want 1.5", cfg.Scale)
	}
	if cfg.Loop {
		t.Error("Loop = true, want false")
	}
	if cfg.BPM != 140 {
		t.Errorf("BPM = %d, want 140", cfg.BPM)
	}
	if !cfg.Verbose {
		t.Error("Verbose = false, want true")
	}
}

func TestCommandInvalidEnvIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("XMSCOPE_WIDTH", "wide")
	t.Setenv("XMSCOPE_LATENCY", "-5")
	t.Setenv("XMSCOPE_STRICT", "maybe")

	cfg, err := load()
	if err != nil {
		t.Fatal(err)
	}
	def := Default()
	if cfg.Width != def.Width || cfg.LatencyTicks != def.LatencyTicks || cfg.Strict {
		t.Errorf("malformed env values were not ignored: %+v", cfg)
	}
}

func TestCommandFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("XMSCOPE_WIDTH", "800")
	t.Setenv("XMSCOPE_MODULE", "env.xm")

	cfg, err := load("--width", "1024", "--latency", "0", "--strict", "--tempo=4", "-c", "2", "flag.xm")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 1024 {
		t.Errorf("flags should override the env: width=%d", cfg.Width)
	}
	if cfg.LatencyTicks != 0 || !cfg.Strict || cfg.Tempo != 4 || cfg.Columns != 2 {
		t.Errorf("flags are not applied: %+v", cfg)
	}
	if cfg.ModulePath != "flag.xm" {
		t.Errorf("positional argument should override the env: %q", cfg.ModulePath)
	}
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--foo"}},
		{"single dash long flag", []string{"-width", "100"}},
		{"zero width", []string{"--width", "0"}},
		{"negative height", []string{"--height=-1"}},
		{"zero scale", []string{"--scale", "0"}},
		{"negative latency", []string{"--latency=-1"}},
		{"bpm out of range", []string{"--bpm", "300"}},
		{"tempo out of range", []string{"--tempo", "32"}},
		{"too many columns", []string{"--columns", "3"}},
		{"too many arguments", []string{"a.xm", "b.xm"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			clearEnv(t)
			if _, err := load(test.args...); err == nil {
				t.Errorf("load(%q) succeeded", test.args)
			}
		})
	}
}

func TestHelpSkipsRun(t *testing.T) {
	clearEnv(t)
	called := false
	cmd := NewCommand("xmscope", "test", func(cfg Config) error {
		called = true
		return nil
	})
	cmd.SetArgs([]string{"--help"})
	cmd.SetOut(io.Discard)
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("run was called for --help")
	}
}
