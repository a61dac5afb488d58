// Package settings loads tool-level configuration for docsmith.
//
// Settings live in an optional TOML file, by default
// $XDG_CONFIG_HOME/docsmith/settings.toml, overridable with the --settings
// flag or the DOCSMITH_SETTINGS environment variable. Every field has a
// default, so a missing file yields a fully usable configuration. Unknown
// keys are rejected rather than silently ignored.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvSettingsPath names the environment variable that overrides the default
// settings file location.
const EnvSettingsPath = "DOCSMITH_SETTINGS"

// Settings is the root of the settings file.
type Settings struct {
	Build   Build   `toml:"build"`
	History History `toml:"history"`
	Serve   Serve   `toml:"serve"`
	Log     Log     `toml:"log"`
}

// Build tunes plan compilation and execution.
type Build struct {
	OutputDir          string   `toml:"output_dir"`           // output root, relative to the project
	VenvDir            string   `toml:"venv_dir"`             // interpreter env dir; default <output>/.venv
	StepTimeout        Duration `toml:"step_timeout"`         // wall-clock limit per step
	SkipSystemPackages bool     `toml:"skip_system_packages"` // omit apt-get steps
	StrictTools        bool     `toml:"strict_tools"`         // failed toolchain probes abort the build
	EnvPassthrough     []string `toml:"env_passthrough"`      // extra host env vars visible to steps
	ParallelFormats    int      `toml:"parallel_formats"`     // concurrent per-format build groups
}

// History configures the build history database.
type History struct {
	Database string `toml:"database"` // default $XDG_DATA_HOME/docsmith/history.db
	Keep     int    `toml:"keep"`     // builds retained by the retention sweep
}

// Serve configures the preview server.
type Serve struct {
	Addr string `toml:"addr"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `toml:"level"`  // trace|debug|info|warn|error
	Format string `toml:"format"` // console|json
}

// Duration is a time.Duration that (un)marshals as a TOML string using
// time.ParseDuration syntax ("30m", "1h15m").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the setting as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the settings used when no file is present.
func Default() *Settings {
	return &Settings{
		Build: Build{
			OutputDir:       "_readthedocs",
			StepTimeout:     Duration(30 * time.Minute),
			ParallelFormats: 2,
		},
		History: History{
			Keep: 100,
		},
		Serve: Serve{
			Addr: ":8080",
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns the settings file location: the DOCSMITH_SETTINGS
// environment variable when set, otherwise the XDG config directory.
func DefaultPath() string {
	if env := os.Getenv(EnvSettingsPath); env != "" {
		return env
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "docsmith", "settings.toml")
}

// DefaultDatabasePath returns the history database location used when
// history.database is unset.
func DefaultDatabasePath() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "docsmith-history.db"
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "docsmith", "history.db")
}

// DatabasePath resolves the configured history database, falling back to the
// default location.
func (s *Settings) DatabasePath() string {
	if s.History.Database != "" {
		return s.History.Database
	}
	return DefaultDatabasePath()
}

// Load reads settings from path. An empty path means DefaultPath(), and a
// missing file at the default location is not an error; an explicitly named
// file must exist. The result is always validated.
func Load(path string) (*Settings, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	s := Default()
	if path == "" {
		return s, nil
	}

	meta, err := toml.DecodeFile(path, s)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return s, nil
		}
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("settings %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// Validate checks value ranges. Called by Load; exported so flag overrides
// can be re-checked.
func (s *Settings) Validate() error {
	if s.Build.OutputDir == "" {
		return fmt.Errorf("build.output_dir must not be empty")
	}
	if filepath.IsAbs(s.Build.OutputDir) {
		return fmt.Errorf("build.output_dir must be relative to the project")
	}
	if s.Build.StepTimeout <= 0 {
		return fmt.Errorf("build.step_timeout must be positive")
	}
	if s.Build.ParallelFormats < 1 {
		return fmt.Errorf("build.parallel_formats must be at least 1")
	}
	if s.History.Keep < 0 {
		return fmt.Errorf("history.keep must not be negative")
	}
	if s.Serve.Addr == "" {
		return fmt.Errorf("serve.addr must not be empty")
	}
	switch s.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be %q or %q, got %q", "console", "json", s.Log.Format)
	}
	switch s.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not a known level", s.Log.Level)
	}
	return nil
}
