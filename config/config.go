// Package config loads the store's runtime settings (spec §6
// Configuration) from a file, environment variables, and flags, and can
// watch the file for edits and re-load on change — grounded on the
// teacher's cmd/internal/env environment-variable binding and its
// filewatcher package for the fsnotify watch loop.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sessionvars/sessionvars/log"
)

const envPrefix = "sessionvars"

// Config holds every setting a Session can be configured with.
type Config struct {
	ConvertUnknownOID bool   `mapstructure:"convert_unknownoid"`
	MaxOpenCursors    int    `mapstructure:"max_open_cursors"`
	LogLevel          string `mapstructure:"log_level"`
}

// Defaults returns the configuration a Session uses when none is
// supplied.
func Defaults() Config {
	return Config{ConvertUnknownOID: true, MaxOpenCursors: 64, LogLevel: "info"}
}

// Loader reads configuration from an optional file, environment
// variables prefixed SESSIONVARS_, and flags bound via BindFlags, with
// that precedence order (flags win, then env, then file, then defaults).
type Loader struct {
	v *viper.Viper
}

// NewLoader builds a Loader with defaults pre-populated.
func NewLoader() *Loader {
	v := viper.New()
	d := Defaults()
	v.SetDefault("convert_unknownoid", d.ConvertUnknownOID)
	v.SetDefault("max_open_cursors", d.MaxOpenCursors)
	v.SetDefault("log_level", d.LogLevel)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	return &Loader{v: v}
}

// BindFlags binds each flag in fs to its matching config key, mirroring
// the teacher's CheckEnvironmentVariables sweep over a command's flag
// set: a flag explicitly set on the command line always wins.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	return l.v.BindPFlags(fs)
}

// ReadFile loads path (YAML, JSON, or TOML, inferred from its extension)
// into the loader, overriding defaults but not already-bound flags.
func (l *Loader) ReadFile(path string) error {
	l.v.SetConfigFile(path)
	return l.v.ReadInConfig()
}

// Config materializes the loader's current view as a Config value.
func (l *Loader) Config() (Config, error) {
	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// Watcher reloads a Loader's backing file on change and reports the
// updated Config to onChange, grounded on the teacher's
// filewatcher.FileWatcher: a single fsnotify.Watcher over the file's
// containing directory (editors often replace a file rather than write
// it in place, which only a directory-level watch reliably catches).
type Watcher struct {
	loader *Loader
	path   string
	logger log.Logger
}

// NewWatcher returns a Watcher for path using loader's already-configured
// defaults/env/flags.
func NewWatcher(loader *Loader, path string, logger log.Logger) *Watcher {
	if logger == nil {
		logger = log.Global()
	}
	return &Watcher{loader: loader, path: path, logger: logger}
}

// Start watches the config file's directory and invokes onChange with
// the freshly reloaded Config whenever the file is written or replaced.
// It returns once the watch is established; events are delivered on a
// background goroutine until stop is closed.
func (w *Watcher) Start(stop <-chan struct{}, onChange func(Config)) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	go func() {
		defer fsWatcher.Close()
		for {
			select {
			case <-stop:
				return
			case evt, ok := <-fsWatcher.Events:
				if !ok {
					return
				}
				mask := fsnotify.Write | fsnotify.Create | fsnotify.Rename
				if filepath.Clean(evt.Name) != filepath.Clean(w.path) || evt.Op&mask == 0 {
					continue
				}
				w.logger.WithField("path", evt.Name).Debug("config file changed, reloading")
				if err := w.loader.ReadFile(w.path); err != nil {
					w.logger.Errorf("config: reload %s: %v", w.path, err)
					continue
				}
				cfg, err := w.loader.Config()
				if err != nil {
					w.logger.Errorf("config: reload %s: %v", w.path, err)
					continue
				}
				onChange(cfg)
			case err, ok := <-fsWatcher.Errors:
				if !ok {
					return
				}
				w.logger.Errorf("config: watch error: %v", err)
			}
		}
	}()
	return nil
}
