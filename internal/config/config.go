// Package config carries the process/filesystem glue around the execution
// core: environment seeding, the on-disk config file, and history location.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/crushshell/crush/internal/crusherr"
	"github.com/crushshell/crush/internal/scope"
	"github.com/crushshell/crush/internal/value"
	"gopkg.in/yaml.v3"
)

// Settings is the subset of config.yaml a session actually reads. Zero
// values mean "use the runtime default"; absent or empty fields are never
// an error.
type Settings struct {
	StreamCapacity int  `yaml:"stream_capacity"`
	HistorySize    int  `yaml:"history_size"`
	PromptDisabled bool `yaml:"prompt_disabled"`
}

// DefaultSettings mirrors internal/stream.DefaultCapacity and a generous
// scrollback, used whenever config.yaml is absent or leaves a field unset.
func DefaultSettings() Settings {
	return Settings{StreamCapacity: 128, HistorySize: 1000}
}

// Dir resolves $HOME/.config/crush, the root both config.yaml and the
// history file live under.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", crusherr.Wrap(crusherr.IOError, err, "resolving home directory")
	}
	return filepath.Join(home, ".config", "crush"), nil
}

// ConfigPath is Dir()/config.yaml.
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// HistoryPath is Dir()/history.
func HistoryPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history"), nil
}

// Load reads config.yaml, starting from DefaultSettings and overlaying
// whatever the file sets. A missing file yields the defaults unchanged.
func Load() (Settings, error) {
	s := DefaultSettings()
	path, err := ConfigPath()
	if err != nil {
		return s, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, crusherr.Wrap(crusherr.IOError, err, "reading %s", path)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, crusherr.Wrap(crusherr.ParseError, err, "parsing %s", path)
	}
	return s, nil
}

// SeedEnv declares global:crush:env, a Dict(String,String) view of
// os.Environ(). Like every other namespace this is loaded lazily rather than
// walking the environment on every process start regardless of whether a
// script ever reads it.
func SeedEnv(root *scope.Scope) error {
	_, err := root.CreateNamespace("crush", "process environment and configuration", func(l *scope.Loader) error {
		env := value.NewDict(value.TypeString, value.TypeString)
		for _, kv := range os.Environ() {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				continue
			}
			if err := env.Set(value.Str(k), value.Str(v)); err != nil {
				return err
			}
		}
		return l.Declare("env", env)
	})
	return err
}
