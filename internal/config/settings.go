package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds the user-overridable defaults persisted in
// <state_dir>/config.yaml. Every field has a hardcoded fallback (taken from
// the original implementation this system was modeled on) applied when the
// file is absent or a field is left zero-valued.
type Settings struct {
	MaxDepth            int           `yaml:"max_depth,omitempty"`
	InspectMaxDepth     int           `yaml:"inspect_max_depth,omitempty"`
	MaxCollectionItems  int           `yaml:"max_collection_items,omitempty"`
	MaxStringLength     int           `yaml:"max_string_length,omitempty"`
	MaxValueLength      int           `yaml:"max_value_length,omitempty"`
	EvalTimeout         time.Duration `yaml:"eval_timeout,omitempty"`
	AcceptTimeout       time.Duration `yaml:"accept_timeout,omitempty"`
	SocketTimeout       time.Duration `yaml:"socket_timeout,omitempty"`
	HistoryEnabled      bool          `yaml:"history_enabled"`
	LogLevel            string        `yaml:"log_level,omitempty"`
}

// Defaults returns the hardcoded fallback values. These match the module
// constants of the Python implementation this system's behavior is modeled
// on (SOCKET_TIMEOUT, EVAL_TIMEOUT, MAX_VALUE_LENGTH, MAX_COLLECTION_ITEMS)
// plus MAX_DEPTH=10 from its object inspector.
func Defaults() Settings {
	return Settings{
		MaxDepth:           2,
		InspectMaxDepth:    10,
		MaxCollectionItems: 50,
		MaxStringLength:    200,
		MaxValueLength:     1000,
		EvalTimeout:        5 * time.Second,
		AcceptTimeout:      1 * time.Second,
		SocketTimeout:      30 * time.Second,
		HistoryEnabled:     true,
		LogLevel:           "info",
	}
}

// merge fills zero-valued fields of s from d.
func (s Settings) merge(d Settings) Settings {
	if s.MaxDepth == 0 {
		s.MaxDepth = d.MaxDepth
	}
	if s.InspectMaxDepth == 0 {
		s.InspectMaxDepth = d.InspectMaxDepth
	}
	if s.MaxCollectionItems == 0 {
		s.MaxCollectionItems = d.MaxCollectionItems
	}
	if s.MaxStringLength == 0 {
		s.MaxStringLength = d.MaxStringLength
	}
	if s.MaxValueLength == 0 {
		s.MaxValueLength = d.MaxValueLength
	}
	if s.EvalTimeout == 0 {
		s.EvalTimeout = d.EvalTimeout
	}
	if s.AcceptTimeout == 0 {
		s.AcceptTimeout = d.AcceptTimeout
	}
	if s.SocketTimeout == 0 {
		s.SocketTimeout = d.SocketTimeout
	}
	if s.LogLevel == "" {
		s.LogLevel = d.LogLevel
	}
	return s
}

// LoadSettings reads config.yaml from stateDir, filling any unset field with
// its hardcoded default. A missing file is not an error: it yields the pure
// defaults and is not written until something is saved explicitly.
func LoadSettings(stateDir string) (Settings, error) {
	path := SettingsPath(stateDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return Settings{}, err
	}
	s := Defaults()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}
	return s.merge(Defaults()), nil
}

// SaveSettings writes s to <state_dir>/config.yaml, creating the directory
// if needed.
func SaveSettings(stateDir string, s Settings) error {
	if err := EnsureStateDir(stateDir); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(stateDir, "config.yaml"), data, 0644)
}
