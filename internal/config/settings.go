package config

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/emcomm-tools/et-launcher/internal/fault"
)

// Settings configures how targets are launched and where coordinates come
// from (et-launcher.json).
type Settings struct {
	TerminalCommand string `json:"terminal_command"`
	TerminalArg     string `json:"terminal_arg"`
	SysInfoCmd      string `json:"sys_info_cmd"`
	SysInfoArg      string `json:"sys_info_arg"`
}

// DefaultSettings returns the settings written on first run.
func DefaultSettings() Settings {
	return Settings{
		TerminalCommand: "/usr/bin/mlterm",
		TerminalArg:     "-e",
		SysInfoCmd:      "et-system-info",
		SysInfoArg:      "et-gps",
	}
}

// SettingsStore loads launcher settings, initializing the document with
// defaults the first time it is read.
type SettingsStore struct {
	path string
	mu   sync.Mutex
	log  zerolog.Logger
}

func NewSettingsStore(p Paths, log zerolog.Logger) *SettingsStore {
	return &SettingsStore{
		path: p.Settings(),
		log:  log.With().Str("component", "config").Logger(),
	}
}

// Load returns the stored settings. When the document is absent the defaults
// are persisted before they are returned, so the file exists afterwards.
func (s *SettingsStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := Read[Settings](s.path)
	if err == nil {
		return settings, nil
	}
	if !fault.Is(err, fault.NotFound) {
		return Settings{}, err
	}

	settings = DefaultSettings()
	if err := Write(s.path, settings); err != nil {
		return Settings{}, err
	}
	s.log.Info().Str("path", s.path).Msg("initialized default launcher settings")
	return settings, nil
}

// Save replaces the stored settings.
func (s *SettingsStore) Save(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Write(s.path, settings)
}

func (s *SettingsStore) Path() string { return s.path }
