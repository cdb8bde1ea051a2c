// Package catalog loads the list of programs the launcher offers.
package catalog

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"github.com/emcomm-tools/et-launcher/internal/config"
	"github.com/emcomm-tools/et-launcher/internal/fault"
)

// App is one launchable entry. Terminal entries hand Command to the
// configured terminal as a single argument; Direct entries are split on
// whitespace and started without a terminal.
type App struct {
	Name    string `toml:"name" yaml:"name" json:"name"`
	Label   string `toml:"label" yaml:"label,omitempty" json:"label"`
	Command string `toml:"command" yaml:"command" json:"command"`
	Direct  bool   `toml:"direct,omitempty" yaml:"direct,omitempty" json:"direct"`
	Capture bool   `toml:"capture,omitempty" yaml:"capture,omitempty" json:"capture"`
}

// Title returns the label, falling back to the name.
func (a App) Title() string {
	if a.Label != "" {
		return a.Label
	}
	return a.Name
}

// Argv splits a direct command into program and arguments.
func (a App) Argv() []string {
	return strings.Fields(a.Command)
}

type Catalog struct {
	Apps []App `toml:"app" yaml:"apps" json:"apps"`
}

// Default returns the built-in catalog used when no catalog file exists.
func Default() Catalog {
	return Catalog{Apps: []App{
		{Name: "user", Label: "Update User Info", Command: "et-user"},
		{Name: "mode", Label: "Select Mode", Command: "et-mode"},
		{Name: "radio", Label: "Select Radio", Command: "et-radio"},
		{Name: "winlink", Label: "Winlink Client", Command: "et-winlink"},
		{Name: "js8call", Label: "JS8Call", Command: "js8call", Direct: true},
		{Name: "fldigi", Label: "Fldigi", Command: "fldigi", Direct: true},
	}}
}

// Find returns the entry with the given name.
func (c Catalog) Find(name string) (App, bool) {
	for _, a := range c.Apps {
		if a.Name == name {
			return a, true
		}
	}
	return App{}, false
}

// Load reads the catalog at path, as YAML when the extension is .yaml or
// .yml and TOML otherwise. A missing file yields Default. Entries without a
// command are dropped with a warning.
func Load(path string, log zerolog.Logger) (Catalog, error) {
	c, err := load(path, log)
	if fault.Is(err, fault.NotFound) {
		return Default(), nil
	}
	return c, err
}

// LoadFirst loads the first of paths that exists, or Default when none do.
func LoadFirst(log zerolog.Logger, paths ...string) (Catalog, error) {
	for _, path := range paths {
		c, err := load(path, log)
		if fault.Is(err, fault.NotFound) {
			continue
		}
		return c, err
	}
	return Default(), nil
}

func load(path string, log zerolog.Logger) (Catalog, error) {
	content, err := config.ReadText(path)
	if err != nil {
		return Catalog{}, err
	}

	var c Catalog
	if isYAML(path) {
		if err := yaml.Unmarshal([]byte(content), &c); err != nil {
			return Catalog{}, fault.New(fault.Decode, "read", path, err)
		}
	} else {
		md, err := toml.Decode(content, &c)
		if err != nil {
			return Catalog{}, fault.New(fault.Decode, "read", path, err)
		}
		for _, key := range md.Undecoded() {
			log.Warn().Str("path", path).Str("key", key.String()).Msg("unknown catalog key")
		}
	}

	apps := c.Apps[:0]
	for _, a := range c.Apps {
		if strings.TrimSpace(a.Command) == "" {
			log.Warn().Str("path", path).Str("app", a.Name).Msg("catalog entry has no command, skipping")
			continue
		}
		if a.Name == "" {
			a.Name = a.Command
		}
		apps = append(apps, a)
	}
	c.Apps = apps
	return c, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Save writes c to path in the format its extension selects.
func Save(path string, c Catalog) error {
	if isYAML(path) {
		data, err := yaml.Marshal(c)
		if err != nil {
			return fault.New(fault.Encode, "write", path, err)
		}
		return config.WriteText(path, string(data))
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fault.New(fault.Encode, "write", path, err)
	}
	return config.WriteText(path, buf.String())
}
