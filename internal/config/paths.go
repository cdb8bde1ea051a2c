package config

import (
	"os"
	"path/filepath"

	"github.com/emcomm-tools/et-launcher/internal/fault"
)

const (
	// AppDir is the directory under the configuration root that holds every
	// document this application owns.
	AppDir = "emcomm-tools"

	// DefaultRadioFile is written by the radio selector, never by us.
	DefaultRadioFile = "/opt/emcomm-tools/conf/radios.d/active-radio.json"

	modeFile     = "et-mode"
	userFile     = "user.json"
	settingsFile = "et-launcher.json"
	catalogFile  = "et-launcher-apps.toml"
	catalogYAML  = "et-launcher-apps.yaml"
	logFile      = "et-launcher.log"
	lockFile     = "et-launcher.lock"
	secretFile   = "et-launcher.secret"
)

// Paths holds the resolved document locations.
type Paths struct {
	Root      string
	RadioFile string
}

// DefaultPaths resolves the per-user configuration root.
func DefaultPaths() (Paths, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fault.New(fault.HomeUnresolved, "resolve config root", "", err)
	}
	return NewPaths(root), nil
}

// NewPaths returns Paths rooted at root with the default radio descriptor.
func NewPaths(root string) Paths {
	return Paths{Root: root, RadioFile: DefaultRadioFile}
}

func (p Paths) Dir() string      { return filepath.Join(p.Root, AppDir) }
func (p Paths) Mode() string     { return filepath.Join(p.Dir(), modeFile) }
func (p Paths) User() string     { return filepath.Join(p.Dir(), userFile) }
func (p Paths) Settings() string { return filepath.Join(p.Dir(), settingsFile) }
func (p Paths) Catalog() string  { return filepath.Join(p.Dir(), catalogFile) }
func (p Paths) Log() string      { return filepath.Join(p.Dir(), logFile) }
func (p Paths) Lock() string     { return filepath.Join(p.Dir(), lockFile) }
func (p Paths) Secret() string   { return filepath.Join(p.Dir(), secretFile) }

// CatalogYAML is consulted when the TOML catalog is absent.
func (p Paths) CatalogYAML() string { return filepath.Join(p.Dir(), catalogYAML) }
