package catalog

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emcomm-tools/et-launcher/internal/config"
	"github.com/emcomm-tools/et-launcher/internal/fault"
)

func TestLoadMissingReturnsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "et-launcher-apps.toml")

	c, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.NoFileExists(t, path, "defaults are not persisted")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "et-launcher-apps.toml")
	require.NoError(t, config.WriteText(path, `
[[app]]
name = "pat"
label = "Pat Winlink"
command = "pat http"
direct = true
capture = true

[[app]]
name = "broken"

[[app]]
command = "et-radio"
colour = "red"
`))

	c, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, c.Apps, 2)

	pat, ok := c.Find("pat")
	require.True(t, ok)
	assert.Equal(t, "Pat Winlink", pat.Title())
	assert.Equal(t, []string{"pat", "http"}, pat.Argv())
	assert.True(t, pat.Direct)
	assert.True(t, pat.Capture)

	radio, ok := c.Find("et-radio")
	require.True(t, ok, "name falls back to command")
	assert.Equal(t, "et-radio", radio.Title())

	_, ok = c.Find("broken")
	assert.False(t, ok)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "et-launcher-apps.toml")
	require.NoError(t, config.WriteText(path, "[[app]\nname = "))

	_, err := Load(path, zerolog.Nop())
	assert.True(t, fault.Is(err, fault.Decode))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "et-launcher-apps.toml")

	require.NoError(t, Save(path, Default()))
	c, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "et-launcher-apps.yaml")
	require.NoError(t, config.WriteText(path, `apps:
  - name: varac
    label: VarAC
    command: varac
    direct: true
  - name: empty
`))

	c, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, c.Apps, 1)
	assert.Equal(t, "VarAC", c.Apps[0].Title())
	assert.True(t, c.Apps[0].Direct)

	require.NoError(t, config.WriteText(path, "apps: [\n"))
	_, err = Load(path, zerolog.Nop())
	assert.True(t, fault.Is(err, fault.Decode))
}

func TestSaveYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "et-launcher-apps.yml")

	require.NoError(t, Save(path, Default()))
	c, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadFirst(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "et-launcher-apps.toml")
	yamlPath := filepath.Join(dir, "et-launcher-apps.yaml")

	c, err := LoadFirst(zerolog.Nop(), tomlPath, yamlPath)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	require.NoError(t, config.WriteText(yamlPath, "apps:\n  - name: yaml-only\n    command: et-mode\n"))
	c, err = LoadFirst(zerolog.Nop(), tomlPath, yamlPath)
	require.NoError(t, err)
	_, ok := c.Find("yaml-only")
	assert.True(t, ok)

	require.NoError(t, Save(tomlPath, Catalog{Apps: []App{{Name: "toml-first", Command: "et-user"}}}))
	c, err = LoadFirst(zerolog.Nop(), tomlPath, yamlPath)
	require.NoError(t, err)
	_, ok = c.Find("toml-first")
	assert.True(t, ok)
}
