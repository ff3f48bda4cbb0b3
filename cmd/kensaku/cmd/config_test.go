package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kensakudev/kensaku/internal/config"
)

func TestConfigPathCommand(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	out, err := runCommand(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(xdg, "kensaku", "config.yaml"))
}

func TestConfigInitCommand(t *testing.T) {
	isolateEnv(t)

	out, err := runCommand(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")

	data, err := os.ReadFile(config.GetUserConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "data_dir")
}

func TestConfigInitCommand_ExistingWithoutForce(t *testing.T) {
	isolateEnv(t)

	_, err := runCommand(t, "config", "init")
	require.NoError(t, err)

	out, err := runCommand(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestConfigInitCommand_Project(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	out, err := runCommand(t, "config", "init", "--project")
	require.NoError(t, err)
	assert.Contains(t, out, "Created project configuration")
	assert.FileExists(t, filepath.Join(dir, ".kensaku.yaml"))
}

func TestConfigShowCommand_Defaults(t *testing.T) {
	isolateEnv(t)

	out, err := runCommand(t, "config", "show", "--source", "defaults")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: sqlite")
	assert.Contains(t, out, "default_limit: 5")
}

func TestConfigShowCommand_InvalidSource(t *testing.T) {
	isolateEnv(t)

	_, err := runCommand(t, "config", "show", "--source", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid source")
}

func TestConfigShowCommand_UserMissing(t *testing.T) {
	isolateEnv(t)

	out, err := runCommand(t, "config", "show", "--source", "user")
	require.NoError(t, err)
	assert.Contains(t, out, "No user configuration file found")
}
