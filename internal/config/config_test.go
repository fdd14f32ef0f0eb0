package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbirk/protonats/internal/gen/go_gen"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "protonats.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input: proto
import_paths:
  - third_party
  - /usr/include
output: gen
base_package: example.com/gen
notifications: skip
`), 0o644))

	conf, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "proto"), conf.Input)
	assert.Equal(t, filepath.Join(dir, "gen"), conf.Output)
	assert.Equal(t, []string{filepath.Join(dir, "third_party"), "/usr/include"}, conf.ImportPaths)
	assert.NoError(t, conf.Validate())

	assert.Equal(t, "example.com/gen", conf.ParseOptions().GoBasePackage)
	assert.Equal(t, go_gen.NotificationsSkip, conf.GenerateOptions(nil).Notifications)
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protonats.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input: [proto"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)

	var confErr *ConfigError
	require.True(t, errors.As(err, &confErr))
	assert.Equal(t, path, confErr.Path)
}

func TestValidate(t *testing.T) {
	conf := &Config{Notifications: "sometimes"}
	err := conf.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input is required")
	assert.Contains(t, err.Error(), "output is required")
	assert.Contains(t, err.Error(), "sometimes")

	conf = &Config{Input: "a", Output: "b"}
	assert.NoError(t, conf.Validate())
	assert.Equal(t, go_gen.NotificationsGenerate, conf.GenerateOptions(nil).Notifications)
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", Find(dir))

	path := filepath.Join(dir, "protonats.yml")
	require.NoError(t, os.WriteFile(path, []byte("input: x\n"), 0o644))
	assert.Equal(t, path, Find(dir))
}
