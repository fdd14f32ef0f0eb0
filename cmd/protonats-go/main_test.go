package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()

	rootCmd.SetArgs([]string{
		"generate",
		"--input", filepath.Join("..", "..", "examples", "people", "people.proto"),
		"--output", dir,
		"--notifications", "generate",
	})
	require.NoError(t, rootCmd.Execute())

	code, err := os.ReadFile(filepath.Join(dir, "people_nats.pb.go"))
	require.NoError(t, err)
	assert.Contains(t, string(code), "func RegisterPeopleServer(")
	assert.Contains(t, string(code), "func (c *PeopleClient) SubscribeUpdates(")
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "protonats.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input: protos
output: gen
notifications: skip
`), 0644))

	t.Cleanup(func() {
		configPath, output, notifications = "", "", ""
	})

	cmd := &cobra.Command{}
	addInputFlags(cmd)
	cmd.Flags().StringVar(&output, "output", "", "")
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--notifications", "reject"}))

	conf, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "protos"), conf.Input)
	assert.Equal(t, filepath.Join(dir, "gen"), conf.Output)
	assert.Equal(t, "reject", conf.Notifications)
}

func TestInspectCommand(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	defer func() {
		os.Stdout = stdout
	}()

	rootCmd.SetArgs([]string{
		"inspect",
		"--input", filepath.Join("..", "..", "examples", "people", "people.proto"),
		"--notifications", "skip",
	})
	err = rootCmd.Execute()
	w.Close()
	os.Stdout = stdout
	require.NoError(t, err)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), "nats.proto.>")
	assert.Contains(t, string(out), "People")
	assert.Contains(t, string(out), "nats.proto.get.person")
	assert.Contains(t, string(out), "(skipped)")
}
