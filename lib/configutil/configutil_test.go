package configutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Term  string `json:"term"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

func (c *testConfig) SetDefaults() {
	if c.Term == "" {
		c.Term = "202008"
	}
}

func (c *testConfig) Validate() error {
	if c.End <= c.Start {
		return errors.New("end must be greater than start")
	}
	return nil
}

func writeFile(t *testing.T, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{
		// comments are allowed
		start: 80000,
		end: 80010,
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{end: 80500}`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "202008", cfg.Term)
	require.Equal(t, 80000, cfg.Start)
	require.Equal(t, 80500, cfg.End)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigValidates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{start: 10, end: 5}`)

	_, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.ErrorContains(t, err, "end must be greater than start")
}
