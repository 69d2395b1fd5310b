package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"douyin-collector/internal/model"
	"douyin-collector/internal/store"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	clearYes = false
	err := rootCmd.Execute()
	return out.String(), err
}

func writeSettings(t *testing.T, dsn string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "settings.yaml")
	body := "LOG_LEVEL: error\nDATABASE:\n  dsn: " + dsn + "\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestCLI_QueryCommands(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")
	st, err := store.OpenSQLite(dsn)
	require.NoError(t, err)
	_, err = st.UpsertCreator(context.Background(), model.Creator{UserID: "u1", Username: "小明", FollowerCount: 123456})
	require.NoError(t, err)
	require.NoError(t, st.Close())
	settings := writeSettings(t, dsn)

	out, err := runCLI(t, "list", "--config", settings, "--rules", "")
	require.NoError(t, err)
	assert.Contains(t, out, "小明")
	assert.Contains(t, out, "12.3万")
	assert.Contains(t, out, "共 1 位达人")

	out, err = runCLI(t, "search", "不存在", "--config", settings, "--rules", "")
	require.NoError(t, err)
	assert.Contains(t, out, "共 0 位达人")

	out, err = runCLI(t, "stats", "--config", settings, "--rules", "")
	require.NoError(t, err)
	assert.Contains(t, out, "达人 1")

	path := filepath.Join(t.TempDir(), "out.json")
	_, err = runCLI(t, "export", path, "--config", settings, "--rules", "")
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)

	_, err = runCLI(t, "clear", "--config", settings, "--rules", "")
	assert.Error(t, err)
	_, err = runCLI(t, "clear", "--yes", "--config", settings, "--rules", "")
	require.NoError(t, err)
	out, err = runCLI(t, "stats", "--config", settings, "--rules", "")
	require.NoError(t, err)
	assert.Contains(t, out, "达人 0")
}

func TestCLI_MissingExplicitConfig(t *testing.T) {
	_, err := runCLI(t, "version", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b", oneLine(" a\n  b "))
	long := oneLine(string(bytes.Repeat([]byte("字"), 50)))
	assert.Equal(t, 41, len([]rune(long)))
}
