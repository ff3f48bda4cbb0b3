package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the root command with args and captures output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// isolateEnv points the data dir and user config at temp directories so
// tests never touch the real ~/.kensaku or ~/.config/kensaku.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("KENSAKU_DATA_DIR", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

// writeDocs creates a directory with Japanese text files to index.
func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestIndexCommand(t *testing.T) {
	isolateEnv(t)
	dir := writeDocs(t, map[string]string{
		"wagahai.txt": "吾輩は猫である。名前はまだ無い。",
		"ginga.txt":   "カムパネルラが手をあげました。",
	})

	out, err := runCommand(t, "index", dir, "--no-tui")
	require.NoError(t, err)
	assert.Contains(t, out, "Complete: 2 files")
}

func TestSearchCommand_Text(t *testing.T) {
	isolateEnv(t)
	dir := writeDocs(t, map[string]string{
		"wagahai.txt": "吾輩は猫である。名前はまだ無い。",
	})

	_, err := runCommand(t, "index", dir, "--no-tui")
	require.NoError(t, err)

	out, err := runCommand(t, "search", "猫")
	require.NoError(t, err)
	assert.Contains(t, out, "wagahai.txt")
	assert.Contains(t, out, "1 result(s)")
}

func TestSearchCommand_JSON(t *testing.T) {
	isolateEnv(t)
	dir := writeDocs(t, map[string]string{
		"ginga.txt": "カムパネルラが手をあげました。",
	})

	_, err := runCommand(t, "index", dir, "--no-tui")
	require.NoError(t, err)

	out, err := runCommand(t, "search", "カムパネルラ", "--format", "json")
	require.NoError(t, err)

	var results []searchJSONResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Path, "ginga.txt")
	assert.Equal(t, 1, results[0].Line)
	assert.NotEmpty(t, results[0].Snippet)
}

func TestSearchCommand_NoResults(t *testing.T) {
	isolateEnv(t)
	dir := writeDocs(t, map[string]string{
		"memo.txt": "今日は晴れです。",
	})

	_, err := runCommand(t, "index", dir, "--no-tui")
	require.NoError(t, err)

	out, err := runCommand(t, "search", "存在しない単語")
	require.NoError(t, err)
	assert.Contains(t, out, "No results")
}

func TestSearchCommand_InvalidFormat(t *testing.T) {
	isolateEnv(t)

	_, err := runCommand(t, "search", "猫", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestListCommand(t *testing.T) {
	isolateEnv(t)
	dir := writeDocs(t, map[string]string{
		"a.txt": "春はあけぼの。",
		"b.txt": "夏は夜。",
	})

	_, err := runCommand(t, "index", dir, "--no-tui")
	require.NoError(t, err)

	out, err := runCommand(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "b.txt")
	assert.Contains(t, out, "2 of 2")
}

func TestListCommand_Empty(t *testing.T) {
	isolateEnv(t)

	out, err := runCommand(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No files indexed")
}

func TestDeleteCommand(t *testing.T) {
	isolateEnv(t)
	dir := writeDocs(t, map[string]string{
		"memo.txt": "雨ニモマケズ風ニモマケズ",
	})

	_, err := runCommand(t, "index", dir, "--no-tui")
	require.NoError(t, err)

	out, err := runCommand(t, "delete", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 entry")

	out, err = runCommand(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No files indexed")
}

func TestDeleteCommand_NothingIndexed(t *testing.T) {
	isolateEnv(t)

	out, err := runCommand(t, "delete", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No entries were indexed")
}

func TestUpdateCommand(t *testing.T) {
	isolateEnv(t)
	dir := writeDocs(t, map[string]string{
		"memo.txt": "最初の内容です。",
	})

	_, err := runCommand(t, "index", dir, "--no-tui")
	require.NoError(t, err)

	path := filepath.Join(dir, "memo.txt")
	require.NoError(t, os.WriteFile(path, []byte("銀河鉄道の夜を読みました。"), 0o644))

	out, err := runCommand(t, "update", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Reindexed")

	out, err = runCommand(t, "search", "銀河")
	require.NoError(t, err)
	assert.Contains(t, out, "memo.txt")
}

func TestUpdateCommand_RemovedFile(t *testing.T) {
	isolateEnv(t)
	dir := writeDocs(t, map[string]string{
		"memo.txt": "消える運命の文書です。",
	})

	_, err := runCommand(t, "index", dir, "--no-tui")
	require.NoError(t, err)

	path := filepath.Join(dir, "memo.txt")
	require.NoError(t, os.Remove(path))

	out, err := runCommand(t, "update", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed index entry")
}

func TestStatsCommand(t *testing.T) {
	isolateEnv(t)
	dir := writeDocs(t, map[string]string{
		"memo.txt": "統計を確認します。",
	})

	_, err := runCommand(t, "index", dir, "--no-tui")
	require.NoError(t, err)

	out, err := runCommand(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents: 1")
	assert.Contains(t, out, "sqlite")

	out, err = runCommand(t, "stats", "--json")
	require.NoError(t, err)

	var stats StatsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, "sqlite", stats.Backend)
}
