package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/rxscripts/internal/config"
	"github.com/hpungsan/rxscripts/internal/db"
	"github.com/hpungsan/rxscripts/internal/ops"
	"github.com/hpungsan/rxscripts/internal/script"
)

// testDeps returns Deps with a temp journal and output directories.
func testDeps(t *testing.T) ops.Deps {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.OutputRoot = filepath.Join(tmpDir, "saved")
	cfg.SavedDir = filepath.Join(tmpDir, "saved")

	return ops.Deps{DB: database, Config: cfg, Logger: log.New(io.Discard, "", 0)}
}

// writeContainer writes a container holding "Main" and "Scene_Title".
func writeContainer(t *testing.T) string {
	t.Helper()
	main, err := script.NewRecordValue(1, "Main", []byte("def start\nend\n"), -1)
	require.NoError(t, err)
	title, err := script.NewRecordValue(2, "Scene_Title", []byte("class Scene_Title\n  def main; end\nend\n"), -1)
	require.NoError(t, err)
	data, err := script.New(main, title).Encode()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "Scripts.rxdata")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// run executes the CLI with args and returns what it printed.
func run(t *testing.T, deps ops.Deps, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newCLIApp(deps)
	app.Writer = &buf
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"rxscripts"}, args...))
	return buf.String(), err
}

func TestCLIExtract(t *testing.T) {
	deps := testDeps(t)
	container := writeContainer(t)
	out := filepath.Join(t.TempDir(), "out")

	stdout, err := run(t, deps, "extract", "--out", out, container)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Extracted 2 scripts to "+out)
	assert.FileExists(t, filepath.Join(out, "Scene_Title.rb"))

	stdout, err = run(t, deps, "extract", "--json", "--out", out, container)
	require.NoError(t, err)
	var output ops.ExtractAllOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &output))
	assert.Equal(t, 2, output.Written)
}

func TestCLISave(t *testing.T) {
	deps := testDeps(t)
	container := writeContainer(t)

	stdout, err := run(t, deps, "save", container, "Main")
	require.NoError(t, err)
	path := filepath.Join(deps.Config.SavedDir, "Main.rb")
	assert.Contains(t, stdout, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "def start\nend\n", string(data))
}

func TestCLIShow(t *testing.T) {
	deps := testDeps(t)
	container := writeContainer(t)

	stdout, err := run(t, deps, "show", container, "Main")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "=== Main ===\ndef start\n"), stdout)

	stdout, err = run(t, deps, "show", "--index", "1", container)
	require.NoError(t, err)
	assert.Contains(t, stdout, "=== Scene_Title ===")

	_, err = run(t, deps, "show", container, "Nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[NOT_FOUND]")
}

func TestCLISearch(t *testing.T) {
	deps := testDeps(t)
	container := writeContainer(t)

	stdout, err := run(t, deps, "search", container, "main")
	require.NoError(t, err)
	assert.Contains(t, stdout, "'main' is defined in:")
	assert.Contains(t, stdout, "Scene_Title (line 2)")

	stdout, err = run(t, deps, "search", "--precise", container, "missing")
	require.NoError(t, err)
	assert.Contains(t, stdout, "'missing' was not found. 2 identifiers are defined:")
	assert.Contains(t, stdout, "  start\n")
}

func TestCLIInject(t *testing.T) {
	deps := testDeps(t)
	container := writeContainer(t)
	edits := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(edits, "Main.rb"), []byte("def start; end\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(edits, "Other.rb"), []byte("x"), 0644))

	stdout, err := run(t, deps, "inject", container, filepath.Join(edits, "*.rb"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "Updated: 1  Unchanged: 0  Not found: 1  Errors: 0")
	assert.Contains(t, stdout, "Scripts_updated.rxdata")

	_, err = run(t, deps, "inject", "--strict", container, filepath.Join(edits, "*.rb"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 files not injected")

	_, err = run(t, deps, "inject", "--output", container, container, filepath.Join(edits, "Main.rb"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[INVALID_REQUEST]")

	_, err = run(t, deps, "inject", container, filepath.Join(edits, "*.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[INVALID_REQUEST]")
}

func TestCLIList(t *testing.T) {
	deps := testDeps(t)
	container := writeContainer(t)

	stdout, err := run(t, deps, "list", container)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Scene_Title")
	assert.Contains(t, stdout, "2 scripts, 0 other entries, 0 undecodable")
}

func TestCLIHistory(t *testing.T) {
	deps := testDeps(t)
	container := writeContainer(t)

	_, err := run(t, deps, "save", container, "Main")
	require.NoError(t, err)

	stdout, err := run(t, deps, "history", "--json", "--container", container)
	require.NoError(t, err)
	var output ops.HistoryOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &output))
	require.Len(t, output.Runs, 1)
	assert.Equal(t, db.OpExtractOne, output.Runs[0].Op)

	deps.DB = nil
	_, err = run(t, deps, "history")
	require.Error(t, err)
}

func TestCLIErrorHandling(t *testing.T) {
	deps := testDeps(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing args", args: []string{"extract"}, want: "usage: rxscripts extract"},
		{name: "missing container", args: []string{"list", filepath.Join(t.TempDir(), "none.rxdata")}, want: "[CONTAINER_LOAD_FAILED]"},
		{name: "tiles without images", args: []string{"tiles"}, want: "[INVALID_REQUEST]"},
		{name: "serve bad port", args: []string{"serve", "--port", "0", writeContainer(t)}, want: "port must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, deps, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"rxscripts"}, expected: false},
		{name: "extract command", args: []string{"rxscripts", "extract"}, expected: true},
		{name: "tiles command", args: []string{"rxscripts", "tiles"}, expected: true},
		{name: "help flag", args: []string{"rxscripts", "--help"}, expected: true},
		{name: "version flag", args: []string{"rxscripts", "--version"}, expected: true},
		{name: "unknown command", args: []string{"rxscripts", "compile"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()
			os.Args = tt.args

			assert.Equal(t, tt.expected, isCLIMode())
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		args     []string
		expected bool
	}{
		{args: []string{"rxscripts"}, expected: false},
		{args: []string{"rxscripts", "help"}, expected: true},
		{args: []string{"rxscripts", "-v"}, expected: true},
		{args: []string{"rxscripts", "list"}, expected: false},
	}

	for _, tt := range tests {
		oldArgs := os.Args
		os.Args = tt.args
		got := isHelpOrVersion()
		os.Args = oldArgs
		assert.Equal(t, tt.expected, got, "args %v", tt.args)
	}
}

func TestJoinInts(t *testing.T) {
	assert.Equal(t, "", joinInts(nil))
	assert.Equal(t, "3", joinInts([]int{3}))
	assert.Equal(t, "3, 17", joinInts([]int{3, 17}))
}
