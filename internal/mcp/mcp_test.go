package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/rxscripts/internal/config"
	"github.com/hpungsan/rxscripts/internal/db"
	"github.com/hpungsan/rxscripts/internal/errors"
	"github.com/hpungsan/rxscripts/internal/marshal"
	"github.com/hpungsan/rxscripts/internal/ops"
	"github.com/hpungsan/rxscripts/internal/script"
)

// testSetup creates a temporary journal, config and container for testing.
// The container holds "Main" (defines start) and "Scene Map" (defines update).
func testSetup(t *testing.T) (ops.Deps, string) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.OutputRoot = filepath.Join(tmpDir, "saved")
	cfg.SavedDir = filepath.Join(tmpDir, "saved")

	var values []marshal.Value
	for i, s := range []struct{ name, source string }{
		{"Main", "def start\nend\n"},
		{"Scene Map", "class Scene_Map\n  def update\n  end\nend\n"},
	} {
		v, err := script.NewRecordValue(int64(i+1), s.name, []byte(s.source), -1)
		if err != nil {
			t.Fatalf("failed to build record: %v", err)
		}
		values = append(values, v)
	}
	data, err := script.New(values...).Encode()
	if err != nil {
		t.Fatalf("failed to encode container: %v", err)
	}
	container := filepath.Join(tmpDir, "Scripts.rxdata")
	if err := os.WriteFile(container, data, 0644); err != nil {
		t.Fatalf("failed to write container: %v", err)
	}

	cache, err := script.NewCache(cfg.CacheSize)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	return ops.Deps{
		DB:     database,
		Config: cfg,
		Cache:  cache,
		Logger: log.New(io.Discard, "", 0),
	}, container
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleList(t *testing.T) {
	deps, container := testSetup(t)
	h := NewHandlers(deps)

	result, err := h.HandleList(context.Background(), makeRequest(map[string]any{"container": container}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := parseOutput(t, result)

	if output["records"].(float64) != 2 {
		t.Errorf("records = %v, want 2", output["records"])
	}
	entries := output["entries"].([]any)
	second := entries[1].(map[string]any)
	if second["safe_name"] != "Scene Map" {
		t.Errorf("safe_name = %v, want %q", second["safe_name"], "Scene Map")
	}
}

func TestHandleShow(t *testing.T) {
	deps, container := testSetup(t)
	h := NewHandlers(deps)
	ctx := context.Background()

	tests := []struct {
		name     string
		args     map[string]any
		wantCode string
		wantName string
	}{
		{
			name:     "by index",
			args:     map[string]any{"container": container, "index": 1},
			wantName: "Scene Map",
		},
		{
			name:     "by name",
			args:     map[string]any{"container": container, "name": "Main"},
			wantName: "Main",
		},
		{
			name:     "index out of range",
			args:     map[string]any{"container": container, "index": 9},
			wantCode: "NOT_FOUND",
		},
		{
			name:     "unknown name",
			args:     map[string]any{"container": container, "name": "Nope"},
			wantCode: "NOT_FOUND",
		},
		{
			name:     "no address",
			args:     map[string]any{"container": container},
			wantCode: "INVALID_REQUEST",
		},
		{
			name:     "bad argument type",
			args:     map[string]any{"container": container, "index": "one"},
			wantCode: "INVALID_REQUEST",
		},
		{
			name:     "missing container",
			args:     map[string]any{"container": container + ".missing", "name": "Main"},
			wantCode: "CONTAINER_LOAD_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleShow(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantCode != "" {
				if !result.IsError {
					t.Fatalf("expected error %s, got success", tt.wantCode)
				}
				assertErrorCode(t, result, tt.wantCode)
				return
			}
			output := parseOutput(t, result)
			if output["name"] != tt.wantName {
				t.Errorf("name = %v, want %q", output["name"], tt.wantName)
			}
			if output["source"] == "" {
				t.Error("expected source text")
			}
		})
	}
}

func TestHandleExtractAndSave(t *testing.T) {
	deps, container := testSetup(t)
	h := NewHandlers(deps)
	ctx := context.Background()
	outDir := filepath.Join(t.TempDir(), "out")

	result, err := h.HandleExtract(ctx, makeRequest(map[string]any{"container": container, "output_dir": outDir}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := parseOutput(t, result)
	if output["written"].(float64) != 2 {
		t.Errorf("written = %v, want 2", output["written"])
	}
	if _, err := os.Stat(filepath.Join(outDir, "Scene Map.rb")); err != nil {
		t.Errorf("expected extracted file: %v", err)
	}

	result, err = h.HandleSave(ctx, makeRequest(map[string]any{"container": container, "name": "Main"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output = parseOutput(t, result)
	want := filepath.Join(deps.Config.SavedDir, "Main.rb")
	if output["path"] != want {
		t.Errorf("path = %v, want %s", output["path"], want)
	}
}

func TestHandleSearch(t *testing.T) {
	deps, container := testSetup(t)
	h := NewHandlers(deps)
	ctx := context.Background()

	result, err := h.HandleSearch(ctx, makeRequest(map[string]any{"container": container, "identifier": "update"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := parseOutput(t, result)
	matches := output["matches"].([]any)
	if len(matches) != 1 || matches[0].(map[string]any)["name"] != "Scene Map" {
		t.Errorf("matches = %v, want Scene Map only", matches)
	}

	result, err = h.HandleSearch(ctx, makeRequest(map[string]any{"container": container, "identifier": "missing", "precise": true}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output = parseOutput(t, result)
	ids := fmt.Sprint(output["identifiers"])
	if !strings.Contains(ids, "start") || !strings.Contains(ids, "update") {
		t.Errorf("identifiers = %v, want start and update", ids)
	}
}

func TestHandleInjectAndHistory(t *testing.T) {
	deps, container := testSetup(t)
	h := NewHandlers(deps)
	ctx := context.Background()

	edits := t.TempDir()
	if err := os.WriteFile(filepath.Join(edits, "Main.rb"), []byte("def start; 1; end\n"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := h.HandleInject(ctx, makeRequest(map[string]any{
		"container": container,
		"files":     []any{filepath.Join(edits, "*.rb")},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := parseOutput(t, result)
	tally := output["tally"].(map[string]any)
	if tally["updated"].(float64) != 1 {
		t.Errorf("updated = %v, want 1", tally["updated"])
	}
	if !strings.HasSuffix(output["output_path"].(string), "Scripts_updated.rxdata") {
		t.Errorf("output_path = %v", output["output_path"])
	}

	result, err = h.HandleInject(ctx, makeRequest(map[string]any{
		"container": container,
		"files":     []any{filepath.Join(edits, "*.txt")},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")

	result, err = h.HandleHistory(ctx, makeRequest(map[string]any{"container": container}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output = parseOutput(t, result)
	runs := output["runs"].([]any)
	if len(runs) != 1 || runs[0].(map[string]any)["op"] != "inject" {
		t.Errorf("runs = %v, want one inject run", runs)
	}
}

func TestServerRegistration(t *testing.T) {
	deps, _ := testSetup(t)

	s := NewServer(deps, "test")
	tools := s.ListTools()

	if len(tools) != len(AllToolNames()) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(AllToolNames()))
	}
	for _, name := range AllToolNames() {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	deps, _ := testSetup(t)

	deps.Config.DisabledTools = []string{"scripts_inject", "scripts_inject", "scripts_extract"}
	s := NewServer(deps, "test")
	tools := s.ListTools()

	if len(tools) != len(AllToolNames())-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(AllToolNames())-2)
	}
	for _, name := range []string{"scripts_inject", "scripts_extract"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_NoJournal(t *testing.T) {
	deps, _ := testSetup(t)
	deps.DB = nil

	tools := NewServer(deps, "test").ListTools()
	if _, ok := tools["scripts_history"]; ok {
		t.Error("scripts_history should not be registered without a journal")
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{name: "all valid", input: []string{"scripts_inject", "scripts_history"}, wantLen: 0},
		{name: "one unknown", input: []string{"scripts_inject", "scripts_compile"}, wantLen: 1},
		{name: "empty list", input: []string{}, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	rxErr := errors.NewInternal(fmt.Errorf("open /tmp/secret: permission denied"))
	rxErr.Details = map[string]any{"path": "/tmp/secret"}
	r := errorResult(rxErr)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("files[2]: %w", errors.NewFileNotFound("a.rb"))

	errObj := errorObject(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrFileNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrFileNotFound)
	}
	if msg := errObj["message"].(string); !strings.Contains(msg, "files[2]") {
		t.Errorf("message should contain wrapper context, got: %s", msg)
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) {
		t.Errorf("code=%v, want INTERNAL", errObj["code"])
	}
	if errObj["message"] == "boom" {
		t.Error("plain error text should not be exposed")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatal("no error object in payload")
	}
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}
	code, _ := errorObject(t, result)["code"].(string)
	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
