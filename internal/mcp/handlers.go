package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/rxscripts/internal/errors"
	"github.com/hpungsan/rxscripts/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps ops.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps ops.Deps) *Handlers {
	return &Handlers{deps: deps}
}

// Request types for each tool

// ListRequest represents the arguments for scripts_list.
type ListRequest struct {
	Container string `json:"container"`
}

// ShowRequest represents the arguments for scripts_show.
type ShowRequest struct {
	Container string `json:"container"`
	Index     *int   `json:"index,omitempty"`
	Name      string `json:"name,omitempty"`
}

// ExtractRequest represents the arguments for scripts_extract.
type ExtractRequest struct {
	Container string `json:"container"`
	OutputDir string `json:"output_dir,omitempty"`
}

// SaveRequest represents the arguments for scripts_save.
type SaveRequest struct {
	Container string `json:"container"`
	Name      string `json:"name"`
	OutputDir string `json:"output_dir,omitempty"`
}

// SearchRequest represents the arguments for scripts_search.
type SearchRequest struct {
	Container  string `json:"container"`
	Identifier string `json:"identifier"`
	Precise    bool   `json:"precise,omitempty"`
}

// InjectRequest represents the arguments for scripts_inject.
type InjectRequest struct {
	Container string   `json:"container"`
	Files     []string `json:"files"`
	Output    string   `json:"output,omitempty"`
}

// HistoryRequest represents the arguments for scripts_history.
type HistoryRequest struct {
	Container string `json:"container,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Handler implementations

// HandleList handles the scripts_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.deps, ops.ListInput{ContainerPath: input.Container})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleShow handles the scripts_show tool call.
func (h *Handlers) HandleShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ShowRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Show(ctx, h.deps, ops.ShowInput{
		ContainerPath: input.Container,
		Index:         input.Index,
		Name:          input.Name,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExtract handles the scripts_extract tool call.
func (h *Handlers) HandleExtract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExtractRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExtractAll(ctx, h.deps, ops.ExtractAllInput{
		ContainerPath: input.Container,
		OutputDir:     input.OutputDir,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSave handles the scripts_save tool call.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExtractOne(ctx, h.deps, ops.ExtractOneInput{
		ContainerPath: input.Container,
		Name:          input.Name,
		OutputDir:     input.OutputDir,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSearch handles the scripts_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Search(ctx, h.deps, ops.SearchInput{
		ContainerPath: input.Container,
		Identifier:    input.Identifier,
		Precise:       input.Precise,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInject handles the scripts_inject tool call.
func (h *Handlers) HandleInject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InjectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Inject(ctx, h.deps, ops.InjectInput{
		ContainerPath: input.Container,
		Files:         input.Files,
		OutputPath:    input.Output,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the scripts_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.History(h.deps, ops.HistoryInput{
		ContainerPath: input.Container,
		Limit:         input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var rxErr *errors.RxError
	if stderrors.As(err, &rxErr) {
		message := rxErr.Message
		if err != error(rxErr) {
			// keep wrapper context
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    rxErr.Code,
			"message": message,
			"status":  rxErr.Status,
		}
		if rxErr.Code != errors.ErrInternal && rxErr.Details != nil {
			errorObj["details"] = rxErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
