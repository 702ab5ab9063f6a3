package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/logging"
	"github.com/qwtool/qw/internal/ops"
	"github.com/qwtool/qw/internal/remote"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	svc    remote.GitService
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance. svc may be nil, in which
// case remote comparisons fail with NOT_INITIALIZED.
func NewHandlers(db *sql.DB, svc remote.GitService, logger *slog.Logger) *Handlers {
	return &Handlers{db: db, svc: svc, logger: logger}
}

// Request types for each tool

// AddRequest represents the arguments for stage_add.
type AddRequest struct {
	Stage  string         `json:"stage"`
	Fields map[string]any `json:"fields"`
}

// AddressRequest represents the arguments for stage_show and stage_delete.
type AddressRequest struct {
	Stage string `json:"stage"`
	ID    int    `json:"id"`
}

// ListRequest represents the arguments for stage_list.
type ListRequest struct {
	Stage  string `json:"stage,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// UpdateRequest represents the arguments for stage_update.
type UpdateRequest struct {
	Stage string         `json:"stage"`
	ID    int            `json:"id"`
	Set   map[string]any `json:"set,omitempty"`
	Unset []string       `json:"unset,omitempty"`
}

// CheckRequest represents the arguments for stage_check.
type CheckRequest struct {
	Stage  string `json:"stage,omitempty"`
	Remote bool   `json:"remote,omitempty"`
}

// DiffRequest represents the arguments for stage_diff.
type DiffRequest struct {
	Stage      string `json:"stage"`
	ID         int    `json:"id"`
	OtherStage string `json:"other_stage,omitempty"`
	OtherID    int    `json:"other_id,omitempty"`
	OtherJSON  string `json:"other_json,omitempty"`
	Remote     bool   `json:"remote,omitempty"`
}

// Handler implementations

func (h *Handlers) withLogger(ctx context.Context, tool string) context.Context {
	h.logger.Debug("tool call", slog.String("tool", tool))
	return logging.WithLogger(ctx, h.logger)
}

// HandleAdd handles the stage_add tool call.
func (h *Handlers) HandleAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Add(h.withLogger(ctx, "stage_add"), h.db, ops.AddInput{
		Stage:  input.Stage,
		Fields: input.Fields,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleShow handles the stage_show tool call.
func (h *Handlers) HandleShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddressRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Show(h.withLogger(ctx, "stage_show"), h.db, ops.ShowInput{
		Stage: input.Stage,
		ID:    input.ID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the stage_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(h.withLogger(ctx, "stage_list"), h.db, ops.ListInput{
		Stage:  input.Stage,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleUpdate handles the stage_update tool call.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Update(h.withLogger(ctx, "stage_update"), h.db, ops.UpdateInput{
		Stage: input.Stage,
		ID:    input.ID,
		Set:   input.Set,
		Unset: input.Unset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the stage_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddressRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(h.withLogger(ctx, "stage_delete"), h.db, ops.DeleteInput{
		Stage: input.Stage,
		ID:    input.ID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCheck handles the stage_check tool call.
func (h *Handlers) HandleCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CheckRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Check(h.withLogger(ctx, "stage_check"), h.db, h.svc, ops.CheckInput{
		Stage:  input.Stage,
		Remote: input.Remote,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDiff handles the stage_diff tool call.
func (h *Handlers) HandleDiff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DiffRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Diff(h.withLogger(ctx, "stage_diff"), h.db, h.svc, ops.DiffInput{
		Stage:      input.Stage,
		ID:         input.ID,
		OtherStage: input.OtherStage,
		OtherID:    input.OtherID,
		OtherJSON:  input.OtherJSON,
		Remote:     input.Remote,
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

	if qwErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    qwErr.Code,
			"message": qwErr.Message,
			"status":  qwErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if qwErr.Code != errors.ErrInternal && qwErr.Details != nil {
			errorObj["details"] = qwErr.Details
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
