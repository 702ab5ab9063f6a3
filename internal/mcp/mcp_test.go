package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/qwtool/qw/internal/config"
	"github.com/qwtool/qw/internal/db"
	"github.com/qwtool/qw/internal/logging"
	"github.com/qwtool/qw/internal/remote"
)

// testSetup creates a temporary database and handlers backed by an
// in-memory issue service.
func testSetup(t *testing.T) (*sql.DB, *Handlers) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	svc := remote.NewMemoryService(&remote.Issue{
		Number: 5,
		Title:  "[Requirement] edited title",
		Body:   "### Description\n\nqw_description\n",
		Labels: []string{"qw-requirement"},
	})
	return database, NewHandlers(database, svc, logging.Discard())
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func requirementArgs(extra map[string]any) map[string]any {
	fields := map[string]any{
		"title":       "qw_title",
		"description": "qw_description",
	}
	for k, v := range extra {
		fields[k] = v
	}
	return map[string]any{"stage": "requirement", "fields": fields}
}

// mustSucceed calls handler and decodes its JSON payload.
func mustSucceed(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) map[string]any {
	t.Helper()
	result, err := handler(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &out); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	return out
}

func TestHandleAdd(t *testing.T) {
	_, h := testSetup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "valid requirement",
			args:      requirementArgs(nil),
			wantError: false,
		},
		{
			name: "design output with numeric link",
			args: map[string]any{
				"stage": "design-output",
				"fields": map[string]any{
					"title":       "t",
					"description": "d",
					"requirement": 1,
				},
			},
			wantError: false,
		},
		{
			name:      "missing description",
			args:      map[string]any{"stage": "requirement", "fields": map[string]any{"title": "t"}},
			wantError: true,
			errorCode: "VALIDATION_FAILED",
		},
		{
			name:      "unknown stage",
			args:      map[string]any{"stage": "widget", "fields": map[string]any{}},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "unknown field",
			args:      requirementArgs(map[string]any{"colour": "red"}),
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "fields of wrong type",
			args:      map[string]any{"stage": "requirement", "fields": "title=t"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleAdd(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}
}

func TestHandleShowListDelete(t *testing.T) {
	_, h := testSetup(t)
	ctx := context.Background()

	added := mustSucceed(t, h.HandleAdd, requirementArgs(nil))
	if added["internal_id"] != float64(1) {
		t.Fatalf("internal_id = %v, want 1", added["internal_id"])
	}

	shown := mustSucceed(t, h.HandleShow, map[string]any{"stage": "requirement", "id": 1})
	record := shown["record"].(map[string]any)
	if record["title"] != "qw_title" || record["stage"] != "requirement" {
		t.Errorf("record = %v", record)
	}

	listed := mustSucceed(t, h.HandleList, map[string]any{"stage": "requirement"})
	if items := listed["items"].([]any); len(items) != 1 {
		t.Errorf("items = %d, want 1", len(items))
	}

	mustSucceed(t, h.HandleDelete, map[string]any{"stage": "requirement", "id": 1})

	result, _ := h.HandleShow(ctx, makeRequest(map[string]any{"stage": "requirement", "id": 1}))
	if !result.IsError {
		t.Fatal("expected error after delete")
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleUpdate(t *testing.T) {
	_, h := testSetup(t)
	ctx := context.Background()
	mustSucceed(t, h.HandleAdd, requirementArgs(nil))

	out := mustSucceed(t, h.HandleUpdate, map[string]any{
		"stage": "requirement",
		"id":    1,
		"set":   map[string]any{"description": "changed"},
	})
	changes := out["changes"].(map[string]any)
	desc := changes["description"].(map[string]any)
	if desc["self"] != "qw_description" || desc["other"] != "changed" {
		t.Errorf("description change = %v", desc)
	}

	result, _ := h.HandleUpdate(ctx, makeRequest(map[string]any{
		"stage": "requirement",
		"id":    1,
		"unset": []any{"title"},
	}))
	assertErrorCode(t, result, "VALIDATION_FAILED")
}

func TestHandleCheckAndDiff(t *testing.T) {
	_, h := testSetup(t)
	ctx := context.Background()
	mustSucceed(t, h.HandleAdd, requirementArgs(map[string]any{"remote_id": 5}))

	out := mustSucceed(t, h.HandleCheck, map[string]any{})
	if out["ok"] != true {
		t.Errorf("local check = %v", out)
	}

	out = mustSucceed(t, h.HandleCheck, map[string]any{"remote": true})
	if out["ok"] != false {
		t.Errorf("remote check should report the edited title: %v", out)
	}

	out = mustSucceed(t, h.HandleDiff, map[string]any{"stage": "requirement", "id": 1, "remote": true})
	fields := out["fields"].([]any)
	if len(fields) != 1 || fields[0] != "title" {
		t.Errorf("fields = %v, want [title]", fields)
	}
	if out["self"] != "requirement/1" || out["other"] != "issue #5" {
		t.Errorf("labels = %v / %v", out["self"], out["other"])
	}

	result, _ := h.HandleDiff(ctx, makeRequest(map[string]any{
		"stage":      "requirement",
		"id":         1,
		"other_json": `{"title":"t","stage":"design-output"}`,
	}))
	assertErrorCode(t, result, "CATEGORY_MISMATCH")
}

func TestErrorResult_HidesInternalDetails(t *testing.T) {
	result := errorResult(context.DeadlineExceeded)
	assertErrorCode(t, result, "INTERNAL")
	if msg := extractErrorMessage(result); msg != "an internal error occurred" {
		t.Errorf("message = %q", msg)
	}
}

func TestServerRegistration(t *testing.T) {
	database, _ := testSetup(t)

	s := NewServer(database, nil, config.Default(), "test", logging.Discard())
	tools := s.ListTools()
	if len(tools) != len(AllToolNames()) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(AllToolNames()))
	}
	for _, name := range AllToolNames() {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestServerRegistration_DisabledTools(t *testing.T) {
	database, _ := testSetup(t)

	cfg := config.Default()
	cfg.DisabledTools = []string{"stage_delete", "stage_delete", "not_a_tool"}
	s := NewServer(database, nil, cfg, "test", logging.Discard())
	tools := s.ListTools()

	if len(tools) != len(AllToolNames())-1 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(AllToolNames())-1)
	}
	if _, ok := tools["stage_delete"]; ok {
		t.Error("disabled tool 'stage_delete' should not be registered")
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"stage_delete", "stage_update"}, 0},
		{"one unknown", []string{"stage_delete", "fake_tool"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateDisabledTools(tt.input); len(got) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() = %v, want %d unknown", got, tt.wantLen)
			}
		})
	}
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	if code := errorObj["code"]; code != expectedCode {
		t.Errorf("error code = %v, want %s", code, expectedCode)
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

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		return text.Text
	}
	if errorObj, ok := payload["error"].(map[string]any); ok {
		if msg, ok := errorObj["message"].(string); ok {
			return msg
		}
	}
	return text.Text
}
