package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Ojasdixit/boltdiy/internal/config"
	"github.com/Ojasdixit/boltdiy/internal/db"
	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
	"github.com/Ojasdixit/boltdiy/internal/identity"
	"github.com/Ojasdixit/boltdiy/internal/ops"
)

var testUser = &domain.Principal{ID: "3f2504e0-4f89-11d3-9a0c-0305e82c3301"}

// testSetup creates a temporary database and a facade whose clock the test controls.
func testSetup(t *testing.T) (*ops.Facade, *time.Time) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f := ops.New(database, config.DefaultConfig(), ops.WithClock(func() time.Time { return now }))
	return f, &now
}

func testHandlers(t *testing.T) (*Handlers, *time.Time) {
	t.Helper()
	f, now := testSetup(t)
	return NewHandlers(f, asUser(testUser)), now
}

// asUser returns a provider that always resolves to p.
func asUser(p *domain.Principal) identity.Provider {
	return identity.ProviderFunc(func(context.Context) (*domain.Principal, error) { return p, nil })
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleCodeSaveLoad(t *testing.T) {
	h, _ := testHandlers(t)
	ctx := context.Background()

	result, err := h.HandleCodeSave(ctx, makeRequest(map[string]any{
		"code_content": "console.log('x')",
		"file_path":    "/main.js",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved := parseOutput(t, result)
	if saved["code_content"] != "console.log('x')" {
		t.Errorf("code_content = %v", saved["code_content"])
	}
	if saved["language"] != "javascript" {
		t.Errorf("language = %v, want javascript", saved["language"])
	}

	result, err = h.HandleCodeLoad(ctx, makeRequest(map[string]any{"file_path": "/main.js"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded := parseOutput(t, result)
	if loaded["found"] != true {
		t.Fatalf("found = %v, want true", loaded["found"])
	}
	state := loaded["code_state"].(map[string]any)
	if state["code_content"] != "console.log('x')" {
		t.Errorf("loaded code_content = %v", state["code_content"])
	}
}

func TestHandleCodeLoad_NotSaved(t *testing.T) {
	h, _ := testHandlers(t)

	result, err := h.HandleCodeLoad(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := parseOutput(t, result)
	if out["found"] != false {
		t.Errorf("found = %v, want false", out["found"])
	}
	if _, ok := out["code_state"]; ok {
		t.Error("code_state should be omitted when nothing is saved")
	}
}

func TestHandleCodeSave_Validation(t *testing.T) {
	h, _ := testHandlers(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
		code string
	}{
		{"unknown argument", map[string]any{"code_content": "x", "filepath": "/a.js"}, "INVALID_REQUEST"},
		{"wrong type", map[string]any{"code_content": 42}, "INVALID_REQUEST"},
		{"directory path", map[string]any{"code_content": "x", "file_path": "/"}, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleCodeSave(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertErrorCode(t, result, tt.code)
		})
	}
}

func TestHandleCodeSave_TooLarge(t *testing.T) {
	h, _ := testHandlers(t)
	h.facade.Config().CodeMaxBytes = 4

	result, _ := h.HandleCodeSave(context.Background(), makeRequest(map[string]any{"code_content": "12345"}))
	assertErrorCode(t, result, "CONTENT_TOO_LARGE")
}

func TestHandleCodeList(t *testing.T) {
	h, _ := testHandlers(t)
	ctx := context.Background()

	for _, path := range []string{"/a.js", "/b.js", "/a.js"} {
		result, _ := h.HandleCodeSave(ctx, makeRequest(map[string]any{"code_content": path, "file_path": path}))
		parseOutput(t, result)
	}

	result, err := h.HandleCodeList(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := parseOutput(t, result)
	if out["count"] != float64(2) {
		t.Errorf("count = %v, want 2", out["count"])
	}
}

func TestHandleSessions(t *testing.T) {
	h, _ := testHandlers(t)
	ctx := context.Background()

	result, _ := h.HandleSessionCreate(ctx, makeRequest(map[string]any{"session_name": "spike"}))
	created := parseOutput(t, result)
	if created["session_name"] != "spike" {
		t.Errorf("session_name = %v", created["session_name"])
	}

	result, _ = h.HandleSessionCreate(ctx, makeRequest(map[string]any{"session_name": "  "}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	result, _ = h.HandleSessionList(ctx, makeRequest(nil))
	out := parseOutput(t, result)
	if out["count"] != float64(1) {
		t.Errorf("count = %v, want 1", out["count"])
	}
}

func TestHandleSandboxLifecycle(t *testing.T) {
	h, now := testHandlers(t)
	ctx := context.Background()

	result, _ := h.HandleSandboxActive(ctx, makeRequest(nil))
	if out := parseOutput(t, result); out["found"] != false {
		t.Fatalf("found = %v before any sandbox", out["found"])
	}

	result, _ = h.HandleSandboxEnsure(ctx, makeRequest(nil))
	ensured := parseOutput(t, result)
	if ensured["created"] != true {
		t.Errorf("created = %v, want true", ensured["created"])
	}
	sb := ensured["sandbox"].(map[string]any)
	if sb["sandbox_url"] != "https://sandbox-3f2504e0.vercel.app" {
		t.Errorf("sandbox_url = %v", sb["sandbox_url"])
	}

	result, _ = h.HandleSandboxEnsure(ctx, makeRequest(nil))
	if out := parseOutput(t, result); out["created"] != nil {
		t.Errorf("second ensure should reuse, got created=%v", out["created"])
	}

	*now = now.Add(25 * time.Hour)

	result, _ = h.HandleSandboxActive(ctx, makeRequest(nil))
	if out := parseOutput(t, result); out["found"] != false {
		t.Errorf("found = %v after expiry", out["found"])
	}

	result, _ = h.HandleSandboxSweep(ctx, makeRequest(nil))
	swept := parseOutput(t, result)
	if swept["expired"] != float64(1) {
		t.Errorf("expired = %v, want 1", swept["expired"])
	}

	result, _ = h.HandleSandboxList(ctx, makeRequest(nil))
	listed := parseOutput(t, result)
	items := listed["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if status := items[0].(map[string]any)["status"]; status != "expired" {
		t.Errorf("status = %v, want expired", status)
	}
}

func TestHandleCodeExportImport(t *testing.T) {
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}
	h := NewHandlers(ops.New(database, cfg), asUser(testUser))
	ctx := context.Background()

	if _, err := h.HandleCodeSave(ctx, makeRequest(map[string]any{"code_content": "x"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(dir, "backup.jsonl")
	result, _ := h.HandleCodeExport(ctx, makeRequest(map[string]any{"path": path}))
	exported := parseOutput(t, result)
	if exported["count"] != float64(1) {
		t.Errorf("count = %v, want 1", exported["count"])
	}

	result, _ = h.HandleCodeImport(ctx, makeRequest(map[string]any{"path": path, "mode": "skip"}))
	imported := parseOutput(t, result)
	if imported["skipped"] != float64(1) || imported["imported"] != float64(0) {
		t.Errorf("import = %v, want 1 skipped", imported)
	}

	result, _ = h.HandleCodeImport(ctx, makeRequest(map[string]any{"path": path, "mode": "merge"}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	result, _ = h.HandleCodeImport(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandlers_Unauthenticated(t *testing.T) {
	f, _ := testSetup(t)
	h := NewHandlers(f, asUser(nil))
	ctx := context.Background()

	for name, entry := range toolRegistry {
		t.Run(name, func(t *testing.T) {
			result, err := entry.handler(h)(ctx, makeRequest(nil))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertErrorCode(t, result, "UNAUTHENTICATED")
		})
	}
}

func TestServerRegistration(t *testing.T) {
	f, _ := testSetup(t)

	s := NewServer(f, asUser(testUser), "test")
	tools := s.ListTools()

	expectedTools := []string{
		"code_save",
		"code_load",
		"code_list",
		"code_export",
		"code_import",
		"session_create",
		"session_list",
		"sandbox_ensure",
		"sandbox_active",
		"sandbox_list",
		"sandbox_sweep",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	f, _ := testSetup(t)
	f.Config().DisabledTools = []string{"sandbox_sweep", "sandbox_sweep", "session_create"}

	s := NewServer(f, asUser(testUser), "test")
	tools := s.ListTools()

	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range []string{"sandbox_sweep", "session_create"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"sandbox_sweep", "code_list"}, 0},
		{"one unknown", []string{"sandbox_sweep", "code_delete"}, 1},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}

	if unknown := ValidateDisabledTools(AllToolNames()); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_HidesStoreDetails(t *testing.T) {
	for _, err := range []error{
		errors.NewInternal(fmt.Errorf("open /tmp/secret.db: permission denied")),
		errors.NewStoreFailure("load code state", fmt.Errorf("disk I/O error")),
	} {
		errObj := errorObject(t, errorResult(err))
		if _, ok := errObj["details"]; ok {
			t.Errorf("%v: expected details to be omitted", err)
		}
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("session_create: %w", errors.NewInvalidRequest("session name is required"))

	errObj := errorObject(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrInvalidRequest) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInvalidRequest)
	}
	if msg := errObj["message"].(string); !strings.Contains(msg, "session_create") {
		t.Errorf("message should keep wrapper context, got: %s", msg)
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) {
		t.Errorf("code=%v, want INTERNAL", errObj["code"])
	}
	if errObj["message"] != "an internal error occurred" {
		t.Errorf("message=%v", errObj["message"])
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewContentTooLarge(10, 20)))
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

// Helper functions

func errorObject(t *testing.T, r *mcp.CallToolResult) map[string]any {
	t.Helper()
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

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

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error %s, got success", expectedCode)
		return
	}
	errObj := errorObject(t, result)
	if code, _ := errObj["code"].(string); code != expectedCode {
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
