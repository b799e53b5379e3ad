package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
	"github.com/Ojasdixit/boltdiy/internal/identity"
	"github.com/Ojasdixit/boltdiy/internal/ops"
	"github.com/Ojasdixit/boltdiy/internal/sandbox"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	facade    *ops.Facade
	sandboxes *sandbox.Manager
	identity  identity.Provider
}

// NewHandlers creates a new Handlers instance. Every call resolves its
// principal from provider.
func NewHandlers(facade *ops.Facade, provider identity.Provider) *Handlers {
	return &Handlers{
		facade:    facade,
		sandboxes: sandbox.NewManager(facade, facade.Config()),
		identity:  provider,
	}
}

// CodeSaveRequest represents the arguments for code_save.
type CodeSaveRequest struct {
	Content  string `json:"code_content"`
	Language string `json:"language,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// CodeLoadRequest represents the arguments for code_load.
type CodeLoadRequest struct {
	FilePath string `json:"file_path,omitempty"`
}

// CodeExportRequest represents the arguments for code_export.
type CodeExportRequest struct {
	Path string `json:"path,omitempty"`
}

// CodeImportRequest represents the arguments for code_import.
type CodeImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// SessionCreateRequest represents the arguments for session_create.
type SessionCreateRequest struct {
	Name string `json:"session_name"`
}

// CodeLoadOutput wraps a possibly absent code state.
type CodeLoadOutput struct {
	Found     bool              `json:"found"`
	FilePath  string            `json:"file_path"`
	CodeState *domain.CodeState `json:"code_state,omitempty"`
}

// SandboxOutput wraps a possibly absent sandbox.
type SandboxOutput struct {
	Found   bool            `json:"found"`
	Created bool            `json:"created,omitempty"`
	Sandbox *domain.Sandbox `json:"sandbox,omitempty"`
}

// HandleCodeSave handles the code_save tool call.
func (h *Handlers) HandleCodeSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := identity.Require(ctx, h.identity)
	if err != nil {
		return errorResult(err), nil
	}
	input, err := decode[CodeSaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.facade.SaveCode(ctx, p, ops.SaveCodeInput{
		Content:  input.Content,
		Language: input.Language,
		Path:     input.FilePath,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCodeLoad handles the code_load tool call.
func (h *Handlers) HandleCodeLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := identity.Require(ctx, h.identity)
	if err != nil {
		return errorResult(err), nil
	}
	input, err := decode[CodeLoadRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.facade.LoadCode(ctx, p, input.FilePath)
	if err != nil {
		return errorResult(err), nil
	}

	path := input.FilePath
	if result != nil {
		path = result.FilePath
	}
	return successResult(CodeLoadOutput{Found: result != nil, FilePath: path, CodeState: result})
}

// HandleCodeList handles the code_list tool call.
func (h *Handlers) HandleCodeList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := identity.Require(ctx, h.identity)
	if err != nil {
		return errorResult(err), nil
	}

	items, err := h.facade.ListCode(ctx, p)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"items": items, "count": len(items)})
}

// HandleCodeExport handles the code_export tool call.
func (h *Handlers) HandleCodeExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := identity.Require(ctx, h.identity)
	if err != nil {
		return errorResult(err), nil
	}
	input, err := decode[CodeExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.facade.ExportCode(ctx, p, ops.ExportCodeInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCodeImport handles the code_import tool call.
func (h *Handlers) HandleCodeImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := identity.Require(ctx, h.identity)
	if err != nil {
		return errorResult(err), nil
	}
	input, err := decode[CodeImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.facade.ImportCode(ctx, p, ops.ImportCodeInput{
		Path: input.Path,
		Mode: ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionCreate handles the session_create tool call.
func (h *Handlers) HandleSessionCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := identity.Require(ctx, h.identity)
	if err != nil {
		return errorResult(err), nil
	}
	input, err := decode[SessionCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.facade.CreateSession(ctx, p, input.Name)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionList handles the session_list tool call.
func (h *Handlers) HandleSessionList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := identity.Require(ctx, h.identity)
	if err != nil {
		return errorResult(err), nil
	}

	items, err := h.facade.ListSessions(ctx, p)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"items": items, "count": len(items)})
}

// HandleSandboxEnsure handles the sandbox_ensure tool call.
func (h *Handlers) HandleSandboxEnsure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := identity.Require(ctx, h.identity)
	if err != nil {
		return errorResult(err), nil
	}

	sb, created, err := h.sandboxes.Ensure(ctx, p)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(SandboxOutput{Found: true, Created: created, Sandbox: sb})
}

// HandleSandboxActive handles the sandbox_active tool call.
func (h *Handlers) HandleSandboxActive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := identity.Require(ctx, h.identity)
	if err != nil {
		return errorResult(err), nil
	}

	sb, err := h.facade.GetActiveSandbox(ctx, p)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(SandboxOutput{Found: sb != nil, Sandbox: sb})
}

// HandleSandboxList handles the sandbox_list tool call.
func (h *Handlers) HandleSandboxList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := identity.Require(ctx, h.identity)
	if err != nil {
		return errorResult(err), nil
	}

	items, err := h.facade.ListSandboxes(ctx, p)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"items": items, "count": len(items)})
}

// HandleSandboxSweep handles the sandbox_sweep tool call.
func (h *Handlers) HandleSandboxSweep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := identity.Require(ctx, h.identity)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.facade.SweepExpiredSandboxes(ctx, p)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// errorResult creates an MCP error result from any error.
// Internal and store error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var bErr *errors.BoltError
	if stderrors.As(err, &bErr) {
		message := bErr.Message
		if err != error(bErr) {
			// keep context added by wrappers
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    bErr.Code,
			"message": message,
			"status":  bErr.Status,
		}
		if bErr.Code != errors.ErrInternal && bErr.Code != errors.ErrStoreFailure && bErr.Details != nil {
			errorObj["details"] = bErr.Details
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
