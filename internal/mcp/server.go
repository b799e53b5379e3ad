package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Ojasdixit/boltdiy/internal/identity"
	"github.com/Ojasdixit/boltdiy/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"code_save": {
		def:     codeSaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCodeSave },
	},
	"code_load": {
		def:     codeLoadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCodeLoad },
	},
	"code_list": {
		def:     codeListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCodeList },
	},
	"code_export": {
		def:     codeExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCodeExport },
	},
	"code_import": {
		def:     codeImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCodeImport },
	},
	"session_create": {
		def:     sessionCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionCreate },
	},
	"session_list": {
		def:     sessionListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionList },
	},
	"sandbox_ensure": {
		def:     sandboxEnsureToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSandboxEnsure },
	},
	"sandbox_active": {
		def:     sandboxActiveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSandboxActive },
	},
	"sandbox_list": {
		def:     sandboxListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSandboxList },
	},
	"sandbox_sweep": {
		def:     sandboxSweepToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSandboxSweep },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the boltdiy tools registered.
// Tools listed in the facade config's DisabledTools are left out.
func NewServer(facade *ops.Facade, provider identity.Provider, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"boltdiy",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(facade, provider)

	disabled := make(map[string]bool)
	for _, name := range facade.Config().DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(facade *ops.Facade, provider identity.Provider, version string) error {
	s := NewServer(facade, provider, version)
	return server.ServeStdio(s)
}
