package mcp

import "github.com/mark3labs/mcp-go/mcp"

var codeSaveToolDef = mcp.NewTool("code_save",
	mcp.WithDescription("Save code for a file path, replacing what was saved there before."),
	mcp.WithString("code_content", mcp.Required(), mcp.Description("Full file content; may be empty")),
	mcp.WithString("language", mcp.Description("Language tag (default: javascript)")),
	mcp.WithString("file_path", mcp.Description("File path (default: /main.js)")),
)

var codeLoadToolDef = mcp.NewTool("code_load",
	mcp.WithDescription("Load the saved code for a file path. Returns found=false when nothing is saved."),
	mcp.WithString("file_path", mcp.Description("File path (default: /main.js)")),
)

var codeListToolDef = mcp.NewTool("code_list",
	mcp.WithDescription("List all saved files, most recently modified first."),
)

var sessionCreateToolDef = mcp.NewTool("session_create",
	mcp.WithDescription("Create a named editing session."),
	mcp.WithString("session_name", mcp.Required(), mcp.Description("Session name")),
)

var sessionListToolDef = mcp.NewTool("session_list",
	mcp.WithDescription("List sessions, newest first."),
)

var sandboxEnsureToolDef = mcp.NewTool("sandbox_ensure",
	mcp.WithDescription("Return the live preview sandbox, creating one if none exists."),
)

var sandboxActiveToolDef = mcp.NewTool("sandbox_active",
	mcp.WithDescription("Return the newest active, unexpired sandbox. Returns found=false when there is none."),
)

var sandboxListToolDef = mcp.NewTool("sandbox_list",
	mcp.WithDescription("List all sandboxes regardless of status, newest first."),
)

var sandboxSweepToolDef = mcp.NewTool("sandbox_sweep",
	mcp.WithDescription("Mark sandboxes past their expiry as expired."),
)

var codeExportToolDef = mcp.NewTool("code_export",
	mcp.WithDescription("Write all saved files to a JSONL backup in ~/.boltdiy/exports or an allowed_paths directory."),
	mcp.WithString("path", mcp.Description("Backup file path (default: ~/.boltdiy/exports/code-<user>-<timestamp>.jsonl)")),
)

var codeImportToolDef = mcp.NewTool("code_import",
	mcp.WithDescription("Restore saved files from a JSONL backup written by code_export."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Backup file path")),
	mcp.WithString("mode", mcp.Enum("replace", "skip"), mcp.Description("What to do when a path is already saved (default: replace)")),
)
