package main

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/Ojasdixit/boltdiy/internal/autosave"
	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
	"github.com/Ojasdixit/boltdiy/internal/identity"
	"github.com/Ojasdixit/boltdiy/internal/ops"
	"github.com/Ojasdixit/boltdiy/internal/sandbox"
	"github.com/Ojasdixit/boltdiy/internal/web"
)

// deps carries what the commands need. It is nil for --help and --version.
type deps struct {
	facade   *ops.Facade
	identity identity.Provider
	logger   *slog.Logger
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "boltdiy",
		Usage:   "Code autosave and preview sandbox bookkeeping",
		Version: Version,
		Commands: []*cli.Command{
			saveCmd(d),
			loadCmd(d),
			codeListCmd(d),
			codeExportCmd(d),
			codeImportCmd(d),
			autosaveCmd(d),
			sessionCreateCmd(d),
			sessionListCmd(d),
			sandboxCreateCmd(d),
			sandboxEnsureCmd(d),
			sandboxActiveCmd(d),
			sandboxListCmd(d),
			sandboxDeactivateCmd(d),
			sandboxSweepCmd(d),
			serveCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// principal resolves the caller from BOLTDIY_USER (or the provider under test).
func (d *deps) principal(c *cli.Context) (*domain.Principal, error) {
	return identity.Require(c.Context, d.identity)
}

// saveCmd creates the save command.
func saveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Save code for a path (reads content from --file or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "File path (default: /main.js)"},
			&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Usage: "Language (default: javascript)"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read content from this local file"},
		},
		Action: func(c *cli.Context) error {
			p, err := d.principal(c)
			if err != nil {
				return outputError(err)
			}

			content, err := readContent(c)
			if err != nil {
				return outputError(err)
			}

			output, err := d.facade.SaveCode(c.Context, p, ops.SaveCodeInput{
				Content:  content,
				Language: c.String("language"),
				Path:     c.String("path"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// loadCmd creates the load command.
func loadCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "Load saved code for a path",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "File path (default: /main.js)"},
			&cli.BoolFlag{Name: "raw", Usage: "Print only the content"},
		},
		Action: func(c *cli.Context) error {
			p, err := d.principal(c)
			if err != nil {
				return outputError(err)
			}

			cs, err := d.facade.LoadCode(c.Context, p, c.String("path"))
			if err != nil {
				return outputError(err)
			}

			if c.Bool("raw") {
				if cs == nil {
					return outputError(errors.NewNotFound("code state", c.String("path")))
				}
				_, err := io.WriteString(c.App.Writer, cs.Content)
				return err
			}
			return outputJSON(c, map[string]any{"found": cs != nil, "code_state": cs})
		},
	}
}

// codeListCmd creates the code-list command.
func codeListCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "code-list",
		Usage: "List saved files, most recently modified first",
		Action: func(c *cli.Context) error {
			p, err := d.principal(c)
			if err != nil {
				return outputError(err)
			}

			items, err := d.facade.ListCode(c.Context, p)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"items": items, "count": len(items)})
		},
	}
}

func codeExportCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "code-export",
		Usage: "Back up saved files to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Backup path (default: ~/.boltdiy/exports/code-<user>-<timestamp>.jsonl)"},
		},
		Action: func(c *cli.Context) error {
			p, err := d.principal(c)
			if err != nil {
				return outputError(err)
			}

			result, err := d.facade.ExportCode(c.Context, p, ops.ExportCodeInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, result)
		},
	}
}

func codeImportCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "code-import",
		Usage: "Restore saved files from a JSONL backup",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Required: true, Usage: "Backup path"},
			&cli.StringFlag{Name: "mode", Value: "replace", Usage: "replace or skip paths that are already saved"},
		},
		Action: func(c *cli.Context) error {
			p, err := d.principal(c)
			if err != nil {
				return outputError(err)
			}

			result, err := d.facade.ImportCode(c.Context, p, ops.ImportCodeInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, result)
		},
	}
}

// autosaveCmd creates the autosave command. Every stdin line extends the
// buffer and counts as an edit; saves happen after the configured quiet
// period and once more at end of input.
func autosaveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "autosave",
		Usage: "Stream edits from stdin and autosave them (one JSON event per line)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "File path (default: /main.js)"},
			&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Usage: "Language (default: javascript)"},
			&cli.BoolFlag{Name: "append", Usage: "Start from the saved content instead of an empty buffer"},
		},
		Action: func(c *cli.Context) error {
			p, err := d.principal(c)
			if err != nil {
				return outputError(err)
			}

			events := &eventWriter{w: c.App.Writer}
			coord := autosave.Open(c.Context, d.facade, p, c.String("path"),
				autosave.WithDebounce(d.facade.Config().AutosaveDebounce()),
				autosave.WithLanguage(c.String("language")),
				autosave.WithLogger(d.logger),
				autosave.WithNotify(events.write),
			)
			defer coord.Close()

			var buf strings.Builder
			if c.Bool("append") {
				buf.WriteString(coord.Status().Content)
			}

			maxLine := d.facade.Config().CodeMaxBytes + 1
			if maxLine <= 1 {
				maxLine = 16 * bufio.MaxScanTokenSize
			}
			scanner := bufio.NewScanner(c.App.Reader)
			scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLine)
			for scanner.Scan() {
				buf.WriteString(scanner.Text())
				buf.WriteString("\n")
				if err := coord.Edit(buf.String()); err != nil {
					return outputError(errors.NewInternal(err))
				}
			}
			if err := scanner.Err(); err != nil {
				return outputError(errors.NewInvalidRequest("read stdin: " + err.Error()))
			}

			// a debounce save of an older buffer must land before the final one
			if err := coord.Wait(c.Context); err != nil {
				return outputError(errors.NewInternal(err))
			}
			if _, err := coord.Flush(c.Context); err != nil {
				return outputError(err)
			}
			if err := coord.Wait(c.Context); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// eventWriter serializes autosave events written from timer goroutines.
type eventWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (e *eventWriter) write(ev autosave.Event) {
	line := map[string]any{"event": ev.Kind.String()}
	if ev.CodeState != nil {
		line["file_path"] = ev.CodeState.FilePath
		line["bytes"] = len(ev.CodeState.Content)
		line["last_modified"] = ev.CodeState.LastModified
	}
	if ev.Err != nil {
		line["error"] = ev.Err.Error()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	_ = json.NewEncoder(e.w).Encode(line)
}

// sessionCreateCmd creates the session-create command.
func sessionCreateCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "session-create",
		Usage:     "Create a named session",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			p, err := d.principal(c)
			if err != nil {
				return outputError(err)
			}

			output, err := d.facade.CreateSession(c.Context, p, strings.Join(c.Args().Slice(), " "))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// sessionListCmd creates the session-list command.
func sessionListCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "session-list",
		Usage: "List sessions, newest first",
		Action: func(c *cli.Context) error {
			p, err := d.principal(c)
			if err != nil {
				return outputError(err)
			}

			items, err := d.facade.ListSessions(c.Context, p)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"items": items, "count": len(items)})
		},
	}
}

// sandboxCreateCmd creates the sandbox-create command.
func sandboxCreateCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "sandbox-create",
		Usage:     "Record a sandbox with an explicit URL",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			p, err := d.principal(c)
			if err != nil {
				return outputError(err)
			}

			output, err := d.facade.CreateSandbox(c.Context, p, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// sandboxEnsureCmd creates the sandbox-ensure command.
func sandboxEnsureCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "sandbox-ensure",
		Usage: "Return the live sandbox, creating one if needed",
		Action: func(c *cli.Context) error {
			p, err := d.principal(c)
			if err != nil {
				return outputError(err)
			}

			m := sandbox.NewManager(d.facade, d.facade.Config(), sandbox.WithManagerLogger(d.logger))
			sb, created, err := m.Ensure(c.Context, p)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"created": created, "sandbox": sb})
		},
	}
}

// sandboxActiveCmd creates the sandbox-active command.
func sandboxActiveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "sandbox-active",
		Usage: "Show the newest active, unexpired sandbox",
		Action: func(c *cli.Context) error {
			p, err := d.principal(c)
			if err != nil {
				return outputError(err)
			}

			sb, err := d.facade.GetActiveSandbox(c.Context, p)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"found": sb != nil, "sandbox": sb})
		},
	}
}

// sandboxListCmd creates the sandbox-list command.
func sandboxListCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "sandbox-list",
		Usage: "List all sandboxes, newest first",
		Action: func(c *cli.Context) error {
			p, err := d.principal(c)
			if err != nil {
				return outputError(err)
			}

			items, err := d.facade.ListSandboxes(c.Context, p)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"items": items, "count": len(items)})
		},
	}
}

// sandboxDeactivateCmd creates the sandbox-deactivate command.
func sandboxDeactivateCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "sandbox-deactivate",
		Usage:     "Mark a sandbox inactive",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			p, err := d.principal(c)
			if err != nil {
				return outputError(err)
			}

			id := c.Args().First()
			if err := d.facade.DeactivateSandbox(c.Context, p, id); err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"id": id, "status": domain.SandboxInactive})
		},
	}
}

// sandboxSweepCmd creates the sandbox-sweep command.
func sandboxSweepCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "sandbox-sweep",
		Usage: "Mark sandboxes past their expiry as expired",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "Sweep every user's sandboxes, not just your own"},
		},
		Action: func(c *cli.Context) error {
			var (
				output *ops.SweepOutput
				err    error
			)
			if c.Bool("all") {
				output, err = d.facade.SweepAllExpiredSandboxes(c.Context)
			} else {
				var p *domain.Principal
				if p, err = d.principal(c); err != nil {
					return outputError(err)
				}
				output, err = d.facade.SweepExpiredSandboxes(c.Context, p)
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and preview server with the background sweeper",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
			&cli.BoolFlag{Name: "no-sweep", Usage: "Do not run the periodic sandbox sweep"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			if interval := d.facade.Config().SweepInterval(); interval > 0 && !c.Bool("no-sweep") {
				sandbox.NewSweeper(d.facade, interval, d.logger).Start(ctx)
			}

			srv := web.NewServer(d.facade, Version, c.String("bind"), c.Int("port"), d.logger)
			if err := web.Run(ctx, srv, d.logger); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to the app's writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var bErr *errors.BoltError
	if stderrors.As(err, &bErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", bErr.Code, bErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// readContent returns the content for save: the --file contents, or all of
// stdin. Content is kept byte for byte.
func readContent(c *cli.Context) (string, error) {
	if path := c.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", errors.NewInvalidRequest("read file: " + err.Error())
		}
		return string(data), nil
	}
	if c.App.Reader == os.Stdin && !stdinHasData() {
		return "", errors.NewInvalidRequest("code content must be piped via stdin or given with --file")
	}
	data, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
