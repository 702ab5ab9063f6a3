package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/logging"
	"github.com/qwtool/qw/internal/mcp"
	"github.com/qwtool/qw/internal/ops"
)

// maxStdinBytes bounds what --json reads from stdin.
const maxStdinBytes = 16 << 20

// env holds what commands need from the outside world.
type env struct {
	// Dir is the directory qw was started in.
	Dir string
	// Open loads the workspace of the repository containing dir.
	Open func(ctx context.Context, dir string) (*ops.Workspace, error)

	logger *slog.Logger
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	e.logger = logging.Discard()

	app := &cli.App{
		Name:    "qw",
		Usage:   "Design-stage records traced to repository issues",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "loglevel", Usage: "Log to stderr at level: error|warning|info|debug"},
		},
		Before: func(c *cli.Context) error {
			level := c.String("loglevel")
			if !logging.Valid(level) {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid --loglevel %q (want one of %s)", level, strings.Join(logging.Levels, ", "))))
			}
			e.logger = logging.New(level, os.Stderr)
			return nil
		},
		Commands: []*cli.Command{
			initCmd(e),
			addCmd(e),
			showCmd(e),
			listCmd(e),
			updateCmd(e),
			deleteCmd(e),
			checkCmd(e),
			pullCmd(e),
			diffCmd(e),
			exportCmd(e),
			importCmd(e),
			serveCmd(e),
		},
		// --set values may contain commas
		DisableSliceFlagSeparator: true,
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// commandContext returns the command's context carrying the configured logger.
func (e *env) commandContext(c *cli.Context) context.Context {
	return logging.WithLogger(c.Context, e.logger.With("command", c.Command.Name))
}

// run opens the workspace, calls fn and prints its result.
func (e *env) run(c *cli.Context, fn func(ctx context.Context, ws *ops.Workspace) (any, error)) error {
	ctx := e.commandContext(c)
	ws, err := e.Open(ctx, e.Dir)
	if err != nil {
		return outputError(err)
	}
	defer ws.Close()

	out, err := fn(ctx, ws)
	if err != nil {
		return outputError(err)
	}
	return outputJSON(out)
}

// initCmd creates the init command.
func initCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Configure qw for the current git repository",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "repo", Aliases: []string{"r"}, Usage: "Repository address or git remote name (default: upstream, then origin)"},
			&cli.StringFlag{Name: "service", Aliases: []string{"s"}, Usage: "Issue service (default: guessed from the repository host)"},
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Replace an existing configuration"},
			&cli.BoolFlag{Name: "templates", Usage: "Write issue forms for every stage"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Init(e.commandContext(c), ops.InitInput{
				Dir:       e.Dir,
				Repo:      c.String("repo"),
				Service:   c.String("service"),
				Force:     c.Bool("force"),
				Templates: c.Bool("templates"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// addCmd creates the add command.
func addCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Store a new record",
		ArgsUsage: "<stage>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "set", Usage: "Field assignment field=value (repeatable)"},
			&cli.BoolFlag{Name: "json", Usage: "Read fields as a JSON object from stdin"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("add takes exactly one argument: <stage>"))
			}
			fields, err := readFields(c)
			if err != nil {
				return outputError(err)
			}
			return e.run(c, func(ctx context.Context, ws *ops.Workspace) (any, error) {
				return ops.Add(ctx, ws.DB, ops.AddInput{Stage: c.Args().First(), Fields: fields})
			})
		},
	}
}

// showCmd creates the show command.
func showCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a record",
		ArgsUsage: "<stage>/<id>",
		Action: func(c *cli.Context) error {
			addr, err := addressArg(c, 0)
			if err != nil {
				return outputError(err)
			}
			return e.run(c, func(ctx context.Context, ws *ops.Workspace) (any, error) {
				return ops.Show(ctx, ws.DB, ops.ShowInput{Stage: string(addr.Stage), ID: addr.InternalID})
			})
		},
	}
}

// listCmd creates the list command.
func listCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List records",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "stage", Usage: "Filter by stage"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			return e.run(c, func(ctx context.Context, ws *ops.Workspace) (any, error) {
				return ops.List(ctx, ws.DB, ops.ListInput{
					Stage:  c.String("stage"),
					Limit:  c.Int("limit"),
					Offset: c.Int("offset"),
				})
			})
		},
	}
}

// updateCmd creates the update command.
func updateCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Change fields of a record",
		ArgsUsage: "<stage>/<id>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "set", Usage: "Field assignment field=value (repeatable)"},
			&cli.StringSliceFlag{Name: "unset", Usage: "Field to remove (repeatable)"},
			&cli.BoolFlag{Name: "json", Usage: "Read assignments as a JSON object from stdin"},
		},
		Action: func(c *cli.Context) error {
			addr, err := addressArg(c, 0)
			if err != nil {
				return outputError(err)
			}
			set, err := readFields(c)
			if err != nil {
				return outputError(err)
			}
			unset := c.StringSlice("unset")
			if len(set) == 0 && len(unset) == 0 {
				return outputError(errors.NewInvalidRequest("nothing to update: use --set, --unset or --json"))
			}
			return e.run(c, func(ctx context.Context, ws *ops.Workspace) (any, error) {
				return ops.Update(ctx, ws.DB, ops.UpdateInput{
					Stage: string(addr.Stage),
					ID:    addr.InternalID,
					Set:   set,
					Unset: unset,
				})
			})
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete a record",
		ArgsUsage: "<stage>/<id>",
		Action: func(c *cli.Context) error {
			addr, err := addressArg(c, 0)
			if err != nil {
				return outputError(err)
			}
			return e.run(c, func(ctx context.Context, ws *ops.Workspace) (any, error) {
				return ops.Delete(ctx, ws.DB, ops.DeleteInput{Stage: string(addr.Stage), ID: addr.InternalID})
			})
		},
	}
}

// checkCmd creates the check command.
func checkCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Validate stored records, and with --remote compare them with their issues",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "stage", Usage: "Filter by stage"},
			&cli.BoolFlag{Name: "remote", Usage: "Compare linked records with their issues"},
		},
		Action: func(c *cli.Context) error {
			var failed bool
			err := e.run(c, func(ctx context.Context, ws *ops.Workspace) (any, error) {
				output, err := ops.Check(ctx, ws.DB, ws.Service, ops.CheckInput{
					Stage:  c.String("stage"),
					Remote: c.Bool("remote"),
				})
				if err == nil && !output.OK {
					failed = true
				}
				return output, err
			})
			if err == nil && failed {
				return cli.Exit("", 1)
			}
			return err
		},
	}
}

// pullCmd creates the pull command.
func pullCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "pull",
		Usage: "Create or update records from the repository's qw issues",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "Report changes without writing"},
		},
		Action: func(c *cli.Context) error {
			return e.run(c, func(ctx context.Context, ws *ops.Workspace) (any, error) {
				return ops.Pull(ctx, ws.DB, ws.Service, ops.PullInput{DryRun: c.Bool("dry-run")})
			})
		},
	}
}

// diffCmd creates the diff command.
func diffCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "Compare a record with another record, a JSON record on stdin, or its issue",
		ArgsUsage: "<stage>/<id> [<stage>/<id>]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Compare with a JSON record read from stdin"},
			&cli.BoolFlag{Name: "remote", Usage: "Compare with the linked issue"},
		},
		Action: func(c *cli.Context) error {
			addr, err := addressArg(c, 0)
			if err != nil {
				return outputError(err)
			}
			input := ops.DiffInput{
				Stage:  string(addr.Stage),
				ID:     addr.InternalID,
				Remote: c.Bool("remote"),
			}
			if c.NArg() > 1 {
				other, err := addressArg(c, 1)
				if err != nil {
					return outputError(err)
				}
				input.OtherStage = string(other.Stage)
				input.OtherID = other.InternalID
			}
			if c.Bool("json") {
				data, err := readStdin(os.Stdin)
				if err != nil {
					return outputError(err)
				}
				input.OtherJSON = string(data)
			}
			return e.run(c, func(ctx context.Context, ws *ops.Workspace) (any, error) {
				return ops.Diff(ctx, ws.DB, ws.Service, input)
			})
		},
	}
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export records to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: .qw/exports/<stage|all>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "stage", Usage: "Filter by stage"},
		},
		Action: func(c *cli.Context) error {
			return e.run(c, func(ctx context.Context, ws *ops.Workspace) (any, error) {
				return ops.Export(ctx, ws.DB, ops.ExportInput{
					Path:  c.String("path"),
					Dir:   ws.ExportsDir(),
					Stage: c.String("stage"),
				})
			})
		},
	}
}

// importCmd creates the import command.
func importCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import records from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace"},
		},
		Action: func(c *cli.Context) error {
			return e.run(c, func(ctx context.Context, ws *ops.Workspace) (any, error) {
				return ops.Import(ctx, ws.DB, ops.ImportInput{
					Path: c.String("path"),
					Mode: ops.ImportMode(c.String("mode")),
				})
			})
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the record tools over MCP on stdio",
		Action: func(c *cli.Context) error {
			ws, err := e.Open(e.commandContext(c), e.Dir)
			if err != nil {
				return outputError(err)
			}
			defer ws.Close()

			if err := mcp.Run(ws.DB, ws.Service, ws.Config, Version, e.logger); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI. Coded errors exit 2, anything else 1.
func outputError(err error) error {
	if qwErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", qwErr.Code, qwErr.Message), 2)
	}
	return cli.Exit(err.Error(), 1)
}

// addressArg parses the i-th positional argument as <stage>/<id>.
func addressArg(c *cli.Context, i int) (ops.Address, error) {
	if c.NArg() <= i {
		return ops.Address{}, errors.NewInvalidRequest("missing record address <stage>/<id>")
	}
	return ops.ParseAddress(c.Args().Get(i))
}

// readFields collects field assignments from --json (stdin) and --set.
// --set wins over the same key in the JSON object.
func readFields(c *cli.Context) (map[string]any, error) {
	fields := map[string]any{}
	if c.Bool("json") {
		data, err := readStdin(os.Stdin)
		if err != nil {
			return nil, err
		}
		dec := json.NewDecoder(strings.NewReader(string(data)))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("stdin is not a JSON object: %v", err))
		}
	}
	set, err := parseAssignments(c.StringSlice("set"))
	if err != nil {
		return nil, err
	}
	for k, v := range set {
		fields[k] = v
	}
	return fields, nil
}

// parseAssignments splits field=value pairs.
func parseAssignments(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("--set %q must look like field=value", p))
		}
		out[name] = value
	}
	return out, nil
}

// readStdin reads stdin, which must be piped, up to maxStdinBytes.
func readStdin(f *os.File) ([]byte, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if stat.Mode()&os.ModeCharDevice != 0 {
		return nil, errors.NewInvalidRequest("--json expects input piped via stdin")
	}
	data, err := io.ReadAll(io.LimitReader(f, maxStdinBytes+1))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if len(data) > maxStdinBytes {
		return nil, errors.NewInvalidRequest("stdin exceeds 16MB")
	}
	return data, nil
}
