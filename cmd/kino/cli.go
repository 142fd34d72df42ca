package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/logging"
	"github.com/hpungsan/kino/internal/ops"
	"github.com/hpungsan/kino/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.App {
	logger = logging.OrNop(logger)
	app := &cli.App{
		Name:    "kino",
		Usage:   "Screenplay outlining, wiki and timeline",
		Version: Version,
		Commands: []*cli.Command{
			newCmd(db, cfg),
			listCmd(db),
			showCmd(db, cfg),
			deleteCmd(db),
			purgeCmd(db),
			duplicateCmd(db, cfg),
			statsCmd(db, cfg),
			importCmd(db, cfg),
			exportCmd(db, cfg),
			nodeCmd(db, cfg),
			fieldCmd(db, cfg),
			resourceCmd(db, cfg),
			tasksCmd(db, cfg),
			timelineCmd(db, cfg),
			versionCmd(db, cfg),
			serveCmd(db, cfg, logger),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func newCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Create a script",
		ArgsUsage: "<title>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Script id (minted when omitted)"},
			&cli.StringFlag{Name: "author", Aliases: []string{"a"}, Usage: "Author name"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Description markup"},
			&cli.BoolFlag{Name: "skeleton", Aliases: []string{"s"}, Usage: "Seed one act, scene and beat"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			output, err := ops.CreateScript(c.Context, db, cfg, ops.CreateScriptInput{
				ID:          c.String("id"),
				Title:       strings.Join(c.Args().Slice(), " "),
				Author:      c.String("author"),
				Description: c.String("description"),
				Skeleton:    c.Bool("skeleton"),
			})
			return result(output, err)
		},
	}
}

func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List scripts, most recently updated first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted scripts"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListScripts(db, ops.ListInput{
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			return result(output, err)
		},
	}
}

func showCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a script document",
		ArgsUsage: "<script-id>",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			output, err := ops.GetScript(c.Context, db, cfg, c.Args().First())
			return result(output, err)
		},
	}
}

func deleteCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a script",
		ArgsUsage: "<script-id>",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			output, err := ops.DeleteScript(c.Context, db, c.Args().First())
			return result(output, err)
		},
	}
}

func purgeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete soft-deleted scripts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge if deleted more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}
			output, err := ops.PurgeScripts(c.Context, db, input)
			return result(output, err)
		},
	}
}

func duplicateCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "duplicate",
		Usage:     "Copy a script under a new id",
		ArgsUsage: "<script-id>",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			output, err := ops.DuplicateScript(c.Context, db, cfg, c.Args().First())
			return result(output, err)
		},
	}
}

func statsCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Word count, resources, runtime and task progress",
		ArgsUsage: "<script-id>",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			output, err := ops.Stats(c.Context, db, cfg, c.Args().First())
			return result(output, err)
		},
	}
}

func importCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a .kinoscript document or a .json/.yaml draft",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace|rename"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ImportScript(c.Context, db, cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			return result(output, err)
		},
	}
}

func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a script, history included, to a .kinoscript file",
		ArgsUsage: "<script-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.kino/exports/<title>-<timestamp>.kinoscript)"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			output, err := ops.ExportScript(c.Context, db, cfg, ops.ExportInput{
				ScriptID: c.Args().First(),
				Path:     c.String("path"),
			})
			return result(output, err)
		},
	}
}

func nodeCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "node",
		Usage: "Edit the act/scene/beat outline",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Append an act (no --parent), a scene or a beat",
				ArgsUsage: "<script-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "parent", Usage: "Parent node id"},
					&cli.StringFlag{Name: "kind", Usage: "act|scene|beat, checked against the parent"},
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title for acts and scenes"},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1); err != nil {
						return err
					}
					output, err := ops.AddNode(c.Context, db, cfg, ops.AddNodeInput{
						ScriptID: c.Args().First(),
						ParentID: c.String("parent"),
						Kind:     c.String("kind"),
						Title:    c.String("title"),
					})
					return result(output, err)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a node and its subtree",
				ArgsUsage: "<script-id> <node-id>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2); err != nil {
						return err
					}
					output, err := ops.DeleteNode(c.Context, db, cfg, ops.NodeRef{ScriptID: c.Args().Get(0), NodeID: c.Args().Get(1)})
					return result(output, err)
				},
			},
			{
				Name:      "move",
				Usage:     "Move a node before another, or into a new parent",
				ArgsUsage: "<script-id> <node-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "before", Usage: "Node to place it before"},
					&cli.StringFlag{Name: "into", Usage: "New parent"},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2); err != nil {
						return err
					}
					output, err := ops.MoveNode(c.Context, db, cfg, ops.MoveNodeInput{
						ScriptID: c.Args().Get(0),
						NodeID:   c.Args().Get(1),
						Before:   c.String("before"),
						Into:     c.String("into"),
					})
					return result(output, err)
				},
			},
			{
				Name:      "title",
				Usage:     "Rename an act or scene",
				ArgsUsage: "<script-id> <node-id> <title>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 3); err != nil {
						return err
					}
					output, err := ops.SetTitle(c.Context, db, cfg, ops.SetTitleInput{
						ScriptID: c.Args().Get(0),
						NodeID:   c.Args().Get(1),
						Title:    strings.Join(c.Args().Slice()[2:], " "),
					})
					return result(output, err)
				},
			},
			{
				Name:      "duration",
				Usage:     "Set a beat's duration in seconds",
				ArgsUsage: "<script-id> <node-id> <seconds>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 3); err != nil {
						return err
					}
					seconds, err := strconv.ParseFloat(c.Args().Get(2), 64)
					if err != nil {
						return outputError(errors.NewInvalidRequest("seconds must be a number"))
					}
					output, err := ops.SetDuration(c.Context, db, cfg, ops.SetDurationInput{
						ScriptID: c.Args().Get(0),
						NodeID:   c.Args().Get(1),
						Seconds:  seconds,
					})
					return result(output, err)
				},
			},
			{
				Name:      "collapse",
				Usage:     "Toggle a node's collapsed flag",
				ArgsUsage: "<script-id> <node-id>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2); err != nil {
						return err
					}
					output, err := ops.ToggleCollapse(c.Context, db, cfg, ops.NodeRef{ScriptID: c.Args().Get(0), NodeID: c.Args().Get(1)})
					return result(output, err)
				},
			},
		},
	}
}

func fieldCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	const usage = `<script-id> <owner> <field>`
	return &cli.Command{
		Name:  "field",
		Usage: "Write a rich-text field (owner is a node id, a resource id or \"metadata\")",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Replace the field with markup read from stdin",
				ArgsUsage: usage,
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 3); err != nil {
						return err
					}
					text, err := requireStdin("markup")
					if err != nil {
						return err
					}
					output, err := ops.SetField(c.Context, db, cfg, ops.SetFieldInput{
						ScriptID: c.Args().Get(0),
						Owner:    c.Args().Get(1),
						Field:    c.Args().Get(2),
						Markup:   text,
					})
					return result(output, err)
				},
			},
			{
				Name:      "type",
				Usage:     "Type keys through the editor, e.g. --keys 'Meet @Jo{Enter}'",
				ArgsUsage: usage,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "keys", Aliases: []string{"k"}, Required: true, Usage: "Key script; named keys in braces"},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 3); err != nil {
						return err
					}
					output, err := ops.TypeIntoField(c.Context, db, cfg, ops.TypeIntoFieldInput{
						ScriptID: c.Args().Get(0),
						Owner:    c.Args().Get(1),
						Field:    c.Args().Get(2),
						Keys:     c.String("keys"),
					})
					return result(output, err)
				},
			},
			{
				Name:      "markdown",
				Usage:     "Convert markdown from stdin into the field",
				ArgsUsage: usage,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "append", Usage: "Append instead of replacing"},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 3); err != nil {
						return err
					}
					text, err := requireStdin("markdown")
					if err != nil {
						return err
					}
					output, err := ops.ImportMarkdown(c.Context, db, cfg, ops.ImportMarkdownInput{
						ScriptID: c.Args().Get(0),
						Owner:    c.Args().Get(1),
						Field:    c.Args().Get(2),
						Markdown: text,
						Append:   c.Bool("append"),
					})
					return result(output, err)
				},
			},
		},
	}
}

func resourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "type", Usage: "character|location|object|media|web|note"},
		&cli.StringFlag{Name: "value", Usage: "Name or value"},
		&cli.StringFlag{Name: "label", Usage: "Display label"},
		&cli.StringFlag{Name: "color", Usage: "Chip colour"},
		&cli.StringFlag{Name: "icon", Usage: "Icon name"},
		&cli.StringFlag{Name: "description", Usage: "Description markup"},
		&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
	}
}

// optional returns a pointer to the flag value when the flag was given.
func optional(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

func resourceCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "resource",
		Usage: "Manage the script's wiki",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a wiki entry",
				ArgsUsage: "<script-id>",
				Flags:     append(resourceFlags(), &cli.StringFlag{Name: "id", Usage: "Resource id"}),
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1); err != nil {
						return err
					}
					output, err := ops.AddResource(c.Context, db, cfg, ops.AddResourceInput{
						ScriptID:    c.Args().First(),
						ID:          c.String("id"),
						Type:        c.String("type"),
						Value:       c.String("value"),
						Label:       c.String("label"),
						Color:       c.String("color"),
						Icon:        c.String("icon"),
						Description: c.String("description"),
						Tags:        parseTags(c.String("tags")),
					})
					return result(output, err)
				},
			},
			{
				Name:      "update",
				Usage:     "Edit a wiki entry; only the given flags change",
				ArgsUsage: "<script-id> <resource-id>",
				Flags:     resourceFlags(),
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2); err != nil {
						return err
					}
					input := ops.UpdateResourceInput{
						ScriptID:    c.Args().Get(0),
						ID:          c.Args().Get(1),
						Type:        optional(c, "type"),
						Value:       optional(c, "value"),
						Label:       optional(c, "label"),
						Color:       optional(c, "color"),
						Icon:        optional(c, "icon"),
						Description: optional(c, "description"),
					}
					if c.IsSet("tags") {
						input.Tags = parseTags(c.String("tags"))
					}
					output, err := ops.UpdateResource(c.Context, db, cfg, input)
					return result(output, err)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a wiki entry; chips that mention it remain",
				ArgsUsage: "<script-id> <resource-id>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2); err != nil {
						return err
					}
					output, err := ops.DeleteResource(c.Context, db, cfg, ops.ResourceRef{ScriptID: c.Args().Get(0), ID: c.Args().Get(1)})
					return result(output, err)
				},
			},
			{
				Name:      "refs",
				Usage:     "List the fields and resources that mention a resource",
				ArgsUsage: "<script-id> <resource-id>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2); err != nil {
						return err
					}
					output, err := ops.References(c.Context, db, cfg, ops.ReferencesInput{ScriptID: c.Args().Get(0), ResourceID: c.Args().Get(1)})
					return result(output, err)
				},
			},
		},
	}
}

func tasksCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "List and update checklist items",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				ArgsUsage: "<script-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "Filter: todo|in-progress|done"},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1); err != nil {
						return err
					}
					output, err := ops.ListTasks(c.Context, db, cfg, ops.ListTasksInput{ScriptID: c.Args().First(), Status: c.String("status")})
					return result(output, err)
				},
			},
			{
				Name:      "set",
				ArgsUsage: "<script-id> <task-id> <status>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 3); err != nil {
						return err
					}
					output, err := ops.SetTaskStatus(c.Context, db, cfg, ops.SetTaskStatusInput{
						ScriptID: c.Args().Get(0),
						TaskID:   c.Args().Get(1),
						Status:   c.Args().Get(2),
					})
					return result(output, err)
				},
			},
		},
	}
}

func timelineCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "timeline",
		Usage:     "Lay the script out on a time axis",
		ArgsUsage: "<script-id>",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			output, err := ops.Timeline(c.Context, db, cfg, c.Args().First())
			return result(output, err)
		},
	}
}

func versionCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Save, list and restore snapshots",
		Subcommands: []*cli.Command{
			{
				Name:      "save",
				ArgsUsage: "<script-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: `Label (default "Version N")`},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1); err != nil {
						return err
					}
					output, err := ops.SaveVersion(c.Context, db, cfg, ops.SaveVersionInput{ScriptID: c.Args().First(), Label: c.String("label")})
					return result(output, err)
				},
			},
			{
				Name:      "list",
				ArgsUsage: "<script-id>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1); err != nil {
						return err
					}
					output, err := ops.ListVersions(c.Context, db, c.Args().First())
					return result(output, err)
				},
			},
			{
				Name:      "restore",
				ArgsUsage: "<script-id> <version-id>",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2); err != nil {
						return err
					}
					output, err := ops.RestoreVersion(c.Context, db, cfg, ops.RestoreVersionInput{ScriptID: c.Args().Get(0), VersionID: c.Args().Get(1)})
					return result(output, err)
				},
			},
		},
	}
}

func serveCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the read-only web reader",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(db, cfg, logger, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return web.Run(ctx, srv, logger)
		},
	}
}

// Helper functions

// result prints output as JSON, or formats err for the CLI.
func result(output any, err error) error {
	if err != nil {
		return outputError(err)
	}
	return outputJSON(output)
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	kinoErr := errors.From(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", kinoErr.Code, kinoErr.Message), 1)
}

// requireArgs fails with INVALID_REQUEST when fewer than n positional args were given.
func requireArgs(c *cli.Context, n int) error {
	if c.NArg() < n {
		return outputError(errors.NewInvalidRequest(fmt.Sprintf("usage: kino %s %s", c.Command.FullName(), c.Command.ArgsUsage)))
	}
	return nil
}

// requireStdin reads piped stdin, failing when nothing is piped.
func requireStdin(what string) (string, error) {
	if !stdinHasData() {
		return "", outputError(errors.NewInvalidRequest(what + " must be piped via stdin"))
	}
	text, err := readStdin()
	if err != nil {
		return "", outputError(errors.NewInternal(err))
	}
	return text, nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
