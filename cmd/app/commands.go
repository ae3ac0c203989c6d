package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/mdboard/internal"
	"github.com/starford/mdboard/internal/models"
	"github.com/starford/mdboard/internal/taskservice"
	pkgconfig "github.com/starford/mdboard/pkg/config"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:   "mdboard",
		Usage:  "Kanban boards backed by Markdown checklists",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE events and workspace watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:   "docs",
				Usage:  "List board documents",
				Action: listDocuments,
			},
			{
				Name:      "ls",
				Usage:     "Print a document's board",
				ArgsUsage: "<document>",
				Action:    showBoard,
			},
			{
				Name:      "headings",
				Usage:     "List a document's heading paths",
				ArgsUsage: "<document>",
				Action:    listHeadings,
			},
			{
				Name:      "add",
				Usage:     "Add a task",
				ArgsUsage: "<document> <title>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: `Heading path, e.g. "Work / Reports"`},
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Status (defaults to the document's default)"},
				},
				Action: addTask,
			},
			{
				Name:      "edit",
				Usage:     "Change a task's title, status or heading",
				ArgsUsage: "<document> <id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "New status"},
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: `New heading path; "" moves to the root`},
				},
				Action: editTask,
			},
			{
				Name:      "rm",
				Usage:     "Delete a task",
				ArgsUsage: "<document> <id>",
				Action:    removeTask,
			},
		},
	}
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

// service builds an unindexed service for one-shot commands. Logs go to
// stderr so stdout stays clean for output.
func service(cmd *cli.Command) (*taskservice.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return internal.NewTaskService(cfg, logger)
}

func args(cmd *cli.Command, names ...string) ([]string, error) {
	if cmd.NArg() != len(names) {
		return nil, fmt.Errorf("usage: %s %s", cmd.Name, strings.Join(names, " "))
	}
	return cmd.Args().Slice(), nil
}

func out(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func listDocuments(ctx context.Context, cmd *cli.Command) error {
	svc, err := service(cmd)
	if err != nil {
		return err
	}
	docs, err := svc.ListDocuments(ctx)
	if err != nil {
		return err
	}
	w := out(cmd)
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%d tasks\n", d.Path, d.TaskCount)
	}
	return nil
}

func showBoard(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, "<document>")
	if err != nil {
		return err
	}
	svc, err := service(cmd)
	if err != nil {
		return err
	}
	board, err := svc.Board(ctx, a[0])
	if err != nil {
		return err
	}
	w := out(cmd)
	for i, col := range board.Columns {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%d)\n", col.Status, len(col.Tasks))
		for _, t := range col.Tasks {
			box := " "
			if t.Checked {
				box = "x"
			}
			fmt.Fprintf(w, "  [%s] %s  %s  %s\n", box, t.ID, t.Title, t.Path)
		}
	}
	for _, warning := range board.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}
	return nil
}

func listHeadings(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, "<document>")
	if err != nil {
		return err
	}
	svc, err := service(cmd)
	if err != nil {
		return err
	}
	headings, err := svc.Headings(ctx, a[0])
	if err != nil {
		return err
	}
	w := out(cmd)
	for _, h := range headings {
		fmt.Fprintln(w, h.Path)
	}
	return nil
}

func addTask(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, "<document>", "<title>")
	if err != nil {
		return err
	}
	svc, err := service(cmd)
	if err != nil {
		return err
	}
	m, err := svc.CreateTask(ctx, a[0], taskservice.CreateInput{
		Title:  a[1],
		Path:   models.ParsePath(cmd.String("path")),
		Status: cmd.String("status"),
	})
	if err != nil {
		return err
	}
	return printMutation(cmd, m)
}

func editTask(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, "<document>", "<id>")
	if err != nil {
		return err
	}
	var in taskservice.UpdateInput
	if cmd.IsSet("title") {
		v := cmd.String("title")
		in.Title = &v
	}
	if cmd.IsSet("status") {
		v := cmd.String("status")
		in.Status = &v
	}
	if cmd.IsSet("path") {
		p := models.ParsePath(cmd.String("path"))
		in.Path = &p
	}
	if in.Title == nil && in.Status == nil && in.Path == nil {
		return errors.New("edit: one of --title, --status or --path is required")
	}

	svc, err := service(cmd)
	if err != nil {
		return err
	}
	m, err := svc.UpdateTask(ctx, a[0], models.TaskID(a[1]), in, "")
	if err != nil {
		return err
	}
	return printMutation(cmd, m)
}

func removeTask(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, "<document>", "<id>")
	if err != nil {
		return err
	}
	svc, err := service(cmd)
	if err != nil {
		return err
	}
	if _, err := svc.DeleteTask(ctx, a[0], models.TaskID(a[1]), ""); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "deleted %s\n", a[1])
	return nil
}

func printMutation(cmd *cli.Command, m *taskservice.Mutation) error {
	if m.Task == nil {
		fmt.Fprintf(out(cmd), "%s updated\n", m.Document)
		return nil
	}
	fmt.Fprintf(out(cmd), "%s\t%s\t%s\t%s\n", m.Task.ID, m.Task.Status, m.Task.Title, m.Task.Path)
	return nil
}
