// Package admin implements the management commands run against a seqr deployment.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/seqr-matchmaker/internal/tags"
)

// UsageError reports a command invoked with missing or malformed arguments.
type UsageError struct {
	Command string
	Missing []string
	Message string
}

func (e *UsageError) Error() string {
	if len(e.Missing) > 0 {
		return "the following arguments are required: " + strings.Join(e.Missing, ", ")
	}
	return e.Message
}

// Migrator applies and rolls back schema migrations.
type Migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Close() error
}

// Dependencies opens the resources a command needs. Each is opened lazily so that a
// usage error never touches the database.
type Dependencies struct {
	OpenTagStore func() (tags.Store, error)
	OpenMigrator func() (Migrator, error)
}

// CLI dispatches management commands.
type CLI struct {
	out    io.Writer
	logger *logrus.Logger
	deps   Dependencies
}

// NewCLI creates a new management CLI instance.
func NewCLI(out io.Writer, logger *logrus.Logger, deps Dependencies) *CLI {
	return &CLI{
		out:    out,
		logger: logger,
		deps:   deps,
	}
}

// Run executes the command named by args[0].
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "copy-project-tags", "copy_project_tags":
		return c.copyProjectTags(ctx, args[1:])
	case "migrate":
		return c.migrate(ctx, args[1:])
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		_ = c.showHelp()
		return &UsageError{Command: args[0], Message: fmt.Sprintf("unknown command: %s", args[0])}
	}
}

func (c *CLI) showHelp() error {
	help := `
seqr matchmaker management

Usage:
  manage [--config <file>] <command> [options]

Commands:
  copy-project-tags --source=<project guid> --target=<project guid>
                  Copy every variant tag type of the source project into the target project
  migrate up      Apply all pending schema migrations
  migrate down    Roll back the most recent schema migration
`
	_, err := fmt.Fprintln(c.out, help)
	return err
}

func (c *CLI) copyProjectTags(ctx context.Context, args []string) error {
	const command = "copy-project-tags"

	fs := pflag.NewFlagSet(command, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	source := fs.String("source", "", "GUID of the project to copy tags from")
	target := fs.String("target", "", "GUID of the project to copy tags to")

	if err := fs.Parse(args); err != nil {
		return &UsageError{Command: command, Message: err.Error()}
	}
	if fs.NArg() > 0 {
		return &UsageError{Command: command, Message: fmt.Sprintf("unrecognized arguments: %s", strings.Join(fs.Args(), " "))}
	}

	var missing []string
	if *source == "" {
		missing = append(missing, "--source")
	}
	if *target == "" {
		missing = append(missing, "--target")
	}
	if len(missing) > 0 {
		return &UsageError{Command: command, Missing: missing}
	}

	store, err := c.deps.OpenTagStore()
	if err != nil {
		return fmt.Errorf("opening tag store: %w", err)
	}
	defer store.Close()

	copied, err := tags.NewCopier(store, c.logger).CopyProjectTags(ctx, *source, *target)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(c.out, "Copied %d tag(s) from %s to %s\n", len(copied), *source, *target)
	return err
}

func (c *CLI) migrate(ctx context.Context, args []string) error {
	const command = "migrate"

	if len(args) != 1 || (args[0] != "up" && args[0] != "down") {
		return &UsageError{Command: command, Message: "usage: migrate up|down"}
	}

	migrator, err := c.deps.OpenMigrator()
	if err != nil {
		return fmt.Errorf("opening migrator: %w", err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			c.logger.WithError(err).Warn("Failed to close migrator")
		}
	}()

	if args[0] == "up" {
		return migrator.Up(ctx)
	}
	return migrator.Down(ctx)
}

// IsUsageError reports whether err is a UsageError.
func IsUsageError(err error) bool {
	var usage *UsageError
	return errors.As(err, &usage)
}
