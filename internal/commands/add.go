package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskman/internal/config"
	"taskman/internal/credstore"
	"taskman/internal/exitcode"
	"taskman/internal/gateway"
	"taskman/internal/task"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	desc     string
	priority string
	deadline string
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string {
	return "taskman add [--desc <text>] [--priority <p>] [--deadline YYYY-MM-DD] <title...>"
}
func (c *AddCmd) NeedsAuth() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.desc, "desc", "", "")
	fs.StringVar(&c.desc, "d", "", "")
	fs.StringVar(&c.priority, "priority", "", "")
	fs.StringVar(&c.priority, "p", "", "")
	fs.StringVar(&c.deadline, "deadline", "", "")
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, gw gateway.Gateway, creds *credstore.Store, args []string, out, errOut io.Writer) int {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}

	fields := task.Fields{Title: title, Description: c.desc}
	if c.priority != "" {
		p, err := task.ParsePriority(c.priority)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		fields.Priority = p
	}
	if c.deadline != "" {
		d, err := task.ParseDate(c.deadline)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		fields.Deadline = &d
	}
	if err := fields.Validate(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	created, err := gw.CreateTask(ctx, fields)
	if err != nil {
		return WriteError(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "created %s\n", created.ID)
	}
	return exitcode.Success
}
