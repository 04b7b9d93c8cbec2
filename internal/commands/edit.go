package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskman/internal/config"
	"taskman/internal/credstore"
	"taskman/internal/exitcode"
	"taskman/internal/gateway"
	"taskman/internal/task"
)

func init() {
	Register(&EditCmd{})
}

// EditCmd implements the edit command. Only flags the user actually set are
// sent: an empty string is a legal description, so "not given" has to be
// told apart from "given empty" via fs.Visit rather than zero values.
type EditCmd struct {
	title    string
	desc     string
	status   string
	priority string
	deadline string

	fs *flag.FlagSet
}

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return nil }
func (c *EditCmd) Synopsis() string  { return "Update fields of a task" }
func (c *EditCmd) Usage() string {
	return "taskman edit [--title <t>] [--desc <text>] [--status <s>] [--priority <p>] [--deadline YYYY-MM-DD] <id>"
}
func (c *EditCmd) NeedsAuth() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.title, "title", "", "")
	fs.StringVar(&c.desc, "desc", "", "")
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.priority, "priority", "", "")
	fs.StringVar(&c.deadline, "deadline", "", "")
	c.fs = fs
}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, gw gateway.Gateway, creds *credstore.Store, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "error: task id required")
		return exitcode.UserError
	}

	set := make(map[string]bool)
	c.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	patch, errCode := c.patch(set, errOut)
	if errCode != exitcode.Success {
		return errCode
	}
	if patch.Empty() {
		fmt.Fprintln(errOut, "error: nothing to update")
		return exitcode.UserError
	}
	if err := patch.Validate(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if _, err := gw.UpdateTask(ctx, args[0], patch); err != nil {
		return WriteError(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

func (c *EditCmd) patch(set map[string]bool, errOut io.Writer) (task.Patch, int) {
	var p task.Patch

	if set["title"] {
		title := c.title
		p.Title = &title
	}
	if set["desc"] {
		desc := c.desc
		p.Description = &desc
	}
	if set["status"] {
		st, err := task.ParseStatus(c.status)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return p, exitcode.UserError
		}
		p.Status = &st
	}
	if set["priority"] {
		pr, err := task.ParsePriority(c.priority)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return p, exitcode.UserError
		}
		p.Priority = &pr
	}
	if set["deadline"] {
		d, err := task.ParseDate(c.deadline)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return p, exitcode.UserError
		}
		p.Deadline = &d
	}
	return p, exitcode.Success
}
