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
	Register(&StartCmd{})
	Register(&DoneCmd{})
}

// StartCmd moves a task to in_progress.
type StartCmd struct{}

func (c *StartCmd) Name() string      { return "start" }
func (c *StartCmd) Aliases() []string { return nil }
func (c *StartCmd) Synopsis() string  { return "Mark a task in progress" }
func (c *StartCmd) Usage() string     { return "taskman start <id>" }
func (c *StartCmd) NeedsAuth() bool   { return true }

func (c *StartCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StartCmd) Run(ctx context.Context, cfg *config.Config, gw gateway.Gateway, creds *credstore.Store, args []string, out, errOut io.Writer) int {
	return setStatus(ctx, cfg, gw, args, task.StatusInProgress, out, errOut)
}

// DoneCmd moves a task to completed.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return nil }
func (c *DoneCmd) Synopsis() string  { return "Mark a task completed" }
func (c *DoneCmd) Usage() string     { return "taskman done <id>" }
func (c *DoneCmd) NeedsAuth() bool   { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, gw gateway.Gateway, creds *credstore.Store, args []string, out, errOut io.Writer) int {
	return setStatus(ctx, cfg, gw, args, task.StatusCompleted, out, errOut)
}

func setStatus(ctx context.Context, cfg *config.Config, gw gateway.Gateway, args []string, st task.Status, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "error: task id required")
		return exitcode.UserError
	}

	patch := task.Patch{Status: &st}
	if _, err := gw.UpdateTask(ctx, args[0], patch); err != nil {
		return WriteError(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
