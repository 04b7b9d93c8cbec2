package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"taskman/internal/config"
	"taskman/internal/credstore"
	"taskman/internal/exitcode"
	"taskman/internal/gateway"
	"taskman/internal/output"
	"taskman/internal/query"
	"taskman/internal/task"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
type ListCmd struct {
	status string
	search string
	sortBy string
	order  string
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string {
	return "taskman list [--status <status>] [--search <text>] [--sort <field>] [--order asc|desc]"
}
func (c *ListCmd) NeedsAuth() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.status, "s", "", "")
	fs.StringVar(&c.search, "search", "", "")
	fs.StringVar(&c.sortBy, "sort", "", "")
	fs.StringVar(&c.order, "order", "", "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, gw gateway.Gateway, creds *credstore.Store, args []string, out, errOut io.Writer) int {
	sel, errCode := c.selection(errOut)
	if errCode != exitcode.Success {
		return errCode
	}

	eng := query.New(gw)
	defer eng.Close()
	eng.SetSelection(sel)
	if err := eng.RefreshWait(ctx); err != nil {
		return WriteError(errOut, err)
	}

	snap := eng.Snapshot()
	if !cfg.Quiet {
		output.FormatCounts(out, snap.Counts)
	}
	if len(snap.Visible) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}

	now := time.Now()
	for i, t := range snap.Visible {
		output.FormatTaskLine(out, i+1, t, now)
	}
	return exitcode.Success
}

// selection validates the flags and builds the query selection.
func (c *ListCmd) selection(errOut io.Writer) (query.Selection, int) {
	var sel query.Selection

	if c.status != "" {
		st, err := task.ParseStatus(c.status)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return sel, exitcode.UserError
		}
		sel.Status = st
	}
	sel.Search = c.search

	if c.sortBy != "" {
		f := gateway.SortField(c.sortBy)
		if !f.Valid() {
			fmt.Fprintf(errOut, "error: invalid sort field: %s\n", c.sortBy)
			return sel, exitcode.UserError
		}
		sel.SortBy = f
	}
	if c.order != "" {
		if c.sortBy == "" {
			fmt.Fprintln(errOut, "error: --order requires --sort")
			return sel, exitcode.UserError
		}
		switch gateway.SortOrder(c.order) {
		case gateway.SortAsc, gateway.SortDesc:
			sel.SortOrder = gateway.SortOrder(c.order)
		default:
			fmt.Fprintf(errOut, "error: invalid sort order: %s\n", c.order)
			return sel, exitcode.UserError
		}
	}
	return sel, exitcode.Success
}
