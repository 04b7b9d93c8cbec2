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
	"taskman/internal/output"
)

func init() {
	Register(&StatsCmd{})
}

// StatsCmd implements the stats command.
type StatsCmd struct{}

func (c *StatsCmd) Name() string      { return "stats" }
func (c *StatsCmd) Aliases() []string { return nil }
func (c *StatsCmd) Synopsis() string  { return "Show task statistics" }
func (c *StatsCmd) Usage() string     { return "taskman stats [common flags]" }
func (c *StatsCmd) NeedsAuth() bool   { return true }

func (c *StatsCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StatsCmd) Run(ctx context.Context, cfg *config.Config, gw gateway.Gateway, creds *credstore.Store, args []string, out, errOut io.Writer) int {
	if len(args) != 0 {
		fmt.Fprintln(errOut, "error: stats takes no arguments")
		return exitcode.UserError
	}

	stats, err := gw.GetStatistics(ctx)
	if err != nil {
		return WriteError(errOut, err)
	}

	output.FormatStatistics(out, stats)
	return exitcode.Success
}
