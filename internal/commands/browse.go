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
	"taskman/internal/tui"
)

func init() {
	Register(&BrowseCmd{})
}

// BrowseCmd launches the interactive browser. It does not require a
// session up front: the browser starts on its auth screen when no
// credentials are stored.
type BrowseCmd struct{}

func (c *BrowseCmd) Name() string      { return "browse" }
func (c *BrowseCmd) Aliases() []string { return []string{"ui"} }
func (c *BrowseCmd) Synopsis() string  { return "Browse tasks interactively" }
func (c *BrowseCmd) Usage() string     { return "taskman browse" }
func (c *BrowseCmd) NeedsAuth() bool   { return false }

func (c *BrowseCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *BrowseCmd) Run(ctx context.Context, cfg *config.Config, gw gateway.Gateway, creds *credstore.Store, args []string, out, errOut io.Writer) int {
	if err := tui.Run(ctx, gw, creds); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
