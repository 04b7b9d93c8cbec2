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
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "taskman help" }
func (c *HelpCmd) NeedsAuth() bool   { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, gw gateway.Gateway, creds *credstore.Store, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  taskman                                            List all tasks
  taskman list [--status <s>] [--search <text>] [--sort <field>] [--order asc|desc]
  taskman add [--desc <text>] [--priority <p>] [--deadline YYYY-MM-DD] <title...>
  taskman show <id>
  taskman edit [--title <t>] [--desc <text>] [--status <s>] [--priority <p>] [--deadline YYYY-MM-DD] <id>
  taskman start <id>
  taskman done <id>
  taskman rm <id>
  taskman stats
  taskman browse                                     Interactive view
  taskman login (-u <username> -p <password> | --oauth)
  taskman register -u <username> -p <password>
  taskman oauth-callback <redirect-url>
  taskman logout
  taskman whoami
  taskman version
  taskman help

Common flags:
  --config <dir>   Override the config directory
  --quiet          Suppress non-essential output
  --debug          Verbose error output

Fields:
  status     created | in_progress | completed
  priority   low | medium | high
  sort       created_at | updated_at | status | priority | deadline
`
