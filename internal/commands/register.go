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
	"taskman/internal/session"
)

func init() {
	Register(&RegisterCmd{})
}

// RegisterCmd implements the register command. A successful registration
// logs in with the same credentials; creating an account by itself does
// not establish a session.
type RegisterCmd struct {
	username string
	password string
}

func (c *RegisterCmd) Name() string      { return "register" }
func (c *RegisterCmd) Aliases() []string { return nil }
func (c *RegisterCmd) Synopsis() string  { return "Create an account and log in" }
func (c *RegisterCmd) Usage() string {
	return "taskman register -u <username> -p <password> [common flags]"
}
func (c *RegisterCmd) NeedsAuth() bool { return false }

func (c *RegisterCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.username, "username", "", "")
	fs.StringVar(&c.username, "u", "", "")
	fs.StringVar(&c.password, "password", "", "")
	fs.StringVar(&c.password, "p", "", "")
}

func (c *RegisterCmd) Run(ctx context.Context, cfg *config.Config, gw gateway.Gateway, creds *credstore.Store, args []string, out, errOut io.Writer) int {
	if c.username == "" || c.password == "" {
		fmt.Fprintln(errOut, "error: username and password required")
		return exitcode.UserError
	}
	if creds.Get().Present() {
		fmt.Fprintln(errOut, "error: already logged in (run: taskman logout first)")
		return exitcode.UserError
	}

	sess := session.New(gw, creds)
	if err := sess.Register(ctx, c.username, c.password); err != nil {
		return WriteError(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
