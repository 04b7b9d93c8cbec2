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
	"taskman/internal/oauth"
	"taskman/internal/session"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	username string
	password string
	oauth    bool
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Authenticate with the backend" }
func (c *LoginCmd) Usage() string {
	return "taskman login (-u <username> -p <password> | --oauth) [common flags]"
}
func (c *LoginCmd) NeedsAuth() bool { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.username, "username", "", "")
	fs.StringVar(&c.username, "u", "", "")
	fs.StringVar(&c.password, "password", "", "")
	fs.StringVar(&c.password, "p", "", "")
	fs.BoolVar(&c.oauth, "oauth", false, "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, gw gateway.Gateway, creds *credstore.Store, args []string, out, errOut io.Writer) int {
	if creds.Get().Present() {
		if !cfg.Quiet {
			fmt.Fprintln(out, "already logged in (run: taskman logout to switch accounts)")
		}
		return exitcode.Success
	}

	sess := session.New(gw, creds)

	if c.oauth {
		return c.runOAuth(ctx, cfg, gw, creds, sess, out, errOut)
	}

	if c.username == "" || c.password == "" {
		fmt.Fprintln(errOut, "error: username and password required (or use --oauth)")
		return exitcode.UserError
	}

	if err := sess.Login(ctx, c.username, c.password); err != nil {
		return WriteError(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// runOAuth drives the authorization-code flow with a local callback server.
// BeginOAuthLogin yields the URL to open; the provider redirects back to the
// configured redirect URI, where the callback server picks up the code.
func (c *LoginCmd) runOAuth(ctx context.Context, cfg *config.Config, gw gateway.Gateway, creds *credstore.Store, sess *session.Controller, out, errOut io.Writer) int {
	authURL, provider, err := sess.BeginOAuthLogin(ctx)
	if err != nil {
		return WriteError(errOut, err)
	}

	fmt.Fprintln(errOut, "Open this URL in your browser:")
	fmt.Fprintln(errOut, authURL)

	code, err := oauth.WaitForCallback(ctx, provider.RedirectURI)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		fmt.Fprintln(errOut, "If the redirect does not reach this machine, run: taskman oauth-callback <redirect-url>")
		return exitcode.AuthError
	}

	ex := oauth.New(gw, creds)
	ex.ObserveCode(code)
	if ex.Run(ctx) != oauth.StateSucceeded {
		return WriteError(errOut, ex.Err())
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
