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
)

func init() {
	Register(&OAuthCallbackCmd{})
}

// OAuthCallbackCmd completes an OAuth login from a pasted redirect URL.
// Used when the provider redirect cannot reach the local callback server.
type OAuthCallbackCmd struct{}

func (c *OAuthCallbackCmd) Name() string      { return "oauth-callback" }
func (c *OAuthCallbackCmd) Aliases() []string { return nil }
func (c *OAuthCallbackCmd) Synopsis() string  { return "Complete OAuth login from a redirect URL" }
func (c *OAuthCallbackCmd) Usage() string {
	return "taskman oauth-callback <redirect-url> [common flags]"
}
func (c *OAuthCallbackCmd) NeedsAuth() bool { return false }

func (c *OAuthCallbackCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *OAuthCallbackCmd) Run(ctx context.Context, cfg *config.Config, gw gateway.Gateway, creds *credstore.Store, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "error: redirect URL required")
		return exitcode.UserError
	}
	rawURL := args[0]

	if creds.Get().Present() {
		if !cfg.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}

	ex := oauth.New(gw, creds)
	if ex.ObserveURL(rawURL) != oauth.StateCodePresent {
		fmt.Fprintln(errOut, "error: no authorization code in URL")
		return exitcode.UserError
	}
	if ex.Run(ctx) != oauth.StateSucceeded {
		return WriteError(errOut, ex.Err())
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
		// Print the URL with the code stripped so it is safe to revisit.
		fmt.Fprintln(out, oauth.CleanRedirectURL(rawURL))
	}
	return exitcode.Success
}
