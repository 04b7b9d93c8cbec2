// Package session derives authentication state from the credential store
// and exposes the login, registration and logout operations.
package session

import (
	"context"
	"sync"

	"taskman/internal/credstore"
	"taskman/internal/gateway"
	"taskman/internal/oauth"
)

// DefaultDisplayName is shown when a session has no resolved display name,
// e.g. right after an OAuth login.
const DefaultDisplayName = "user"

// Snapshot is the derived authentication state.
type Snapshot struct {
	Authenticated bool
	DisplayName   string
}

// Controller gates access to the task views. It re-derives its snapshot
// whenever the credential store reports an external change, so a logout in
// another process is reflected here without a restart.
type Controller struct {
	gw    gateway.Gateway
	creds *credstore.Store

	mu       sync.Mutex
	snap     Snapshot
	onChange func(Snapshot)
}

// New creates a controller and derives the initial snapshot.
func New(gw gateway.Gateway, creds *credstore.Store) *Controller {
	c := &Controller{gw: gw, creds: creds}
	c.snap = derive(creds.Get())
	return c
}

// Snapshot returns the current derived state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// OnChange registers a callback invoked (from the watcher goroutine) after
// each re-derivation triggered by an external store change.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Watch consumes external-change notifications until ctx is done. Run it in
// its own goroutine.
func (c *Controller) Watch(ctx context.Context) {
	ch := c.creds.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case cred, ok := <-ch:
			if !ok {
				return
			}
			c.mu.Lock()
			c.snap = derive(cred)
			snap := c.snap
			fn := c.onChange
			c.mu.Unlock()
			if fn != nil {
				fn(snap)
			}
		}
	}
}

// Login authenticates with username/password. The gateway persists the
// token; the controller only re-derives.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	if _, err := c.gw.Login(ctx, username, password); err != nil {
		return err
	}
	c.refresh()
	return nil
}

// Register creates the account and immediately logs in with the same
// credentials: registration by itself does not establish a session.
func (c *Controller) Register(ctx context.Context, username, password string) error {
	if err := c.gw.Register(ctx, username, password); err != nil {
		return err
	}
	return c.Login(ctx, username, password)
}

// Logout clears the stored credentials.
func (c *Controller) Logout() error {
	if err := c.gw.Logout(); err != nil {
		return err
	}
	c.refresh()
	return nil
}

// BeginOAuthLogin fetches the provider configuration and returns the
// authorization URL to navigate to. The navigation itself is up to the
// caller; in-memory state does not survive it.
func (c *Controller) BeginOAuthLogin(ctx context.Context) (string, gateway.ProviderConfig, error) {
	cfg, err := c.gw.ProviderConfig(ctx)
	if err != nil {
		return "", gateway.ProviderConfig{}, err
	}
	return oauth.AuthorizeURL(cfg), cfg, nil
}

// Refresh re-derives the snapshot from the store. Called after any
// operation that may have changed credentials outside the controller.
func (c *Controller) Refresh() Snapshot {
	c.refresh()
	return c.Snapshot()
}

func (c *Controller) refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = derive(c.creds.Get())
}

func derive(cred credstore.Credential) Snapshot {
	s := Snapshot{Authenticated: cred.Present(), DisplayName: cred.DisplayName}
	if s.Authenticated && s.DisplayName == "" {
		s.DisplayName = DefaultDisplayName
	}
	return s
}
