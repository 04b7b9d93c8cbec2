// Package oauth implements the authorization-code exchange protocol.
//
// The authorization code is single-use at the provider. Both entry points
// that can observe a code (the local callback server and a pasted redirect
// URL) drive the same Exchange state machine, so duplicate-handling behavior
// cannot diverge between them.
package oauth

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/oauth2"

	"taskman/internal/credstore"
	"taskman/internal/gateway"
)

// State is the exchange protocol state.
type State int

const (
	// StateIdle: no authorization code observed. Terminal; no action.
	StateIdle State = iota

	// StateCodePresent: a code was observed and may be exchanged.
	StateCodePresent

	// StateExchanging: the network round trip is in flight.
	StateExchanging

	// StateSucceeded: the token is stored and readable back.
	StateSucceeded

	// StateFailed: the exchange failed; never retried for the same code.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCodePresent:
		return "code-present"
	case StateExchanging:
		return "exchanging"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Exchange converts one authorization code into a bearer token at most once.
type Exchange struct {
	gw    gateway.Gateway
	creds *credstore.Store

	mu    sync.Mutex
	state State
	code  string
	token string
	err   error
}

// New creates an Exchange in the Idle state.
func New(gw gateway.Gateway, creds *credstore.Store) *Exchange {
	return &Exchange{gw: gw, creds: creds}
}

// ObserveURL inspects a redirect URL for a code parameter. With no code the
// machine stays Idle; otherwise it moves to CodePresent. Observing is only
// allowed from Idle: a machine already bound to a code ignores later URLs.
func (e *Exchange) ObserveURL(rawURL string) State {
	u, err := url.Parse(rawURL)
	if err != nil {
		return e.StateNow()
	}
	return e.ObserveCode(u.Query().Get("code"))
}

// ObserveCode binds the machine to an authorization code.
func (e *Exchange) ObserveCode(code string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle || code == "" {
		return e.state
	}
	e.code = code
	e.state = StateCodePresent
	return e.state
}

// Run performs the exchange. It is safe to call from rapid re-invocation:
// while a round trip is in flight, or once a terminal state is reached,
// further calls return the current state without issuing a second exchange.
func (e *Exchange) Run(ctx context.Context) State {
	e.mu.Lock()
	if e.state != StateCodePresent {
		st := e.state
		e.mu.Unlock()
		return st
	}
	e.state = StateExchanging
	code := e.code
	e.mu.Unlock()

	token, err := e.gw.ExchangeAuthorizationCode(ctx, code)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = StateFailed
		e.err = err
		return e.state
	}
	// A reported success with no readable token means the store swallowed a
	// write failure; treat it as a failed transition.
	if !e.creds.Get().Present() {
		e.state = StateFailed
		e.err = fmt.Errorf("%w: token not readable after exchange", gateway.ErrAuth)
		return e.state
	}
	e.token = token
	e.state = StateSucceeded
	return e.state
}

// StateNow returns the current state.
func (e *Exchange) StateNow() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the failure cause, if any.
func (e *Exchange) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Token returns the exchanged token after a success.
func (e *Exchange) Token() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

// CleanRedirectURL strips the code parameter from a redirect URL so that
// re-processing the same URL never re-triggers an exchange. The rest of the
// URL is preserved.
func CleanRedirectURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Del("code")
	u.RawQuery = q.Encode()
	return u.String()
}

// AuthorizeURL builds the provider authorization URL for the code flow.
func AuthorizeURL(cfg gateway.ProviderConfig) string {
	oc := oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Endpoint:    oauth2.Endpoint{AuthURL: cfg.AuthorizeURL},
	}
	return oc.AuthCodeURL("")
}
