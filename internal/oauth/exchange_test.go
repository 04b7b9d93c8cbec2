package oauth_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskman/internal/credstore"
	"taskman/internal/gateway"
	"taskman/internal/oauth"
	"taskman/internal/testutil"
)

func newFixture(t *testing.T) (*testutil.FakeGateway, *credstore.Store) {
	t.Helper()
	creds := credstore.New(filepath.Join(t.TempDir(), "credentials.json"))
	return testutil.NewFakeGateway(creds), creds
}

func TestObserveURL(t *testing.T) {
	gw, creds := newFixture(t)

	e := oauth.New(gw, creds)
	assert.Equal(t, oauth.StateIdle, e.ObserveURL("http://localhost:5173/"))

	e = oauth.New(gw, creds)
	assert.Equal(t, oauth.StateCodePresent, e.ObserveURL("http://localhost:5173/?code=abc123"))

	// A machine already bound to a code ignores later URLs.
	assert.Equal(t, oauth.StateCodePresent, e.ObserveURL("http://localhost:5173/?code=other"))
}

func TestRunSucceeds(t *testing.T) {
	gw, creds := newFixture(t)
	e := oauth.New(gw, creds)
	e.ObserveCode("code-1")

	st := e.Run(context.Background())
	assert.Equal(t, oauth.StateSucceeded, st)
	assert.Equal(t, gw.Token, e.Token())
	assert.Equal(t, gw.Token, creds.Get().Token)
}

func TestRunWithoutCodeIsIdle(t *testing.T) {
	gw, creds := newFixture(t)
	e := oauth.New(gw, creds)
	assert.Equal(t, oauth.StateIdle, e.Run(context.Background()))
}

// Exchanging the same code twice: the second attempt fails without
// corrupting the token stored by the first.
func TestSameCodeTwice(t *testing.T) {
	gw, creds := newFixture(t)

	first := oauth.New(gw, creds)
	first.ObserveCode("code-1")
	require.Equal(t, oauth.StateSucceeded, first.Run(context.Background()))
	storedToken := creds.Get().Token
	require.NotEmpty(t, storedToken)

	// A second entry point observed the same redirect and lost the race.
	second := oauth.New(gw, creds)
	second.ObserveCode("code-1")
	assert.Equal(t, oauth.StateFailed, second.Run(context.Background()))
	assert.ErrorIs(t, second.Err(), gateway.ErrAuth)

	assert.Equal(t, storedToken, creds.Get().Token)
}

// Rapid duplicate Run calls issue exactly one exchange.
func TestDuplicateRunSingleFlight(t *testing.T) {
	gw, creds := newFixture(t)

	var calls int
	var mu sync.Mutex
	release := make(chan struct{})
	counting := &countingGateway{FakeGateway: gw, calls: &calls, mu: &mu, release: release}

	e := oauth.New(counting, creds)
	e.ObserveCode("code-1")

	var wg sync.WaitGroup
	states := make([]oauth.State, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = e.Run(context.Background())
		}(i)
	}
	close(release)
	wg.Wait()

	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()

	// One caller sees the terminal success; the other observed the
	// in-flight or terminal state, never a second exchange.
	for _, st := range states {
		assert.Contains(t, []oauth.State{oauth.StateExchanging, oauth.StateSucceeded}, st)
	}
	assert.Equal(t, oauth.StateSucceeded, e.StateNow())
}

type countingGateway struct {
	*testutil.FakeGateway
	calls   *int
	mu      *sync.Mutex
	release chan struct{}
}

func (c *countingGateway) ExchangeAuthorizationCode(ctx context.Context, code string) (string, error) {
	c.mu.Lock()
	*c.calls++
	c.mu.Unlock()
	<-c.release
	return c.FakeGateway.ExchangeAuthorizationCode(ctx, code)
}

// A reported success with no readable token is a failure.
func TestTokenReadbackFailure(t *testing.T) {
	gw, creds := newFixture(t)
	e := oauth.New(&tokenSwallowingGateway{gw, creds}, creds)
	e.ObserveCode("code-1")

	assert.Equal(t, oauth.StateFailed, e.Run(context.Background()))
	assert.ErrorIs(t, e.Err(), gateway.ErrAuth)
}

type tokenSwallowingGateway struct {
	*testutil.FakeGateway
	creds *credstore.Store
}

func (g *tokenSwallowingGateway) ExchangeAuthorizationCode(ctx context.Context, code string) (string, error) {
	tok, err := g.FakeGateway.ExchangeAuthorizationCode(ctx, code)
	if err != nil {
		return "", err
	}
	// Simulate the storage write being lost.
	if err := g.creds.Clear(); err != nil {
		return "", err
	}
	return tok, nil
}

func TestFailedExchangeNeverRetries(t *testing.T) {
	gw, creds := newFixture(t)
	gw.ExchangeErr = fmt.Errorf("%w: provider down", gateway.ErrAuth)

	e := oauth.New(gw, creds)
	e.ObserveCode("code-1")
	require.Equal(t, oauth.StateFailed, e.Run(context.Background()))

	gw.ExchangeErr = nil
	// Still Failed: the machine never loops back into Exchanging.
	assert.Equal(t, oauth.StateFailed, e.Run(context.Background()))
}

func TestCleanRedirectURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://localhost:5173/?code=abc", "http://localhost:5173/"},
		{"http://localhost:5173/app?code=abc&tab=done", "http://localhost:5173/app?tab=done"},
		{"http://localhost:5173/", "http://localhost:5173/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, oauth.CleanRedirectURL(tt.in))
	}
}

func TestAuthorizeURL(t *testing.T) {
	u := oauth.AuthorizeURL(gateway.ProviderConfig{
		ClientID:     "cid-1",
		RedirectURI:  "http://localhost:5173/",
		AuthorizeURL: "https://oauth.yandex.ru/authorize",
	})
	assert.Contains(t, u, "https://oauth.yandex.ru/authorize?")
	assert.Contains(t, u, "response_type=code")
	assert.Contains(t, u, "client_id=cid-1")
	assert.Contains(t, u, "redirect_uri=http%3A%2F%2Flocalhost%3A5173%2F")
}
