package cli_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"taskman/internal/cli"
	"taskman/internal/commands"
	"taskman/internal/config"
	"taskman/internal/credstore"
	"taskman/internal/exitcode"
	"taskman/internal/gateway"
	"taskman/internal/testutil"
)

// testFactory returns a gateway factory that wraps the creds the dispatcher
// built into a fresh FakeGateway.
func testFactory(seed func(*testutil.FakeGateway)) cli.GatewayFactory {
	return func(ctx context.Context, cfg *config.Config, creds *credstore.Store) (gateway.Gateway, error) {
		gw := testutil.NewFakeGateway(creds)
		if seed != nil {
			seed(gw)
		}
		return gw, nil
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(nil))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"unknowncmd"}, &stdout, &stderr)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: unknowncmd\n"
	if stderr.String() != expected {
		t.Errorf("expected %q, got %q", expected, stderr.String())
	}
}

func TestDispatcher_FlagBeforeCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(nil))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"--quiet"}, &stdout, &stderr)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: --quiet\n"
	if stderr.String() != expected {
		t.Errorf("expected %q, got %q", expected, stderr.String())
	}
}

func TestDispatcher_HelpCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(nil))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"help"}, &stdout, &stderr)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr.String() != "" {
		t.Errorf("expected no stderr, got %q", stderr.String())
	}
	if !bytes.Contains(stdout.Bytes(), []byte("Usage:")) {
		t.Error("expected help output to contain 'Usage:'")
	}
}

func TestDispatcher_VersionCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(nil))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"version"}, &stdout, &stderr)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout.String() != "taskman 0.1.0\n" {
		t.Errorf("expected 'taskman 0.1.0\\n', got %q", stdout.String())
	}
}

func TestDispatcher_UnknownFlag(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(nil))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"help", "--unknown"}, &stdout, &stderr)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown flag: -unknown\n"
	if stderr.String() != expected {
		t.Errorf("expected %q, got %q", expected, stderr.String())
	}
}

func TestDispatcher_AuthGatedCommandWithoutLogin(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(nil))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"list", "--config", t.TempDir()}, &stdout, &stderr)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	expected := "error: not logged in (run: taskman login)\n"
	if stderr.String() != expected {
		t.Errorf("expected %q, got %q", expected, stderr.String())
	}
}

func TestDispatcher_AuthGatedCommandWithLogin(t *testing.T) {
	dir := t.TempDir()
	creds := credstore.New(filepath.Join(dir, config.CredentialsFile))
	if err := creds.Set("tok", "alice"); err != nil {
		t.Fatal(err)
	}

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(nil))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"list", "--config", dir}, &stdout, &stderr)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d: %s", exitcode.Success, code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "no tasks found") {
		t.Errorf("expected empty listing, got %q", stdout.String())
	}
}

func TestDispatcher_NoArgsDispatchesToList(t *testing.T) {
	// No stored credentials: the bare invocation must reach the auth-gated
	// list command and fail its pre-check, not report an unknown command.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(nil))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), nil, &stdout, &stderr)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
}
