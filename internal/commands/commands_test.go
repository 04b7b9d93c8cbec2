package commands_test

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"

	"taskman/internal/commands"
	"taskman/internal/config"
	"taskman/internal/credstore"
	"taskman/internal/exitcode"
	"taskman/internal/task"
	"taskman/internal/testutil"
)

// newEnv builds a fake gateway backed by a temp credential store.
func newEnv(t *testing.T) (*testutil.FakeGateway, *credstore.Store) {
	t.Helper()
	creds := credstore.New(filepath.Join(t.TempDir(), "credentials.json"))
	gw := testutil.NewFakeGateway(creds)
	return gw, creds
}

// runCommand parses args through the command's flag set and runs it.
func runCommand(t *testing.T, cmd commands.Command, gw *testutil.FakeGateway, creds *credstore.Store, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer

	cfg := &config.Config{
		Dir:   t.TempDir(),
		Quiet: quiet,
	}

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("flag parse: %v", err)
	}

	ctx := context.Background()
	code = cmd.Run(ctx, cfg, gw, creds, fs.Args(), &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	cmd := &commands.VersionCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "taskman 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	cmd := &commands.HelpCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Error("help output should contain 'Usage:'")
	}
}

// Tests for list command
func TestListCommand_WithTasks(t *testing.T) {
	gw, creds := newEnv(t)
	gw.AddTask("Buy milk", task.StatusCreated)
	gw.AddTask("Buy eggs", task.StatusCompleted)

	cmd := &commands.ListCmd{}
	stdout, stderr, code := runCommand(t, cmd, gw, creds, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}

	if !strings.HasPrefix(stdout, "all 2 | created 1 | in_progress 0 | completed 1\n") {
		t.Errorf("expected counts bar, got %q", stdout)
	}
	if !strings.Contains(stdout, "   1  [ ] Buy milk  (medium)\n") {
		t.Errorf("expected first task line, got %q", stdout)
	}
	if !strings.Contains(stdout, "   2  [x] Buy eggs  (medium)\n") {
		t.Errorf("expected second task line, got %q", stdout)
	}
}

func TestListCommand_Empty(t *testing.T) {
	gw, creds := newEnv(t)

	cmd := &commands.ListCmd{}
	stdout, _, code := runCommand(t, cmd, gw, creds, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stdout, "no tasks found\n") {
		t.Errorf("expected 'no tasks found', got %q", stdout)
	}
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	gw, creds := newEnv(t)

	cmd := &commands.ListCmd{}
	stdout, _, code := runCommand(t, cmd, gw, creds, nil, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no output in quiet mode, got %q", stdout)
	}
}

func TestListCommand_StatusFilter(t *testing.T) {
	gw, creds := newEnv(t)
	gw.AddTask("open one", task.StatusCreated)
	gw.AddTask("done one", task.StatusCompleted)

	cmd := &commands.ListCmd{}
	stdout, _, code := runCommand(t, cmd, gw, creds, []string{"--status", "completed"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if strings.Contains(stdout, "open one") {
		t.Errorf("filtered task should not appear, got %q", stdout)
	}
	if !strings.Contains(stdout, "done one") {
		t.Errorf("expected matching task, got %q", stdout)
	}
	// Counts always reflect the full unfiltered set.
	if !strings.HasPrefix(stdout, "all 2 | created 1 | in_progress 0 | completed 1\n") {
		t.Errorf("expected unfiltered counts, got %q", stdout)
	}
}

func TestListCommand_Search(t *testing.T) {
	gw, creds := newEnv(t)
	gw.AddTask("write report", task.StatusCreated)
	gw.AddTask("buy milk", task.StatusCreated)

	cmd := &commands.ListCmd{}
	stdout, _, code := runCommand(t, cmd, gw, creds, []string{"--search", "REPORT"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stdout, "write report") || strings.Contains(stdout, "buy milk") {
		t.Errorf("expected case-insensitive search match only, got %q", stdout)
	}
}

func TestListCommand_InvalidStatus(t *testing.T) {
	gw, creds := newEnv(t)

	cmd := &commands.ListCmd{}
	_, stderr, code := runCommand(t, cmd, gw, creds, []string{"--status", "bogus"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "invalid status") {
		t.Errorf("expected invalid status error, got %q", stderr)
	}
}

func TestListCommand_OrderWithoutSort(t *testing.T) {
	gw, creds := newEnv(t)

	cmd := &commands.ListCmd{}
	_, stderr, code := runCommand(t, cmd, gw, creds, []string{"--order", "desc"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "--order requires --sort") {
		t.Errorf("expected order/sort coupling error, got %q", stderr)
	}
}

func TestListCommand_SortDesc(t *testing.T) {
	gw, creds := newEnv(t)
	gw.AddTask("first", task.StatusCreated)
	gw.AddTask("second", task.StatusCreated)

	cmd := &commands.ListCmd{}
	stdout, _, code := runCommand(t, cmd, gw, creds, []string{"--sort", "created_at", "--order", "desc"}, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if strings.Index(stdout, "second") > strings.Index(stdout, "first") {
		t.Errorf("expected descending order, got %q", stdout)
	}
}

// Tests for add command
func TestAddCommand(t *testing.T) {
	gw, creds := newEnv(t)

	cmd := &commands.AddCmd{}
	stdout, stderr, code := runCommand(t, cmd, gw, creds, []string{"--priority", "high", "--deadline", "2026-12-01", "write", "the", "report"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d: %s", exitcode.Success, code, stderr)
	}
	if !strings.HasPrefix(stdout, "created task-") {
		t.Errorf("expected created id, got %q", stdout)
	}

	tasks := gw.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].Title != "write the report" {
		t.Errorf("expected joined title, got %q", tasks[0].Title)
	}
	if tasks[0].Priority != task.PriorityHigh {
		t.Errorf("expected high priority, got %q", tasks[0].Priority)
	}
	if tasks[0].Deadline == nil || tasks[0].Deadline.String() != "2026-12-01" {
		t.Errorf("expected deadline 2026-12-01, got %v", tasks[0].Deadline)
	}
}

func TestAddCommand_TitleRequired(t *testing.T) {
	gw, creds := newEnv(t)

	cmd := &commands.AddCmd{}
	_, stderr, code := runCommand(t, cmd, gw, creds, nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "title required") {
		t.Errorf("expected title error, got %q", stderr)
	}
}

func TestAddCommand_InvalidDeadline(t *testing.T) {
	gw, creds := newEnv(t)

	cmd := &commands.AddCmd{}
	_, stderr, code := runCommand(t, cmd, gw, creds, []string{"--deadline", "tomorrow", "task"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "invalid date") {
		t.Errorf("expected date error, got %q", stderr)
	}
}

// Tests for show command
func TestShowCommand(t *testing.T) {
	gw, creds := newEnv(t)
	seeded := gw.AddTask("inspect me", task.StatusInProgress)

	cmd := &commands.ShowCmd{}
	stdout, _, code := runCommand(t, cmd, gw, creds, []string{seeded.ID}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stdout, "title:     inspect me") {
		t.Errorf("expected title line, got %q", stdout)
	}
	if !strings.Contains(stdout, "status:    in_progress") {
		t.Errorf("expected status line, got %q", stdout)
	}
}

func TestShowCommand_NotFound(t *testing.T) {
	gw, creds := newEnv(t)

	cmd := &commands.ShowCmd{}
	_, stderr, code := runCommand(t, cmd, gw, creds, []string{"task-99"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr == "" {
		t.Error("expected error output")
	}
}

// Tests for edit command
func TestEditCommand(t *testing.T) {
	gw, creds := newEnv(t)
	seeded := gw.AddTask("old title", task.StatusCreated)

	cmd := &commands.EditCmd{}
	_, stderr, code := runCommand(t, cmd, gw, creds, []string{"--title", "new title", "--priority", "low", seeded.ID}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d: %s", exitcode.Success, code, stderr)
	}
	got := gw.Tasks()[0]
	if got.Title != "new title" {
		t.Errorf("expected updated title, got %q", got.Title)
	}
	if got.Priority != task.PriorityLow {
		t.Errorf("expected updated priority, got %q", got.Priority)
	}
	if got.Status != task.StatusCreated {
		t.Errorf("status should be unchanged, got %q", got.Status)
	}
}

func TestEditCommand_NothingToUpdate(t *testing.T) {
	gw, creds := newEnv(t)
	seeded := gw.AddTask("title", task.StatusCreated)

	cmd := &commands.EditCmd{}
	_, stderr, code := runCommand(t, cmd, gw, creds, []string{seeded.ID}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "nothing to update") {
		t.Errorf("expected nothing-to-update error, got %q", stderr)
	}
}

// Tests for start and done commands
func TestStartCommand(t *testing.T) {
	gw, creds := newEnv(t)
	seeded := gw.AddTask("work item", task.StatusCreated)

	cmd := &commands.StartCmd{}
	stdout, _, code := runCommand(t, cmd, gw, creds, []string{seeded.ID}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	if gw.Tasks()[0].Status != task.StatusInProgress {
		t.Errorf("expected in_progress, got %q", gw.Tasks()[0].Status)
	}
}

func TestDoneCommand(t *testing.T) {
	gw, creds := newEnv(t)
	seeded := gw.AddTask("work item", task.StatusInProgress)

	cmd := &commands.DoneCmd{}
	_, _, code := runCommand(t, cmd, gw, creds, []string{seeded.ID}, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if gw.Tasks()[0].Status != task.StatusCompleted {
		t.Errorf("expected completed, got %q", gw.Tasks()[0].Status)
	}
}

// Tests for rm command
func TestRmCommand(t *testing.T) {
	gw, creds := newEnv(t)
	seeded := gw.AddTask("delete me", task.StatusCreated)

	cmd := &commands.RmCmd{}
	_, _, code := runCommand(t, cmd, gw, creds, []string{seeded.ID}, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if len(gw.Tasks()) != 0 {
		t.Errorf("expected no tasks left, got %d", len(gw.Tasks()))
	}
}

func TestRmCommand_NotFound(t *testing.T) {
	gw, creds := newEnv(t)

	cmd := &commands.RmCmd{}
	_, _, code := runCommand(t, cmd, gw, creds, []string{"task-99"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
}

// Tests for stats command
func TestStatsCommand(t *testing.T) {
	gw, creds := newEnv(t)
	gw.AddTask("a", task.StatusCreated)
	gw.AddTask("b", task.StatusCompleted)

	cmd := &commands.StatsCmd{}
	stdout, _, code := runCommand(t, cmd, gw, creds, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stdout, "total:            2") {
		t.Errorf("expected total line, got %q", stdout)
	}
	if !strings.Contains(stdout, "completed:        1") {
		t.Errorf("expected completed line, got %q", stdout)
	}
}
