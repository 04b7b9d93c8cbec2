package query_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskman/internal/credstore"
	"taskman/internal/gateway"
	"taskman/internal/query"
	"taskman/internal/task"
	"taskman/internal/testutil"
)

func newEngine(t *testing.T) (*query.Engine, *testutil.FakeGateway) {
	t.Helper()
	creds := credstore.New(filepath.Join(t.TempDir(), "credentials.json"))
	gw := testutil.NewFakeGateway(creds)
	e := query.New(gw)
	e.Debounce = 20 * time.Millisecond
	t.Cleanup(e.Close)
	return e, gw
}

// searchCalls returns the recorded list calls that carried a search text.
func searchCalls(gw *testutil.FakeGateway) []gateway.ListParams {
	var out []gateway.ListParams
	for _, p := range gw.ListCalls {
		if p.Search != "" {
			out = append(out, p)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// A burst of search-text changes within the quiet period issues exactly one
// request, with the final text.
func TestSearchDebounce(t *testing.T) {
	e, gw := newEngine(t)

	e.SetSearchText("r")
	e.SetSearchText("re")
	e.SetSearchText("rep")
	e.SetSearchText("report")

	waitFor(t, func() bool { return len(searchCalls(gw)) > 0 })
	time.Sleep(100 * time.Millisecond) // no further request may follow

	calls := searchCalls(gw)
	require.Len(t, calls, 1)
	assert.Equal(t, "report", calls[0].Search)
}

// A stale response arriving after a newer commit must not overwrite it.
func TestStaleResponseDiscarded(t *testing.T) {
	e, gw := newEngine(t)
	gw.AddTask("write report", task.StatusCreated)
	gw.AddTask("ship release", task.StatusCompleted)

	release := make(chan struct{})
	gw.ListTasksHook = func(ctx context.Context, p gateway.ListParams) error {
		if p.Search == "slow" {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return nil
	}

	committed := make(chan query.Snapshot, 16)
	e.SetNotify(func(s query.Snapshot) {
		if !s.Loading {
			committed <- s
		}
	})

	// R1: will stall on its filtered call.
	e.SetSearchText("slow")
	waitFor(t, func() bool { return len(searchCalls(gw)) == 1 })

	// R2: supersedes R1 and commits first.
	e.SetStatusFilter(task.StatusCompleted)

	var snap query.Snapshot
	select {
	case snap = <-committed:
	case <-time.After(2 * time.Second):
		t.Fatal("second refresh never committed")
	}
	require.Len(t, snap.Visible, 1)
	assert.Equal(t, "ship release", snap.Visible[0].Title)

	// Let R1's slow response arrive; it must be discarded.
	close(release)
	time.Sleep(100 * time.Millisecond)

	got := e.Snapshot()
	require.Len(t, got.Visible, 1)
	assert.Equal(t, "ship release", got.Visible[0].Title)
	assert.NoError(t, got.Err)
}

// Errors from a superseded refresh are swallowed, not surfaced.
func TestStaleErrorSwallowed(t *testing.T) {
	e, gw := newEngine(t)
	gw.AddTask("write report", task.StatusCreated)

	release := make(chan struct{})
	boom := errors.New("boom")
	gw.ListTasksHook = func(ctx context.Context, p gateway.ListParams) error {
		if p.Search == "slow" {
			<-release
			return boom
		}
		return nil
	}

	e.SetSearchText("slow")
	waitFor(t, func() bool { return len(searchCalls(gw)) == 1 })

	e.SetSearchText("")
	e.Refresh()
	waitFor(t, func() bool { return !e.Snapshot().Loading })

	close(release)
	time.Sleep(50 * time.Millisecond)

	got := e.Snapshot()
	assert.NoError(t, got.Err)
	assert.Len(t, got.Visible, 1)
}

// Counts come from the unfiltered fetch and are independent of the filter.
func TestCountsIndependentOfFilter(t *testing.T) {
	e, gw := newEngine(t)
	gw.AddTask("a", task.StatusCreated)
	gw.AddTask("b", task.StatusCreated)
	gw.AddTask("c", task.StatusInProgress)
	gw.AddTask("d", task.StatusCompleted)
	gw.AddTask("e", task.StatusCompleted)
	gw.AddTask("f", task.StatusCompleted)

	require.NoError(t, e.RefreshWait(context.Background()))
	want := task.Counts{All: 6, Created: 2, InProgress: 1, Completed: 3}
	assert.Equal(t, want, e.Snapshot().Counts)

	e.SetStatusFilter(task.StatusCompleted)
	waitFor(t, func() bool { return !e.Snapshot().Loading })

	got := e.Snapshot()
	assert.Equal(t, want, got.Counts)
	assert.Len(t, got.Visible, 3)
}

// The issued request carries exactly the selection's parameters; sort order
// is absent when no sort field is chosen.
func TestIssuedParams(t *testing.T) {
	e, gw := newEngine(t)

	e.SetSearchText("report")
	e.SetStatusFilter(task.StatusCompleted)
	waitFor(t, func() bool { return len(searchCalls(gw)) > 0 })

	calls := searchCalls(gw)
	require.NotEmpty(t, calls)
	last := calls[len(calls)-1]
	assert.Equal(t, task.StatusCompleted, last.Status)
	assert.Equal(t, "report", last.Search)
	assert.Empty(t, last.SortBy)
	assert.Empty(t, last.SortOrder)
}

func TestSortSelection(t *testing.T) {
	e, gw := newEngine(t)
	gw.AddTask("older", task.StatusCreated)
	gw.AddTask("newer", task.StatusCreated)

	e.SetSort(gateway.SortCreatedAt, gateway.SortDesc)
	waitFor(t, func() bool {
		s := e.Snapshot()
		return !s.Loading && len(s.Visible) == 2
	})

	got := e.Snapshot()
	assert.Equal(t, "newer", got.Visible[0].Title)
	assert.Equal(t, "older", got.Visible[1].Title)
}

// A failed refresh keeps the previously displayed tasks and surfaces a
// retryable error; a later successful refresh clears it.
func TestFailureKeepsPreviousAndRetries(t *testing.T) {
	e, gw := newEngine(t)
	gw.AddTask("a", task.StatusCreated)

	require.NoError(t, e.RefreshWait(context.Background()))
	require.Len(t, e.Snapshot().Visible, 1)

	boom := errors.New("backend down")
	gw.ListTasksErr = boom
	assert.Error(t, e.RefreshWait(context.Background()))

	got := e.Snapshot()
	assert.ErrorIs(t, got.Err, boom)
	assert.Len(t, got.Visible, 1, "previous tasks kept on failure")

	gw.ListTasksErr = nil
	require.NoError(t, e.RefreshWait(context.Background()))
	assert.NoError(t, e.Snapshot().Err)
}
