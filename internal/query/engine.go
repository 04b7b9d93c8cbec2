// Package query keeps the visible task list consistent with the active
// filter/search/sort selection.
//
// Refreshes are asynchronous and may overlap; correctness rests on tagging
// every issued refresh with a monotonically increasing sequence number and
// committing only the response whose tag still equals the latest issued.
// Superseded in-flight requests are additionally context-cancelled, and
// their errors are swallowed rather than surfaced.
package query

import (
	"context"
	"sync"
	"time"

	"taskman/internal/gateway"
	"taskman/internal/task"
)

// DefaultDebounce is the quiet period after the last search-text change
// before a refresh is issued.
const DefaultDebounce = 300 * time.Millisecond

// Selection is the active filter/search/sort choice.
type Selection struct {
	Status    task.Status // empty means all statuses
	Search    string
	SortBy    gateway.SortField // empty means backend default order
	SortOrder gateway.SortOrder
}

// Params converts the selection to wire parameters. Sort order is only
// meaningful alongside a sort field and is dropped otherwise.
func (s Selection) Params() gateway.ListParams {
	p := gateway.ListParams{Status: s.Status, Search: s.Search}
	if s.SortBy != "" {
		p.SortBy = s.SortBy
		p.SortOrder = s.SortOrder
		if p.SortOrder == "" {
			p.SortOrder = gateway.SortAsc
		}
	}
	return p
}

// Snapshot is the engine's externally visible state.
type Snapshot struct {
	Selection Selection
	Visible   []task.Task
	Counts    task.Counts
	Loading   bool
	Err       error
}

// Engine owns the selection and the two derived collections: the visible
// (filtered) tasks and the unfiltered set the counts are computed from.
type Engine struct {
	gw gateway.Gateway

	// Debounce overrides DefaultDebounce. Set before first use.
	Debounce time.Duration

	mu      sync.Mutex
	sel     Selection
	visible []task.Task
	all     []task.Task
	counts  task.Counts
	err     error
	loading bool
	seq     uint64 // latest issued refresh tag
	cancel  context.CancelFunc
	timer   *time.Timer
	notify  func(Snapshot)
}

// New creates an engine over the given gateway. No refresh is issued until
// a setter or Refresh is called.
func New(gw gateway.Gateway) *Engine {
	return &Engine{gw: gw, Debounce: DefaultDebounce}
}

// SetNotify registers a callback invoked after every state change (refresh
// started or committed). It runs outside the engine lock and may call back
// into the engine.
func (e *Engine) SetNotify(fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notify = fn
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Selection returns the active selection.
func (e *Engine) Selection() Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel
}

// SetSelection replaces the whole selection without scheduling a refresh.
// One-shot callers follow it with RefreshWait.
func (e *Engine) SetSelection(sel Selection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel = sel
}

// SetStatusFilter updates the status filter and refreshes immediately.
func (e *Engine) SetStatusFilter(s task.Status) {
	e.mu.Lock()
	e.sel.Status = s
	fn, snap := e.startRefreshLocked()
	e.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// SetSort updates the sort selection and refreshes immediately.
func (e *Engine) SetSort(by gateway.SortField, order gateway.SortOrder) {
	e.mu.Lock()
	e.sel.SortBy = by
	e.sel.SortOrder = order
	fn, snap := e.startRefreshLocked()
	e.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// SetSearchText updates the search text and schedules a refresh after the
// debounce quiet period, so a burst of keystrokes issues one request with
// the final text.
func (e *Engine) SetSearchText(q string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel.Search = q
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.Debounce, e.Refresh)
}

// Refresh issues a refresh for the current selection immediately. Also the
// user-triggered retry path after a failure.
func (e *Engine) Refresh() {
	e.mu.Lock()
	fn, snap := e.startRefreshLocked()
	e.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// RefreshWait performs one refresh synchronously and returns its error.
// Used by one-shot callers that have no event loop to observe commits.
func (e *Engine) RefreshWait(ctx context.Context) error {
	e.mu.Lock()
	seq, rctx, sel := e.issueLocked(ctx)
	e.mu.Unlock()
	return e.fetch(rctx, seq, sel)
}

// Close cancels any pending debounce and in-flight refresh.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.cancel != nil {
		e.cancel()
	}
}

// issueLocked supersedes any in-flight refresh and allocates the next tag.
func (e *Engine) issueLocked(parent context.Context) (uint64, context.Context, Selection) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	e.cancel = cancel
	e.seq++
	e.loading = true
	return e.seq, ctx, e.sel
}

func (e *Engine) startRefreshLocked() (func(Snapshot), Snapshot) {
	seq, ctx, sel := e.issueLocked(context.Background())
	go e.fetch(ctx, seq, sel)
	return e.notify, e.snapshotLocked()
}

// fetch issues the two requests of one refresh concurrently: the filtered
// call feeding the visible list and the unfiltered call feeding the counts.
func (e *Engine) fetch(ctx context.Context, seq uint64, sel Selection) error {
	var (
		wg             sync.WaitGroup
		visible, all   []task.Task
		errVis, errAll error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		visible, errVis = e.gw.ListTasks(ctx, sel.Params())
	}()
	go func() {
		defer wg.Done()
		all, errAll = e.gw.ListTasks(ctx, gateway.ListParams{})
	}()
	wg.Wait()

	err := errVis
	if err == nil {
		err = errAll
	}
	e.commit(seq, visible, all, err)
	return err
}

// commit applies a response only if its tag still equals the latest issued:
// a slower response from a superseded refresh is discarded even though it
// arrives later, and its error is swallowed.
func (e *Engine) commit(seq uint64, visible, all []task.Task, err error) {
	e.mu.Lock()
	if seq != e.seq {
		e.mu.Unlock()
		return
	}
	e.loading = false
	if err != nil {
		// Keep the previously displayed collections; surface a
		// retryable error instead of clearing them.
		e.err = err
	} else {
		e.visible = visible
		e.all = all
		e.counts = task.CountByStatus(all)
		e.err = nil
	}
	fn := e.notify
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	visible := make([]task.Task, len(e.visible))
	copy(visible, e.visible)
	return Snapshot{
		Selection: e.sel,
		Visible:   visible,
		Counts:    e.counts,
		Loading:   e.loading,
		Err:       e.err,
	}
}
