// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"taskman/internal/credstore"
	"taskman/internal/gateway"
	"taskman/internal/task"
)

// FakeGateway is an in-memory implementation of gateway.Gateway for testing.
// It emulates the backend's filter/search/sort semantics and the credential
// side effects of login and code exchange.
type FakeGateway struct {
	mu     sync.Mutex
	creds  *credstore.Store
	tasks  []task.Task
	users  map[string]string // username -> password
	used   map[string]bool   // spent authorization codes
	nextID int

	// Token is the bearer token issued by Login and code exchange.
	Token string

	// Provider is returned by ProviderConfig.
	Provider gateway.ProviderConfig

	// ListCalls records the params of every ListTasks call.
	ListCalls []gateway.ListParams

	// ListTasksHook, when set, runs at the start of ListTasks. Tests use it
	// to stall a response and provoke out-of-order arrivals.
	ListTasksHook func(ctx context.Context, params gateway.ListParams) error

	// Error injection
	ListTasksErr  error
	GetTaskErr    error
	CreateTaskErr error
	UpdateTaskErr error
	DeleteTaskErr error
	StatisticsErr error
	LoginErr      error
	RegisterErr   error
	ExchangeErr   error
	ProviderErr   error
}

// NewFakeGateway creates a fake backed by the given credential store.
func NewFakeGateway(creds *credstore.Store) *FakeGateway {
	return &FakeGateway{
		creds: creds,
		users: make(map[string]string),
		used:  make(map[string]bool),
		Token: "fake-token",
	}
}

// AddTask seeds a task and returns it.
func (f *FakeGateway) AddTask(title string, status task.Status) task.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := task.Task{
		ID:        fmt.Sprintf("task-%d", f.nextID),
		Title:     title,
		Status:    status,
		Priority:  task.PriorityMedium,
		CreatedAt: time.Now().Add(time.Duration(f.nextID) * time.Second),
		UpdatedAt: time.Now().Add(time.Duration(f.nextID) * time.Second),
	}
	f.tasks = append(f.tasks, t)
	return t
}

// AddUser seeds a registered account.
func (f *FakeGateway) AddUser(username, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[username] = password
}

// Tasks returns a copy of the stored tasks.
func (f *FakeGateway) Tasks() []task.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]task.Task, len(f.tasks))
	copy(out, f.tasks)
	return out
}

// ListTasks implements gateway.Gateway.
func (f *FakeGateway) ListTasks(ctx context.Context, params gateway.ListParams) ([]task.Task, error) {
	f.mu.Lock()
	f.ListCalls = append(f.ListCalls, params)
	hook := f.ListTasksHook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, params); err != nil {
			return nil, err
		}
	}
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []task.Task
	for _, t := range f.tasks {
		if params.Status != "" && t.Status != params.Status {
			continue
		}
		if params.Search != "" && !matches(t, params.Search) {
			continue
		}
		out = append(out, t)
	}
	SortTasks(out, params.SortBy, params.SortOrder)
	return out, nil
}

// GetTask implements gateway.Gateway.
func (f *FakeGateway) GetTask(ctx context.Context, id string) (task.Task, error) {
	if f.GetTaskErr != nil {
		return task.Task{}, f.GetTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return task.Task{}, fmt.Errorf("%w: task %s", gateway.ErrNotFound, id)
}

// CreateTask implements gateway.Gateway.
func (f *FakeGateway) CreateTask(ctx context.Context, fields task.Fields) (task.Task, error) {
	if f.CreateTaskErr != nil {
		return task.Task{}, f.CreateTaskErr
	}
	if err := fields.Validate(); err != nil {
		return task.Task{}, fmt.Errorf("%w: %v", gateway.ErrValidation, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	status := fields.Status
	if status == "" {
		status = task.StatusCreated
	}
	priority := fields.Priority
	if priority == "" {
		priority = task.PriorityMedium
	}
	now := time.Now()
	t := task.Task{
		ID:          fmt.Sprintf("task-%d", f.nextID),
		Title:       fields.Title,
		Description: fields.Description,
		Status:      status,
		Priority:    priority,
		Deadline:    fields.Deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.tasks = append(f.tasks, t)
	return t, nil
}

// UpdateTask implements gateway.Gateway.
func (f *FakeGateway) UpdateTask(ctx context.Context, id string, patch task.Patch) (task.Task, error) {
	if f.UpdateTaskErr != nil {
		return task.Task{}, f.UpdateTaskErr
	}
	if err := patch.Validate(); err != nil {
		return task.Task{}, fmt.Errorf("%w: %v", gateway.ErrValidation, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		t := &f.tasks[i]
		if patch.Title != nil {
			t.Title = *patch.Title
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Status != nil {
			t.Status = *patch.Status
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		if patch.Deadline != nil {
			t.Deadline = patch.Deadline
		}
		t.UpdatedAt = time.Now()
		return *t, nil
	}
	return task.Task{}, fmt.Errorf("%w: task %s", gateway.ErrNotFound, id)
}

// DeleteTask implements gateway.Gateway.
func (f *FakeGateway) DeleteTask(ctx context.Context, id string) error {
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: task %s", gateway.ErrNotFound, id)
}

// GetStatistics implements gateway.Gateway.
func (f *FakeGateway) GetStatistics(ctx context.Context) (task.Statistics, error) {
	if f.StatisticsErr != nil {
		return task.Statistics{}, f.StatisticsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	stats := task.Statistics{Total: len(f.tasks)}
	for _, t := range f.tasks {
		switch t.Status {
		case task.StatusCreated:
			stats.Created++
		case task.StatusInProgress:
			stats.InProgress++
		case task.StatusCompleted:
			stats.Completed++
		}
		switch t.Priority {
		case task.PriorityLow:
			stats.LowPriority++
		case task.PriorityMedium:
			stats.MediumPriority++
		case task.PriorityHigh:
			stats.HighPriority++
		}
		if t.Overdue(now) {
			stats.Overdue++
		}
	}
	return stats, nil
}

// Login implements gateway.Gateway.
func (f *FakeGateway) Login(ctx context.Context, username, password string) (string, error) {
	if f.LoginErr != nil {
		return "", f.LoginErr
	}
	f.mu.Lock()
	stored, ok := f.users[username]
	f.mu.Unlock()
	if !ok || stored != password {
		return "", fmt.Errorf("%w: bad credentials", gateway.ErrAuth)
	}
	if err := f.creds.Set(f.Token, username); err != nil {
		return "", err
	}
	return f.Token, nil
}

// Register implements gateway.Gateway.
func (f *FakeGateway) Register(ctx context.Context, username, password string) error {
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[username]; exists {
		return fmt.Errorf("%w: user already exists", gateway.ErrValidation)
	}
	f.users[username] = password
	return nil
}

// ExchangeAuthorizationCode implements gateway.Gateway. Codes are
// single-use: a second exchange of the same code fails without touching the
// stored credentials.
func (f *FakeGateway) ExchangeAuthorizationCode(ctx context.Context, code string) (string, error) {
	if f.ExchangeErr != nil {
		return "", f.ExchangeErr
	}
	f.mu.Lock()
	spent := f.used[code]
	f.used[code] = true
	f.mu.Unlock()
	if spent {
		return "", fmt.Errorf("%w: authorization code already used", gateway.ErrAuth)
	}
	if err := f.creds.Set(f.Token, f.creds.Get().DisplayName); err != nil {
		return "", err
	}
	return f.Token, nil
}

// ProviderConfig implements gateway.Gateway.
func (f *FakeGateway) ProviderConfig(ctx context.Context) (gateway.ProviderConfig, error) {
	if f.ProviderErr != nil {
		return gateway.ProviderConfig{}, f.ProviderErr
	}
	return f.Provider, nil
}

// Logout implements gateway.Gateway.
func (f *FakeGateway) Logout() error {
	return f.creds.Clear()
}

func matches(t task.Task, search string) bool {
	s := strings.ToLower(search)
	return strings.Contains(strings.ToLower(t.Title), s) ||
		strings.Contains(strings.ToLower(t.Description), s)
}

// SortTasks orders tasks by the given field and direction, matching the
// backend's comparison rules. Tasks without a deadline sort last.
func SortTasks(tasks []task.Task, by gateway.SortField, order gateway.SortOrder) {
	if by == "" {
		return
	}
	desc := order == gateway.SortDesc
	sort.SliceStable(tasks, func(i, j int) bool {
		less := taskLess(tasks[i], tasks[j], by)
		if desc {
			return taskLess(tasks[j], tasks[i], by)
		}
		return less
	})
}

var statusRank = map[task.Status]int{
	task.StatusCreated:    0,
	task.StatusInProgress: 1,
	task.StatusCompleted:  2,
}

var priorityRank = map[task.Priority]int{
	task.PriorityLow:    0,
	task.PriorityMedium: 1,
	task.PriorityHigh:   2,
}

func taskLess(a, b task.Task, by gateway.SortField) bool {
	switch by {
	case gateway.SortCreatedAt:
		return a.CreatedAt.Before(b.CreatedAt)
	case gateway.SortUpdatedAt:
		return a.UpdatedAt.Before(b.UpdatedAt)
	case gateway.SortStatus:
		return statusRank[a.Status] < statusRank[b.Status]
	case gateway.SortPriority:
		return priorityRank[a.Priority] < priorityRank[b.Priority]
	case gateway.SortDeadline:
		if a.Deadline == nil {
			return false
		}
		if b.Deadline == nil {
			return true
		}
		return a.Deadline.Time.Before(b.Deadline.Time)
	}
	return false
}
