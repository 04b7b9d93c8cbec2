// Package gateway defines the backend-agnostic interface for remote task
// and auth operations. All backend calls go through this interface; nothing
// above it touches net/http directly.
package gateway

import (
	"context"

	"taskman/internal/task"
)

// SortField selects the field a task listing is ordered by.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
	SortStatus    SortField = "status"
	SortPriority  SortField = "priority"
	SortDeadline  SortField = "deadline"
)

// Valid reports whether f is one of the defined sort fields.
func (f SortField) Valid() bool {
	switch f {
	case SortCreatedAt, SortUpdatedAt, SortStatus, SortPriority, SortDeadline:
		return true
	}
	return false
}

// SortOrder is the listing direction. Only meaningful alongside a SortField.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListParams are the query parameters for a task listing. Zero values are
// omitted from the request; in particular SortOrder must not be transmitted
// when SortBy is empty.
type ListParams struct {
	Status    task.Status
	Search    string
	SortBy    SortField
	SortOrder SortOrder
}

// ProviderConfig describes the OAuth provider as reported by the backend.
type ProviderConfig struct {
	ClientID     string `json:"client_id"`
	RedirectURI  string `json:"redirect_uri"`
	AuthorizeURL string `json:"authorize_url"`
}

// Gateway is the remote backend surface. Implementations attach the stored
// bearer token to every call except Login, Register, ProviderConfig and
// ExchangeAuthorizationCode, and write freshly issued tokens into the
// credential store before returning them: that is the single place new
// credentials enter the system.
type Gateway interface {
	// ListTasks returns tasks matching params, in backend order.
	ListTasks(ctx context.Context, params ListParams) ([]task.Task, error)

	// GetTask returns a single task by ID.
	GetTask(ctx context.Context, id string) (task.Task, error)

	// CreateTask creates a task and returns the stored version.
	CreateTask(ctx context.Context, fields task.Fields) (task.Task, error)

	// UpdateTask applies a partial update and returns the stored version.
	UpdateTask(ctx context.Context, id string, patch task.Patch) (task.Task, error)

	// DeleteTask deletes a task by ID.
	DeleteTask(ctx context.Context, id string) error

	// GetStatistics returns the backend's statistics summary.
	GetStatistics(ctx context.Context) (task.Statistics, error)

	// Login exchanges username/password for a bearer token, persisting it
	// as a side effect.
	Login(ctx context.Context, username, password string) (string, error)

	// Register creates an account. It does not establish a session.
	Register(ctx context.Context, username, password string) error

	// ExchangeAuthorizationCode trades a single-use OAuth code for a bearer
	// token, persisting it as a side effect. A reused code fails.
	ExchangeAuthorizationCode(ctx context.Context, code string) (string, error)

	// ProviderConfig returns the OAuth provider configuration.
	ProviderConfig(ctx context.Context) (ProviderConfig, error)

	// Logout clears the persisted credentials.
	Logout() error
}
