// Package devserver is an in-memory implementation of the TaskManager REST
// backend, used for local development and integration tests. It mirrors the
// production API's routes, payloads and error bodies, including single-use
// authorization codes and FastAPI-style {"detail": ...} errors.
package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"taskman/internal/gateway"
	"taskman/internal/task"
)

// oauthUsername is the account an authorization-code exchange logs into.
const oauthUsername = "yandex-user"

// Server holds the in-memory backend state.
type Server struct {
	provider gateway.ProviderConfig

	mu        sync.Mutex
	users     map[string]string // username -> password
	tokens    map[string]string // bearer token -> username
	usedCodes map[string]bool
	tasks     map[string][]task.Task // username -> tasks
}

// New creates an empty server. The provider config is what clients use to
// build the authorization URL; the dev server itself never redirects.
func New(provider gateway.ProviderConfig) *Server {
	return &Server{
		provider:  provider,
		users:     make(map[string]string),
		tokens:    make(map[string]string),
		usedCodes: make(map[string]bool),
		tasks:     make(map[string][]task.Task),
	}
}

// AddUser seeds an account.
func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = password
}

// Handler builds the HTTP handler with all routes under /api/v1.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/yandex/config", s.handleProviderConfig)
		r.Post("/auth/yandex/callback", s.handleCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/tasks/", s.handleListTasks)
			r.Post("/tasks/", s.handleCreateTask)
			r.Get("/tasks/statistics/summary", s.handleStatistics)
			r.Get("/tasks/{id}", s.handleGetTask)
			r.Put("/tasks/{id}", s.handleUpdateTask)
			r.Delete("/tasks/{id}", s.handleDeleteTask)
		})
	})

	return r
}

type ctxKey int

const userKey ctxKey = 0

func contextWithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userKey, username)
}

func userFrom(r *http.Request) string {
	u, _ := r.Context().Value(userKey).(string)
	return u
}

// requireAuth resolves the bearer token to a username.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			writeDetail(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		s.mu.Lock()
		username, known := s.tokens[token]
		s.mu.Unlock()
		if !known {
			writeDetail(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := contextWithUser(r.Context(), username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}
	if body.Username == "" || body.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username and password required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[body.Username]; exists {
		writeDetail(w, http.StatusBadRequest, "username already registered")
		return
	}
	s.users[body.Username] = body.Password
	writeJSON(w, http.StatusCreated, map[string]string{"username": body.Username})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "malformed form body")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	s.mu.Lock()
	stored, ok := s.users[username]
	s.mu.Unlock()
	if !ok || stored != password {
		writeDetail(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": s.issueToken(username),
		"token_type":   "bearer",
	})
}

func (s *Server) handleProviderConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.provider)
}

// handleCallback exchanges an authorization code. Codes are single-use: the
// first exchange spends the code, and a replay fails even though the dev
// server never issued the code itself.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "code query parameter required")
		return
	}

	s.mu.Lock()
	spent := s.usedCodes[code]
	s.usedCodes[code] = true
	if !spent {
		if _, exists := s.users[oauthUsername]; !exists {
			s.users[oauthUsername] = uuid.NewString()
		}
	}
	s.mu.Unlock()

	if spent {
		writeDetail(w, http.StatusBadRequest, "authorization code already used")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": s.issueToken(oauthUsername),
		"token_type":   "bearer",
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := task.Status(q.Get("status"))
	if status != "" && !status.Valid() {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid status")
		return
	}
	sortBy := gateway.SortField(q.Get("sort_by"))
	if sortBy != "" && !sortBy.Valid() {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid sort_by")
		return
	}
	order := gateway.SortOrder(q.Get("sort_order"))
	search := strings.ToLower(q.Get("search"))

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []task.Task{}
	for _, t := range s.tasks[userFrom(r)] {
		if status != "" && t.Status != status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		out = append(out, t)
	}
	sortTasks(out, sortBy, order)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var fields task.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}
	if err := fields.Validate(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	status := fields.Status
	if status == "" {
		status = task.StatusCreated
	}
	priority := fields.Priority
	if priority == "" {
		priority = task.PriorityMedium
	}
	now := time.Now().UTC()
	t := task.Task{
		ID:          uuid.NewString(),
		Title:       fields.Title,
		Description: fields.Description,
		Status:      status,
		Priority:    priority,
		Deadline:    fields.Deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	user := userFrom(r)
	s.mu.Lock()
	s.tasks[user] = append(s.tasks[user], t)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.find(userFrom(r), chi.URLParam(r, "id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, *t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch task.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}
	if err := patch.Validate(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.find(userFrom(r), chi.URLParam(r, "id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "task not found")
		return
	}
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
	t.UpdatedAt = time.Now().UTC()
	writeJSON(w, http.StatusOK, *t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.tasks[user]
	for i, t := range list {
		if t.ID == id {
			s.tasks[user] = append(list[:i], list[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "task not found")
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	today := now.Format("2006-01-02")
	stats := task.Statistics{}
	for _, t := range s.tasks[userFrom(r)] {
		stats.Total++
		switch t.Status {
		case task.StatusCreated:
			stats.Created++
		case task.StatusInProgress:
			stats.InProgress++
		case task.StatusCompleted:
			stats.Completed++
			if t.UpdatedAt.Format("2006-01-02") == today {
				stats.CompletedToday++
			}
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
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) issueToken(username string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = username
	s.mu.Unlock()
	return token
}

// find returns a pointer into the user's slice. Caller holds the lock.
func (s *Server) find(user, id string) (*task.Task, bool) {
	list := s.tasks[user]
	for i := range list {
		if list[i].ID == id {
			return &list[i], true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
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

// sortTasks orders in place. Tasks without a deadline sort last in both
// directions.
func sortTasks(tasks []task.Task, by gateway.SortField, order gateway.SortOrder) {
	if by == "" {
		return
	}
	desc := order == gateway.SortDesc
	sort.SliceStable(tasks, func(i, j int) bool {
		if desc {
			return less(tasks[j], tasks[i], by)
		}
		return less(tasks[i], tasks[j], by)
	})
}

func less(a, b task.Task, by gateway.SortField) bool {
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
