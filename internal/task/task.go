// Package task defines the task data model shared by the client packages.
package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is a task lifecycle state. Only the three defined values are valid.
type Status string

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Statuses returns all statuses in lifecycle order.
func Statuses() []Status {
	return []Status{StatusCreated, StatusInProgress, StatusCompleted}
}

// ParseStatus converts user input to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("invalid status: %s", s)
	}
	return st, nil
}

// Priority is a task priority level. Only the three defined values are valid.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority converts user input to a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority: %s", s)
	}
	return p, nil
}

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// DateLayout is the wire format for deadlines.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date: %s (want YYYY-MM-DD)", s)
	}
	return Date{t}, nil
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DateLayout))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Tolerate a full timestamp, keep the date part.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return err
	}
	*d = Date{t}
	return nil
}

// String returns the wire form.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Task is a single task as returned by the backend.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Deadline    *Date     `json:"deadline,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Overdue reports whether the task's deadline has passed without completion.
// A completed task is never overdue, regardless of its deadline.
func (t Task) Overdue(now time.Time) bool {
	if t.Deadline == nil || t.Status == StatusCompleted {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	deadline := t.Deadline.Time
	deadline = time.Date(deadline.Year(), deadline.Month(), deadline.Day(), 0, 0, 0, 0, time.UTC)
	return deadline.Before(today)
}

// Counts is a derived per-status breakdown of the full unfiltered task set.
type Counts struct {
	All        int
	Created    int
	InProgress int
	Completed  int
}

// CountByStatus derives Counts from an unfiltered task slice.
func CountByStatus(tasks []Task) Counts {
	c := Counts{All: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case StatusCreated:
			c.Created++
		case StatusInProgress:
			c.InProgress++
		case StatusCompleted:
			c.Completed++
		}
	}
	return c
}

// Statistics mirrors the backend's statistics summary.
type Statistics struct {
	Total          int `json:"total"`
	Created        int `json:"created"`
	InProgress     int `json:"in_progress"`
	Completed      int `json:"completed"`
	Overdue        int `json:"overdue"`
	HighPriority   int `json:"high_priority"`
	MediumPriority int `json:"medium_priority"`
	LowPriority    int `json:"low_priority"`
	CompletedToday int `json:"completed_today"`
}

// Validation limits enforced by the backend and mirrored client-side.
const (
	TitleMaxLen       = 200
	DescriptionMaxLen = 1000
)

// Fields is the payload for creating a task.
type Fields struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	Deadline    *Date    `json:"deadline,omitempty"`
}

// Validate checks the create payload before it is sent.
func (f Fields) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("title required")
	}
	if len([]rune(f.Title)) > TitleMaxLen {
		return fmt.Errorf("title too long (max %d chars)", TitleMaxLen)
	}
	if len([]rune(f.Description)) > DescriptionMaxLen {
		return fmt.Errorf("description too long (max %d chars)", DescriptionMaxLen)
	}
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("invalid status: %s", f.Status)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return fmt.Errorf("invalid priority: %s", f.Priority)
	}
	return nil
}

// Patch is the payload for a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Deadline    *Date     `json:"deadline,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.Deadline == nil
}

// Validate checks the update payload before it is sent.
func (p Patch) Validate() error {
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return fmt.Errorf("title required")
		}
		if len([]rune(*p.Title)) > TitleMaxLen {
			return fmt.Errorf("title too long (max %d chars)", TitleMaxLen)
		}
	}
	if p.Description != nil && len([]rune(*p.Description)) > DescriptionMaxLen {
		return fmt.Errorf("description too long (max %d chars)", DescriptionMaxLen)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("invalid status: %s", *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("invalid priority: %s", *p.Priority)
	}
	return nil
}
