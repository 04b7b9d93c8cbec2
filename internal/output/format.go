// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"taskman/internal/task"
)

// Status markers for the one-line task format.
var statusMarks = map[task.Status]string{
	task.StatusCreated:    "[ ]",
	task.StatusInProgress: "[~]",
	task.StatusCompleted:  "[x]",
}

// FormatTaskLine formats a one-line task summary.
// Format: "{N:>4}  {MARK} {TITLE}  ({PRIORITY}[, due DATE][, overdue])\n"
func FormatTaskLine(w io.Writer, num int, t task.Task, now time.Time) {
	mark, ok := statusMarks[t.Status]
	if !ok {
		mark = "[?]"
	}
	meta := string(t.Priority)
	if t.Deadline != nil {
		meta += ", due " + t.Deadline.String()
	}
	if t.Overdue(now) {
		meta += ", overdue"
	}
	fmt.Fprintf(w, "%4d  %s %s  (%s)\n", num, mark, normalizeTitle(t.Title), meta)
}

// FormatTaskDetail formats the full task view for the show command.
func FormatTaskDetail(w io.Writer, t task.Task, now time.Time) {
	fmt.Fprintf(w, "id:        %s\n", t.ID)
	fmt.Fprintf(w, "title:     %s\n", normalizeTitle(t.Title))
	if t.Description != "" {
		fmt.Fprintf(w, "desc:      %s\n", t.Description)
	}
	fmt.Fprintf(w, "status:    %s\n", t.Status)
	fmt.Fprintf(w, "priority:  %s\n", t.Priority)
	if t.Deadline != nil {
		line := t.Deadline.String()
		if t.Overdue(now) {
			line += " (overdue)"
		}
		fmt.Fprintf(w, "deadline:  %s\n", line)
	}
	fmt.Fprintf(w, "created:   %s\n", t.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "updated:   %s\n", t.UpdatedAt.Format(time.RFC3339))
}

// FormatCounts formats the per-status counts bar shown above listings.
func FormatCounts(w io.Writer, c task.Counts) {
	fmt.Fprintf(w, "all %d | created %d | in_progress %d | completed %d\n",
		c.All, c.Created, c.InProgress, c.Completed)
}

// FormatStatistics formats the statistics summary.
func FormatStatistics(w io.Writer, s task.Statistics) {
	fmt.Fprintf(w, "total:            %d\n", s.Total)
	fmt.Fprintf(w, "created:          %d\n", s.Created)
	fmt.Fprintf(w, "in progress:      %d\n", s.InProgress)
	fmt.Fprintf(w, "completed:        %d\n", s.Completed)
	fmt.Fprintf(w, "overdue:          %d\n", s.Overdue)
	fmt.Fprintf(w, "high priority:    %d\n", s.HighPriority)
	fmt.Fprintf(w, "medium priority:  %d\n", s.MediumPriority)
	fmt.Fprintf(w, "low priority:     %d\n", s.LowPriority)
	fmt.Fprintf(w, "completed today:  %d\n", s.CompletedToday)
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
