package tui

import (
	"fmt"
	"strings"

	"taskman/internal/gateway"
	"taskman/internal/task"
)

var statusMarks = map[task.Status]string{
	task.StatusCreated:    "[ ]",
	task.StatusInProgress: "[~]",
	task.StatusCompleted:  "[x]",
}

// View renders the active screen.
func (m Model) View() string {
	if m.screen == screenAuth {
		return m.viewAuth()
	}
	return m.viewList()
}

func (m Model) viewAuth() string {
	var b strings.Builder

	mode := "log in"
	if m.registerMode {
		mode = "register"
	}
	b.WriteString(titleStyle.Render("taskman | "+mode) + "\n\n")
	b.WriteString(labelStyle.Render("username") + "  " + m.username.View() + "\n")
	b.WriteString(labelStyle.Render("password") + "  " + m.password.View() + "\n\n")

	if m.authBusy {
		b.WriteString("signing in...\n")
	}
	if m.authErr != "" {
		b.WriteString(errStyle.Render(m.authErr) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("enter submit | tab switch field | ctrl+r toggle register | ctrl+c quit") + "\n")
	return b.String()
}

func (m Model) viewList() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("taskman | "+m.sess.Snapshot().DisplayName) + "\n")
	b.WriteString(m.countsLine() + "\n")
	b.WriteString(m.selectionLine() + "\n")

	if m.searching || m.search.Value() != "" {
		b.WriteString(m.search.View() + "\n")
	}
	if m.creating {
		b.WriteString(m.title.View() + "\n")
	}
	b.WriteString("\n")

	if len(m.snap.Visible) == 0 {
		if m.snap.Loading {
			b.WriteString("loading...\n")
		} else {
			b.WriteString("no tasks found\n")
		}
	}
	now := m.now()
	for i, t := range m.snap.Visible {
		mark, ok := statusMarks[t.Status]
		if !ok {
			mark = "[?]"
		}
		meta := string(t.Priority)
		if t.Deadline != nil {
			meta += ", due " + t.Deadline.String()
		}
		line := fmt.Sprintf("%s %s  (%s)", mark, displayTitle(t.Title), meta)
		switch {
		case i == m.selected:
			line = selectedStyle.Render(line)
		case t.Overdue(now):
			line = overdueStyle.Render(line + "  overdue")
		case t.Status == task.StatusCompleted:
			line = completedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	if m.snap.Err != nil {
		b.WriteString(errStyle.Render("backend error, press r to retry") + "\n")
	} else if m.status != "" {
		b.WriteString(errStyle.Render(m.status) + "\n")
	}
	b.WriteString(helpStyle.Render("j/k move | / search | f filter | s sort | o order | n new | p start | c complete | d delete | r refresh | L logout | q quit") + "\n")
	return b.String()
}

func (m Model) countsLine() string {
	c := m.snap.Counts
	line := fmt.Sprintf("all %d | created %d | in_progress %d | completed %d",
		c.All, c.Created, c.InProgress, c.Completed)
	if m.snap.Loading {
		line += "  ..."
	}
	return countsStyle.Render(line)
}

func (m Model) selectionLine() string {
	sel := m.snap.Selection
	status := "all"
	if sel.Status != "" {
		status = string(sel.Status)
	}
	sort := "default"
	if sel.SortBy != "" {
		order := sel.SortOrder
		if order == "" {
			order = gateway.SortAsc
		}
		sort = fmt.Sprintf("%s %s", sel.SortBy, order)
	}
	return countsStyle.Render(fmt.Sprintf("status: %s | sort: %s", status, sort))
}

// displayTitle flattens newlines and substitutes a placeholder for
// whitespace-only titles.
func displayTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
