// Package tui implements the interactive task browser.
//
// The model never mutates the task list itself: every change goes through
// the gateway, and the view re-renders from query engine snapshots pushed
// into the program as messages. Session snapshots arrive the same way, so
// a logout in another process drops the UI back to the auth screen.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskman/internal/credstore"
	"taskman/internal/gateway"
	"taskman/internal/query"
	"taskman/internal/session"
	"taskman/internal/task"
)

type screen int

const (
	screenAuth screen = iota
	screenList
)

// Messages
type querySnapshotMsg query.Snapshot

type sessionSnapshotMsg session.Snapshot

type authResultMsg struct{ err error }

type actionResultMsg struct{ err error }

// Model is the top-level bubbletea model.
type Model struct {
	gw   gateway.Gateway
	eng  *query.Engine
	sess *session.Controller

	screen screen
	width  int
	height int

	// auth screen
	username     textinput.Model
	password     textinput.Model
	passwordHas  bool
	registerMode bool
	authBusy     bool
	authErr      string

	// list screen
	snap      query.Snapshot
	selected  int
	search    textinput.Model
	searching bool
	title     textinput.Model
	creating  bool
	status    string

	now func() time.Time
}

// NewModel builds the model. The starting screen follows the current
// session state.
func NewModel(gw gateway.Gateway, eng *query.Engine, sess *session.Controller) Model {
	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 64
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword

	search := textinput.New()
	search.Placeholder = "search"
	search.Prompt = "/ "
	search.CharLimit = 256

	title := textinput.New()
	title.Placeholder = "task title"
	title.Prompt = "> "
	title.CharLimit = task.TitleMaxLen

	m := Model{
		gw:       gw,
		eng:      eng,
		sess:     sess,
		username: username,
		password: password,
		search:   search,
		title:    title,
		now:      time.Now,
	}
	if sess.Snapshot().Authenticated {
		m.screen = screenList
	}
	return m
}

// Init triggers the first refresh when a session already exists.
func (m Model) Init() tea.Cmd {
	if m.screen != screenList {
		return textinput.Blink
	}
	eng := m.eng
	return func() tea.Msg {
		eng.Refresh()
		return nil
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case querySnapshotMsg:
		m.snap = query.Snapshot(msg)
		if m.selected >= len(m.snap.Visible) {
			m.selected = len(m.snap.Visible) - 1
		}
		if m.selected < 0 {
			m.selected = 0
		}
		return m, nil

	case sessionSnapshotMsg:
		return m.updateSession(session.Snapshot(msg))

	case authResultMsg:
		m.authBusy = false
		if msg.err != nil {
			m.authErr = msg.err.Error()
			return m, nil
		}
		return m.enterList()

	case actionResultMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.status = ""
		m.eng.Refresh()
		return m, nil

	case tea.KeyMsg:
		if m.screen == screenAuth {
			return m.updateAuth(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

// updateSession reacts to credential changes observed outside this UI.
func (m Model) updateSession(s session.Snapshot) (tea.Model, tea.Cmd) {
	if !s.Authenticated && m.screen == screenList {
		m.screen = screenAuth
		m.authErr = "session ended"
		m.username.Focus()
		return m, textinput.Blink
	}
	if s.Authenticated && m.screen == screenAuth {
		return m.enterList()
	}
	return m, nil
}

func (m Model) enterList() (tea.Model, tea.Cmd) {
	m.screen = screenList
	m.authErr = ""
	m.password.SetValue("")
	eng := m.eng
	return m, func() tea.Msg {
		eng.Refresh()
		return nil
	}
}

func (m Model) updateAuth(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit) && !m.username.Focused() && !m.password.Focused():
		return m, tea.Quit
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case msg.Type == tea.KeyTab, msg.Type == tea.KeyShiftTab:
		if m.username.Focused() {
			m.username.Blur()
			m.password.Focus()
		} else {
			m.password.Blur()
			m.username.Focus()
		}
		return m, textinput.Blink
	case msg.Type == tea.KeyCtrlR:
		m.registerMode = !m.registerMode
		return m, nil
	case msg.Type == tea.KeyEnter:
		return m.submitAuth()
	}

	var cmd tea.Cmd
	if m.username.Focused() {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) submitAuth() (tea.Model, tea.Cmd) {
	if m.authBusy {
		return m, nil
	}
	username := strings.TrimSpace(m.username.Value())
	password := m.password.Value()
	if username == "" || password == "" {
		m.authErr = "username and password required"
		return m, nil
	}
	m.authBusy = true
	m.authErr = ""
	sess, register := m.sess, m.registerMode
	return m, func() tea.Msg {
		var err error
		if register {
			err = sess.Register(context.Background(), username, password)
		} else {
			err = sess.Login(context.Background(), username, password)
		}
		return authResultMsg{err: err}
	}
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.Type {
		case tea.KeyEsc:
			m.searching = false
			m.search.Blur()
			m.search.SetValue("")
			m.eng.SetSearchText("")
			return m, nil
		case tea.KeyEnter:
			m.searching = false
			m.search.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.eng.SetSearchText(m.search.Value())
		return m, cmd
	}

	if m.creating {
		switch msg.Type {
		case tea.KeyEsc:
			m.creating = false
			m.title.Blur()
			m.title.SetValue("")
			return m, nil
		case tea.KeyEnter:
			return m.submitCreate()
		}
		var cmd tea.Cmd
		m.title, cmd = m.title.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case key.Matches(msg, keys.Down):
		if m.selected < len(m.snap.Visible)-1 {
			m.selected++
		}
		return m, nil
	case key.Matches(msg, keys.Search):
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink
	case key.Matches(msg, keys.Filter):
		m.eng.SetStatusFilter(nextStatus(m.eng.Selection().Status))
		return m, nil
	case key.Matches(msg, keys.Sort):
		sel := m.eng.Selection()
		order := sel.SortOrder
		if order == "" {
			order = gateway.SortAsc
		}
		m.eng.SetSort(nextSortField(sel.SortBy), order)
		return m, nil
	case key.Matches(msg, keys.Order):
		sel := m.eng.Selection()
		if sel.SortBy == "" {
			return m, nil
		}
		order := gateway.SortAsc
		if sel.SortOrder != gateway.SortDesc {
			order = gateway.SortDesc
		}
		m.eng.SetSort(sel.SortBy, order)
		return m, nil
	case key.Matches(msg, keys.Refresh):
		m.eng.Refresh()
		return m, nil
	case key.Matches(msg, keys.New):
		m.creating = true
		m.title.Focus()
		return m, textinput.Blink
	case key.Matches(msg, keys.Start):
		return m.patchSelected(task.StatusInProgress)
	case key.Matches(msg, keys.Complete):
		return m.patchSelected(task.StatusCompleted)
	case key.Matches(msg, keys.Delete):
		return m.deleteSelected()
	case key.Matches(msg, keys.Logout):
		sess := m.sess
		return m, func() tea.Msg {
			if err := sess.Logout(); err != nil {
				return actionResultMsg{err: err}
			}
			return sessionSnapshotMsg(sess.Snapshot())
		}
	}
	return m, nil
}

func (m Model) submitCreate() (tea.Model, tea.Cmd) {
	title := strings.TrimSpace(m.title.Value())
	m.creating = false
	m.title.Blur()
	m.title.SetValue("")
	if title == "" {
		return m, nil
	}
	gw := m.gw
	return m, func() tea.Msg {
		_, err := gw.CreateTask(context.Background(), task.Fields{Title: title})
		return actionResultMsg{err: err}
	}
}

func (m Model) patchSelected(st task.Status) (tea.Model, tea.Cmd) {
	t, ok := m.selectedTask()
	if !ok {
		return m, nil
	}
	gw := m.gw
	return m, func() tea.Msg {
		_, err := gw.UpdateTask(context.Background(), t.ID, task.Patch{Status: &st})
		return actionResultMsg{err: err}
	}
}

func (m Model) deleteSelected() (tea.Model, tea.Cmd) {
	t, ok := m.selectedTask()
	if !ok {
		return m, nil
	}
	gw := m.gw
	return m, func() tea.Msg {
		return actionResultMsg{err: gw.DeleteTask(context.Background(), t.ID)}
	}
}

func (m Model) selectedTask() (task.Task, bool) {
	if m.selected < 0 || m.selected >= len(m.snap.Visible) {
		return task.Task{}, false
	}
	return m.snap.Visible[m.selected], true
}

// nextStatus cycles all -> created -> in_progress -> completed -> all.
func nextStatus(s task.Status) task.Status {
	switch s {
	case "":
		return task.StatusCreated
	case task.StatusCreated:
		return task.StatusInProgress
	case task.StatusInProgress:
		return task.StatusCompleted
	}
	return ""
}

// nextSortField cycles through the sort fields, ending back at backend order.
func nextSortField(f gateway.SortField) gateway.SortField {
	switch f {
	case "":
		return gateway.SortCreatedAt
	case gateway.SortCreatedAt:
		return gateway.SortUpdatedAt
	case gateway.SortUpdatedAt:
		return gateway.SortStatus
	case gateway.SortStatus:
		return gateway.SortPriority
	case gateway.SortPriority:
		return gateway.SortDeadline
	}
	return ""
}

// Run starts the interactive browser and blocks until it exits.
func Run(ctx context.Context, gw gateway.Gateway, creds *credstore.Store) error {
	sess := session.New(gw, creds)
	eng := query.New(gw)
	defer eng.Close()

	m := NewModel(gw, eng, sess)
	p := tea.NewProgram(m, tea.WithAltScreen())

	eng.SetNotify(func(s query.Snapshot) { p.Send(querySnapshotMsg(s)) })
	sess.OnChange(func(s session.Snapshot) { p.Send(sessionSnapshotMsg(s)) })

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go sess.Watch(watchCtx)

	_, err := p.Run()
	return err
}
