// Package tui is the interactive task board. It renders store snapshots
// and forwards user intents to the store; it never edits tasks itself.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kazz187/taskdeck/internal/store"
	"github.com/kazz187/taskdeck/internal/task"
)

// ErrorDisplayDuration is how long an error banner stays before the
// store's error is reset.
const ErrorDisplayDuration = 4 * time.Second

type mode int

const (
	modeBrowse mode = iota
	modeAdd
	modeEdit
	modeConfirmDelete
)

type (
	// changedMsg arrives after the store signalled a change.
	changedMsg struct{}
	// opDoneMsg reports the end of a store operation started from the UI.
	opDoneMsg struct {
		op  string
		err error
	}
	// clearErrorMsg fires ErrorDisplayDuration after error number gen
	// appeared.
	clearErrorMsg struct{ gen int }
)

type Model struct {
	ctx   context.Context
	store *store.Store

	state  store.State
	cursor int
	mode   mode
	form   taskForm
	// deleteID is the task awaiting confirmation.
	deleteID string
	// notice is a transient non-error status line.
	notice string

	errGen  int
	errText string

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	width   int
}

func New(ctx context.Context, s *store.Store) Model {
	return Model{
		ctx:     ctx,
		store:   s,
		state:   s.Snapshot(),
		form:    newTaskForm(),
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

// Run starts the board on the terminal and blocks until the user quits.
func Run(ctx context.Context, s *store.Store) error {
	p := tea.NewProgram(New(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForChange(m.store),
		m.spinner.Tick,
		m.run("load", m.store.Init),
	)
}

func waitForChange(s *store.Store) tea.Cmd {
	return func() tea.Msg {
		<-s.Changes()
		return changedMsg{}
	}
}

func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case changedMsg:
		cmd := m.syncState()
		return m, tea.Batch(waitForChange(m.store), cmd)

	case opDoneMsg:
		m.notice = ""
		if errors.Is(msg.err, store.ErrInFlight) {
			m.notice = "Still saving the previous change to this task."
		}
		return m, m.syncState()

	case clearErrorMsg:
		if msg.gen == m.errGen && m.errText != "" {
			m.store.ResetError()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.mode {
		case modeAdd, modeEdit:
			return m.updateForm(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

// syncState copies the store into the model and arms the banner timer
// when a new error shows up.
func (m *Model) syncState() tea.Cmd {
	m.state = m.store.Snapshot()
	if n := len(m.state.Tasks); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}

	text := ""
	if m.state.Err != nil {
		text = m.state.Err.Error()
	}
	if text == m.errText {
		return nil
	}
	m.errText = text
	if text == "" {
		return nil
	}
	m.errGen++
	gen := m.errGen
	return tea.Tick(ErrorDisplayDuration, func(time.Time) tea.Msg {
		return clearErrorMsg{gen: gen}
	})
}

func (m Model) selected() (task.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Tasks) {
		return task.Task{}, false
	}
	return m.state.Tasks[m.cursor], true
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.state.Tasks)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Refresh):
		return m, m.run("refresh", m.store.Refresh)
	case key.Matches(msg, m.keys.Add):
		m.form.reset()
		m.mode = modeAdd
		return m, m.form.title.Focus()
	case key.Matches(msg, m.keys.Toggle):
		if t, ok := m.selected(); ok {
			return m, m.run("toggle", func(ctx context.Context) error {
				_, err := m.store.Toggle(ctx, t.ID)
				return err
			})
		}
	case key.Matches(msg, m.keys.Edit):
		if t, ok := m.selected(); ok {
			m.form = newEditForm(t)
			m.mode = modeEdit
			return m, m.form.title.Focus()
		}
	case key.Matches(msg, m.keys.Delete):
		if t, ok := m.selected(); ok {
			m.deleteID = t.ID
			m.mode = modeConfirmDelete
		}
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	form, result, cmd := m.form.Update(msg)
	m.form = form
	switch result {
	case formCanceled:
		m.mode = modeBrowse
		m.form = newTaskForm()
		return m, nil
	case formSubmitted:
		m.mode = modeBrowse
		if m.form.editing() {
			id, patch := m.form.editingID, m.form.patch()
			m.form = newTaskForm()
			return m, m.run("update", func(ctx context.Context) error {
				_, err := m.store.Update(ctx, id, patch)
				return err
			})
		}
		draft := m.form.draft()
		m.form.reset()
		m.cursor = 0
		return m, m.run("create", func(ctx context.Context) error {
			_, err := m.store.Create(ctx, draft)
			return err
		})
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		id := m.deleteID
		m.deleteID = ""
		m.mode = modeBrowse
		return m, m.run("delete", func(ctx context.Context) error {
			return m.store.Remove(ctx, id)
		})
	case "n", "N", "esc":
		m.deleteID = ""
		m.mode = modeBrowse
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}
