package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kazz187/taskdeck/internal/task"
)

const titleRequired = "Title is required."

type formField int

const (
	fieldTitle formField = iota
	fieldDescription
	fieldStatus
	fieldCount
)

// taskForm adds a task, or edits one when editingID is set.
type taskForm struct {
	editingID   string
	title       textinput.Model
	description textinput.Model
	status      task.Status
	focus       formField
	err         string
	keys        formKeyMap
}

func newInput(placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Prompt = ""
	in.Cursor.SetMode(cursor.CursorStatic)
	return in
}

func newTaskForm() taskForm {
	title := newInput("e.g., Buy groceries", 200)
	desc := newInput("Optional details", 1000)

	f := taskForm{
		title:       title,
		description: desc,
		status:      task.StatusPending,
		keys:        defaultFormKeyMap(),
	}
	f.setFocus(fieldTitle)
	return f
}

func newEditForm(t task.Task) taskForm {
	f := newTaskForm()
	f.editingID = t.ID
	f.title.SetValue(t.Title)
	f.description.SetValue(t.Description)
	if t.Status.Valid() {
		f.status = t.Status
	}
	return f
}

func (f taskForm) editing() bool {
	return f.editingID != ""
}

func (f *taskForm) setFocus(field formField) {
	f.focus = field
	f.title.Blur()
	f.description.Blur()
	switch field {
	case fieldTitle:
		f.title.Focus()
	case fieldDescription:
		f.description.Focus()
	}
}

func (f *taskForm) validate() bool {
	f.err = ""
	if strings.TrimSpace(f.title.Value()) == "" {
		f.err = titleRequired
		f.setFocus(fieldTitle)
		return false
	}
	return true
}

func (f taskForm) draft() task.Draft {
	return task.Draft{
		Title:       strings.TrimSpace(f.title.Value()),
		Description: strings.TrimSpace(f.description.Value()),
		Status:      f.status,
	}
}

// patch holds every field, like the add form does.
func (f taskForm) patch() task.Patch {
	d := f.draft()
	return task.Patch{}.WithTitle(d.Title).WithDescription(d.Description).WithStatus(d.Status)
}

// reset clears the add form after a submit.
func (f *taskForm) reset() {
	f.title.Reset()
	f.description.Reset()
	f.status = task.StatusPending
	f.err = ""
	f.setFocus(fieldTitle)
}

type formResult int

const (
	formContinue formResult = iota
	formSubmitted
	formCanceled
)

func (f taskForm) Update(msg tea.KeyMsg) (taskForm, formResult, tea.Cmd) {
	switch {
	case key.Matches(msg, f.keys.Cancel):
		return f, formCanceled, nil
	case key.Matches(msg, f.keys.Submit):
		if !f.validate() {
			return f, formContinue, nil
		}
		return f, formSubmitted, nil
	case key.Matches(msg, f.keys.Next):
		f.setFocus((f.focus + 1) % fieldCount)
		return f, formContinue, nil
	case key.Matches(msg, f.keys.Prev):
		f.setFocus((f.focus + fieldCount - 1) % fieldCount)
		return f, formContinue, nil
	}

	var cmd tea.Cmd
	switch f.focus {
	case fieldTitle:
		f.title, cmd = f.title.Update(msg)
		if f.err != "" && strings.TrimSpace(f.title.Value()) != "" {
			f.err = ""
		}
	case fieldDescription:
		f.description, cmd = f.description.Update(msg)
	case fieldStatus:
		if key.Matches(msg, f.keys.Cycle) {
			f.status = f.status.Toggle()
		}
	}
	return f, formContinue, cmd
}

func (f taskForm) View() string {
	var b strings.Builder
	heading := "Add a new task"
	if f.editing() {
		heading = "Edit task"
	}
	b.WriteString(panelTitleStyle.Render(heading) + "\n")

	b.WriteString(f.label(fieldTitle, "Title") + requiredStyle.Render(" *") + "\n")
	b.WriteString("  " + f.title.View() + "\n")
	if f.err != "" {
		b.WriteString("  " + errorTextStyle.Render(f.err) + "\n")
	}
	b.WriteString(f.label(fieldDescription, "Description") + "\n")
	b.WriteString("  " + f.description.View() + "\n")
	b.WriteString(f.label(fieldStatus, "Status") + "\n")
	b.WriteString("  " + f.statusSelector() + "\n")
	return b.String()
}

func (f taskForm) label(field formField, text string) string {
	if f.focus == field {
		return focusedLabelStyle.Render("› " + text)
	}
	return labelStyle.Render("  " + text)
}

func (f taskForm) statusSelector() string {
	options := []task.Status{task.StatusPending, task.StatusCompleted}
	parts := make([]string, 0, len(options))
	for _, s := range options {
		text := statusLabel(s)
		if s == f.status {
			parts = append(parts, selectedOptionStyle.Render("("+text+")"))
		} else {
			parts = append(parts, mutedStyle.Render(" "+text+" "))
		}
	}
	return strings.Join(parts, " ")
}
