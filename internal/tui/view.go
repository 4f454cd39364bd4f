package tui

import (
	"fmt"
	"strings"

	"github.com/kazz187/taskdeck/internal/store"
	"github.com/kazz187/taskdeck/internal/task"
)

func statusLabel(s task.Status) string {
	if s == task.StatusCompleted {
		return "Completed"
	}
	return "Pending"
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(brandStyle.Render("Simple To-Do") + "\n")
	if m.errText != "" {
		b.WriteString(m.banner() + "\n")
	}
	b.WriteString("\n")

	switch m.mode {
	case modeAdd, modeEdit:
		b.WriteString(m.form.View())
		b.WriteString("\n" + m.help.View(m.form.keys))
		return b.String()
	}

	b.WriteString(panelTitleStyle.Render("Your tasks") + "\n")
	b.WriteString(m.listView())
	if m.mode == modeConfirmDelete {
		b.WriteString("\n" + m.confirmView() + "\n")
	}
	if m.notice != "" {
		b.WriteString("\n" + mutedStyle.Render(m.notice) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m Model) banner() string {
	style := bannerStyle
	if m.width > 0 {
		style = style.Width(m.width)
	}
	return style.Render("Error: " + m.errText)
}

// listView renders the loading, error, empty or populated list. The error
// view only replaces the list when there is nothing to show; otherwise
// the banner is enough.
func (m Model) listView() string {
	st := m.state
	switch {
	case st.Loading && len(st.Tasks) == 0:
		return mutedStyle.Render(m.spinner.View()+" Loading tasks…") + "\n"
	case st.Err != nil && len(st.Tasks) == 0:
		return errorView(st) + "\n"
	case len(st.Tasks) == 0:
		return "No tasks yet. Add your first task with " + focusedLabelStyle.Render("a") + "!\n"
	}

	var b strings.Builder
	if st.Loading {
		b.WriteString(mutedStyle.Render(m.spinner.View()+" Refreshing…") + "\n")
	}
	for i, t := range st.Tasks {
		b.WriteString(m.itemView(t, i == m.cursor) + "\n")
	}
	return b.String()
}

func errorView(st store.State) string {
	return errorTextStyle.Render("Failed to load tasks.") + "\n" +
		mutedStyle.Render("  "+st.Err.Error()) + "\n" +
		"Press " + focusedLabelStyle.Render("r") + " to retry."
}

func (m Model) itemView(t task.Task, selected bool) string {
	check := "[ ]"
	title := t.Title
	badge := pendingBadgeStyle.Render(statusLabel(t.Status))
	if t.Completed() {
		check = "[x]"
		title = completedTitleStyle.Render(title)
		badge = completedBadgeStyle.Render(statusLabel(t.Status))
	}

	cursor := "  "
	if selected {
		cursor = "▸ "
	}
	line := fmt.Sprintf("%s%s %s  %s", cursor, check, title, badge)
	if t.Optimistic {
		line += " " + optimisticStyle.Render("saving…")
	}
	if selected {
		line = selectedRowStyle.Render(line)
	}
	if t.Description != "" {
		line += "\n      " + mutedStyle.Render(t.Description)
	}
	return line
}

func (m Model) confirmView() string {
	title := m.deleteID
	for _, t := range m.state.Tasks {
		if t.ID == m.deleteID {
			title = t.Title
			break
		}
	}
	return confirmStyle.Render(fmt.Sprintf("Delete %q? (y/n)", title))
}
