package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"smarttodo/internal/config"
	"smarttodo/internal/task"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	activeHeader = headerStyle.Foreground(lipgloss.Color("12"))
	columnStyle  = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))
	activeColumn = columnStyle.BorderForeground(lipgloss.Color("12"))

	urgencyColors = map[task.Urgency]lipgloss.Color{
		task.Normal:    lipgloss.Color("7"),
		task.Warning:   lipgloss.Color("11"),
		task.Urgent:    lipgloss.Color("208"),
		task.Critical:  lipgloss.Color("9"),
		task.Overdue:   lipgloss.Color("1"),
		task.Completed: lipgloss.Color("10"),
	}
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Smart Todo"))
	if q := strings.TrimSpace(m.query); q != "" {
		b.WriteString(faintStyle.Render(fmt.Sprintf("  search: %q", q)))
	}
	b.WriteString("\n\n")

	if len(m.view.Tasks) == 0 {
		b.WriteString(fmt.Sprintf("No tasks yet. Press '%s' to add one.", m.cfg.Keys.Add))
	} else {
		b.WriteString(m.renderColumns())
	}
	b.WriteString("\n")

	switch {
	case m.form != nil:
		b.WriteString(m.renderForm())
		b.WriteString("\n")
		b.WriteString(m.input.View())
	case m.mode == modeSearch:
		b.WriteString(m.input.View())
	default:
		b.WriteString(m.renderDetail())
	}

	b.WriteString("\n\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(faintStyle.Render(renderHelp(m.cfg.Keys)))

	return b.String()
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s/%s column • %s add • %s edit • %s toggle • %s delete • %s search • %s refresh • %s quit",
		k.Up, k.Down, k.Left, k.Right, k.Add, k.Edit, keyName(k.Toggle), k.Delete, k.Search, k.Refresh, k.Quit)
}

func keyName(k string) string {
	if k == " " {
		return "space"
	}
	return k
}

func (m Model) columnWidth() int {
	if m.width <= 0 {
		return 34
	}
	return max((m.width-6)/len(task.Statuses)-4, 20)
}

func (m Model) renderColumns() string {
	width := m.columnWidth()
	cols := make([]string, 0, len(task.Statuses))
	for col, status := range task.Statuses {
		tasks := m.columnTasks(col)

		header := headerStyle
		style := columnStyle
		if col == m.column && m.mode == modeList {
			header = activeHeader
			style = activeColumn
		}

		var b strings.Builder
		b.WriteString(header.Render(fmt.Sprintf("%s (%d)", status.Label(), len(tasks))))
		b.WriteString("\n")
		if len(tasks) == 0 {
			b.WriteString(faintStyle.Render("nothing here"))
		}
		for i, t := range tasks {
			selected := col == m.column && i == m.cursors[col]
			b.WriteString(m.renderCard(t, selected, width))
			b.WriteString("\n")
		}
		cols = append(cols, style.Width(width).Render(b.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) renderCard(t task.Task, selected bool, width int) string {
	cursor := " "
	if selected {
		cursor = ">"
	}
	checkbox := "[ ]"
	if t.IsCompleted {
		checkbox = "[x]"
	}
	urgency := task.DeriveUrgency(t, m.view.Now)
	line := truncate(fmt.Sprintf("%s %s %s", cursor, checkbox, t.Title), width)
	display := lipgloss.NewStyle().Foreground(urgencyColors[urgency]).
		Render("      " + task.FormatTimeDisplay(t, m.view.Now))
	if selected {
		line = titleStyle.Render(line)
	}
	return line + "\n" + display
}

func (m Model) renderDetail() string {
	t, ok := m.selected()
	if !ok {
		return "No task selected"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Title       : %s\n", t.Title))
	b.WriteString(fmt.Sprintf("Description : %s\n", emptyPlaceholder(t.Description)))
	b.WriteString(fmt.Sprintf("Deadline    : %s\n", t.Deadline.In(time.Local).Format("Mon Jan 2 2006 15:04")))
	b.WriteString(fmt.Sprintf("Status      : %s (%s)\n", task.DeriveStatus(t, m.view.Now), task.DeriveUrgency(t, m.view.Now)))
	b.WriteString(fmt.Sprintf("Updated     : %s", task.FormatDistance(t.UpdatedAt, m.view.Now)+" ago"))
	return b.String()
}

func (m Model) renderForm() string {
	if m.form == nil {
		return ""
	}
	heading := "Add task"
	if m.form.original != nil {
		heading = "Edit task"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(heading))
	b.WriteString(faintStyle.Render(fmt.Sprintf("  (%s/%s move, %s next/save, %s cancel)",
		m.cfg.Keys.NextField, m.cfg.Keys.PrevField, m.cfg.Keys.Confirm, m.cfg.Keys.Cancel)))
	b.WriteString("\n")
	for i, name := range formLabels() {
		prefix := " "
		if i == m.form.index {
			prefix = ">"
		}
		val := m.form.values[i]
		if i == m.form.index {
			val = m.input.Value()
		}
		b.WriteString(fmt.Sprintf("%s %-28s : %s\n", prefix, name, emptyPlaceholder(val)))
	}
	return b.String()
}

func emptyPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(empty)"
	}
	return v
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
