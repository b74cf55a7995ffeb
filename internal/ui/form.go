package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"smarttodo/internal/task"
)

// DeadlineLayout is what the form shows and accepts, in local time.
const DeadlineLayout = "2006-01-02 15:04"

const (
	fieldTitle = iota
	fieldDescription
	fieldDeadline
	fieldCount
)

// formState backs both add and edit. original is nil when adding.
type formState struct {
	original *task.Task
	values   [fieldCount]string
	index    int
}

func formLabels() []string {
	return []string{"title", "description", "deadline (YYYY-MM-DD HH:MM)"}
}

func formLimits() []int {
	return []int{task.MaxTitleLength, task.MaxDescriptionLength, len(DeadlineLayout)}
}

func (fs formState) currentLabel() string {
	return formLabels()[fs.index]
}

func (m Model) startForm(t *task.Task) (tea.Model, tea.Cmd) {
	fs := &formState{original: t}
	if t != nil {
		fs.values[fieldTitle] = t.Title
		fs.values[fieldDescription] = t.Description
		fs.values[fieldDeadline] = t.Deadline.In(time.Local).Format(DeadlineLayout)
		m.status = fmt.Sprintf("Editing %q", t.Title)
	} else {
		next := m.view.Now.Add(24 * time.Hour).Truncate(time.Hour)
		fs.values[fieldDeadline] = next.In(time.Local).Format(DeadlineLayout)
		m.status = "New task"
	}
	m.form = fs
	m.mode = modeForm
	m.loadField()
	m.input.Focus()
	return m, nil
}

func (m *Model) loadField() {
	m.input.CharLimit = formLimits()[m.form.index]
	m.input.SetValue(m.form.values[m.form.index])
	m.input.Placeholder = m.form.currentLabel()
	m.input.CursorEnd()
}

func (m Model) updateFormMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		m.mode = modeList
		return m, nil
	}
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		m.form = nil
		m.mode = modeList
		m.input.Blur()
		m.input.SetValue("")
		m.status = "Cancelled"
		return m, nil
	case m.cfg.Keys.NextField, "down":
		m.form.values[m.form.index] = m.input.Value()
		m.form.index = wrapIndex(m.form.index+1, fieldCount)
		m.loadField()
		return m, nil
	case m.cfg.Keys.PrevField, "up":
		m.form.values[m.form.index] = m.input.Value()
		m.form.index = wrapIndex(m.form.index-1, fieldCount)
		m.loadField()
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		m.form.values[m.form.index] = m.input.Value()
		if m.form.index < fieldCount-1 {
			m.form.index++
			m.loadField()
			return m, nil
		}
		return m.saveForm()
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) saveForm() (tea.Model, tea.Cmd) {
	fs := m.form
	title := strings.TrimSpace(fs.values[fieldTitle])
	description := strings.TrimSpace(fs.values[fieldDescription])
	deadline, err := parseDeadline(fs.values[fieldDeadline])
	if err != nil {
		m.status = fmt.Sprintf("deadline invalid: %v", err)
		return m, nil
	}

	cache := m.cache
	if fs.original == nil {
		d := task.Draft{Title: title, Description: description, Deadline: deadline}
		if err := d.Validate(); err != nil {
			m.status = fmt.Sprintf("save failed: %s", describeErr(err))
			return m, nil
		}
		return m.background("save failed", func(ctx context.Context) (outcome, error) {
			created, err := cache.Create(ctx, d)
			if err != nil {
				return outcome{}, err
			}
			return outcome{status: "Added task", selectID: created.ID}, nil
		})
	}

	p := changedFields(*fs.original, title, description, deadline)
	if p.IsEmpty() {
		m.form = nil
		m.mode = modeList
		m.input.Blur()
		m.status = "Nothing changed"
		return m, nil
	}
	if err := p.Validate(); err != nil {
		m.status = fmt.Sprintf("save failed: %s", describeErr(err))
		return m, nil
	}
	id := fs.original.ID
	return m.background("save failed", func(ctx context.Context) (outcome, error) {
		updated, err := cache.Update(ctx, id, p)
		if err != nil {
			return outcome{}, err
		}
		return outcome{status: "Saved task", selectID: updated.ID}, nil
	})
}

// changedFields builds a patch carrying only what the form changed. An
// emptied description is sent as an explicit empty string.
func changedFields(orig task.Task, title, description string, deadline time.Time) task.Patch {
	var p task.Patch
	if title != orig.Title {
		p.Title = task.String(title)
	}
	if description != orig.Description {
		p.Description = task.String(description)
	}
	if !deadline.Equal(orig.Deadline.Truncate(time.Minute)) {
		p.Deadline = task.Time(deadline)
	}
	return p
}

func parseDeadline(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{DeadlineLayout, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("use YYYY-MM-DD HH:MM")
}
