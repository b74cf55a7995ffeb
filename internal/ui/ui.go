package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"smarttodo/internal/config"
	"smarttodo/internal/task"
	"smarttodo/internal/taskcache"
)

type mode int

const (
	modeList mode = iota
	modeForm
	modeSearch
)

// viewMsg carries a freshly derived View from the refresh loop.
type viewMsg taskcache.View

// resultMsg reports a mutation or reload that ran off the UI loop.
type resultMsg struct {
	ok       bool
	status   string
	selectID string
	view     *taskcache.View
}

// outcome is what a background operation hands back on success.
type outcome struct {
	status   string
	selectID string
}

type Model struct {
	ctx        context.Context
	cache      *taskcache.Cache
	cfg        config.Config
	view       taskcache.View
	column     int
	cursors    [3]int
	mode       mode
	input      textinput.Model
	status     string
	query      string
	confirmDel bool
	pendingDel *task.Task
	form       *formState
	width      int
	busy       bool
}

func NewModel(ctx context.Context, cache *taskcache.Cache, cfg config.Config, view taskcache.View) Model {
	ti := textinput.New()
	ti.CharLimit = task.MaxDescriptionLength
	ti.Width = 40

	m := Model{
		ctx:    ctx,
		cache:  cache,
		cfg:    cfg,
		view:   view,
		input:  ti,
		mode:   modeList,
		status: fmt.Sprintf("Press '%s' to add, '%s' to search.", cfg.Keys.Add, cfg.Keys.Search),
	}
	if s, err := task.ParseStatus(cfg.DefaultFilter); err == nil {
		m.column = int(s)
	}
	return m
}

// Run loads the list, starts the periodic refresh and blocks until the
// user quits.
func Run(ctx context.Context, cache *taskcache.Cache, cfg config.Config) error {
	view, err := cache.Snapshot(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(NewModel(ctx, cache, cfg, view), tea.WithAltScreen())
	go cache.Run(ctx, func(v taskcache.View) {
		program.Send(viewMsg(v))
	})
	_, err = program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.busy {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		switch m.mode {
		case modeForm:
			return m.updateFormMode(msg.String(), msg)
		case modeSearch:
			return m.updateSearchMode(msg.String(), msg)
		}
		return m.updateListMode(msg.String())
	case viewMsg:
		m.view = taskcache.View(msg)
		m.clampCursors()
	case resultMsg:
		return m.applyResult(msg), nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-20, 20)
	}
	return m, nil
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Down, "down":
		m.cursors[m.column] = clampCursor(m.cursors[m.column]+1, len(m.columnTasks(m.column)))
	case m.cfg.Keys.Up, "up":
		m.cursors[m.column] = clampCursor(m.cursors[m.column]-1, len(m.columnTasks(m.column)))
	case m.cfg.Keys.Left, "left":
		m.column = wrapIndex(m.column-1, len(task.Statuses))
	case m.cfg.Keys.Right, "right":
		m.column = wrapIndex(m.column+1, len(task.Statuses))
	case m.cfg.Keys.Add:
		return m.startForm(nil)
	case m.cfg.Keys.Edit:
		t, ok := m.selected()
		if !ok {
			m.status = "No task to edit"
			return m, nil
		}
		return m.startForm(&t)
	case m.cfg.Keys.Toggle:
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		cache := m.cache
		return m.background("toggle failed", func(ctx context.Context) (outcome, error) {
			updated, err := cache.ToggleCompletion(ctx, t.ID)
			if err != nil {
				return outcome{}, err
			}
			if updated.IsCompleted {
				return outcome{status: fmt.Sprintf("Completed %q", updated.Title), selectID: updated.ID}, nil
			}
			return outcome{status: fmt.Sprintf("Reopened %q", updated.Title), selectID: updated.ID}, nil
		})
	case m.cfg.Keys.Delete:
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.confirmDel = true
		m.pendingDel = &t
		m.status = fmt.Sprintf("Delete \"%s\"? y/n", t.Title)
	case m.cfg.Keys.Search:
		m.mode = modeSearch
		m.input.Placeholder = "Search tasks..."
		m.input.SetValue(m.query)
		m.input.CharLimit = 0
		m.input.Focus()
		m.status = "Search: type to filter, enter to keep, esc to clear"
	case m.cfg.Keys.Refresh:
		cache := m.cache
		return m.background("refresh failed", func(context.Context) (outcome, error) {
			cache.Invalidate()
			return outcome{status: "Refreshed"}, nil
		})
	}
	return m, nil
}

func (m Model) updateSearchMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		m.query = ""
		m.input.SetValue("")
		m.input.Blur()
		m.mode = modeList
		m.status = "Search cleared"
		m.clampCursors()
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		m.input.Blur()
		m.mode = modeList
		m.status = m.searchSummary()
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.query = m.input.Value()
		m.clampCursors()
		m.status = m.searchSummary()
		return m, cmd
	}
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", "esc":
		m.status = "Delete cancelled"
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	case "y", "Y":
		if m.pendingDel == nil {
			m.status = "Nothing to delete"
			m.confirmDel = false
			return m, nil
		}
		id, cache := m.pendingDel.ID, m.cache
		m.confirmDel = false
		m.pendingDel = nil
		return m.background("delete failed", func(ctx context.Context) (outcome, error) {
			if _, err := cache.Delete(ctx, id); err != nil {
				return outcome{}, err
			}
			return outcome{status: "Deleted task"}, nil
		})
	default:
		return m, nil
	}
}

// background runs op and the reload after it as a tea.Cmd, so a slow
// backend never stalls key handling. Keys are ignored until the result
// arrives.
func (m Model) background(failure string, op func(context.Context) (outcome, error)) (Model, tea.Cmd) {
	ctx, cache := m.ctx, m.cache
	m.busy = true
	m.status = "Working..."
	return m, func() tea.Msg {
		out, err := op(ctx)
		if err != nil {
			return resultMsg{status: fmt.Sprintf("%s: %s", failure, describeErr(err))}
		}
		view, err := cache.Snapshot(ctx)
		if err != nil {
			return resultMsg{ok: true, status: fmt.Sprintf("reload failed: %s", describeErr(err))}
		}
		return resultMsg{ok: true, status: out.status, selectID: out.selectID, view: &view}
	}
}

func (m Model) applyResult(msg resultMsg) Model {
	m.busy = false
	m.status = msg.status
	if msg.ok && m.form != nil {
		m.form = nil
		m.mode = modeList
		m.input.Blur()
		m.input.SetValue("")
	}
	if msg.view != nil {
		m.view = *msg.view
		m.clampCursors()
		if msg.selectID != "" {
			m.selectTask(msg.selectID)
		}
	}
	return m
}

func (m *Model) selectTask(id string) {
	for col := range task.Statuses {
		for i, t := range m.columnTasks(col) {
			if t.ID == id {
				m.column = col
				m.cursors[col] = i
				return
			}
		}
	}
}

func (m Model) columnTasks(col int) []task.Task {
	return task.Search(m.view.Buckets.Get(task.Status(col)), m.query)
}

func (m Model) selected() (task.Task, bool) {
	tasks := m.columnTasks(m.column)
	if len(tasks) == 0 {
		return task.Task{}, false
	}
	return tasks[clampCursor(m.cursors[m.column], len(tasks))], true
}

func (m *Model) clampCursors() {
	for col := range m.cursors {
		m.cursors[col] = clampCursor(m.cursors[col], len(m.columnTasks(col)))
	}
}

func (m Model) searchSummary() string {
	if strings.TrimSpace(m.query) == "" {
		return "Showing all tasks"
	}
	_, stats := task.SearchWithStats(m.view.Tasks, m.query)
	return fmt.Sprintf("Found %d of %d tasks", stats.Found, stats.Total)
}

func describeErr(err error) string {
	var verr *task.ValidationError
	if errors.As(err, &verr) {
		msgs := make([]string, 0, len(verr.Fields))
		for _, f := range []string{"title", "description", "deadline"} {
			if msg, ok := verr.Fields[f]; ok {
				msgs = append(msgs, msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	if errors.Is(err, task.ErrNotFound) {
		return "Task not found"
	}
	return err.Error()
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}
