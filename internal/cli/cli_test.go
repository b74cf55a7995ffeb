package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"smarttodo/internal/config"
	"smarttodo/internal/storage"
	"smarttodo/internal/task"
	"smarttodo/internal/testutil"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	t          *testing.T
	configPath string
	clock      *testutil.Clock
	backend    *testutil.FakeBackend
	openErr    error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := testutil.NewClock(now)
	return &harness{
		t:          t,
		configPath: filepath.Join(t.TempDir(), "config.toml"),
		clock:      clock,
		backend:    testutil.NewFakeBackend(clock.Now),
	}
}

// run executes one smarttodo invocation against the shared fake backend.
func (h *harness) run(args ...string) (string, int) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	app := &App{
		Out: &out,
		Err: &errOut,
		Now: h.clock.Now,
		OpenBackend: func(ctx context.Context, cfg config.Config, log *logrus.Entry) (storage.Backend, error) {
			if h.openErr != nil {
				return nil, h.openErr
			}
			return h.backend, nil
		},
	}
	defer app.Close()

	cmd := NewRootCmd(app)
	cmd.SetArgs(append([]string{"--config", h.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		return describe(err), ExitCode(err)
	}
	return out.String(), Success
}

func TestAddAndListJSON(t *testing.T) {
	h := newHarness(t)

	out, code := h.run("add", "Pay rent", "--deadline", "+1h")
	if code != Success {
		t.Fatalf("add: code %d, %s", code, out)
	}
	if !strings.Contains(out, `"Pay rent" (ongoing, Due in about 1 hour)`) {
		t.Errorf("add output = %q", out)
	}

	out, code = h.run("list", "-o", "json")
	if code != Success {
		t.Fatalf("list: code %d, %s", code, out)
	}
	var items []listItem
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(items) != 1 || items[0].Urgency != "critical" || items[0].Deadline != "2025-03-10T13:00:00.000Z" {
		t.Errorf("items = %+v", items)
	}
}

func TestListYAMLAndStatusFilter(t *testing.T) {
	h := newHarness(t)
	h.backend.Add(task.Task{ID: "a", Title: "Active", Deadline: now.Add(5 * 24 * time.Hour)})
	h.backend.Add(task.Task{ID: "b", Title: "Late", Deadline: now.Add(-time.Hour)})

	out, code := h.run("list", "--status", "overdue", "-o", "yaml")
	if code != Success {
		t.Fatalf("code %d: %s", code, out)
	}
	var items []listItem
	if err := yaml.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if len(items) != 1 || items[0].ID != "b" || items[0].Status != "failure" {
		t.Errorf("items = %+v", items)
	}
}

func TestListTableGroupsBuckets(t *testing.T) {
	h := newHarness(t)
	h.backend.Add(task.Task{ID: "a", Title: "Buy milk", Deadline: now.Add(time.Hour), CreatedAt: now.Add(-3 * time.Hour)})
	h.backend.Add(task.Task{ID: "b", Title: "Ship", Deadline: now.Add(-time.Hour), IsCompleted: true})

	out, code := h.run("list")
	if code != Success {
		t.Fatalf("code %d: %s", code, out)
	}
	for _, want := range []string{"Active Tasks (1)", "Completed Tasks (1)", "Overdue Tasks (0)", "created 3 hours ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSearchPrintsStats(t *testing.T) {
	h := newHarness(t)
	h.backend.Add(task.Task{ID: "a", Title: "Buy milk", Deadline: now.Add(time.Hour)})
	h.backend.Add(task.Task{ID: "b", Title: "Call mom", Description: "milk included", Deadline: now.Add(time.Hour)})
	h.backend.Add(task.Task{ID: "c", Title: "Taxes", Deadline: now.Add(time.Hour)})

	out, code := h.run("search", "milk")
	if code != Success {
		t.Fatalf("code %d: %s", code, out)
	}
	if !strings.Contains(out, "Found 2 of 3 tasks") {
		t.Errorf("output = %s", out)
	}
}

func TestAddWithoutTitleIsUserError(t *testing.T) {
	h := newHarness(t)
	out, code := h.run("add", "--deadline", "+1h")
	if code != UserError {
		t.Fatalf("code = %d, want %d (%s)", code, UserError, out)
	}
	if !strings.Contains(out, "Title is required") {
		t.Errorf("message = %q", out)
	}
	if h.backend.CallCount("create") != 0 {
		t.Error("backend should not be called")
	}
}

func TestEditClearDescription(t *testing.T) {
	h := newHarness(t)
	h.backend.Add(task.Task{ID: "abc123", Title: "Report", Description: "old", Deadline: now.Add(48 * time.Hour)})

	if out, code := h.run("edit", "abc", "--clear-description"); code != Success {
		t.Fatalf("code %d: %s", code, out)
	}
	tasks, _ := h.backend.List(context.Background())
	if tasks[0].Description != "" || tasks[0].Title != "Report" {
		t.Errorf("task = %+v", tasks[0])
	}

	if _, code := h.run("edit", "abc"); code != UserError {
		t.Errorf("edit without flags: code %d", code)
	}
}

func TestDoneAndRm(t *testing.T) {
	h := newHarness(t)
	h.backend.Add(task.Task{ID: "aa1", Title: "One", Deadline: now.Add(time.Hour)})
	h.backend.Add(task.Task{ID: "aa2", Title: "Two", Deadline: now.Add(time.Hour)})

	out, code := h.run("done", "aa1")
	if code != Success || !strings.Contains(out, "Completed") {
		t.Fatalf("done: code %d, %s", code, out)
	}
	if _, code := h.run("rm", "aa"); code != UserError {
		t.Errorf("ambiguous prefix: code %d", code)
	}
	if _, code := h.run("rm", "zz"); code != UserError {
		t.Errorf("unknown id: code %d", code)
	}
	if out, code := h.run("rm", "aa2"); code != Success || !strings.Contains(out, `Deleted aa2 "Two"`) {
		t.Errorf("rm: code %d, %s", code, out)
	}
}

func TestBackendFailureExitCode(t *testing.T) {
	h := newHarness(t)
	h.backend.Add(task.Task{ID: "a", Title: "A", Deadline: now})
	h.backend.DeleteErr = task.NewOperationError("delete", errors.New("connection refused"))

	out, code := h.run("rm", "a")
	if code != BackendError {
		t.Fatalf("code = %d, want %d", code, BackendError)
	}
	if !strings.Contains(out, "connection refused") {
		t.Errorf("message = %q", out)
	}

	h.openErr = errors.New("dial tcp: refused")
	if _, code := h.run("list"); code != BackendError {
		t.Errorf("open failure: code %d", code)
	}
}

func TestConfigPath(t *testing.T) {
	h := newHarness(t)
	out, code := h.run("config", "path")
	if code != Success || strings.TrimSpace(out) != h.configPath {
		t.Errorf("config path = %q (code %d)", out, code)
	}
}

func TestParseDeadline(t *testing.T) {
	got, err := parseDeadline("+90m", now)
	if err != nil || !got.Equal(now.Add(90*time.Minute)) {
		t.Errorf("offset = %v, %v", got, err)
	}
	got, err = parseDeadline("2025-03-12T09:00:00Z", now)
	if err != nil || !got.Equal(time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("rfc3339 = %v, %v", got, err)
	}
	if _, err := parseDeadline("someday", now); ExitCode(err) != UserError {
		t.Errorf("garbage: %v", err)
	}
}
