package task

import "testing"

func TestSearch(t *testing.T) {
	t.Parallel()
	tasks := []Task{
		{ID: "1", Title: "Buy milk"},
		{ID: "2", Title: "Call mom", Description: "milk included"},
		{ID: "3", Title: "Write report", Description: "Quarterly"},
	}
	tests := []struct {
		query string
		want  []string
	}{
		{"milk", []string{"1", "2"}},
		{"MILK", []string{"1", "2"}},
		{"  report ", []string{"3"}},
		{"quarter", []string{"3"}},
		{"nothing", []string{}},
	}
	for _, tt := range tests {
		got := Search(tasks, tt.query)
		if !equalIDs(ids(got), tt.want) {
			t.Errorf("query %q: expected %v, got %v", tt.query, tt.want, ids(got))
		}
	}
}

func TestSearchBlankQueryIsIdentity(t *testing.T) {
	t.Parallel()
	tasks := sampleTasks()
	for _, q := range []string{"", "   ", "\t\n"} {
		got := Search(tasks, q)
		if !equalIDs(ids(got), ids(tasks)) {
			t.Errorf("query %q: expected identity, got %v", q, ids(got))
		}
	}
}

func TestSearchEmptyDescriptionNeverMatchesAlone(t *testing.T) {
	t.Parallel()
	tasks := []Task{{ID: "1", Title: "Groceries"}}
	if got := Search(tasks, "x"); len(got) != 0 {
		t.Errorf("expected no match, got %v", ids(got))
	}
}

func TestSearchWithStats(t *testing.T) {
	t.Parallel()
	tasks := []Task{{ID: "1", Title: "Buy milk"}, {ID: "2", Title: "Walk"}}
	_, stats := SearchWithStats(tasks, "milk")
	if stats.Found != 1 || stats.Total != 2 {
		t.Errorf("expected 1 of 2, got %+v", stats)
	}
	_, stats = SearchWithStats(tasks, " ")
	if stats != (SearchStats{}) {
		t.Errorf("expected zero stats for blank query, got %+v", stats)
	}
}
