package task

import "strings"

type SearchStats struct {
	Found int
	Total int
}

// Search keeps tasks whose title or description contains query, ignoring
// case. A blank query returns tasks as given.
func Search(tasks []Task, query string) []Task {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return tasks
	}
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
		}
	}
	return out
}

// SearchWithStats is Search plus the counts shown next to a search box.
// Stats are zero for a blank query.
func SearchWithStats(tasks []Task, query string) ([]Task, SearchStats) {
	found := Search(tasks, query)
	if strings.TrimSpace(query) == "" {
		return found, SearchStats{}
	}
	return found, SearchStats{Found: len(found), Total: len(tasks)}
}
