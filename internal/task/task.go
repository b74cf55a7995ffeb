// Package task holds the task entity and the pure rules derived from it:
// status, urgency, display strings, bucketing and search.
package task

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

type Task struct {
	ID          string
	Title       string
	Description string
	Deadline    time.Time
	IsCompleted bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// wireTask is the canonical persisted/JSON shape of a Task.
type wireTask struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	IsCompleted bool   `json:"isCompleted"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTask{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Deadline:    FormatTimestamp(t.Deadline),
		IsCompleted: t.IsCompleted,
		CreatedAt:   FormatTimestamp(t.CreatedAt),
		UpdatedAt:   FormatTimestamp(t.UpdatedAt),
	})
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var w wireTask
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	deadline, err := ParseTimestamp("deadline", w.Deadline)
	if err != nil {
		return err
	}
	created, err := ParseTimestamp("createdAt", w.CreatedAt)
	if err != nil {
		return err
	}
	updated, err := ParseTimestamp("updatedAt", w.UpdatedAt)
	if err != nil {
		return err
	}
	*t = Task{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Deadline:    deadline,
		IsCompleted: w.IsCompleted,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	return nil
}

// Draft is the caller-supplied part of a new task. ID and timestamps are
// assigned by the backend.
type Draft struct {
	Title       string
	Description string
	Deadline    time.Time
}

func (d Draft) Validate() error {
	verr := &ValidationError{}
	validateTitle(d.Title, verr)
	validateDescription(d.Description, verr)
	if d.Deadline.IsZero() {
		verr.Add("deadline", "Deadline is required")
	}
	return verr.OrNil()
}

// Patch is a partial update. A nil field is left untouched; a non-nil
// field is applied even when it points at a zero value.
type Patch struct {
	Title       *string
	Description *string
	Deadline    *time.Time
	IsCompleted *bool
}

func (p Patch) Validate() error {
	verr := &ValidationError{}
	if p.Title != nil {
		validateTitle(*p.Title, verr)
	}
	if p.Description != nil {
		validateDescription(*p.Description, verr)
	}
	if p.Deadline != nil && p.Deadline.IsZero() {
		verr.Add("deadline", "Deadline is required")
	}
	return verr.OrNil()
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Deadline == nil && p.IsCompleted == nil
}

// Apply returns t with the patch merged in. UpdatedAt is not touched.
func (p Patch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Deadline != nil {
		t.Deadline = p.Deadline.UTC()
	}
	if p.IsCompleted != nil {
		t.IsCompleted = *p.IsCompleted
	}
	return t
}

func validateTitle(title string, verr *ValidationError) {
	switch {
	case strings.TrimSpace(title) == "":
		verr.Add("title", "Title is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		verr.Add("title", "Title must be less than 100 characters")
	}
}

func validateDescription(desc string, verr *ValidationError) {
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		verr.Add("description", "Description must be less than 500 characters")
	}
}

// String, Bool and Time return pointers for building Patch literals.
func String(s string) *string { return &s }

func Bool(b bool) *bool { return &b }

func Time(t time.Time) *time.Time { return &t }
