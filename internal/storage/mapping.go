package storage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"smarttodo/internal/task"
)

// record is the remote row shape. Timestamps stay text so that whatever
// the database hands back (timestamptz, RFC 3339, naive) goes through
// task.ParseTimestamp.
type record struct {
	ID          string `gorm:"column:id;primaryKey" json:"id"`
	Title       string `gorm:"column:title;not null" json:"title"`
	Description string `gorm:"column:description;not null" json:"description"`
	Deadline    string `gorm:"column:deadline;not null" json:"deadline"`
	IsCompleted bool   `gorm:"column:is_completed;not null" json:"is_completed"`
	CreatedAt   string `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   string `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (record) TableName() string { return "tasks" }

func (r *record) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func fromRecord(r record) (task.Task, error) {
	deadline, err := task.ParseTimestamp("deadline", r.Deadline)
	if err != nil {
		return task.Task{}, err
	}
	created, err := task.ParseTimestamp("created_at", r.CreatedAt)
	if err != nil {
		return task.Task{}, err
	}
	updated, err := task.ParseTimestamp("updated_at", r.UpdatedAt)
	if err != nil {
		return task.Task{}, err
	}
	return task.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Deadline:    deadline,
		IsCompleted: r.IsCompleted,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func toRecord(t task.Task) record {
	return record{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Deadline:    task.FormatTimestamp(t.Deadline),
		IsCompleted: t.IsCompleted,
		CreatedAt:   task.FormatTimestamp(t.CreatedAt),
		UpdatedAt:   task.FormatTimestamp(t.UpdatedAt),
	}
}

// patchColumns lists only the fields present in p, plus updated_at. An
// explicitly empty description is kept.
func patchColumns(p task.Patch, updatedAt time.Time) map[string]any {
	cols := map[string]any{
		"updated_at": task.FormatTimestamp(updatedAt),
	}
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Deadline != nil {
		cols["deadline"] = task.FormatTimestamp(*p.Deadline)
	}
	if p.IsCompleted != nil {
		cols["is_completed"] = *p.IsCompleted
	}
	return cols
}
