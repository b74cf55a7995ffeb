package rest

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"smarttodo/internal/task"
)

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
}

// updateTaskRequest keeps pointer fields so an omitted key and an explicit
// empty string stay distinguishable.
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Deadline    *string `json:"deadline"`
	IsCompleted *bool   `json:"isCompleted"`
}

func readJSON(c *gin.Context, dst any) *Error {
	body, err := io.ReadAll(c.Request.Body)
	defer c.Request.Body.Close()
	if err != nil {
		return NewInvalidStructureError()
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return NewInvalidStructureError()
	}
	return nil
}

func parseCreateForm(c *gin.Context) (task.Draft, *Error) {
	var req createTaskRequest
	if e := readJSON(c, &req); e != nil {
		return task.Draft{}, e
	}
	d := task.Draft{Title: req.Title, Description: req.Description}
	if req.Deadline != "" {
		deadline, err := task.ParseTimestamp("deadline", req.Deadline)
		if err != nil {
			return task.Draft{}, NewValidationError(map[string]ErrorMessage{
				"deadline": {Code: InvalidValue, Message: err.Error()},
			})
		}
		d.Deadline = deadline
	}
	if err := d.Validate(); err != nil {
		return task.Draft{}, ResolveError(err)
	}
	return d, nil
}

func parseUpdateForm(c *gin.Context) (task.Patch, *Error) {
	var req updateTaskRequest
	if e := readJSON(c, &req); e != nil {
		return task.Patch{}, e
	}
	p := task.Patch{
		Title:       req.Title,
		Description: req.Description,
		IsCompleted: req.IsCompleted,
	}
	if req.Deadline != nil {
		deadline, err := task.ParseTimestamp("deadline", *req.Deadline)
		if err != nil {
			return task.Patch{}, NewValidationError(map[string]ErrorMessage{
				"deadline": {Code: InvalidValue, Message: err.Error()},
			})
		}
		p.Deadline = &deadline
	}
	if p.IsEmpty() {
		return task.Patch{}, NewValidationError(map[string]ErrorMessage{
			GeneralErrorKey: {Code: MissedValue, Message: "nothing to update"},
		})
	}
	if err := p.Validate(); err != nil {
		return task.Patch{}, ResolveError(err)
	}
	return p, nil
}
