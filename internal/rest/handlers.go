// Package rest exposes the task operations as a small JSON API under /api.
package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"smarttodo/internal/task"
	"smarttodo/internal/taskcache"
)

type taskResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	IsCompleted bool   `json:"isCompleted"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
	Status      string `json:"status"`
	Urgency     string `json:"urgency"`
	TimeDisplay string `json:"timeDisplay"`
}

type listResponse struct {
	Tasks []taskResponse `json:"tasks"`
	Found int            `json:"found"`
	Total int            `json:"total"`
}

func newTaskResponse(t task.Task, now time.Time) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Deadline:    task.FormatTimestamp(t.Deadline),
		IsCompleted: t.IsCompleted,
		CreatedAt:   task.FormatTimestamp(t.CreatedAt),
		UpdatedAt:   task.FormatTimestamp(t.UpdatedAt),
		Status:      task.DeriveStatus(t, now).String(),
		Urgency:     task.DeriveUrgency(t, now).String(),
		TimeDisplay: task.FormatTimeDisplay(t, now),
	}
}

type TaskHandler struct {
	cache *taskcache.Cache
	log   *logrus.Entry
	now   func() time.Time
}

func NewTaskHandler(cache *taskcache.Cache, log *logrus.Entry, now func() time.Time) *TaskHandler {
	if now == nil {
		now = time.Now
	}
	return &TaskHandler{cache: cache, log: log, now: now}
}

func (h *TaskHandler) EnrichRoutes(router *gin.Engine) {
	taskRoutes := router.Group("/api/tasks")
	taskRoutes.GET("", h.listTasksAction)
	taskRoutes.POST("", h.createTaskAction)
	taskRoutes.GET("/:taskID", h.getTaskAction)
	taskRoutes.PATCH("/:taskID", h.updateTaskAction)
	taskRoutes.POST("/:taskID/toggle", h.toggleTaskAction)
	taskRoutes.DELETE("/:taskID", h.deleteTaskAction)
}

func (h *TaskHandler) listTasksAction(c *gin.Context) {
	const op = "rest.TaskHandler.listTasksAction"
	log := h.log.WithField("operation", op)

	view, err := h.cache.Snapshot(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to list tasks")
		HandleError(ResolveError(err), c)
		return
	}

	tasks := view.Tasks
	if raw := c.Query("status"); raw != "" {
		status, err := task.ParseStatus(raw)
		if err != nil {
			HandleError(NewValidationError(map[string]ErrorMessage{
				"status": {Code: InvalidValue, Message: err.Error()},
			}), c)
			return
		}
		tasks = view.Buckets.Get(status)
	} else {
		tasks = task.SortByDeadline(tasks)
	}

	found, stats := task.SearchWithStats(tasks, c.Query("q"))
	if stats.Total == 0 {
		stats = task.SearchStats{Found: len(found), Total: len(tasks)}
	}

	resp := listResponse{Tasks: make([]taskResponse, 0, len(found)), Found: stats.Found, Total: stats.Total}
	for _, t := range found {
		resp.Tasks = append(resp.Tasks, newTaskResponse(t, view.Now))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TaskHandler) getTaskAction(c *gin.Context) {
	const op = "rest.TaskHandler.getTaskAction"

	t, err := h.cache.Find(c.Request.Context(), c.Param("taskID"))
	if err != nil {
		h.log.WithField("operation", op).WithError(err).Info("lookup failed")
		HandleError(ResolveError(err), c)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(t, h.now()))
}

func (h *TaskHandler) createTaskAction(c *gin.Context) {
	const op = "rest.TaskHandler.createTaskAction"
	log := h.log.WithField("operation", op)

	draft, verr := parseCreateForm(c)
	if verr != nil {
		HandleError(verr, c)
		return
	}
	created, err := h.cache.Create(c.Request.Context(), draft)
	if err != nil {
		log.WithError(err).Error("failed to create task")
		HandleError(ResolveError(err), c)
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(created, h.now()))
}

func (h *TaskHandler) updateTaskAction(c *gin.Context) {
	const op = "rest.TaskHandler.updateTaskAction"
	log := h.log.WithField("operation", op)

	patch, verr := parseUpdateForm(c)
	if verr != nil {
		HandleError(verr, c)
		return
	}
	updated, err := h.cache.Update(c.Request.Context(), c.Param("taskID"), patch)
	if err != nil {
		log.WithError(err).Error("failed to update task")
		HandleError(ResolveError(err), c)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(updated, h.now()))
}

func (h *TaskHandler) toggleTaskAction(c *gin.Context) {
	const op = "rest.TaskHandler.toggleTaskAction"

	updated, err := h.cache.ToggleCompletion(c.Request.Context(), c.Param("taskID"))
	if err != nil {
		h.log.WithField("operation", op).WithError(err).Error("failed to toggle task")
		HandleError(ResolveError(err), c)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(updated, h.now()))
}

func (h *TaskHandler) deleteTaskAction(c *gin.Context) {
	const op = "rest.TaskHandler.deleteTaskAction"

	deleted, err := h.cache.Delete(c.Request.Context(), c.Param("taskID"))
	if err != nil {
		h.log.WithField("operation", op).WithError(err).Error("failed to delete task")
		HandleError(ResolveError(err), c)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(deleted, h.now()))
}
