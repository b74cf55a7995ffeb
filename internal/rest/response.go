package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smarttodo/internal/task"
)

const GeneralErrorKey = "general"

// Error codes carried next to each message.
const (
	MissedValue             = "missed_value"
	InvalidValue            = "invalid_value"
	InvalidRequestStructure = "invalid_request_structure"
	NotFound                = "not_found"
	BackendFailure          = "backend_failure"
)

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Error struct {
	Status int                     `json:"-"`
	Errors map[string]ErrorMessage `json:"errors"`
}

func NewValidationError(fields map[string]ErrorMessage) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Errors: fields}
}

func NewNotFoundError() *Error {
	return &Error{Status: http.StatusNotFound, Errors: map[string]ErrorMessage{
		GeneralErrorKey: {Code: NotFound, Message: "Task not found"},
	}}
}

func NewBackendError(msg string) *Error {
	return &Error{Status: http.StatusBadGateway, Errors: map[string]ErrorMessage{
		GeneralErrorKey: {Code: BackendFailure, Message: msg},
	}}
}

func NewInvalidStructureError() *Error {
	return &Error{Status: http.StatusBadRequest, Errors: map[string]ErrorMessage{
		GeneralErrorKey: {Code: InvalidRequestStructure, Message: "invalid request structure"},
	}}
}

// ResolveError maps a task or backend error onto an HTTP error body.
func ResolveError(err error) *Error {
	var verr *task.ValidationError
	if errors.As(err, &verr) {
		fields := make(map[string]ErrorMessage, len(verr.Fields))
		for field, msg := range verr.Fields {
			code := InvalidValue
			if msg == "Title is required" || msg == "Deadline is required" {
				code = MissedValue
			}
			fields[field] = ErrorMessage{Code: code, Message: msg}
		}
		return NewValidationError(fields)
	}
	if errors.Is(err, task.ErrNotFound) {
		return NewNotFoundError()
	}
	var opErr *task.OperationError
	if errors.As(err, &opErr) {
		return NewBackendError(opErr.Message)
	}
	return NewBackendError(err.Error())
}

func HandleError(e *Error, c *gin.Context) {
	c.AbortWithStatusJSON(e.Status, e)
}
