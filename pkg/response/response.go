package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope shared with the CortexUI API server.
type Response struct {
	IsOk    bool        `json:"isOk"`
	Status  string      `json:"status,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// AppError represents a structured application error with HTTP status and status code.
type AppError struct {
	HTTPStatus int    // HTTP status code (e.g. 400, 404, 500)
	Status     string // machine-readable code, e.g. MISSING_FIELDS
	Message    string // human-readable message shown to the user
}

func (e *AppError) Error() string {
	return e.Message
}

func NewBadRequest(status, msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Status: status, Message: msg}
}

func NewUnauthorized(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Status: "UNAUTHORIZED", Message: msg}
}

func NewForbidden(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Status: "FORBIDDEN", Message: msg}
}

func NewNotFound(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Status: "NOT_FOUND", Message: msg}
}

func NewConflict(status, msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusConflict, Status: status, Message: msg}
}

func NewPreconditionFailed(status, msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusPreconditionFailed, Status: status, Message: msg}
}

func NewServerError(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusInternalServerError, Status: "INTERNAL_ERROR", Message: msg}
}

// Success sends a 200 OK response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{IsOk: true, Status: "OK", Data: data})
}

// SuccessMessage sends a 200 OK response with a message and optional data.
func SuccessMessage(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{IsOk: true, Status: "OK", Message: msg, Data: data})
}

// Created sends a 201 Created response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{IsOk: true, Status: "CREATED", Data: data})
}

// Error sends an error response. If err is an *AppError, its status is used;
// otherwise a generic 500 internal server error is returned.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, Response{Status: appErr.Status, Message: appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, Response{Status: "INTERNAL_ERROR", Message: err.Error()})
}

func BadRequest(c *gin.Context, status, msg string) {
	c.JSON(http.StatusBadRequest, Response{Status: status, Message: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, Response{Status: "UNAUTHORIZED", Message: msg})
}

func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, Response{Status: "FORBIDDEN", Message: msg})
}

func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{Status: "NOT_FOUND", Message: msg})
}

func Conflict(c *gin.Context, status, msg string) {
	c.JSON(http.StatusConflict, Response{Status: status, Message: msg})
}

func PreconditionFailed(c *gin.Context, status, msg string) {
	c.JSON(http.StatusPreconditionFailed, Response{Status: status, Message: msg})
}

func ServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Response{Status: "INTERNAL_ERROR", Message: msg})
}
