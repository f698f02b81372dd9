package responses

import (
	"net/http"
	"time"

	"github.com/Aidin1998/pincex_sim/pkg/errors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// StandardResponse represents a standard API response format
type StandardResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

func write(c *gin.Context, status int, data interface{}, def string, message []string) {
	msg := def
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	c.JSON(status, StandardResponse{
		Success:   true,
		Data:      data,
		Message:   msg,
		Timestamp: time.Now().UTC(),
		TraceID:   getTraceID(c),
	})
}

// Success sends a 200 response
func Success(c *gin.Context, data interface{}, message ...string) {
	write(c, http.StatusOK, data, "", message)
}

// Created sends a 201 Created response
func Created(c *gin.Context, data interface{}, message ...string) {
	write(c, http.StatusCreated, data, "Resource created successfully", message)
}

// Accepted sends a 202 Accepted response
func Accepted(c *gin.Context, data interface{}, message ...string) {
	write(c, http.StatusAccepted, data, "Request accepted for processing", message)
}

// NoContent sends a 204 No Content response
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an application/problem+json response
func Error(c *gin.Context, problem *errors.ProblemDetails) {
	if problem.TraceID == "" {
		if traceID := getTraceID(c); traceID != "" {
			problem.WithTraceID(traceID)
		}
	}
	if problem.Instance == "" {
		problem.Instance = c.Request.URL.Path
	}
	if _, ok := problem.Extra["timestamp"]; !ok {
		problem.WithExtra("timestamp", time.Now().UTC().Format(time.RFC3339))
	}
	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(problem.Status, problem)
}

// BadRequest sends a 400 Bad Request response
func BadRequest(c *gin.Context, detail string, validationErrors ...errors.ValidationError) {
	problem := errors.NewValidationError(detail, c.Request.URL.Path)
	if len(validationErrors) > 0 {
		problem.WithValidationErrors(validationErrors)
	}
	Error(c, problem)
}

// NotFound sends a 404 Not Found response
func NotFound(c *gin.Context, detail string) {
	Error(c, errors.NewNotFoundError(detail, c.Request.URL.Path))
}

// Conflict sends a 409 Conflict response
func Conflict(c *gin.Context, detail string) {
	Error(c, errors.NewConflictError(detail, c.Request.URL.Path))
}

// InternalServerError sends a 500 Internal Server Error response
func InternalServerError(c *gin.Context, detail string) {
	Error(c, errors.NewInternalError(detail, c.Request.URL.Path))
}

// ServiceUnavailable sends a 503 Service Unavailable response
func ServiceUnavailable(c *gin.Context, detail string) {
	Error(c, errors.NewServiceUnavailableError(detail, c.Request.URL.Path))
}

// getTraceID prefers the active span, then an explicit header.
func getTraceID(c *gin.Context) string {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	if traceID, exists := c.Get("trace_id"); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return c.GetHeader("X-Trace-ID")
}
