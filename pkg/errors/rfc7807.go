// Package errors renders API failures as RFC 7807 Problem Details.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

const typeBase = "https://pincex.dev/problems/"

// Problem type URIs
const (
	TypeValidationError = typeBase + "validation-error"
	TypeNotFound        = typeBase + "not-found"
	TypeOrderNotFound   = typeBase + "order-not-found"
	TypeBotNotFound     = typeBase + "bot-not-found"
	TypeInvalidOrder    = typeBase + "invalid-order"
	TypeUnknownStrategy = typeBase + "unknown-strategy"
	TypeCapacity        = typeBase + "bot-capacity"
	TypeConflict        = typeBase + "conflict"
	TypeInternalError   = typeBase + "internal-error"
	TypeUnavailable     = typeBase + "service-unavailable"
	TypeRateLimited     = typeBase + "rate-limited"
)

// ValidationError represents a validation error for RFC 7807
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Status   int                    `json:"status"`
	Detail   string                 `json:"detail,omitempty"`
	Instance string                 `json:"instance,omitempty"`
	TraceID  string                 `json:"trace_id,omitempty"`
	Errors   []ValidationError      `json:"errors,omitempty"`
	Extra    map[string]interface{} `json:"-"`
}

func (p *ProblemDetails) Error() string {
	return p.Detail
}

// WithTraceID adds a trace ID to the problem details
func (p *ProblemDetails) WithTraceID(traceID string) *ProblemDetails {
	p.TraceID = traceID
	return p
}

// WithValidationErrors adds validation errors to the problem details
func (p *ProblemDetails) WithValidationErrors(errs []ValidationError) *ProblemDetails {
	p.Errors = errs
	return p
}

// WithExtra adds a field serialized at the top level
func (p *ProblemDetails) WithExtra(key string, value interface{}) *ProblemDetails {
	if p.Extra == nil {
		p.Extra = make(map[string]interface{})
	}
	p.Extra[key] = value
	return p
}

// MarshalJSON flattens Extra into the top level object.
func (p *ProblemDetails) MarshalJSON() ([]byte, error) {
	result := make(map[string]interface{}, 6+len(p.Extra))
	for k, v := range p.Extra {
		result[k] = v
	}
	result["type"] = p.Type
	result["title"] = p.Title
	result["status"] = p.Status
	if p.Detail != "" {
		result["detail"] = p.Detail
	}
	if p.Instance != "" {
		result["instance"] = p.Instance
	}
	if p.TraceID != "" {
		result["trace_id"] = p.TraceID
	}
	if len(p.Errors) > 0 {
		result["errors"] = p.Errors
	}
	return json.Marshal(result)
}

// NewProblemDetails creates a generic problem details with all fields
func NewProblemDetails(problemType, title string, status int, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:     problemType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

func NewValidationError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeValidationError, "Validation Error", http.StatusBadRequest, detail, instance)
}

func NewNotFoundError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeNotFound, "Not Found", http.StatusNotFound, detail, instance)
}

func NewOrderNotFoundError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeOrderNotFound, "Order Not Found", http.StatusNotFound, detail, instance)
}

func NewBotNotFoundError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeBotNotFound, "Bot Not Found", http.StatusNotFound, detail, instance)
}

func NewInvalidOrderError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeInvalidOrder, "Invalid Order", http.StatusBadRequest, detail, instance)
}

func NewUnknownStrategyError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeUnknownStrategy, "Unknown Strategy", http.StatusBadRequest, detail, instance)
}

// NewCapacityError is returned when the bot population is full.
func NewCapacityError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeCapacity, "Bot Capacity Reached", http.StatusTooManyRequests, detail, instance)
}

func NewConflictError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeConflict, "Conflict", http.StatusConflict, detail, instance)
}

func NewInternalError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeInternalError, "Internal Server Error", http.StatusInternalServerError, detail, instance)
}

func NewServiceUnavailableError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeUnavailable, "Service Unavailable", http.StatusServiceUnavailable, detail, instance)
}

func NewRateLimitedError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeRateLimited, "Too Many Requests", http.StatusTooManyRequests, detail, instance)
}

// FromBindingError turns a request binding failure into a validation problem,
// listing each failed field when the validator reports them.
func FromBindingError(err error, instance string) *ProblemDetails {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError(err.Error(), instance)
	}
	fields := make([]ValidationError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		names = append(names, name)
		fields = append(fields, ValidationError{
			Field:   name,
			Value:   fe.Value(),
			Message: describe(fe),
			Code:    fe.Tag(),
		})
	}
	return NewValidationError(fmt.Sprintf("invalid fields: %s", strings.Join(names, ", ")), instance).
		WithValidationErrors(fields)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt", "gte", "min":
		return "must be at least " + fe.Param()
	case "lt", "lte", "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
