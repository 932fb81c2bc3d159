package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC7807 error body, served as application/problem+json.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// TraceID echoes the request ID so clients can quote it in reports.
	TraceID string `json:"traceId"`

	// Errors lists the request fields that failed validation or could not
	// be resolved.
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError points at one offending request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemBase = "https://api.velibadvisor.fr/problems/"

// Problem type URIs.
const (
	ProblemTypeValidation           = problemBase + "validation-error"
	ProblemTypeUnauthorized         = problemBase + "unauthorized"
	ProblemTypeForbidden            = problemBase + "forbidden"
	ProblemTypeNotFound             = problemBase + "not-found"
	ProblemTypeAddressNotFound      = problemBase + "address-not-found"
	ProblemTypeUnsupportedMediaType = problemBase + "unsupported-media-type"
	ProblemTypeTooManyRequests      = problemBase + "too-many-requests"
	ProblemTypeTLSRequired          = problemBase + "tls-required"
	ProblemTypeInternal             = problemBase + "internal-error"
	ProblemTypeUnavailable          = problemBase + "service-unavailable"
)

// problemTitles maps each problem type to its fixed title and status.
var problemTitles = map[string]struct {
	title  string
	status int
}{
	ProblemTypeValidation:           {"Validation error", http.StatusBadRequest},
	ProblemTypeUnauthorized:         {"Unauthorized", http.StatusUnauthorized},
	ProblemTypeForbidden:            {"Forbidden", http.StatusForbidden},
	ProblemTypeNotFound:             {"Not found", http.StatusNotFound},
	ProblemTypeAddressNotFound:      {"Address not found", http.StatusUnprocessableEntity},
	ProblemTypeUnsupportedMediaType: {"Unsupported media type", http.StatusUnsupportedMediaType},
	ProblemTypeTooManyRequests:      {"Too many requests", http.StatusTooManyRequests},
	ProblemTypeTLSRequired:          {"TLS required", http.StatusForbidden},
	ProblemTypeInternal:             {"Internal server error", http.StatusInternalServerError},
	ProblemTypeUnavailable:          {"Service unavailable", http.StatusServiceUnavailable},
}

// NewProblem creates a Problem with an explicit title and status.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// problemOf creates a Problem of a known type. Unknown types become
// internal errors.
func problemOf(problemType, traceID, detail string) *Problem {
	meta, ok := problemTitles[problemType]
	if !ok {
		problemType = ProblemTypeInternal
		meta = problemTitles[ProblemTypeInternal]
	}
	p := NewProblem(problemType, meta.title, meta.status, traceID)
	p.Detail = detail
	return p
}

// Write writes the Problem as JSON to the ResponseWriter.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest creates a 400 problem listing the invalid fields.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := problemOf(ProblemTypeValidation, traceID, detail)
	p.Errors = errors
	return p
}

func NewUnauthorized(traceID, detail string) *Problem {
	return problemOf(ProblemTypeUnauthorized, traceID, detail)
}

func NewForbidden(traceID, detail string) *Problem {
	return problemOf(ProblemTypeForbidden, traceID, detail)
}

func NewNotFound(traceID, detail string) *Problem {
	return problemOf(ProblemTypeNotFound, traceID, detail)
}

// NewAddressNotFound creates a 422 problem for an address that could not be
// resolved. Field names the request field holding the address.
func NewAddressNotFound(traceID, field, detail string) *Problem {
	p := problemOf(ProblemTypeAddressNotFound, traceID, detail)
	p.Errors = []FieldError{{Field: field, Message: detail, Code: "ADDRESS_NOT_FOUND"}}
	return p
}

func NewUnsupportedMediaType(traceID, detail string) *Problem {
	return problemOf(ProblemTypeUnsupportedMediaType, traceID, detail)
}

func NewTooManyRequests(traceID, detail string) *Problem {
	return problemOf(ProblemTypeTooManyRequests, traceID, detail)
}

func NewTLSRequired(traceID, detail string) *Problem {
	return problemOf(ProblemTypeTLSRequired, traceID, detail)
}

func NewInternalError(traceID, detail string) *Problem {
	return problemOf(ProblemTypeInternal, traceID, detail)
}

func NewServiceUnavailable(traceID, detail string) *Problem {
	return problemOf(ProblemTypeUnavailable, traceID, detail)
}
