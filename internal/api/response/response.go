// Package response writes JSON bodies and RFC7807 problems.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/velibadvisor/velibadvisor/internal/api/middleware"
	"github.com/velibadvisor/velibadvisor/internal/api/models"
)

// maxBodyBytes bounds request bodies; journey requests are a few hundred bytes.
const maxBodyBytes = 64 << 10

// JSON writes data with the given status, echoing the request ID.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// DecodeJSON reads a bounded JSON body into v. On failure it writes a 400
// problem and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		BadRequest(w, r, "request body too large", nil)
	} else {
		BadRequest(w, r, "invalid JSON body", nil)
	}
	return false
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

func BadRequest(w http.ResponseWriter, r *http.Request, detail string, fieldErrs []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), detail, fieldErrs))
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(traceID(r), detail))
}

// AddressNotFound writes a 422 naming the request field whose address could
// not be resolved.
func AddressNotFound(w http.ResponseWriter, r *http.Request, field, detail string) {
	Error(w, r, models.NewAddressNotFound(traceID(r), field, detail))
}

func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(traceID(r), detail))
}

func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(traceID(r), detail))
}
