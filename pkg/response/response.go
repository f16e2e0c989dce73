package response

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
)

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Status  int            `json:"status"`
	Message string         `json:"message,omitempty"`
	Code    string         `json:"code,omitempty"`
	Data    interface{}    `json:"data,omitempty"`
	Errors  interface{}    `json:"errors,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Write sends body with the given status.
func Write(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

// Success sends a 200 JSON response with data.
func Success(w http.ResponseWriter, data interface{}) {
	Write(w, http.StatusOK, Envelope{Status: http.StatusOK, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(w http.ResponseWriter, data interface{}) {
	Write(w, http.StatusCreated, Envelope{Status: http.StatusCreated, Data: data})
}

// Error sends a bare JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	Write(w, status, Envelope{Status: status, Message: message})
}

// ValidationError sends a 400 with a field → message map.
func ValidationError(w http.ResponseWriter, errs map[string]string) {
	Write(w, http.StatusBadRequest, Envelope{
		Status:  http.StatusBadRequest,
		Message: "Validation failed",
		Code:    apperr.CodeValidation,
		Errors:  errs,
	})
}

// Fail renders err through the apperr taxonomy. Causes are never rendered;
// internal errors get a generic message. Returns the classified error so
// callers can log it.
func Fail(w http.ResponseWriter, err error) *apperr.Error {
	e := apperr.From(err)
	status := e.Kind.HTTPStatus()

	if secs, ok := e.Details["retryAfter"].(int); ok && secs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	msg := e.Message
	if e.Kind == apperr.KindInternal {
		msg = "Internal Server Error"
	}
	Write(w, status, Envelope{Status: status, Message: msg, Code: e.Code, Details: e.Details})
	return e
}

// Unauthorized sends a 401.
func Unauthorized(w http.ResponseWriter) {
	Fail(w, apperr.ErrUnauthenticated)
}

// Forbidden sends a 403.
func Forbidden(w http.ResponseWriter) {
	Fail(w, apperr.ErrForbidden)
}

// NotFound sends a 404.
func NotFound(w http.ResponseWriter) {
	Fail(w, apperr.ErrNotFound)
}
