package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPError is an error with an HTTP status code. Handlers return it to
// control the status and message sent to the client; any other error is
// reported as a 500.
type HTTPError struct {
	Code    int    // HTTP status code
	Message string // Message returned to the client
	Err     error  // Optional underlying error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(err error) *HTTPError {
	msg := "bad request"
	if err != nil {
		msg = err.Error()
	}
	return &HTTPError{Code: http.StatusBadRequest, Message: msg, Err: err}
}

// BadRequestf creates a 400 Bad Request error with a formatted message.
func BadRequestf(format string, args ...any) *HTTPError {
	return &HTTPError{Code: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a 404 Not Found error.
func NotFound(message ...string) *HTTPError {
	msg := "not found"
	if len(message) > 0 {
		msg = message[0]
	}
	return &HTTPError{Code: http.StatusNotFound, Message: msg}
}

// Internal creates a 500 Internal Server Error wrapping err. The client
// sees a generic message; the underlying error stays server-side.
func Internal(err error) *HTTPError {
	return &HTTPError{Code: http.StatusInternalServerError, Message: "internal error", Err: err}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError sends err to the client as a JSON error body. Non-HTTPError
// values become a 500 with a generic message.
func writeError(w http.ResponseWriter, err error) {
	he, ok := err.(*HTTPError)
	if !ok {
		he = Internal(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.Code)
	json.NewEncoder(w).Encode(errorBody{Error: he.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
