package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mind-engage/placement-exam/internal/exam"
)

type errorBody struct {
	Code  exam.Code `json:"code"`
	Error string    `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a domain error code onto an HTTP status.
func statusFor(code exam.Code) int {
	switch code {
	case exam.CodeInvalidInput:
		return http.StatusBadRequest
	case exam.CodeNotFound:
		return http.StatusNotFound
	case exam.CodeDuplicateSubmission, exam.CodeAlreadyRegistered:
		return http.StatusConflict
	case exam.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := exam.CodeOf(err)
	msg := err.Error()
	var e *exam.Error
	if errors.As(err, &e) {
		msg = e.Msg
	}
	if code == exam.CodeStoreUnavailable || code == exam.CodeUnknown {
		// internals stay in the server log
		msg = http.StatusText(statusFor(code))
	}
	writeJSON(w, statusFor(code), errorBody{Code: code, Error: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Code: exam.CodeInvalidInput, Error: msg})
}
