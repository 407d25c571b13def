package httpx

import (
	"errors"
	"log/slog"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// ServerError logs err and answers with a 500 problem carrying a client-safe detail.
func ServerError(w http.ResponseWriter, logger *slog.Logger, detail string, err error, attrs ...any) {
	if logger != nil {
		logger.Error(detail, append([]any{slog.Any("error", err)}, attrs...)...)
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", detail)
}

// TooManyRequests answers rate-limited requests with a 429 problem.
func TooManyRequests(w http.ResponseWriter, _ *http.Request) {
	Problem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded, retry later")
}
