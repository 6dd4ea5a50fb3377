package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cardvault-api/internal/domain"
)

// httpError maps domain sentinel errors to HTTP status codes. Not-found and
// credential failures stay distinct; anything unrecognized becomes a generic
// 500 with the detail logged, never leaked.
func httpError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("internal error", "err", err)
		msg = "internal server error"
	}
	if step := domain.ResumeStep(err); step > 0 {
		writeJSON(w, status, StepEnvelope{Error: msg, CurrentStep: step})
		return
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
