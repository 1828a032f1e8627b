package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
)

type errorResponse struct {
	Error   domainerr.Code `json:"error"`
	Message string         `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

func statusFor(code domainerr.Code) int {
	switch code {
	case domainerr.CodeNotFound:
		return http.StatusNotFound
	case domainerr.CodeForbidden:
		return http.StatusForbidden
	case domainerr.CodeInvalidInput:
		return http.StatusBadRequest
	case domainerr.CodeInvalidTransition, domainerr.CodeConflict:
		return http.StatusConflict
	case domainerr.CodeUnauthorized:
		return http.StatusUnauthorized
	case domainerr.CodeUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError maps a domain error to its HTTP status. Errors without a code
// are logged and reported as internal.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domainerr.CodeOf(err)
	if code == domainerr.CodeInternal {
		logger.ErrorContext(r.Context(), "unhandled error", slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	writeJSON(w, statusFor(code), errorResponse{Error: code, Message: domainerr.MessageOf(err)})
}

func writeErrorCode(w http.ResponseWriter, code domainerr.Code, msg string) {
	writeJSON(w, statusFor(code), errorResponse{Error: code, Message: msg})
}

// pathID parses a positive integer route variable.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, domainerr.Newf(domainerr.CodeInvalidInput, "invalid %s", name)
	}
	return id, nil
}
