package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"easybudget/internal/core"
)

// parseDateAndAccount extracts the date and account query parameters.
// The date defaults to today when absent.
func parseDateAndAccount(r *http.Request) (core.Date, int64, error) {
	date := core.Today()
	if v := strings.TrimSpace(r.URL.Query().Get("date")); v != "" {
		parsed, err := core.ParseDate(v)
		if err != nil {
			return core.Date{}, 0, fmt.Errorf("invalid date, expected YYYY-MM-DD: %w", core.ErrInvalidInput)
		}
		date = parsed
	}

	raw := strings.TrimSpace(r.URL.Query().Get("account"))
	if raw == "" {
		return core.Date{}, 0, fmt.Errorf("missing account parameter: %w", core.ErrInvalidInput)
	}
	accountID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || accountID <= 0 {
		return core.Date{}, 0, fmt.Errorf("invalid account parameter: %w", core.ErrInvalidInput)
	}
	return date, accountID, nil
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps domain errors to HTTP statuses: unknown ids are 404,
// invalid input is 400, anything else (persistence failures included) is a
// plain 500 without internals leaking to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, core.ErrInvalidRange),
		errors.Is(err, core.ErrInvalidTemplate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
