package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/dsaquest/internal/platform/apierr"
	"github.com/p-n-ai/dsaquest/internal/progress"
	"github.com/p-n-ai/dsaquest/internal/sensei"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// writeError maps err to a status and a message safe to show users. Server-side
// failures are logged with the underlying error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", apiErr.Status,
			"code", apiErr.Code,
			"error", err,
		)
	}
	writeJSON(w, apiErr.Status, errorBody{Error: apiErr.Message})
}

func toAPIError(err error) *apierr.Error {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, progress.ErrUnauthorized):
		return apierr.New(http.StatusUnauthorized, "unauthorized", "Unauthorized", err)
	case errors.Is(err, progress.ErrValidation), errors.Is(err, sensei.ErrValidation):
		return apierr.New(http.StatusBadRequest, "validation", "Invalid request", err)
	case errors.Is(err, progress.ErrTopicNotFound):
		return apierr.New(http.StatusNotFound, "topic_not_found", "Topic not found", err)
	case errors.Is(err, progress.ErrModuleNotInTopic):
		return apierr.New(http.StatusNotFound, "module_not_found", "Module not found in topic", err)
	case errors.Is(err, progress.ErrRecordNotFound):
		return apierr.New(http.StatusNotFound, "user_not_found", "User not found", err)
	case errors.Is(err, progress.ErrConflict):
		return apierr.New(http.StatusConflict, "conflict", "Progress changed while saving, please retry", err)
	case errors.Is(err, sensei.ErrBudgetExceeded):
		return apierr.New(http.StatusTooManyRequests, "budget_exceeded", "Daily AI limit reached, try again tomorrow", err)
	case errors.Is(err, sensei.ErrUpstream):
		return apierr.New(http.StatusBadGateway, "upstream", "Sensei is unavailable right now, please try again later", err)
	case errors.Is(err, progress.ErrStoreUnavailable):
		return apierr.New(http.StatusServiceUnavailable, "store_unavailable", "Service temporarily unavailable", err)
	default:
		return apierr.From(err)
	}
}

func badRequest(message string) error {
	return apierr.New(http.StatusBadRequest, "validation", message, nil)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierr.New(http.StatusBadRequest, "invalid_json", "Invalid JSON body", fmt.Errorf("decode body: %w", err))
	}
	return nil
}
