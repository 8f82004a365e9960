package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/p-n-ai/dsaquest/internal/identity"
	"github.com/p-n-ai/dsaquest/internal/progress"
	"github.com/p-n-ai/dsaquest/internal/report"
)

func (h *handler) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.engine.Topics(r.Context(), identity.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (h *handler) handleTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := h.engine.Topic(r.Context(), identity.UserID(r.Context()), r.PathValue("topicId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topic": topic})
}

type completeModuleRequest struct {
	TopicID  string `json:"topicId"`
	ModuleID string `json:"moduleId"`
}

type completeModuleResponse struct {
	Success   bool             `json:"success"`
	Progress  int              `json:"progress"`
	XP        int              `json:"xp"`
	Level     int              `json:"level"`
	NewBadges []progress.Badge `json:"newBadges"`
}

func (h *handler) handleCompleteModule(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())
	if userID == "" {
		writeError(w, r, progress.ErrUnauthorized)
		return
	}

	var req completeModuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.TopicID) == "" || strings.TrimSpace(req.ModuleID) == "" {
		writeError(w, r, badRequest("Missing topicId or moduleId"))
		return
	}

	res, err := h.engine.CompleteModule(r.Context(), userID, req.TopicID, req.ModuleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	badges := res.NewBadges
	if badges == nil {
		badges = []progress.Badge{}
	}
	writeJSON(w, http.StatusOK, completeModuleResponse{
		Success:   true,
		Progress:  res.Progress,
		XP:        res.XP,
		Level:     res.Level,
		NewBadges: badges,
	})
}

func (h *handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.engine.Profile(r.Context(), identity.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleSyncUser copies the caller's name and email from the identity
// provider into their progress record.
func (h *handler) handleSyncUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, r, progress.ErrUnauthorized)
		return
	}
	rec, err := h.engine.Sync(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": rec})
}

func (h *handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.engine.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

func (h *handler) handleLeaderboardExport(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit == 0 {
		limit = progress.MaxLeaderboardLimit
	}
	entries, err := h.engine.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	f, err := report.LeaderboardWorkbook(entries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", report.XLSXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.xlsx"`)
	if err := f.Write(w); err != nil {
		writeError(w, r, fmt.Errorf("write leaderboard workbook: %w", err))
	}
}

// limitParam parses ?limit=. Absent means the default; clamping happens in the engine.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("limit must be a number")
	}
	return n, nil
}
