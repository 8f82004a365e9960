package httpapi_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/dsaquest/internal/progress"
	"github.com/p-n-ai/dsaquest/internal/report"
)

func TestCompleteModule(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/progress/complete-module", "user-1",
		`{"topicId":"arrays","moduleId":"intro-to-arrays"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	got := decode[struct {
		Success   bool             `json:"success"`
		Progress  int              `json:"progress"`
		XP        int              `json:"xp"`
		Level     int              `json:"level"`
		NewBadges []progress.Badge `json:"newBadges"`
	}](t, rec)
	if !got.Success || got.Progress != 50 || got.XP != 50 || got.Level != 1 {
		t.Errorf("response = %+v", got)
	}
	if len(got.NewBadges) != 1 || got.NewBadges[0].Name != "First Steps" {
		t.Errorf("NewBadges = %+v", got.NewBadges)
	}

	rec = env.do(t, http.MethodPost, "/api/progress/complete-module", "user-1",
		`{"topicId":"arrays","moduleId":"intro-to-arrays"}`)
	body := rec.Body.String()
	if rec.Code != http.StatusOK || !bytes.Contains([]byte(body), []byte(`"newBadges":[]`)) {
		t.Errorf("repeat completion: status %d body %s", rec.Code, body)
	}
}

func TestCompleteModule_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		userID     string
		body       string
		wantStatus int
		wantError  string
	}{
		{"anonymous", "", `{"topicId":"arrays","moduleId":"intro-to-arrays"}`, http.StatusUnauthorized, "Unauthorized"},
		{"missing module", "user-1", `{"topicId":"arrays"}`, http.StatusBadRequest, "Missing topicId or moduleId"},
		{"missing topic", "user-1", `{"moduleId":"intro-to-arrays"}`, http.StatusBadRequest, "Missing topicId or moduleId"},
		{"bad json", "user-1", `{"topicId":`, http.StatusBadRequest, "Invalid JSON body"},
		{"unknown topic", "user-1", `{"topicId":"nope","moduleId":"m"}`, http.StatusNotFound, "Topic not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/progress/complete-module", tt.userID, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decode[errorResponse](t, rec).Error; got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
		})
	}

	if _, err := env.store.Get(context.Background(), "user-1"); err == nil {
		t.Error("failed requests created a progress record")
	}
}

func TestTopics(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/progress/complete-module", "user-1", `{"topicId":"arrays","moduleId":"intro-to-arrays"}`)

	tests := []struct {
		name         string
		userID       string
		wantProgress int
	}{
		{"anonymous", "", 0},
		{"signed in", "user-1", 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/topics", tt.userID, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			got := decode[struct {
				Topics []progress.TopicView `json:"topics"`
			}](t, rec)
			if len(got.Topics) != 2 {
				t.Fatalf("topics = %+v", got.Topics)
			}
			if got.Topics[0].Progress != tt.wantProgress || !got.Topics[0].Unlocked {
				t.Errorf("arrays = %+v", got.Topics[0])
			}
			if got.Topics[1].Unlocked || got.Topics[1].RequiredXP != 1500 {
				t.Errorf("graphs = %+v", got.Topics[1])
			}
		})
	}
}

func TestTopicDetail(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/progress/complete-module", "user-1", `{"topicId":"arrays","moduleId":"array-operations"}`)

	rec := env.do(t, http.MethodGet, "/api/topics/arrays", "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[struct {
		Topic progress.TopicDetail `json:"topic"`
	}](t, rec)
	if len(got.Topic.Modules) != 2 {
		t.Fatalf("modules = %+v", got.Topic.Modules)
	}
	if got.Topic.Modules[0].IsCompleted || !got.Topic.Modules[1].IsCompleted {
		t.Errorf("completion flags = %v/%v, want false/true",
			got.Topic.Modules[0].IsCompleted, got.Topic.Modules[1].IsCompleted)
	}

	rec = env.do(t, http.MethodGet, "/api/topics/missing", "", "")
	if rec.Code != http.StatusNotFound || decode[errorResponse](t, rec).Error != "Topic not found" {
		t.Errorf("missing topic: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/user/profile", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/user/profile", "new-user", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[progress.ProfileView](t, rec)
	if got.Level != 1 || got.UserID != "new-user" || got.DailyChallenge != nil {
		t.Errorf("zero-state profile = %+v", got)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"badges":[]`)) {
		t.Errorf("badges should encode as [], body = %s", rec.Body.String())
	}
}

func TestSyncUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/user", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/user", nil)
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-User-Name", "Ada Lovelace")
	req.Header.Set("X-User-Email", "ada@example.com")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	got := decode[struct {
		OK   bool            `json:"ok"`
		User progress.Record `json:"user"`
	}](t, rec)
	if !got.OK || got.User.Name != "Ada Lovelace" || got.User.Email != "ada@example.com" {
		t.Errorf("response = %+v", got)
	}
}

func TestLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/progress/complete-module", "user-1", `{"topicId":"arrays","moduleId":"intro-to-arrays"}`)
	env.do(t, http.MethodPost, "/api/progress/complete-module", "user-2", `{"topicId":"arrays","moduleId":"intro-to-arrays"}`)
	env.do(t, http.MethodPost, "/api/progress/complete-module", "user-2", `{"topicId":"arrays","moduleId":"array-operations"}`)

	rec := env.do(t, http.MethodGet, "/api/leaderboard?limit=1", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[struct {
		Leaderboard []progress.LeaderboardEntry `json:"leaderboard"`
	}](t, rec)
	if len(got.Leaderboard) != 1 {
		t.Fatalf("leaderboard = %+v", got.Leaderboard)
	}
	top := got.Leaderboard[0]
	if top.Rank != 1 || top.UserID != "user-2" || top.Score != 100 || top.Name != "Explorer #1" {
		t.Errorf("top = %+v", top)
	}

	rec = env.do(t, http.MethodGet, "/api/leaderboard?limit=ten", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric limit status = %d, want 400", rec.Code)
	}
}

func TestLeaderboardExport(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/progress/complete-module", "user-1", `{"topicId":"arrays","moduleId":"intro-to-arrays"}`)

	rec := env.do(t, http.MethodGet, "/api/leaderboard/export", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != report.XLSXContentType {
		t.Errorf("Content-Type = %q", ct)
	}

	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(report.LeaderboardSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 || rows[1][2] != "user-1" {
		t.Errorf("rows = %v", rows)
	}
}
