package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/p-n-ai/dsaquest/internal/identity"
	"github.com/p-n-ai/dsaquest/internal/platform/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			Mode:       "header",
			UserHeader: "X-User-Id",
			NameHeader: "X-User-Name",
		},
		Catalog:  config.CatalogConfig{Source: "file", Path: "../../catalog"},
		Progress: config.ProgressConfig{ModuleXP: 50, LockBackend: "memory"},
	}
}

func TestBuildHandler_InMemory(t *testing.T) {
	handler, cleanup, err := buildHandler(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("buildHandler() error = %v", err)
	}
	defer cleanup()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"healthz", http.MethodGet, "/healthz", "", http.StatusOK, `"status":"ok"`},
		{"readyz", http.MethodGet, "/readyz", "", http.StatusOK, `"status":"ready"`},
		{"topics from shipped catalog", http.MethodGet, "/api/topics", "", http.StatusOK, `"id":"arrays"`},
		{"complete module", http.MethodPost, "/api/progress/complete-module", `{"topicId":"arrays","moduleId":"intro-to-arrays"}`, http.StatusOK, `"xp":50`},
		{"sensei disabled", http.MethodPost, "/api/ai/chat", `{"messages":[{"role":"user","content":"hi"}]}`, http.StatusServiceUnavailable, "Sensei is not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("X-User-Id", "user-1")
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestBuildHandler_BadCatalogPath(t *testing.T) {
	cfg := testConfig()
	cfg.Catalog.Path = t.TempDir() + "/missing"
	if _, _, err := buildHandler(context.Background(), cfg); err == nil {
		t.Error("buildHandler() expected error for missing catalog directory")
	}
}

func TestNewSensei(t *testing.T) {
	cfg := testConfig()
	svc, err := newSensei(cfg, nil)
	if err != nil || svc != nil {
		t.Errorf("newSensei() without providers = %v, %v; want nil, nil", svc, err)
	}

	cfg.AI.Cohere = config.CohereConfig{APIKey: "co-test"}
	cfg.AI.DeepSeek = config.DeepSeekConfig{APIKey: "ds-test"}
	svc, err = newSensei(cfg, nil)
	if err != nil || svc == nil {
		t.Errorf("newSensei() with providers = %v, %v", svc, err)
	}
}

func TestNewAuthenticator(t *testing.T) {
	cfg := testConfig()
	auth, err := newAuthenticator(cfg)
	if err != nil {
		t.Fatalf("newAuthenticator(header) error = %v", err)
	}
	if _, ok := auth.(identity.HeaderAuthenticator); !ok {
		t.Errorf("header mode returned %T", auth)
	}

	cfg.Auth.Mode = "jwt"
	if _, err := newAuthenticator(cfg); err == nil {
		t.Error("jwt mode without secret should fail")
	}
	cfg.Auth.JWTSecret = "secret"
	auth, err = newAuthenticator(cfg)
	if err != nil {
		t.Fatalf("newAuthenticator(jwt) error = %v", err)
	}
	if _, ok := auth.(*identity.JWTAuthenticator); !ok {
		t.Errorf("jwt mode returned %T", auth)
	}
}
