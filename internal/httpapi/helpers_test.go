package httpapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/p-n-ai/dsaquest/internal/ai"
	"github.com/p-n-ai/dsaquest/internal/catalog"
	"github.com/p-n-ai/dsaquest/internal/httpapi"
	"github.com/p-n-ai/dsaquest/internal/identity"
	"github.com/p-n-ai/dsaquest/internal/progress"
	"github.com/p-n-ai/dsaquest/internal/sensei"
)

type testEnv struct {
	handler http.Handler
	store   *progress.MemoryStore
	engine  *progress.Engine
	mock    *ai.MockProvider
}

func testCatalog() *catalog.Static {
	return catalog.NewStatic(
		catalog.Topic{
			ID:    "arrays",
			Title: "Arrays",
			Modules: []catalog.Module{
				{ID: "intro-to-arrays", Title: "Introduction to Arrays", Content: "# Arrays"},
				{ID: "array-operations", Title: "Array Operations", Content: "# Ops"},
			},
		},
		catalog.Topic{
			ID:                "graphs",
			Title:             "Graphs",
			UnlockRequirement: 1500,
			Modules: []catalog.Module{
				{ID: "bfs", Title: "Breadth-First Search", Content: "# BFS"},
			},
		},
	)
}

func newTestEnv(t *testing.T, opts ...func(*httpapi.Deps)) *testEnv {
	t.Helper()
	store := progress.NewMemoryStore()
	engine := progress.NewEngine(progress.EngineConfig{Catalog: testCatalog(), Store: store})

	mock := ai.NewMockProvider("Think of a queue as a line at a bakery.")
	router := ai.NewRouter()
	router.Register("mock", mock)
	svc, err := sensei.New(sensei.Config{Completer: router})
	if err != nil {
		t.Fatalf("sensei.New() error = %v", err)
	}

	deps := httpapi.Deps{
		Engine: engine,
		Sensei: svc,
		Auth: identity.HeaderAuthenticator{
			UserHeader:  "X-User-Id",
			NameHeader:  "X-User-Name",
			EmailHeader: "X-User-Email",
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return &testEnv{
		handler: httpapi.NewHandler(deps),
		store:   store,
		engine:  engine,
		mock:    mock,
	}
}

// do sends a request as userID ("" for anonymous) and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

type errorResponse struct {
	Error string `json:"error"`
}
