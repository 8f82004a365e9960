// Package httpapi exposes the progress engine and Sensei over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/p-n-ai/dsaquest/internal/identity"
	"github.com/p-n-ai/dsaquest/internal/progress"
	"github.com/p-n-ai/dsaquest/internal/sensei"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// Deps holds everything the handlers need. Sensei may be nil when no AI
// provider is configured; the AI routes then answer 503.
type Deps struct {
	Engine *progress.Engine
	Sensei *sensei.Service
	Auth   identity.Authenticator
	// ReadyChecks are run by /readyz, keyed by dependency name.
	ReadyChecks map[string]ReadyCheck
	// OriginPatterns are the hosts allowed to open the Sensei websocket
	// cross-origin (see websocket.AcceptOptions).
	OriginPatterns []string
}

type handler struct {
	engine         *progress.Engine
	sensei         *sensei.Service
	readyChecks    map[string]ReadyCheck
	originPatterns []string
}

// NewHandler builds the routed, middleware-wrapped HTTP handler.
func NewHandler(deps Deps) http.Handler {
	h := &handler{
		engine:         deps.Engine,
		sensei:         deps.Sensei,
		readyChecks:    deps.ReadyChecks,
		originPatterns: deps.OriginPatterns,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", h.handleReadyz)

	mux.HandleFunc("GET /api/topics", h.handleTopics)
	mux.HandleFunc("GET /api/topics/{topicId}", h.handleTopic)
	mux.HandleFunc("POST /api/progress/complete-module", h.handleCompleteModule)
	mux.HandleFunc("GET /api/user/profile", h.handleProfile)
	mux.HandleFunc("POST /api/user", h.handleSyncUser)
	mux.HandleFunc("GET /api/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("GET /api/leaderboard/export", h.handleLeaderboardExport)

	mux.HandleFunc("POST /api/ai/chat", h.handleChat)
	mux.HandleFunc("POST /api/ai/explain", h.handleExplain)
	mux.HandleFunc("GET /api/ai/chat/ws", h.handleChatWS)

	var out http.Handler = mux
	if deps.Auth != nil {
		out = identity.Middleware(deps.Auth, out)
	}
	out = recoverMiddleware(out)
	out = accessLogMiddleware(out)
	return out
}
