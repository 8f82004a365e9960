package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/dsaquest/internal/ai"
	"github.com/p-n-ai/dsaquest/internal/identity"
	"github.com/p-n-ai/dsaquest/internal/platform/apierr"
	"github.com/p-n-ai/dsaquest/internal/sensei"
)

var errSenseiDisabled = apierr.New(http.StatusServiceUnavailable, "sensei_disabled", "Sensei is not configured", nil)

type chatRequest struct {
	Messages []ai.Message `json:"messages"`
}

func (h *handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if h.sensei == nil {
		writeError(w, r, errSenseiDisabled)
		return
	}
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, r, badRequest("Messages are required"))
		return
	}

	content, err := h.sensei.Chat(r.Context(), identity.UserID(r.Context()), req.Messages)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (h *handler) handleExplain(w http.ResponseWriter, r *http.Request) {
	if h.sensei == nil {
		writeError(w, r, errSenseiDisabled)
		return
	}
	var req sensei.ExplainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	explanation, err := h.sensei.Explain(r.Context(), identity.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"explanation": explanation})
}

// wsInbound is a student message on the Sensei websocket.
type wsInbound struct {
	Content string `json:"content"`
}

// wsOutbound frames: "chunk" carries streamed text, "done" the full reply,
// "error" a user-facing message. The session stays open after an error.
type wsOutbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *handler) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if h.sensei == nil {
		writeError(w, r, errSenseiDisabled)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	userID := identity.UserID(ctx)
	session := h.sensei.NewSession(userID, sensei.SessionConfig{})
	slog.Info("sensei session opened", "user_id", userID)

	for {
		var in wsInbound
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				slog.Info("sensei session closed", "user_id", userID, "messages", session.Len())
			default:
				slog.Warn("sensei session read failed", "user_id", userID, "error", err)
			}
			return
		}

		reply, err := session.Send(ctx, in.Content, func(chunk string) error {
			return wsjson.Write(ctx, conn, wsOutbound{Type: "chunk", Content: chunk})
		})
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) != -1 {
				return
			}
			apiErr := toAPIError(err)
			if apiErr.Status >= http.StatusInternalServerError {
				slog.Error("sensei session turn failed", "user_id", userID, "error", err)
			}
			if werr := wsjson.Write(ctx, conn, wsOutbound{Type: "error", Error: apiErr.Message}); werr != nil {
				return
			}
			continue
		}
		if err := wsjson.Write(ctx, conn, wsOutbound{Type: "done", Content: reply}); err != nil {
			return
		}
	}
}
