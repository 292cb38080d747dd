package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/scrypster/penchant/internal/session"
	"github.com/scrypster/penchant/pkg/types"
)

// chatWriteTimeout bounds each outbound websocket write.
const chatWriteTimeout = 10 * time.Second

// ChatMessage is one turn on the wire, both directions. Clients send only
// Text; server messages carry the speaker and current phase.
type ChatMessage struct {
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
	Phase   string `json:"phase,omitempty"`
}

// ChatHandler upgrades connections to websockets and runs one elicitation
// session per connection.
type ChatHandler struct {
	// NewSession builds a fresh controller per connection.
	NewSession func() *session.Controller

	// Log, when non-nil, receives the session transcript after the
	// connection ends.
	Log *session.Log

	// OriginPatterns restricts websocket origins. Empty means same-origin
	// only.
	OriginPatterns []string
}

// ServeHTTP handles websocket upgrade requests on /ws/chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{ //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		log.Printf("ERROR: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session aborted") //nolint:staticcheck,errcheck

	ctrl := h.NewSession()
	ctx := r.Context()

	defer h.saveTranscript(ctrl)

	if err := h.write(ctx, conn, ChatMessage{
		Speaker: "assistant",
		Text:    ctrl.Greeting(),
		Phase:   string(ctrl.Phase()),
	}); err != nil {
		return
	}

	for {
		var msg ChatMessage
		if err := h.read(ctx, conn, &msg); err != nil {
			return
		}

		reply, err := ctrl.HandleTurn(ctx, msg.Text)
		if errors.Is(err, session.ErrSessionClosed) {
			_ = conn.Close(websocket.StatusNormalClosure, "session closed") //nolint:staticcheck
			return
		}
		if err != nil {
			log.Printf("ERROR: chat turn failed: %v", err)
			_ = conn.Close(websocket.StatusInternalError, "internal error") //nolint:staticcheck
			return
		}

		if err := h.write(ctx, conn, ChatMessage{
			Speaker: "assistant",
			Text:    reply,
			Phase:   string(ctrl.Phase()),
		}); err != nil {
			return
		}

		if ctrl.Phase() == types.PhaseClosing {
			_ = conn.Close(websocket.StatusNormalClosure, "session complete") //nolint:staticcheck
			return
		}
	}
}

func (h *ChatHandler) read(ctx context.Context, conn *websocket.Conn, msg *ChatMessage) error { //nolint:staticcheck
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, msg); err != nil {
		log.Printf("chat: ignoring malformed message: %v", err)
		msg.Text = string(data)
	}
	return nil
}

func (h *ChatHandler) write(ctx context.Context, conn *websocket.Conn, msg ChatMessage) error { //nolint:staticcheck
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, chatWriteTimeout)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, data); err != nil {
		log.Printf("ERROR: websocket write failed: %v", err)
		return err
	}
	return nil
}

func (h *ChatHandler) saveTranscript(ctrl *session.Controller) {
	if h.Log == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Log.Save(ctx, ctrl.State(), ctrl.Phase()); err != nil {
		log.Printf("ERROR: saving session transcript: %v", err)
	}
}
