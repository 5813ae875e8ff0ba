package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"SkillChat/internal/app/session"
	"SkillChat/internal/service/conversation"

	"github.com/gorilla/websocket"
)

// Типы событий WebSocket-чата.
const (
	eventUser     = "user"
	eventFragment = "fragment"
	eventDone     = "done"
	eventWarning  = "warning"
	eventError    = "error"
)

type chatInput struct {
	Text string `json:"text"`
}

type chatEvent struct {
	Type string            `json:"type"`
	Role conversation.Role `json:"role,omitempty"`
	Text string            `json:"text,omitempty"`
	HTML template.HTML     `json:"html,omitempty"`
}

// handleChatWS: клиент шлёт {"text": ...}, сервер отвечает событиями user, fragment..., done
// (или warning/error). Ходы одного соединения обрабатываются последовательно.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	sess, created := s.lookup(r)
	var hdr http.Header
	if created {
		hdr = http.Header{"Set-Cookie": {newCookie(sess.ID).String()}}
	}
	conn, err := s.upgrader.Upgrade(w, r, hdr)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade не удался", "error", err)
		return
	}
	defer conn.Close()

	for {
		var in chatInput
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debugw("WebSocket закрыт", "session", sess.ID, "error", err)
			}
			return
		}
		if err := s.chatTurn(r.Context(), conn, sess, in.Text); err != nil {
			s.logger.Debugw("Клиент отключился во время ответа", "session", sess.ID, "error", err)
			return
		}
	}
}

// chatTurn выполняет один ход и транслирует его клиенту. Ошибка — только сбой записи в сокет.
func (s *Server) chatTurn(ctx context.Context, conn *websocket.Conn, sess *session.Session, text string) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var writeErr error
	send := func(ev chatEvent) {
		if writeErr != nil {
			return
		}
		if writeErr = conn.WriteJSON(ev); writeErr != nil {
			// читать стрим дальше некому
			cancel(writeErr)
		}
	}

	msg, err := sess.Submit(ctx, text, session.Hooks{
		OnUser: func(m conversation.Message) {
			send(chatEvent{Type: eventUser, Role: m.Role, Text: m.Content, HTML: s.md.HTML(m.Content)})
		},
		OnFragment: func(partial string) {
			send(chatEvent{Type: eventFragment, Role: conversation.RoleAssistant, Text: partial, HTML: s.md.HTML(partial)})
		},
	})
	switch {
	case err == nil:
		send(chatEvent{Type: eventDone, Role: msg.Role, Text: msg.Content, HTML: s.md.HTML(msg.Content)})
	case errors.Is(err, session.ErrNoCredential), errors.Is(err, session.ErrEmptyInput), errors.Is(err, session.ErrBusy):
		_, warning := errorStatus(err)
		send(chatEvent{Type: eventWarning, Text: warning})
	default:
		_, reason := errorStatus(err)
		send(chatEvent{Type: eventError, Text: reason})
	}
	return writeErr
}
