package httpapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"net/http"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/datachat/internal/cancel"
	"github.com/antoniostano/datachat/internal/protocol"
)

// connSession holds the connection's current session id. The turns goroutine
// updates it when a turn completes while the read loop tags parse errors with
// it, so access goes through a mutex.
type connSession struct {
	mu sync.Mutex
	id string
}

func (c *connSession) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *connSession) set(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
}

// handleChatWS runs a chat conversation over one websocket connection.
// Questions are processed one at a time per connection; client_control
// messages are handled out of band so a cancel can land mid-turn.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancelConn := context.WithCancel(r.Context())
	defer cancelConn()

	// session_id may arrive via query, first message, or be generated by the
	// first turn; whatever the pipeline returns becomes the connection's ID.
	sess := &connSession{id: r.URL.Query().Get("session_id")}

	inbound := make(chan protocol.UserMessage, 16)
	outbound := make(chan any, 64)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancelConn()
					return
				}
			}
		}
	}()

	turnsDone := make(chan struct{})
	go func() {
		defer close(turnsDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-inbound:
				if !ok {
					return
				}
				id := msg.SessionID
				if id == "" {
					id = sess.get()
				}
				resp, err := s.orch.HandleTurn(ctx, id, msg.Text)
				if resp.SessionID != "" {
					id = resp.SessionID
					sess.set(id)
				}
				switch {
				case errors.Is(err, cancel.ErrCancelled):
					send(ctx, outbound, protocol.SystemEvent{
						Type:      protocol.TypeSystemEvent,
						SessionID: id,
						Code:      "turn_cancelled",
					})
				case err != nil:
					send(ctx, outbound, protocol.ErrorEvent{
						Type:      protocol.TypeErrorEvent,
						SessionID: id,
						Code:      "turn_failed",
						Retryable: true,
						Detail:    err.Error(),
					})
				default:
					send(ctx, outbound, protocol.AssistantMessage{
						Type:            protocol.TypeAssistantMessage,
						SessionID:       resp.SessionID,
						Text:            resp.Message,
						IsClarification: resp.IsClarification,
						Plot:            resp.Plot,
						Metadata:        resp.Metadata,
					})
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			send(ctx, outbound, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sess.get(),
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}

		switch msg := parsed.(type) {
		case protocol.UserMessage:
			select {
			case <-ctx.Done():
				break readLoop
			case inbound <- msg:
			}
		case protocol.ClientControl:
			s.handleControl(ctx, msg, outbound)
		}
	}

	cancelConn()
	close(inbound)
	<-turnsDone
	<-writerDone
}

func (s *Server) handleControl(ctx context.Context, msg protocol.ClientControl, outbound chan<- any) {
	switch msg.Action {
	case protocol.ActionCancel:
		if s.orch.Cancel(msg.SessionID) {
			send(ctx, outbound, protocol.SystemEvent{
				Type:      protocol.TypeSystemEvent,
				SessionID: msg.SessionID,
				Code:      "cancel_requested",
			})
			return
		}
		send(ctx, outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: msg.SessionID,
			Code:      "no_active_turn",
			Retryable: false,
			Detail:    "no turn is running for this session",
		})
	case protocol.ActionReset:
		if err := s.sessions.Reset(msg.SessionID); err != nil {
			send(ctx, outbound, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: msg.SessionID,
				Code:      "session_not_found",
				Retryable: false,
				Detail:    err.Error(),
			})
			return
		}
		send(ctx, outbound, protocol.SystemEvent{
			Type:      protocol.TypeSystemEvent,
			SessionID: msg.SessionID,
			Code:      "session_reset",
		})
	default:
		send(ctx, outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: msg.SessionID,
			Code:      "unknown_action",
			Retryable: false,
			Detail:    msg.Action,
		})
	}
}

func send(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case <-ctx.Done():
	case outbound <- msg:
	}
}
