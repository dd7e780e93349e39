package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/datachat/internal/agents"
)

// slowPlanProvider delays planning so a turn is reliably in flight while the
// test keeps writing frames.
type slowPlanProvider struct {
	*agents.MockProvider
	delay time.Duration
}

func (p *slowPlanProvider) CreatePlan(ctx context.Context, input string, hist []agents.Message) (agents.PlanResult, error) {
	time.Sleep(p.delay)
	return p.MockProvider.CreatePlan(ctx, input, hist)
}

func dialChatWS(t *testing.T, ts string, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts, "http") + "/v1/chat/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// Malformed frames arriving while a turn is running are tagged with the
// connection's session id by the read loop while the turns goroutine updates
// it, so this test fails under the race detector if that id is unguarded.
func TestChatWSMalformedFramesDuringTurn(t *testing.T) {
	provider := &slowPlanProvider{MockProvider: agents.NewMockProvider(), delay: 100 * time.Millisecond}
	ts, _ := newTestServerWithProvider(t, provider)
	conn := dialChatWS(t, ts.URL, "?session_id=ws1")

	if err := conn.WriteJSON(map[string]string{
		"type": "user_message",
		"text": "how many orders are there?",
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	parseErrors := 0
	var answer map[string]any
	for answer == nil {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error = %v (parse errors so far: %d)", err, parseErrors)
		}
		switch msg["type"] {
		case "error_event":
			if msg["code"] != "invalid_client_message" {
				t.Fatalf("unexpected error event: %v", msg)
			}
			parseErrors++
		case "assistant_message":
			answer = msg
		default:
			t.Fatalf("unexpected message: %v", msg)
		}
	}
	if parseErrors != 5 {
		t.Fatalf("parse error events = %d, want 5", parseErrors)
	}
	if answer["session_id"] != "ws1" {
		t.Fatalf("assistant message session_id = %v, want ws1", answer["session_id"])
	}
	if text, _ := answer["text"].(string); !strings.Contains(text, "rows") {
		t.Fatalf("assistant text = %q, want row summary", answer["text"])
	}
}

func TestChatWSCancelWithoutActiveTurn(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialChatWS(t, ts.URL, "")

	if err := conn.WriteJSON(map[string]string{
		"type":       "client_control",
		"session_id": "nope",
		"action":     "cancel",
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg["type"] != "error_event" || msg["code"] != "no_active_turn" {
		t.Fatalf("cancel on idle session = %v, want no_active_turn error", msg)
	}
}
