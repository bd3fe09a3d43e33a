package http

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"trivia-quiz-service/internal/domain"
)

type wireMessage struct {
	Type             string            `json:"type"`
	RoomID           string            `json:"room_id"`
	State            string            `json:"state"`
	SecondsRemaining int               `json:"seconds_remaining"`
	Participants     int               `json:"participants"`
	Questions        []domain.Question `json:"questions"`
	Error            *domain.ErrorBody `json:"error"`
}

func TestWebSocketCountdownFlow(t *testing.T) {
	env := newTestEnv(t, 5*time.Millisecond, 12)

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, env, "R1", "player")
		snap := readNext(t, conns[i], domain.TypeSnapshot)
		require.Equal(t, "R1", snap.RoomID)
		require.Equal(t, string(domain.RoomIdle), snap.State)
		require.Equal(t, 30, snap.SecondsRemaining)
		require.Equal(t, i+1, snap.Participants)

		batch := readNext(t, conns[i], domain.TypeQuestions)
		require.Len(t, batch.Questions, 10)
	}

	require.NoError(t, conns[0].WriteJSON(map[string]string{"action": "start_timer"}))

	for _, conn := range conns {
		for want := 29; want >= 1; want-- {
			msg := readNext(t, conn, domain.TypeTick)
			require.Equal(t, want, msg.SecondsRemaining)
		}
		msg := readNext(t, conn, domain.TypeExpired)
		require.Zero(t, msg.SecondsRemaining)

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := conn.ReadMessage()
		require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal close, got %v", err)
	}

	_, err := env.registry.Snapshot("R1")
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestWebSocketRejectsUnknownAction(t *testing.T) {
	env := newTestEnv(t, time.Hour, 10)
	conn := dial(t, env, "R2", "alice")
	readNext(t, conn, domain.TypeSnapshot)
	readNext(t, conn, domain.TypeQuestions)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "reset"}))
	msg := readNext(t, conn, domain.TypeError)
	require.Equal(t, domain.CodeInvalidMessage, msg.Error.Code)

	// The connection stays usable after a rejected message.
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "start_timer"}))
	require.Eventually(t, func() bool {
		view, err := env.registry.Snapshot("R2")
		return err == nil && view.State == domain.RoomRunning
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketReportsMissingQuestions(t *testing.T) {
	env := newTestEnv(t, time.Hour, 3)
	conn := dial(t, env, "R3", "alice")
	readNext(t, conn, domain.TypeSnapshot)

	msg := readNext(t, conn, domain.TypeError)
	require.Equal(t, domain.CodeInsufficientData, msg.Error.Code)
}

func TestWebSocketDisconnectCancelsCountdown(t *testing.T) {
	env := newTestEnv(t, time.Hour, 10)
	conn := dial(t, env, "R4", "alice")
	readNext(t, conn, domain.TypeSnapshot)
	readNext(t, conn, domain.TypeQuestions)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "start_timer"}))
	require.Eventually(t, func() bool {
		_, err := env.scheduler.Job("R4")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		view, err := env.registry.Snapshot("R4")
		return err == nil && view.Participants == 0 && view.State == domain.RoomIdle
	}, 2*time.Second, 10*time.Millisecond)
	_, err := env.scheduler.Job("R4")
	require.ErrorIs(t, err, domain.ErrJobNotFound)
}

func dial(t *testing.T, env *testEnv, room, name string) *websocket.Conn {
	t.Helper()
	u := "ws" + env.server.URL[len("http"):] + "/ws/quiz/" + room + "?name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readNext(t *testing.T, conn *websocket.Conn, expect string) wireMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	if msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, raw)
	}
	return msg
}
