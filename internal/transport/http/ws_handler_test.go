package http

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, env *testEnv, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err, "dial")
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketAdaptiveFlow(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env, env.token(t, "u1"))

	start := map[string]any{"type": "start", "payload": map[string]any{"questionCount": 2}}
	require.NoError(t, conn.WriteJSON(start))
	_, payload := readNext(conn, t, "started")
	question, _ := payload["question"].(map[string]any)
	require.NotNil(t, question, "expected first question, got %v", payload)
	require.NotEmpty(t, question["id"])
	assert.NotContains(t, question, "correctAnswer", "question must not reveal the answer")

	// sessionId may be omitted; the connection's session is used.
	answer := map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"questionId":     question["id"],
			"selectedAnswer": 1,
			"timeSpent":      5,
		},
	}
	require.NoError(t, conn.WriteJSON(answer))
	_, payload = readNext(conn, t, "answered")
	next, _ := payload["nextQuestion"].(map[string]any)
	require.NotNil(t, next, "expected next question, got %v", payload)

	answer["payload"] = map[string]any{"questionId": next["id"], "selectedAnswer": 0}
	require.NoError(t, conn.WriteJSON(answer))
	_, payload = readNext(conn, t, "completed")
	result, _ := payload["quizResult"].(map[string]any)
	require.NotNil(t, result, "expected quiz result, got %v", payload)
	// medium correct (1.5) + medium wrong (0) out of 3.0
	assert.Equal(t, float64(50), result["score"])

	// Nothing left to answer.
	require.NoError(t, conn.WriteJSON(answer))
	_, payload = readNext(conn, t, "error")
	assert.Equal(t, "validation", payload["kind"])
}

func TestWebSocketReportsUnsavedResult(t *testing.T) {
	env := newTestEnvWithResults(t, unavailableResults{})
	conn := dialWS(t, env, env.token(t, "u1"))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "start", "payload": map[string]any{"questionCount": 1}}))
	_, payload := readNext(conn, t, "started")
	question, _ := payload["question"].(map[string]any)
	require.NotNil(t, question)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionId": question["id"], "selectedAnswer": 1},
	}))
	_, payload = readNext(conn, t, "error")
	assert.Equal(t, "store", payload["kind"])
	result, _ := payload["quizResult"].(map[string]any)
	require.NotNil(t, result, "expected the unsaved result, got %v", payload)
	assert.Equal(t, float64(100), result["score"])
	last, _ := payload["lastAnswer"].(map[string]any)
	require.NotNil(t, last, "expected answer feedback, got %v", payload)
	assert.Equal(t, true, last["isCorrect"])
	assert.Equal(t, float64(1), last["correctAnswer"])
}

func TestWebSocketRejectsUnknownMessages(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env, env.token(t, "u1"))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "leaderboard"}))
	_, payload := readNext(conn, t, "error")
	assert.Equal(t, "validation", payload["kind"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "start", "payload": map[string]any{"subject": "Chemistry"}}))
	_, payload = readNext(conn, t, "error")
	assert.Equal(t, "no_questions_available", payload["kind"])
}

func TestWebSocketRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err, "expected handshake to fail")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg), "read json")
	if expect != "" {
		require.Equal(t, expect, msg.Type, "payload: %v", msg.Payload)
	}
	return msg.Type, msg.Payload
}
