package coze

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheerfulman/arbitrage-fund/pkg/config"
	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.CozeConfig{
		BaseURL:  srv.URL,
		APIToken: "test-token",
		BotID:    "bot-1",
		UserID:   "123456789",
		Timeout:  5 * time.Second,
	}, logger.NewNop())
}

func TestChatHappyPath(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/v3/chat":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "bot-1", body["bot_id"])
			assert.Equal(t, false, body["stream"])
			fmt.Fprint(w, `{"code": 0, "data": {"id": "chat-1", "conversation_id": "conv-1", "status": "in_progress"}}`)

		case "/v3/chat/retrieve":
			assert.Equal(t, "chat-1", r.URL.Query().Get("chat_id"))
			fmt.Fprint(w, `{"code": 0, "data": {"id": "chat-1", "conversation_id": "conv-1", "status": "completed", "usage": {"token_count": 321}}}`)

		case "/v3/chat/message/list":
			fmt.Fprint(w, `{"code": 0, "data": [
				{"role": "assistant", "type": "verbose", "content": "{\"msg_type\":\"generate_answer_finish\"}"},
				{"role": "assistant", "type": "answer", "content": "[{\"fund_code\":\"160633\"}]"},
				{"role": "assistant", "type": "follow_up", "content": "还有问题吗"}
			]}`)

		default:
			http.NotFound(w, r)
		}
	})

	c := newTestClient(t, handler)

	result, err := c.Chat(context.Background(), "分析以下基金")
	require.NoError(t, err)
	assert.Equal(t, `[{"fund_code":"160633"}]`, result.Content)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, 321, result.TokenCount)
}

func TestChatFailedStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/chat":
			fmt.Fprint(w, `{"code": 0, "data": {"id": "chat-1", "conversation_id": "conv-1", "status": "in_progress"}}`)
		case "/v3/chat/retrieve":
			fmt.Fprint(w, `{"code": 0, "data": {"id": "chat-1", "conversation_id": "conv-1", "status": "failed", "last_error": {"code": 5000, "msg": "bot overloaded"}}}`)
		default:
			http.NotFound(w, r)
		}
	})

	c := newTestClient(t, handler)

	_, err := c.Chat(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot overloaded")
}

func TestChatAPIError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code": 4100, "msg": "access token invalid"}`)
	})

	c := newTestClient(t, handler)

	_, err := c.Chat(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access token invalid")
}

func TestChatMissingCredentials(t *testing.T) {
	c := NewClient(config.CozeConfig{BaseURL: "http://unused"}, logger.NewNop())

	assert.False(t, c.Configured())

	_, err := c.Chat(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestChatNoAnswerMessage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/chat":
			fmt.Fprint(w, `{"code": 0, "data": {"id": "chat-1", "conversation_id": "conv-1", "status": "in_progress"}}`)
		case "/v3/chat/retrieve":
			fmt.Fprint(w, `{"code": 0, "data": {"id": "chat-1", "conversation_id": "conv-1", "status": "completed"}}`)
		case "/v3/chat/message/list":
			fmt.Fprint(w, `{"code": 0, "data": []}`)
		default:
			http.NotFound(w, r)
		}
	})

	c := newTestClient(t, handler)

	_, err := c.Chat(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without an answer")
}
