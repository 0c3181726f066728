package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cheerfulman/arbitrage-fund/pkg/config"
	"github.com/cheerfulman/arbitrage-fund/pkg/httputil"
	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

// ErrMissingCredentials is returned when the API token or bot ID is not
// configured. Callers treat this as "skip the run", not as a crash.
var ErrMissingCredentials = fmt.Errorf("coze credentials not configured")

const pollInterval = 2 * time.Second

// Client talks to the Coze v3 chat API. A chat is asynchronous on the
// Coze side: create, poll until completed, then list the answer
// messages.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.CozeConfig
}

// ChatResult is the final outcome of one chat round.
type ChatResult struct {
	Content    string
	Status     string
	TokenCount int
}

type chatEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type chatData struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
	LastError      *struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"last_error"`
	Usage *struct {
		TokenCount int `json:"token_count"`
	} `json:"usage"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// NewClient creates a new Coze client. Chat POST bodies cannot be
// replayed, so the underlying HTTP client runs without retry and with
// a timeout long enough for slow bot turns.
func NewClient(cfg config.CozeConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: httputil.NewWithTimeout(log, 2*time.Minute).DisableRetry(),
		logger:     log,
		cfg:        cfg,
	}
}

// Configured reports whether the client has credentials to work with.
func (c *Client) Configured() bool {
	return c.cfg.APIToken != "" && c.cfg.BotID != ""
}

// Chat sends one user message to the bot and blocks until the bot has
// finished answering or the configured timeout elapses. The returned
// content is the concatenation of all answer messages of the round.
func (c *Client) Chat(ctx context.Context, message string) (*ChatResult, error) {
	if !c.Configured() {
		return nil, ErrMissingCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	chat, err := c.createChat(ctx, message)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"chat_id":         chat.ID,
		"conversation_id": chat.ConversationID,
	}).Info("Coze chat created")

	final, err := c.waitForCompletion(ctx, chat)
	if err != nil {
		return nil, err
	}

	result := &ChatResult{Status: final.Status}
	if final.Usage != nil {
		result.TokenCount = final.Usage.TokenCount
	}

	if final.Status != "completed" {
		if final.LastError != nil && final.LastError.Code != 0 {
			return nil, fmt.Errorf("coze chat %s: %s (code %d)",
				final.Status, final.LastError.Msg, final.LastError.Code)
		}
		return nil, fmt.Errorf("coze chat finished with status %q", final.Status)
	}

	content, err := c.collectAnswer(ctx, final)
	if err != nil {
		return nil, err
	}
	result.Content = content

	c.logger.WithFields(map[string]interface{}{
		"chat_id":     final.ID,
		"token_count": result.TokenCount,
		"bytes":       len(content),
	}).Info("Coze chat completed")

	return result, nil
}

// createChat starts a chat round.
func (c *Client) createChat(ctx context.Context, message string) (*chatData, error) {
	body := map[string]interface{}{
		"bot_id":            c.cfg.BotID,
		"user_id":           c.cfg.UserID,
		"stream":            false,
		"auto_save_history": true,
		"additional_messages": []map[string]string{
			{
				"role":         "user",
				"content":      message,
				"content_type": "text",
			},
		},
	}

	var data chatData
	if err := c.doJSON(ctx, http.MethodPost, "/v3/chat", nil, body, &data); err != nil {
		return nil, fmt.Errorf("create chat failed: %w", err)
	}
	if data.ID == "" || data.ConversationID == "" {
		return nil, fmt.Errorf("create chat failed: response missing chat identifiers")
	}

	return &data, nil
}

// waitForCompletion polls the chat status until it leaves in_progress.
func (c *Client) waitForCompletion(ctx context.Context, chat *chatData) (*chatData, error) {
	query := url.Values{
		"chat_id":         {chat.ID},
		"conversation_id": {chat.ConversationID},
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		var data chatData
		if err := c.doJSON(ctx, http.MethodGet, "/v3/chat/retrieve", query, nil, &data); err != nil {
			return nil, fmt.Errorf("retrieve chat failed: %w", err)
		}

		switch data.Status {
		case "completed", "failed", "requires_action", "canceled":
			return &data, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("coze chat timed out: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// collectAnswer lists the messages of a completed round and joins the
// answer parts. Verbose and follow-up messages are skipped.
func (c *Client) collectAnswer(ctx context.Context, chat *chatData) (string, error) {
	query := url.Values{
		"chat_id":         {chat.ID},
		"conversation_id": {chat.ConversationID},
	}

	var messages []chatMessage
	if err := c.doJSON(ctx, http.MethodGet, "/v3/chat/message/list", query, nil, &messages); err != nil {
		return "", fmt.Errorf("list chat messages failed: %w", err)
	}

	var buf bytes.Buffer
	for _, m := range messages {
		if m.Role == "assistant" && m.Type == "answer" {
			buf.WriteString(m.Content)
		}
	}

	if buf.Len() == 0 {
		return "", fmt.Errorf("chat %s completed without an answer message", chat.ID)
	}

	return buf.String(), nil
}

// doJSON performs one authenticated API call and unwraps the standard
// {code, msg, data} envelope.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	fullURL := c.cfg.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request failed: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var envelope chatEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response failed: %w", err)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("API error %d: %s", envelope.Code, envelope.Msg)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data failed: %w", err)
		}
	}

	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
