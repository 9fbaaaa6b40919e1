package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const telegramAPI = "https://api.telegram.org"

var levelPrefix = map[Level]string{
	LevelInfo:  "",
	LevelWarn:  "[warn] ",
	LevelError: "[error] ",
}

// TelegramSender delivers messages through the Bot API sendMessage call.
type TelegramSender struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		baseURL: telegramAPI,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts plain text; dataset warnings quote market names that would
// break Markdown parsing.
func (t *TelegramSender) Send(ctx context.Context, msg Message) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	body, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     levelPrefix[msg.Level] + msg.Title + "\n" + msg.Body,
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (t *TelegramSender) Name() string {
	return "telegram"
}
