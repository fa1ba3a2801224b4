package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leonid-shevtsov/telegold"
	"github.com/yuin/goldmark"

	"github.com/user/ideascan/internal/config"
)

const maxTelegramBody = 3500

var telegramConverter = goldmark.New(goldmark.WithRenderer(telegold.NewRenderer()))

// Telegram posts messages through the Bot API.
type Telegram struct {
	client  *http.Client
	apiBase string
	token   string
	chatID  string
}

func NewTelegram(cfg config.TelegramConfig) *Telegram {
	apiBase := strings.TrimRight(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &Telegram{
		client:  &http.Client{Timeout: 20 * time.Second},
		apiBase: apiBase,
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, subject, body, _ string) error {
	runes := []rune(body)
	if len(runes) > maxTelegramBody {
		body = string(runes[:maxTelegramBody])
	}

	payload := map[string]interface{}{
		"chat_id":                  t.chatID,
		"text":                     toTelegramHTML("**" + subject + "**\n\n" + body),
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Telegram message: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var result telegramResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if !result.OK {
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, result.Description)
	}
	return nil
}

// toTelegramHTML converts Markdown to the HTML subset Telegram accepts.
func toTelegramHTML(text string) string {
	var buf bytes.Buffer
	if err := telegramConverter.Convert([]byte(text), &buf); err != nil {
		return text
	}
	return strings.TrimSpace(buf.String())
}
