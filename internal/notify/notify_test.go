package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/user/ideascan/internal/config"
)

type recordingNotifier struct {
	name  string
	err   error
	calls *[]string
}

func (r recordingNotifier) Name() string { return r.name }

func (r recordingNotifier) Send(_ context.Context, subject, _, _ string) error {
	*r.calls = append(*r.calls, r.name+":"+subject)
	return r.err
}

func TestCompositeSendsInOrder(t *testing.T) {
	var calls []string
	c := NewComposite(
		recordingNotifier{name: "a", calls: &calls},
		recordingNotifier{name: "b", calls: &calls},
	)
	if err := c.Send(context.Background(), "hi", "body", ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if strings.Join(calls, ",") != "a:hi,b:hi" {
		t.Errorf("calls = %v", calls)
	}
}

func TestCompositeStopsAtFirstFailure(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	c := NewComposite(
		recordingNotifier{name: "a", err: boom, calls: &calls},
		recordingNotifier{name: "b", calls: &calls},
	)
	err := c.Send(context.Background(), "hi", "body", "")
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if !strings.Contains(err.Error(), "a notification failed") {
		t.Errorf("error should name the channel: %v", err)
	}
	if len(calls) != 1 {
		t.Errorf("expected second channel to be skipped, calls = %v", calls)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	if n := FromConfig(cfg, nil); n != nil {
		t.Errorf("expected nil notifier, got %T", n)
	}

	cfg.SMTP = config.SMTPConfig{Host: "smtp.example.com", Port: 587, User: "u", Password: "p", EmailTo: "a@example.com"}
	cfg.Telegram = config.TelegramConfig{BotToken: "t", ChatID: "1"}
	n := FromConfig(cfg, nil)
	c, ok := n.(*Composite)
	if !ok {
		t.Fatalf("expected composite, got %T", n)
	}
	if c.Len() != 2 || c.channels[0].Name() != "email" || c.channels[1].Name() != "telegram" {
		t.Errorf("unexpected channels: %+v", c.channels)
	}
}

func TestTelegramSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"ok": true, "result": {}}`)
	}))
	defer srv.Close()

	tg := NewTelegram(config.TelegramConfig{BotToken: "TOKEN", ChatID: "42", APIBase: srv.URL})
	body := strings.Repeat("a", 4000)
	if err := tg.Send(context.Background(), "Reddit Ideas Daily Report", body, ""); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got["chat_id"] != "42" || got["parse_mode"] != "HTML" || got["disable_web_page_preview"] != true {
		t.Errorf("unexpected payload: %v", got)
	}
	text, _ := got["text"].(string)
	if !strings.Contains(text, "<b>Reddit Ideas Daily Report</b>") {
		t.Errorf("subject not rendered bold: %.80q", text)
	}
	if strings.Count(text, "a") > 3500+strings.Count("Reddit Ideas Daily Report", "a") {
		t.Error("body not truncated")
	}
}

func TestTelegramSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"ok": false, "description": "chat not found"}`)
	}))
	defer srv.Close()

	tg := NewTelegram(config.TelegramConfig{BotToken: "T", ChatID: "1", APIBase: srv.URL})
	err := tg.Send(context.Background(), "s", "b", "")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestBuildMessage(t *testing.T) {
	report := []byte("# Reddit Idea Scanner Report (Daily)\n\n## Top Opportunities\n")
	date := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	raw, err := buildMessage("bot@example.com", []string{"a@example.com", "b@example.com"},
		"Reddit Ideas Daily Report", "Posts checked: 3", "report_daily.md", report, date)
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Header.Get("Subject") != "Reddit Ideas Daily Report" {
		t.Errorf("subject = %q", msg.Header.Get("Subject"))
	}
	if msg.Header.Get("To") != "a@example.com, b@example.com" {
		t.Errorf("to = %q", msg.Header.Get("To"))
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/mixed" {
		t.Fatalf("content type = %q, %v", mediaType, err)
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])

	alt, err := mr.NextPart()
	if err != nil {
		t.Fatalf("alternative part: %v", err)
	}
	altType, altParams, _ := mime.ParseMediaType(alt.Header.Get("Content-Type"))
	if altType != "multipart/alternative" {
		t.Fatalf("expected alternative, got %s", altType)
	}
	ar := multipart.NewReader(alt, altParams["boundary"])
	plain, _ := ar.NextPart()
	plainBody, _ := io.ReadAll(plain)
	if string(plainBody) != "Posts checked: 3" {
		t.Errorf("plain body = %q", plainBody)
	}
	htmlPart, _ := ar.NextPart()
	htmlBody, _ := io.ReadAll(htmlPart)
	if !strings.Contains(string(htmlBody), "<h2>Top Opportunities</h2>") {
		t.Errorf("html body = %q", htmlBody)
	}

	att, err := mr.NextPart()
	if err != nil {
		t.Fatalf("attachment part: %v", err)
	}
	if att.FileName() != "report_daily.md" {
		t.Errorf("filename = %q", att.FileName())
	}
}
