package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"html"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/user/ideascan/internal/config"
)

var reportMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Email sends the report over SMTP with STARTTLS.
type Email struct {
	cfg     config.SMTPConfig
	timeout time.Duration
	now     func() time.Time
}

func NewEmail(cfg config.SMTPConfig) *Email {
	return &Email{cfg: cfg, timeout: 30 * time.Second, now: time.Now}
}

func (e *Email) Name() string {
	return "email"
}

func (e *Email) Send(ctx context.Context, subject, body, reportPath string) error {
	var report []byte
	if reportPath != "" {
		data, err := os.ReadFile(reportPath)
		if err != nil {
			return fmt.Errorf("failed to read report: %w", err)
		}
		report = data
	}

	recipients := e.recipients()
	msg, err := buildMessage(e.cfg.From, recipients, subject, body, filepath.Base(reportPath), report, e.now())
	if err != nil {
		return err
	}
	return e.deliver(ctx, recipients, msg)
}

func (e *Email) recipients() []string {
	var out []string
	for _, r := range strings.Split(e.cfg.EmailTo, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func (e *Email) deliver(ctx context.Context, recipients []string, msg []byte) error {
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))

	dialer := &net.Dialer{Timeout: e.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	conn.SetDeadline(time.Now().Add(e.timeout))

	c, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); !ok {
		return fmt.Errorf("smtp server %s does not support STARTTLS", addr)
	}
	if err := c.StartTLS(&tls.Config{ServerName: e.cfg.Host}); err != nil {
		return fmt.Errorf("starttls failed: %w", err)
	}
	if err := c.Auth(smtp.PlainAuth("", e.cfg.User, e.cfg.Password, e.cfg.Host)); err != nil {
		return fmt.Errorf("smtp login failed: %w", err)
	}
	if err := c.Mail(e.cfg.From); err != nil {
		return err
	}
	for _, r := range recipients {
		if err := c.Rcpt(r); err != nil {
			return fmt.Errorf("recipient %s rejected: %w", r, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// buildMessage renders a multipart/mixed message: a text and HTML
// alternative body, plus the Markdown report as an attachment.
func buildMessage(from string, to []string, subject, body, reportName string, report []byte, date time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	header := func(k, v string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}
	header("From", from)
	header("To", strings.Join(to, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", mixed.Boundary()))
	buf.WriteString("\r\n")

	altHeader := textproto.MIMEHeader{}
	var altBuf bytes.Buffer
	alt := multipart.NewWriter(&altBuf)
	altHeader.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", alt.Boundary()))
	altPart, err := mixed.CreatePart(altHeader)
	if err != nil {
		return nil, err
	}

	if err := writeQuotedPart(alt, "text/plain; charset=utf-8", body); err != nil {
		return nil, err
	}
	htmlBody, err := renderHTML(subject, body, report)
	if err != nil {
		return nil, err
	}
	if err := writeQuotedPart(alt, "text/html; charset=utf-8", htmlBody); err != nil {
		return nil, err
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}
	if _, err := altPart.Write(altBuf.Bytes()); err != nil {
		return nil, err
	}

	if len(report) > 0 {
		attHeader := textproto.MIMEHeader{}
		attHeader.Set("Content-Type", fmt.Sprintf("text/markdown; charset=utf-8; name=%q", reportName))
		attHeader.Set("Content-Transfer-Encoding", "base64")
		attHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportName))
		att, err := mixed.CreatePart(attHeader)
		if err != nil {
			return nil, err
		}
		if _, err := att.Write([]byte(wrapBase64(report))); err != nil {
			return nil, err
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeQuotedPart(w *multipart.Writer, contentType, content string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(content)); err != nil {
		return err
	}
	return qp.Close()
}

// renderHTML renders the report, or the plain body when there is none.
func renderHTML(title, body string, report []byte) (string, error) {
	source := report
	if len(source) == 0 {
		source = []byte(body)
	}
	var out bytes.Buffer
	if err := reportMarkdown.Convert(source, &out); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return fmt.Sprintf("<!DOCTYPE html>\n<html>\n<head><meta charset=\"UTF-8\"><title>%s</title></head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(title), out.String()), nil
}

func wrapBase64(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var b strings.Builder
	for len(encoded) > 76 {
		b.WriteString(encoded[:76])
		b.WriteString("\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded)
	b.WriteString("\r\n")
	return b.String()
}
