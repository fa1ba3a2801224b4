// Package notify delivers run reports to external channels.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/ideascan/internal/config"
)

// Notifier sends a report summary. reportPath points at the rendered
// Markdown report and may be attached by channels that support files.
type Notifier interface {
	Name() string
	Send(ctx context.Context, subject, body, reportPath string) error
}

// Composite fans a message out to every channel in order and stops at the
// first failure.
type Composite struct {
	channels []Notifier
}

func NewComposite(channels ...Notifier) *Composite {
	return &Composite{channels: channels}
}

func (c *Composite) Name() string {
	return "composite"
}

func (c *Composite) Send(ctx context.Context, subject, body, reportPath string) error {
	for _, ch := range c.channels {
		if err := ch.Send(ctx, subject, body, reportPath); err != nil {
			return fmt.Errorf("%s notification failed: %w", ch.Name(), err)
		}
	}
	return nil
}

// Len returns the number of configured channels.
func (c *Composite) Len() int {
	return len(c.channels)
}

// FromConfig builds a notifier from every configured channel. It returns
// nil when none is configured.
func FromConfig(cfg *config.Config, logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}

	var channels []Notifier
	if cfg.SMTP.Configured() {
		channels = append(channels, NewEmail(cfg.SMTP))
	}
	if cfg.Telegram.Configured() {
		channels = append(channels, NewTelegram(cfg.Telegram))
	}
	if len(channels) == 0 {
		logger.Debug("no notification channel configured")
		return nil
	}
	return NewComposite(channels...)
}
