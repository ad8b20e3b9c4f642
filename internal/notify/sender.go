package notify

import (
	"context"
	"log/slog"
)

// Sender delivers notifications through one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// LogSender logs notifications instead of delivering them. It stands in for
// a channel whose provider is not configured. The message body is not logged
// since it carries codes.
type LogSender struct {
	channel string
	logger  *slog.Logger
}

// NewLogSender creates a log-only sender for channel.
func NewLogSender(channel string, logger *slog.Logger) *LogSender {
	return &LogSender{channel: channel, logger: logger}
}

// Name returns the name of this sender.
func (s *LogSender) Name() string {
	return "log-" + s.channel
}

// Send logs the notification metadata.
func (s *LogSender) Send(ctx context.Context, n *Notification) error {
	s.logger.InfoContext(ctx, "notification not delivered, no provider configured",
		slog.String("notification_id", n.ID),
		slog.String("user_id", n.UserID),
		slog.String("channel", n.Channel),
		slog.String("kind", n.Kind),
	)
	return nil
}
