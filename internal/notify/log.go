package notify

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/accounts/pkg/logger"
)

// LogSink writes messages to the logger instead of sending them. It is
// meant for local development, where the link in the body is the only
// way to reach it.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "email (log sink)",
		slog.String("email", logger.SanitizedEmail(msg.To)),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body))
	return nil
}
