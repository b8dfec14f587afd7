package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/accounts/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	QueueMail        = "mail"
	TaskTypeSendMail = "mail:send"
)

// NewSendMailTask wraps msg in an asynq task.
func NewSendMailTask(msg Message, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal mail payload: %w", err)
	}
	return asynq.NewTask(TaskTypeSendMail, data, opts...), nil
}

// QueueSink hands messages to cmd/worker through asynq.
type QueueSink struct {
	client   *asynq.Client
	maxRetry int
	logger   *slog.Logger
}

func NewQueueSink(redisOpts asynq.RedisClientOpt, maxRetry int, logger *slog.Logger) *QueueSink {
	return &QueueSink{
		client:   asynq.NewClient(redisOpts),
		maxRetry: maxRetry,
		logger:   logger,
	}
}

func (s *QueueSink) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	task, err := NewSendMailTask(msg, asynq.Queue(QueueMail), asynq.MaxRetry(s.maxRetry))
	if err != nil {
		return err
	}

	info, err := s.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}

	s.logger.Debug("email queued",
		slog.String("email", logger.SanitizedEmail(msg.To)),
		slog.String("task_id", info.ID))
	return nil
}

func (s *QueueSink) Close() error {
	return s.client.Close()
}

// MailHandler is the worker side of QueueSink: it delivers queued
// messages through another Sink.
type MailHandler struct {
	sink   Sink
	logger *slog.Logger
}

func NewMailHandler(sink Sink, logger *slog.Logger) *MailHandler {
	return &MailHandler{sink: sink, logger: logger}
}

// ProcessTask implements asynq.Handler. Malformed payloads are not retried.
func (h *MailHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var msg Message
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		h.logger.Error("discarding malformed mail task", slog.Any("error", err))
		return fmt.Errorf("decode mail payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := msg.validate(); err != nil {
		h.logger.Error("discarding incomplete mail task", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	return h.sink.Send(ctx, msg)
}
