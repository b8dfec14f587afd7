package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
)

// Worker wraps the asynq server that drains the mail queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Concurrency int
	Delivery    Sink
	Logger      *slog.Logger
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Delivery == nil {
		return nil, errors.New("worker: delivery sink is required")
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			QueueMail: 1,
		},
		Logger: newAsynqLogger(cfg.Logger),
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeSendMail, NewMailHandler(cfg.Delivery, cfg.Logger))

	return &Worker{server: srv, mux: mux, logger: cfg.Logger}, nil
}

// Run processes mail until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start mail worker: %w", err)
	}

	<-ctx.Done()
	w.logger.Info("stopping mail worker")
	w.server.Shutdown()
	return nil
}

// asynqLogger routes asynq's internal logging into slog.
type asynqLogger struct {
	logger *slog.Logger
	exit   func(code int)
}

func newAsynqLogger(logger *slog.Logger) asynq.Logger {
	return &asynqLogger{
		logger: logger.With(slog.String("component", "asynq")),
		exit:   os.Exit,
	}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(sprint(args)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(sprint(args)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(sprint(args)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(sprint(args)) }

// Fatal logs and terminates the process, as asynq expects.
func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(sprint(args), slog.Bool("fatal", true))
	l.exit(1)
}

func sprint(args []interface{}) string {
	return fmt.Sprint(args...)
}
