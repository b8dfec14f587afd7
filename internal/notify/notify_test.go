package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	sent []Message
	err  error
}

func (r *recordingSink) Send(ctx context.Context, msg Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestMessages(t *testing.T) {
	link := "https://accounts.example.com/accounts/activate/abc/tok"

	act := ActivationMessage("a@example.com", link)
	assert.Equal(t, SubjectActivation, act.Subject)
	assert.Contains(t, act.Body, link)

	resend := ResendActivationMessage("a@example.com", link)
	assert.Equal(t, "Resend of activation link", resend.Subject)
	assert.Contains(t, resend.Body, link)

	reset := PasswordResetMessage("a@example.com", "https://x/accounts/reset/t", time.Hour)
	assert.Equal(t, SubjectPasswordReset, reset.Subject)
	assert.Contains(t, reset.Body, "https://x/accounts/reset/t")
	assert.Contains(t, reset.Body, "1 hour")
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "3 hours", humanDuration(3*time.Hour))
	assert.Equal(t, "30 minutes", humanDuration(30*time.Minute))
	assert.Equal(t, "90 minutes", humanDuration(90*time.Minute))
	assert.Equal(t, "1m30s", humanDuration(90*time.Second))
}

func TestSESSink_Send(t *testing.T) {
	client := &fakeSES{}
	sink := NewSESSinkWithClient(client, "no-reply@example.com", discardLogger())

	err := sink.Send(context.Background(), ActivationMessage("bob@example.com", "https://x/link"))
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, "no-reply@example.com", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"bob@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, SubjectActivation, aws.ToString(client.input.Message.Subject.Data))
	assert.Contains(t, aws.ToString(client.input.Message.Body.Text.Data), "https://x/link")
}

func TestSESSink_SendError(t *testing.T) {
	client := &fakeSES{err: errors.New("throttled")}
	sink := NewSESSinkWithClient(client, "no-reply@example.com", discardLogger())

	err := sink.Send(context.Background(), ActivationMessage("bob@example.com", "https://x/link"))
	assert.Error(t, err)
}

func TestSESSink_RejectsIncompleteMessage(t *testing.T) {
	client := &fakeSES{}
	sink := NewSESSinkWithClient(client, "no-reply@example.com", discardLogger())

	err := sink.Send(context.Background(), Message{Subject: "x"})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Nil(t, client.input)
}

func TestLogSink_Send(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := sink.Send(context.Background(), PasswordResetMessage("carol@example.com", "https://x/accounts/reset/abc", time.Hour))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, SubjectPasswordReset)
	assert.Contains(t, out, "https://x/accounts/reset/abc")
	assert.NotContains(t, out, "carol@example.com")
}

func TestQueueSink_EnqueuesMailTask(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}

	sink := NewQueueSink(opts, 3, discardLogger())
	defer sink.Close()

	msg := ActivationMessage("dave@example.com", "https://x/link")
	require.NoError(t, sink.Send(context.Background(), msg))

	inspector := asynq.NewInspector(opts)
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks(QueueMail)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskTypeSendMail, tasks[0].Type)
	assert.Equal(t, 3, tasks[0].MaxRetry)

	var got Message
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &got))
	assert.Equal(t, msg, got)
}

func TestMailHandler_ProcessTask(t *testing.T) {
	delivery := &recordingSink{}
	handler := NewMailHandler(delivery, discardLogger())

	msg := ResendActivationMessage("erin@example.com", "https://x/link")
	task, err := NewSendMailTask(msg)
	require.NoError(t, err)

	require.NoError(t, handler.ProcessTask(context.Background(), task))
	assert.Equal(t, []Message{msg}, delivery.sent)
}

func TestMailHandler_MalformedPayloadSkipsRetry(t *testing.T) {
	handler := NewMailHandler(&recordingSink{}, discardLogger())

	err := handler.ProcessTask(context.Background(), asynq.NewTask(TaskTypeSendMail, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = handler.ProcessTask(context.Background(), asynq.NewTask(TaskTypeSendMail, []byte(`{"to":""}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestMailHandler_DeliveryErrorIsRetried(t *testing.T) {
	handler := NewMailHandler(&recordingSink{err: errors.New("ses down")}, discardLogger())

	task, err := NewSendMailTask(ActivationMessage("f@example.com", "https://x/link"))
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestNewWorker_RequiresDelivery(t *testing.T) {
	_, err := NewWorker(WorkerConfig{Logger: discardLogger()})
	assert.Error(t, err)
}

func TestAsynqLogger_FatalExits(t *testing.T) {
	var buf bytes.Buffer
	l := newAsynqLogger(slog.New(slog.NewJSONHandler(&buf, nil))).(*asynqLogger)

	code := -1
	l.exit = func(c int) { code = c }

	l.Error("redis unavailable")
	assert.Equal(t, -1, code)

	l.Fatal("cannot start ", "scheduler")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), `"msg":"cannot start scheduler"`)
	assert.Contains(t, buf.String(), `"fatal":true`)
}
