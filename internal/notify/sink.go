// Package notify delivers account emails (activation and password reset
// links) through a pluggable Sink.
package notify

import (
	"context"
	"errors"
)

// Message is a single outbound email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sink delivers messages. Callers treat delivery as fire-and-forget: an
// error is logged by the caller and never changes the outcome of the
// operation that produced the message.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

var ErrInvalidMessage = errors.New("message requires a recipient and a subject")

func (m Message) validate() error {
	if m.To == "" || m.Subject == "" {
		return ErrInvalidMessage
	}
	return nil
}
