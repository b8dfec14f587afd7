package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/accounts/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of the SES client used by SESSink.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSink sends plain-text email through AWS SES.
type SESSink struct {
	client      SESAPI
	fromAddress string
	logger      *slog.Logger
}

// NewSESSink loads the default AWS credential chain for region.
func NewSESSink(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESSink, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESSinkWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func NewSESSinkWithClient(client SESAPI, fromAddress string, logger *slog.Logger) *SESSink {
	return &SESSink{
		client:      client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

func (s *SESSink) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Charset: aws.String("UTF-8"),
				Data:    aws.String(msg.Subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(msg.Body),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("email", logger.SanitizedEmail(msg.To)),
			slog.String("subject", msg.Subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("email", logger.SanitizedEmail(msg.To)),
		slog.String("subject", msg.Subject),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
