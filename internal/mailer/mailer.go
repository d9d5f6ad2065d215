// Package mailer delivers the clinic's transactional e-mail. Transports are
// swappable behind Sender so callers never know which provider is live.
package mailer

import (
	"context"
	"fmt"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"go.uber.org/zap"

	"healthtracker-server/internal/config"
)

// Sender defines the interface for sending emails.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message represents an email to be sent.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// New picks the transport named in cfg.Transport.
func New(ctx context.Context, cfg config.MailerConfig, logger *zap.Logger) (Sender, error) {
	switch cfg.Transport {
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("mailer: SENDGRID_API_KEY is required for the sendgrid transport")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, cfg.FromEmail, cfg.FromName, logger), nil
	case "ses":
		awsConfig, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("mailer: load aws config: %w", err)
		}
		return NewSESSender(sesv2.NewFromConfig(awsConfig), cfg.FromEmail, cfg.FromName, logger), nil
	case "", "log":
		return NewLogSender(logger), nil
	}
	return nil, fmt.Errorf("mailer: unknown transport %q", cfg.Transport)
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("log mailer: would send email", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

var _ Sender = (*LogSender)(nil)
