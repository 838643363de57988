package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

// EmailSender is the email leg of a session status notification.
type EmailSender interface {
	SendNotice(ctx context.Context, to Recipient, n Notice) error
}

const (
	defaultFromName = "Clinic"
	// sendGridCategory groups every status notice in the SendGrid dashboard.
	sendGridCategory = "session_status"
)

// SendGridSender mails notices through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil without an API key.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SendGridSender) SendNotice(ctx context.Context, to Recipient, n Notice) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	response, err := s.client.SendWithContext(ctx, s.buildMail(to, n))
	if err != nil {
		return fmt.Errorf("notify: sendgrid send to %s: %w", to.Email, err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected notice", "status", response.StatusCode, "body", response.Body, "session_id", n.SessionID)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Debug("notice mailed via sendgrid", "session_id", n.SessionID, "kind", string(n.Kind), "status", response.StatusCode)
	return nil
}

func (s *SendGridSender) buildMail(to Recipient, n Notice) *mail.SGMailV3 {
	m := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.fromEmail),
		n.Subject,
		mail.NewEmail(to.Name, to.Email),
		n.Text,
		n.HTML,
	)
	m.AddCategories(sendGridCategory, string(n.Kind))
	for k, v := range n.tags() {
		m.SetCustomArg(k, v)
	}
	return m
}

// StubEmailSender logs notices instead of mailing them
// (NOTIFY_EMAIL_PROVIDER=stub).
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) SendNotice(_ context.Context, to Recipient, n Notice) error {
	s.logger.Info("stub notice email",
		"to", to.Email,
		"session_id", n.SessionID,
		"kind", string(n.Kind),
		"subject", n.Subject,
	)
	return nil
}
