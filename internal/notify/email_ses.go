package notify

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

// SESAPI is the slice of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender mails notices through SES v2.
type SESSender struct {
	client    SESAPI
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type SESConfig struct {
	FromEmail string
	FromName  string
}

// NewSESSender returns nil without a client so callers can skip the leg.
func NewSESSender(client SESAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SESSender{client: client, fromEmail: cfg.FromEmail, fromName: cfg.FromName, logger: logger}
}

func (s *SESSender) SendNotice(ctx context.Context, to Recipient, n Notice) error {
	output, err := s.client.SendEmail(ctx, s.buildInput(to, n))
	if err != nil {
		return fmt.Errorf("notify: ses send to %s: %w", to.Email, err)
	}
	s.logger.Debug("notice mailed via ses",
		"session_id", n.SessionID,
		"kind", string(n.Kind),
		"message_id", aws.ToString(output.MessageId),
	)
	return nil
}

func (s *SESSender) buildInput(to Recipient, n Notice) *sesv2.SendEmailInput {
	utf8 := func(v string) *types.Content {
		return &types.Content{Data: aws.String(v), Charset: aws.String("UTF-8")}
	}
	dest := to.Email
	if to.Name != "" {
		dest = fmt.Sprintf("%s <%s>", to.Name, to.Email)
	}

	tags := n.tags()
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	messageTags := make([]types.MessageTag, 0, len(keys))
	for _, k := range keys {
		messageTags = append(messageTags, types.MessageTag{Name: aws.String(k), Value: aws.String(tags[k])})
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{dest}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8(n.Subject),
				Body:    &types.Body{Text: utf8(n.Text), Html: utf8(n.HTML)},
			},
		},
		EmailTags: messageTags,
	}
}

var (
	_ EmailSender = (*SESSender)(nil)
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
