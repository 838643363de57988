package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-session-sync/internal/sessions"
)

func cancelledNotice() Notice {
	return Notice{
		Kind:      sessions.StatusKindCancelled,
		SessionID: 42,
		Subject:   "Your session was cancelled",
		Text:      "Hello Ann, your session has been cancelled.",
		HTML:      "<p>Hello Ann,</p>",
	}
}

func TestNewSendGridSender(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "desk@clinic.test"}, nil), "no api key means no sender")

	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "desk@clinic.test"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "Clinic", sender.fromName)

	sender = NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "desk@clinic.test", FromName: "North Clinic"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "North Clinic", sender.fromName)
}

func TestSendGridMailCarriesBothBodiesAndTags(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "desk@clinic.test"}, nil)
	require.NotNil(t, sender)

	m := sender.buildMail(Recipient{Email: "ann@clinic.test", Name: "Ann Lee"}, cancelledNotice())
	assert.Equal(t, "Your session was cancelled", m.Subject)
	assert.Equal(t, "desk@clinic.test", m.From.Address)
	require.Len(t, m.Personalizations, 1)
	require.Len(t, m.Personalizations[0].To, 1)
	assert.Equal(t, "ann@clinic.test", m.Personalizations[0].To[0].Address)

	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "Hello Ann, your session has been cancelled.", m.Content[0].Value)
	assert.Equal(t, "text/html", m.Content[1].Type)
	assert.Equal(t, "<p>Hello Ann,</p>", m.Content[1].Value)

	assert.Equal(t, []string{"session_status", "cancelled"}, m.Categories)
	assert.Equal(t, map[string]string{"session_id": "42", "notice_kind": "cancelled"}, m.CustomArgs)
}

func TestSendGridSenderWithoutClient(t *testing.T) {
	err := (&SendGridSender{}).SendNotice(context.Background(), Recipient{Email: "ann@clinic.test"}, cancelledNotice())
	assert.Error(t, err)
}

func TestStubEmailSender(t *testing.T) {
	assert.NoError(t, NewStubEmailSender(nil).SendNotice(context.Background(), Recipient{Email: "ann@clinic.test"}, cancelledNotice()))
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSenderSendsNotice(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))

	api := &fakeSES{}
	sender := NewSESSender(api, SESConfig{FromEmail: "desk@clinic.test"}, nil)
	require.NotNil(t, sender)

	err := sender.SendNotice(context.Background(), Recipient{Email: "ann@clinic.test", Name: "Ann Lee"}, cancelledNotice())
	require.NoError(t, err)
	require.NotNil(t, api.input)

	assert.Equal(t, "Clinic <desk@clinic.test>", aws.ToString(api.input.FromEmailAddress))
	assert.Equal(t, []string{"Ann Lee <ann@clinic.test>"}, api.input.Destination.ToAddresses)
	msg := api.input.Content.Simple
	assert.Equal(t, "Your session was cancelled", aws.ToString(msg.Subject.Data))
	assert.Equal(t, "Hello Ann, your session has been cancelled.", aws.ToString(msg.Body.Text.Data))
	assert.Equal(t, "<p>Hello Ann,</p>", aws.ToString(msg.Body.Html.Data))

	require.Len(t, api.input.EmailTags, 2)
	assert.Equal(t, "notice_kind", aws.ToString(api.input.EmailTags[0].Name))
	assert.Equal(t, "cancelled", aws.ToString(api.input.EmailTags[0].Value))
	assert.Equal(t, "session_id", aws.ToString(api.input.EmailTags[1].Name))
	assert.Equal(t, "42", aws.ToString(api.input.EmailTags[1].Value))

	api.err = errors.New("throttled")
	assert.Error(t, sender.SendNotice(context.Background(), Recipient{Email: "ann@clinic.test"}, cancelledNotice()))
}

func TestSESSenderBareAddressWithoutName(t *testing.T) {
	api := &fakeSES{}
	sender := NewSESSender(api, SESConfig{FromEmail: "desk@clinic.test", FromName: "North Clinic"}, nil)
	require.NoError(t, sender.SendNotice(context.Background(), Recipient{Email: "ann@clinic.test"}, cancelledNotice()))
	assert.Equal(t, []string{"ann@clinic.test"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "North Clinic <desk@clinic.test>", aws.ToString(api.input.FromEmailAddress))
}
