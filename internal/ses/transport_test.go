package ses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, input *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-123")}, nil
}

func testMessage() *domain.EmailMessage {
	return &domain.EmailMessage{
		CampaignID:  "c1",
		RecipientID: "r1",
		Email:       "ana@example.com",
		FromEmail:   "news@sender.example",
		Subject:     "Hello",
		HTMLContent: "<p>Hi</p>",
		TextContent: "Hi",
		ConfigSet:   "tenant-cs",
		Tags:        map[string]string{"campaign_id": "c1", "recipient_id": "r1"},
	}
}

func TestSendBuildsInput(t *testing.T) {
	fake := &fakeSES{}
	tr := NewTransportWithClient(fake, time.Second)

	res, err := tr.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "msg-123", res.MessageID)

	in := fake.input
	require.NotNil(t, in)
	assert.Equal(t, "news@sender.example", *in.FromEmailAddress)
	assert.Equal(t, []string{"ana@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Hello", *in.Content.Simple.Subject.Data)
	assert.Equal(t, "<p>Hi</p>", *in.Content.Simple.Body.Html.Data)
	assert.Equal(t, "Hi", *in.Content.Simple.Body.Text.Data)
	assert.Equal(t, "tenant-cs", *in.ConfigurationSetName)

	require.Len(t, in.EmailTags, 2)
	assert.Equal(t, "campaign_id", *in.EmailTags[0].Name)
	assert.Equal(t, "recipient_id", *in.EmailTags[1].Name)
}

func TestSendOmitsOptionalFields(t *testing.T) {
	fake := &fakeSES{}
	tr := NewTransportWithClient(fake, time.Second)

	msg := testMessage()
	msg.TextContent = ""
	msg.ConfigSet = ""
	msg.Tags = nil

	_, err := tr.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.Nil(t, fake.input.Content.Simple.Body.Text)
	assert.Nil(t, fake.input.ConfigurationSetName)
	assert.Empty(t, fake.input.EmailTags)
}

func TestSendProviderError(t *testing.T) {
	fake := &fakeSES{err: errors.New("throttled")}
	tr := NewTransportWithClient(fake, time.Second)

	res, err := tr.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Nil(t, res)
}
