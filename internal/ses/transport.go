// Package ses delivers rendered emails through AWS SES using the SDK v2.
package ses

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/config"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/domain"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/logger"
)

// SendAPI is the slice of the SES v2 client the transport uses.
type SendAPI interface {
	SendEmail(ctx context.Context, input *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Transport sends single emails through SES. Provider errors are returned
// to the caller; the job queue decides whether to retry them.
type Transport struct {
	client  SendAPI
	timeout time.Duration
	log     *logger.Logger
}

// NewTransport builds a transport from static credentials.
func NewTransport(cfg config.SESConfig) (*Transport, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewTransportWithClient(sesv2.NewFromConfig(awsCfg), cfg.Timeout()), nil
}

// NewTransportWithClient wires an explicit client, mainly for tests.
func NewTransportWithClient(client SendAPI, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Transport{
		client:  client,
		timeout: timeout,
		log:     logger.With("ses.transport"),
	}
}

// Send delivers one email. The call is bounded by the transport timeout
// regardless of the caller's context.
func (t *Transport) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.FromEmail),
		Destination:      &types.Destination{ToAddresses: []string{msg.Email}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: messageTags(msg.Tags),
	}
	if msg.TextContent != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(msg.TextContent), Charset: aws.String("UTF-8")}
	}
	if msg.ConfigSet != "" {
		input.ConfigurationSetName = aws.String(msg.ConfigSet)
	}

	out, err := t.client.SendEmail(ctx, input)
	if err != nil {
		t.log.Warn("ses send failed", "recipient", logger.RedactEmail(msg.Email),
			"campaign_id", msg.CampaignID, "error", err)
		return nil, fmt.Errorf("ses send: %w", err)
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	t.log.Debug("ses send ok", "recipient", logger.RedactEmail(msg.Email), "message_id", messageID)

	return &domain.SendResult{
		Success:   true,
		MessageID: messageID,
		SentAt:    time.Now(),
	}, nil
}

// messageTags converts the tag map to SES message tags in stable order.
func messageTags(tags map[string]string) []types.MessageTag {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.MessageTag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.MessageTag{Name: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}
