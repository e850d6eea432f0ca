// internal/common/aws/ses.go
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the part of *ses.Client the relay uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESClient struct {
	client    SESAPI
	fromEmail string
}

func NewSESClient(cfg awssdk.Config, fromEmail string) *SESClient {
	return NewSESClientWithAPI(ses.NewFromConfig(cfg), fromEmail)
}

func NewSESClientWithAPI(api SESAPI, fromEmail string) *SESClient {
	return &SESClient{client: api, fromEmail: fromEmail}
}

// SendEmail sends one message with a text and an HTML part and returns the
// SES message id.
func (s *SESClient) SendEmail(ctx context.Context, to, subject, textBody, htmlBody string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("recipient is required")
	}
	body := &types.Body{Text: &types.Content{Data: awssdk.String(textBody)}}
	if htmlBody != "" {
		body.Html = &types.Content{Data: awssdk.String(htmlBody)}
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: awssdk.String(subject)},
			Body:    body,
		},
		Source: awssdk.String(s.fromEmail),
	})
	if err != nil {
		return "", fmt.Errorf("ses send email: %w", err)
	}
	return awssdk.ToString(out.MessageId), nil
}
