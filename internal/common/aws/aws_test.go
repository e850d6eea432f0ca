package aws

import (
	"context"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

func TestSESClient_SendEmail(t *testing.T) {
	var captured *ses.SendEmailInput
	mock := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{MessageId: awssdk.String("msg-1")}, nil
		},
	}
	client := NewSESClientWithAPI(mock, "academy@graphwise.ai")

	id, err := client.SendEmail(context.Background(), "ada@example.com", "Your certificate", "text", "<p>html</p>")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, []string{"ada@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, "academy@graphwise.ai", awssdk.ToString(captured.Source))
	assert.Equal(t, "Your certificate", awssdk.ToString(captured.Message.Subject.Data))
	assert.Equal(t, "<p>html</p>", awssdk.ToString(captured.Message.Body.Html.Data))

	_, err = client.SendEmail(context.Background(), "", "s", "t", "")
	assert.Error(t, err)

	mock.SendEmailFunc = func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		return nil, errors.New("throttled")
	}
	_, err = client.SendEmail(context.Background(), "ada@example.com", "s", "t", "")
	assert.ErrorContains(t, err, "throttled")
}

func TestSNSClient_PublishJSON(t *testing.T) {
	var captured *sns.PublishInput
	mock := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{MessageId: awssdk.String("sns-1")}, nil
		},
	}
	client := NewSNSClientWithAPI(mock, "arn:aws:sns:us-east-1:123:completions")

	id, err := client.PublishJSON(context.Background(), "course completed",
		map[string]string{"email": "ada@example.com"}, map[string]string{"event": "course_completed"})
	require.NoError(t, err)
	assert.Equal(t, "sns-1", id)
	assert.Equal(t, "arn:aws:sns:us-east-1:123:completions", awssdk.ToString(captured.TopicArn))
	assert.JSONEq(t, `{"email":"ada@example.com"}`, awssdk.ToString(captured.Message))
	assert.Equal(t, "course_completed", awssdk.ToString(captured.MessageAttributes["event"].StringValue))

	_, err = client.PublishJSON(context.Background(), "", make(chan int), nil)
	assert.Error(t, err)
}
