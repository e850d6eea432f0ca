package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"graphwise-relay/internal/common/logger"
)

type MockEmailSender struct {
	SendEmailFunc func(ctx context.Context, to, subject, textBody, htmlBody string) (string, error)
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to, subject, textBody, htmlBody string) (string, error) {
	return m.SendEmailFunc(ctx, to, subject, textBody, htmlBody)
}

type MockTopicPublisher struct {
	PublishJSONFunc func(ctx context.Context, subject string, payload interface{}, attributes map[string]string) (string, error)
}

func (m *MockTopicPublisher) PublishJSON(ctx context.Context, subject string, payload interface{}, attributes map[string]string) (string, error) {
	return m.PublishJSONFunc(ctx, subject, payload, attributes)
}

type MockMessageWriter struct {
	Messages []kafka.Message
	Err      error
	Closed   bool
}

func (m *MockMessageWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockMessageWriter) Close() error {
	m.Closed = true
	return nil
}

func testEvent() CompletionEvent {
	return CompletionEvent{
		Email:          "Ada@Example.com",
		CourseName:     "Intro to GraphDB",
		ContactID:      "101",
		ContactAction:  "updated",
		CertificateURL: "https://certs.example.com/ada.pdf",
	}
}

func TestDispatcher_CourseCompleted(t *testing.T) {
	var emailed, published bool
	var htmlBody string
	email := &MockEmailSender{SendEmailFunc: func(ctx context.Context, to, subject, textBody, html string) (string, error) {
		emailed = true
		htmlBody = html
		assert.Equal(t, "Ada@Example.com", to)
		assert.Contains(t, textBody, "https://certs.example.com/ada.pdf")
		return "ses-1", nil
	}}
	topic := &MockTopicPublisher{PublishJSONFunc: func(ctx context.Context, subject string, payload interface{}, attrs map[string]string) (string, error) {
		published = true
		ev := payload.(CompletionEvent)
		assert.Equal(t, EventCourseCompleted, ev.Event)
		assert.False(t, ev.OccurredAt.IsZero())
		assert.Equal(t, EventCourseCompleted, attrs["event"])
		return "sns-1", nil
	}}
	writer := &MockMessageWriter{}

	d := New(Options{
		Email:  email,
		Topic:  topic,
		Events: NewKafkaPublisherWithWriter(writer),
		Logger: logger.NewTestLogger(t),
	})
	require.True(t, d.Enabled())

	d.CourseCompleted(context.Background(), testEvent())

	assert.True(t, emailed)
	assert.True(t, published)
	assert.Contains(t, htmlBody, `href="https://certs.example.com/ada.pdf"`)

	require.Len(t, writer.Messages, 1)
	assert.Equal(t, "ada@example.com", string(writer.Messages[0].Key))
	var ev CompletionEvent
	require.NoError(t, json.Unmarshal(writer.Messages[0].Value, &ev))
	assert.Equal(t, "101", ev.ContactID)

	require.NoError(t, d.Close())
	assert.True(t, writer.Closed)
}

func TestDispatcher_NoCertificateSkipsEmail(t *testing.T) {
	email := &MockEmailSender{SendEmailFunc: func(ctx context.Context, to, subject, textBody, htmlBody string) (string, error) {
		t.Fatal("email must not be sent without a certificate")
		return "", nil
	}}
	d := New(Options{Email: email})

	ev := testEvent()
	ev.CertificateURL = ""
	d.CourseCompleted(context.Background(), ev)
}

func TestDispatcher_FailuresAreLoggedOnly(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := logger.NewZapAdapter(zap.New(core))

	failing := errors.New("sink unavailable")
	d := New(Options{
		Email: &MockEmailSender{SendEmailFunc: func(context.Context, string, string, string, string) (string, error) {
			return "", failing
		}},
		Topic: &MockTopicPublisher{PublishJSONFunc: func(context.Context, string, interface{}, map[string]string) (string, error) {
			return "", failing
		}},
		Events: NewKafkaPublisherWithWriter(&MockMessageWriter{Err: failing}),
		Logger: log,
	})

	assert.NotPanics(t, func() { d.CourseCompleted(context.Background(), testEvent()) })

	warnings := logs.FilterMessage("Completion notification failed").All()
	require.Len(t, warnings, 3)
	sinks := []string{}
	for _, entry := range warnings {
		sinks = append(sinks, entry.ContextMap()["sink"].(string))
	}
	assert.ElementsMatch(t, []string{"sns", "kafka", "ses"}, sinks)
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	n.CourseCompleted(context.Background(), testEvent())
	assert.NoError(t, n.Close())

	assert.False(t, New(Options{}).Enabled())
}
