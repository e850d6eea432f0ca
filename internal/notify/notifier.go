// Package notify fans a completed course out to the optional notification
// sinks. Every sink is best effort: failures are logged and never change the
// webhook response.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"graphwise-relay/internal/common/logger"
)

const EventCourseCompleted = "course_completed"

// CompletionEvent is published once the CRM write for a completion succeeded.
type CompletionEvent struct {
	Event          string    `json:"event"`
	Email          string    `json:"email"`
	CourseName     string    `json:"course_name"`
	CompletedAt    string    `json:"completed_at,omitempty"`
	ContactID      string    `json:"contact_id"`
	ContactAction  string    `json:"contact_action"`
	CertificateURL string    `json:"certificate_url,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, textBody, htmlBody string) (string, error)
}

type TopicPublisher interface {
	PublishJSON(ctx context.Context, subject string, payload interface{}, attributes map[string]string) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event CompletionEvent) error
	Close() error
}

// Notifier is what the course-complete endpoint calls.
type Notifier interface {
	CourseCompleted(ctx context.Context, event CompletionEvent)
	Close() error
}

type Options struct {
	Email  EmailSender
	Topic  TopicPublisher
	Events EventPublisher
	Logger logger.Logger
}

// Dispatcher calls each configured sink in turn.
type Dispatcher struct {
	email  EmailSender
	topic  TopicPublisher
	events EventPublisher
	logger logger.Logger
}

func New(opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Dispatcher{
		email:  opts.Email,
		topic:  opts.Topic,
		events: opts.Events,
		logger: log,
	}
}

// Enabled reports whether any sink is configured.
func (d *Dispatcher) Enabled() bool {
	return d.email != nil || d.topic != nil || d.events != nil
}

func (d *Dispatcher) CourseCompleted(ctx context.Context, event CompletionEvent) {
	if event.Event == "" {
		event.Event = EventCourseCompleted
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	fields := map[string]interface{}{
		"email":  event.Email,
		"course": event.CourseName,
	}

	if d.topic != nil {
		id, err := d.topic.PublishJSON(ctx, "Course completed", event, map[string]string{"event": event.Event})
		d.report("sns", id, err, fields)
	}

	if d.events != nil {
		err := d.events.Publish(ctx, event)
		d.report("kafka", "", err, fields)
	}

	if d.email != nil && event.CertificateURL != "" {
		text, html, err := renderCertificateEmail(event)
		if err != nil {
			d.report("ses", "", err, fields)
			return
		}
		id, err := d.email.SendEmail(ctx, event.Email, "Your Graphwise Academy certificate", text, html)
		d.report("ses", id, err, fields)
	}
}

func (d *Dispatcher) report(sink, id string, err error, fields map[string]interface{}) {
	logFields := map[string]interface{}{"sink": sink}
	for k, v := range fields {
		logFields[k] = v
	}
	if err != nil {
		logFields["error"] = err.Error()
		d.logger.Warn("Completion notification failed", logFields)
		return
	}
	if id != "" {
		logFields["messageId"] = id
	}
	d.logger.Debug("Completion notification sent", logFields)
}

func (d *Dispatcher) Close() error {
	if d.events != nil {
		return d.events.Close()
	}
	return nil
}

var certificateEmail = template.Must(template.New("certificate").Parse(
	`<p>Congratulations on completing <strong>{{.CourseName}}</strong>!</p>
<p><a href="{{.CertificateURL}}">Download your certificate</a></p>`))

func renderCertificateEmail(event CompletionEvent) (string, string, error) {
	var buf bytes.Buffer
	if err := certificateEmail.Execute(&buf, event); err != nil {
		return "", "", fmt.Errorf("render certificate email: %w", err)
	}
	text := fmt.Sprintf("Congratulations on completing %s!\n\nDownload your certificate: %s\n", event.CourseName, event.CertificateURL)
	return text, buf.String(), nil
}

// Nop is used when no sink is configured.
type Nop struct{}

func (Nop) CourseCompleted(context.Context, CompletionEvent) {}

func (Nop) Close() error { return nil }
