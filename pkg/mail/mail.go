// Package mail sends plain-text notification email.
package mail

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Message is one outbound email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
	defaultTimeout   = 10 * time.Second
)

// SendGridMailer delivers through the SendGrid v3 API. It is safe for concurrent use:
// every Send builds its own request.
type SendGridMailer struct {
	apiKey string
	host   string
	client *rest.Client
	from   *sgmail.Email
}

// Option customises a SendGridMailer.
type Option func(*SendGridMailer)

// WithHost points the mailer at another API host.
func WithHost(host string) Option {
	return func(m *SendGridMailer) { m.host = host }
}

// WithTimeout bounds each HTTP call to SendGrid.
func WithTimeout(timeout time.Duration) Option {
	return func(m *SendGridMailer) {
		if timeout > 0 {
			m.client = &rest.Client{HTTPClient: &http.Client{Timeout: timeout}}
		}
	}
}

// NewSendGridMailer builds a SendGrid mailer.
func NewSendGridMailer(apiKey, fromName, fromAddress string, opts ...Option) *SendGridMailer {
	m := &SendGridMailer{
		apiKey: apiKey,
		host:   sendGridHost,
		client: &rest.Client{HTTPClient: &http.Client{Timeout: defaultTimeout}},
		from:   sgmail.NewEmail(fromName, fromAddress),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send posts msg to SendGrid. Each recipient gets a separate personalization.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	v3, err := build(m.from, msg)
	if err != nil {
		return err
	}
	req := sendgrid.GetRequest(m.apiKey, sendGridEndpoint, m.host)
	req.Method = rest.Post
	req.Body = sgmail.GetRequestBody(v3)
	res, err := m.client.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func build(from *sgmail.Email, msg Message) (*sgmail.SGMailV3, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("mail %q has no recipients", msg.Subject)
	}
	m := sgmail.NewV3Mail()
	m.SetFrom(from)
	m.Subject = msg.Subject
	for _, to := range msg.To {
		p := sgmail.NewPersonalization()
		p.AddTos(sgmail.NewEmail("", to))
		m.AddPersonalizations(p)
	}
	m.AddContent(sgmail.NewContent("text/plain", msg.Body))
	return m, nil
}

// LogMailer writes messages to the logger. Used when no SendGrid key is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs the recipients and subject of msg.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mail %q has no recipients", msg.Subject)
	}
	m.logger.Info("mail", zap.Strings("to", msg.To), zap.String("subject", msg.Subject), zap.Int("body_bytes", len(msg.Body)))
	return nil
}

// New picks SendGrid when apiKey is set and falls back to the log mailer.
func New(apiKey, fromName, fromAddress string, logger *zap.Logger, opts ...Option) Mailer {
	if apiKey == "" {
		return NewLogMailer(logger)
	}
	return NewSendGridMailer(apiKey, fromName, fromAddress, opts...)
}
