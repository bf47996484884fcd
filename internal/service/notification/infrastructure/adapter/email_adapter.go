package adapter

import (
	"context"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/logger"
)

var emailTracer = otel.Tracer("orderflow/email")

// SimulatedEmailSender 不真正发邮件，只模拟耗时并记录日志
type SimulatedEmailSender struct {
	latency time.Duration
}

func NewSimulatedEmailSender(latency time.Duration) *SimulatedEmailSender {
	return &SimulatedEmailSender{latency: latency}
}

func (s *SimulatedEmailSender) Send(ctx context.Context, to, subject, body string) error {
	ctx, span := emailTracer.Start(ctx, "email.Send")
	defer span.End()
	span.SetAttributes(attribute.String("email.to", to))

	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	logger.Ctx(ctx).Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_length", len(body)).
		Msg("📧 Email sent (simulated)")
	return nil
}

// WebhookEmailSender 把邮件以表单形式投递给外部邮件网关
type WebhookEmailSender struct {
	client   *httpclient.Client
	endpoint string
}

func NewWebhookEmailSender(client *httpclient.Client, endpoint string) *WebhookEmailSender {
	return &WebhookEmailSender{client: client, endpoint: endpoint}
}

func (s *WebhookEmailSender) Send(ctx context.Context, to, subject, body string) error {
	err := s.client.PostForm(ctx, s.endpoint, url.Values{
		"to":      {to},
		"subject": {subject},
		"body":    {body},
	})
	if err != nil {
		return err
	}
	logger.Ctx(ctx).Info().Str("to", to).Str("subject", subject).Msg("📧 Email handed to gateway")
	return nil
}
