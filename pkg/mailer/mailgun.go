package mailer

import (
	"context"
	"fmt"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"

	"github.com/oksasatya/go-account-service/pkg/mailer/templates"
)

const sendTimeout = 10 * time.Second

// Sender delivers a fully rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Mailgun sends through the Mailgun HTTP API as From.
type Mailgun struct {
	From   string
	client mg.Mailgun
}

func NewMailgun(domain, apiKey, from string) *Mailgun {
	return &Mailgun{From: from, client: mg.NewMailgun(domain, apiKey)}
}

func (m *Mailgun) Send(ctx context.Context, to, subject, text, html string) error {
	msg := m.client.NewMessage(m.From, subject, text, to)
	if html != "" {
		msg.SetHtml(html)
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if _, _, err := m.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("mailgun send to %s: %w", to, err)
	}
	return nil
}

// Deliver renders job's template, if any, and hands the result to s.
func Deliver(ctx context.Context, s Sender, job EmailJob) error {
	if job.To == "" {
		return ErrNoRecipient
	}
	subject, text, html := job.Subject, job.Text, job.HTML
	if job.Template != "" {
		var err error
		if subject, text, html, err = templates.Render(job.Template, job.Data); err != nil {
			return fmt.Errorf("render %s: %w", job.Template, err)
		}
	}
	if subject == "" || (text == "" && html == "") {
		return fmt.Errorf("%w: %s", ErrNoContent, job.To)
	}
	return s.Send(ctx, job.To, subject, text, html)
}
