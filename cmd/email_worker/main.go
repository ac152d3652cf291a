package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/config"
	"github.com/oksasatya/go-account-service/pkg/helpers"
	"github.com/oksasatya/go-account-service/pkg/mailer"
)

const (
	prefetch     = 16
	sendTimeout  = 15 * time.Second
	drainTimeout = 2 * time.Second
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env, cfg.LogFile)

	if !cfg.MailSendEnabled {
		logger.Info("MAIL_SEND_ENABLED=false; email worker disabled")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQEmailQueue == "" {
		logger.Fatal("rabbitmq not configured")
	}
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		logger.Fatal("mailgun not configured")
	}

	queue, err := helpers.OpenRabbitQueue(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
	if err != nil {
		logger.WithError(err).Fatal("open email queue")
	}
	defer queue.Close()

	deliveries, err := queue.Consume(prefetch)
	if err != nil {
		logger.WithError(err).Fatal("consume email queue")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := &emailWorker{
		logger:  logger,
		sender:  mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender),
		timeout: sendTimeout,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.run(ctx, deliveries)
	}()

	logger.WithField("queue", queue.Name).Info("email worker listening")
	<-ctx.Done()
	logger.Info("shutting down...")
	select {
	case <-done:
	case <-time.After(drainTimeout):
	}
}

type emailWorker struct {
	logger  *logrus.Logger
	sender  mailer.Sender
	timeout time.Duration
}

func (w *emailWorker) run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				return
			}
			w.handle(ctx, msg)
		}
	}
}

// handle acks delivered mail and drops malformed jobs. A failed send is
// requeued once, then dropped on its redelivery.
func (w *emailWorker) handle(ctx context.Context, msg amqp.Delivery) {
	var job mailer.EmailJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		w.logger.WithError(err).Warn("bad email message")
		_ = msg.Nack(false, false)
		return
	}
	entry := w.logger.WithFields(logrus.Fields{"to": job.To, "template": job.Template})

	c, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := mailer.Deliver(c, w.sender, job); err != nil {
		entry.WithError(err).Warn("email delivery failed")
		_ = msg.Nack(false, job.To != "" && !msg.Redelivered)
		return
	}
	entry.Info("email sent")
	_ = msg.Ack(false)
}
