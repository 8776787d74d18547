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

	"github.com/oksasatya/go-ddd-user-accounts/config"
	userapp "github.com/oksasatya/go-ddd-user-accounts/internal/application"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/helpers"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/mailer"
	mailtpl "github.com/oksasatya/go-ddd-user-accounts/pkg/mailer/templates"
)

const prefetch = 16

type deliverer interface {
	Deliver(ctx context.Context, job mailer.EmailJob) (userapp.DeliveryResult, error)
}

type outcome string

const (
	acked    outcome = "ack"
	requeued outcome = "requeue"
	dropped  outcome = "drop"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)

	if !cfg.EmailsEnabled() {
		logger.Info("emails disabled; email worker not started")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQEmailQueue == "" {
		logger.Fatal("RabbitMQ not configured")
	}

	sender, err := mailer.NewSender(cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to init email sender")
	}
	notifier := userapp.NewNotificationService(cfg, sender, mailtpl.Dir(cfg.EmailTemplatesDir), nil, logger)

	consumer, err := helpers.NewRabbitConsumer(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue, prefetch)
	if err != nil {
		logger.WithError(err).Fatal("amqp connect")
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	msgs, err := consumer.Deliveries(ctx, "")
	if err != nil {
		logger.WithError(err).Fatal("consume")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgs {
			handle(ctx, notifier, msg, logger)
		}
	}()

	logger.WithFields(logrus.Fields{"queue": cfg.RabbitMQEmailQueue, "transport": sender.Transport()}).Info("email worker listening")
	<-ctx.Done()
	logger.Info("shutting down...")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

// handle delivers one job. Malformed jobs are dropped; a failed send is
// requeued once and dropped when it fails again on redelivery.
func handle(ctx context.Context, d deliverer, msg amqp.Delivery, logger *logrus.Logger) outcome {
	var job mailer.EmailJob
	if err := json.Unmarshal(msg.Body, &job); err != nil || job.To == "" {
		helpers.LogError(logger, "bad email job", err, logrus.Fields{"delivery_tag": msg.DeliveryTag})
		_ = msg.Nack(false, false)
		return dropped
	}

	if _, err := d.Deliver(ctx, job); err != nil {
		if msg.Redelivered {
			_ = msg.Nack(false, false)
			return dropped
		}
		_ = msg.Nack(false, true)
		return requeued
	}
	_ = msg.Ack(false)
	return acked
}
