package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

// DelivererConfig bounds delivery retries.
type DelivererConfig struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Deliverer hands committed effects to the transport. A message that still
// fails after the retries is logged and dropped; state is never rolled back.
type Deliverer struct {
	transport Transport
	logger    *slog.Logger
	cfg       DelivererConfig
}

func NewDeliverer(transport Transport, logger *slog.Logger, cfg DelivererConfig) *Deliverer {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	return &Deliverer{
		transport: transport,
		logger:    logger.With("component", "deliverer"),
		cfg:       cfg,
	}
}

// Deliver acknowledges callbackID (when set) with the effects' toast, then
// sends the messages in order.
func (d *Deliverer) Deliver(ctx context.Context, callbackID string, fx domain.Effects) {
	if callbackID != "" {
		err := d.retry(ctx, func() error {
			return d.transport.AnswerCallback(ctx, callbackID, fx.Toast)
		})
		d.record(ctx, "answer_callback", err, "callback_id", callbackID)
	}

	for _, msg := range fx.Messages {
		err := d.retry(ctx, func() error {
			return d.transport.SendMessage(ctx, msg)
		})
		d.record(ctx, "send_message", err, "chat_id", msg.ChatID)
	}
}

func (d *Deliverer) retry(ctx context.Context, call func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialInterval
	b.MaxInterval = d.cfg.MaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := call()
		if errors.Is(err, domain.ErrDeliveryRejected) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(d.cfg.MaxAttempts))
	return err
}

func (d *Deliverer) record(ctx context.Context, method string, err error, attrs ...any) {
	if err == nil {
		deliveriesCounter.WithLabelValues(method, "success").Inc()
		return
	}
	deliveriesCounter.WithLabelValues(method, "error").Inc()
	d.logger.ErrorContext(ctx, "Delivery failed", append([]any{"method", method, "error", err}, attrs...)...)
}
