package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// PollerConfig holds the long-poll loop settings.
type PollerConfig struct {
	PollTimeout    time.Duration // server-side wait of one getUpdates call
	IdleDelay      time.Duration // pause between polls
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// HealthReporter receives the result of every poll.
type HealthReporter interface {
	SetServing(serving bool)
}

// UpdatePoller owns the update cursor. Updates of a batch, and batches
// themselves, are dispatched strictly one after another.
type UpdatePoller struct {
	transport  Transport
	dispatcher *EventDispatcher
	logger     *slog.Logger
	cfg        PollerConfig
	health     HealthReporter
	offset     int64
}

func NewUpdatePoller(transport Transport, dispatcher *EventDispatcher, logger *slog.Logger, cfg PollerConfig) *UpdatePoller {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}
	return &UpdatePoller{
		transport:  transport,
		dispatcher: dispatcher,
		logger:     logger.With("component", "update_poller"),
		cfg:        cfg,
	}
}

// ReportHealthTo makes the poller flag h serving after a successful poll
// and not serving after a failed one or once Run returns.
func (p *UpdatePoller) ReportHealthTo(h HealthReporter) {
	p.health = h
}

// Run polls until ctx is cancelled. Transport errors are retried with
// exponential backoff; they never stop the loop.
func (p *UpdatePoller) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialBackoff
	b.MaxInterval = p.cfg.MaxBackoff

	p.logger.InfoContext(ctx, "Update poller started", "poll_timeout", p.cfg.PollTimeout)
	for {
		if err := ctx.Err(); err != nil {
			p.logger.InfoContext(ctx, "Update poller stopping", "offset", p.offset)
			if p.health != nil {
				p.health.SetServing(false)
			}
			return err
		}

		wait := p.cfg.IdleDelay
		if _, err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			wait = b.NextBackOff()
			p.logger.WarnContext(ctx, "Polling failed, backing off", "error", err, "retry_in", wait)
		} else {
			b.Reset()
		}

		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
			}
		}
	}
}

// PollOnce fetches one batch and dispatches it. The cursor moves past every
// delivered update before it is handled, so nothing is handled twice.
func (p *UpdatePoller) PollOnce(ctx context.Context) (int, error) {
	updates, err := p.transport.GetUpdates(ctx, p.offset, p.cfg.PollTimeout)
	if err != nil {
		pollErrorsCounter.Inc()
		if p.health != nil && ctx.Err() == nil {
			p.health.SetServing(false)
		}
		return 0, err
	}
	if p.health != nil {
		p.health.SetServing(true)
	}

	handled := 0
	for _, u := range updates {
		if u.ID < p.offset {
			p.logger.WarnContext(ctx, "Skipping already handled update", "update_id", u.ID, "offset", p.offset)
			continue
		}
		p.offset = u.ID + 1
		p.dispatcher.Dispatch(ctx, u)
		handled++
	}
	return handled, nil
}

// Offset is the next update id the poller will ask for.
func (p *UpdatePoller) Offset() int64 {
	return p.offset
}
