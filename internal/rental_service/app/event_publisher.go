package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

// BrokerPublisher is the part of the message broker client the bot uses.
type BrokerPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// RentalEventSubject returns the broker subject for an event kind,
// e.g. "rental.number.reserved".
func RentalEventSubject(kind domain.RentalEventKind) string {
	return "rental.number." + string(kind)
}

// BrokerEventPublisher publishes rental events as JSON to the message broker.
type BrokerEventPublisher struct {
	broker BrokerPublisher
	logger *slog.Logger
}

func NewBrokerEventPublisher(broker BrokerPublisher, logger *slog.Logger) *BrokerEventPublisher {
	return &BrokerEventPublisher{broker: broker, logger: logger.With("sink", "broker")}
}

func (p *BrokerEventPublisher) PublishRentalEvent(ctx context.Context, event domain.RentalEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		eventsPublishedCounter.WithLabelValues("broker", "error_marshal").Inc()
		return fmt.Errorf("marshal rental event: %w", err)
	}
	subject := RentalEventSubject(event.Kind)
	if err := p.broker.Publish(ctx, subject, data); err != nil {
		eventsPublishedCounter.WithLabelValues("broker", "error_publish").Inc()
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	eventsPublishedCounter.WithLabelValues("broker", "success").Inc()
	p.logger.DebugContext(ctx, "Rental event published", "subject", subject, "event_id", event.ID)
	return nil
}

// RentalEventRepository stores rental events in the audit journal.
type RentalEventRepository interface {
	Create(ctx context.Context, event *domain.RentalEvent) error
}

// JournalEventPublisher appends rental events to the audit journal.
type JournalEventPublisher struct {
	repo RentalEventRepository
}

func NewJournalEventPublisher(repo RentalEventRepository) *JournalEventPublisher {
	return &JournalEventPublisher{repo: repo}
}

func (p *JournalEventPublisher) PublishRentalEvent(ctx context.Context, event domain.RentalEvent) error {
	if err := p.repo.Create(ctx, &event); err != nil {
		eventsPublishedCounter.WithLabelValues("journal", "error_db_save").Inc()
		return fmt.Errorf("journal rental event: %w", err)
	}
	eventsPublishedCounter.WithLabelValues("journal", "success").Inc()
	return nil
}

// MultiPublisher fans an event out to every sink. A failing sink does not
// stop the others; the failures are joined.
type MultiPublisher struct {
	sinks []domain.EventPublisher
}

func NewMultiPublisher(sinks ...domain.EventPublisher) *MultiPublisher {
	return &MultiPublisher{sinks: sinks}
}

// Len reports how many sinks are attached.
func (m *MultiPublisher) Len() int {
	return len(m.sinks)
}

func (m *MultiPublisher) PublishRentalEvent(ctx context.Context, event domain.RentalEvent) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.PublishRentalEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
