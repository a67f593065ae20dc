package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RentalEventKind names a committed Number transition.
type RentalEventKind string

const (
	EventNumberRegistered RentalEventKind = "registered"
	EventNumberReserved   RentalEventKind = "reserved"
	EventNumberCodeSent   RentalEventKind = "code_sent"
	EventNumberSucceeded  RentalEventKind = "succeeded"
	EventNumberFailed     RentalEventKind = "failed"
	EventNumberCrashed    RentalEventKind = "crashed"
)

// RentalEvent describes a committed Number transition. The relayed code is
// deliberately not part of the event.
type RentalEvent struct {
	ID         uuid.UUID       `json:"id"`
	Kind       RentalEventKind `json:"kind"`
	Phone      string          `json:"phone"`
	SellerID   ChatID          `json:"seller_id"`
	BuyerID    ChatID          `json:"buyer_id,omitempty"`
	Status     NumberStatus    `json:"status"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewRentalEvent builds the event for a number snapshot taken right after a transition.
func NewRentalEvent(kind RentalEventKind, n Number) RentalEvent {
	return RentalEvent{
		ID:         uuid.New(),
		Kind:       kind,
		Phone:      n.Phone,
		SellerID:   n.SellerID,
		BuyerID:    n.BuyerID,
		Status:     n.Status,
		OccurredAt: n.StatusChangedAt,
	}
}

// EventPublisher delivers rental events to downstream consumers.
type EventPublisher interface {
	PublishRentalEvent(ctx context.Context, event RentalEvent) error
}
