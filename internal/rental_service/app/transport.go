package app

import (
	"context"
	"time"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

// Transport is what the bot needs from the chat platform.
type Transport interface {
	// GetUpdates returns updates with id >= offset, waiting up to timeout
	// for at least one to arrive. An offset of zero means "from the start".
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]domain.Update, error)
	SendMessage(ctx context.Context, msg domain.OutboundMessage) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
