package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

// PgRentalEventRepository appends rental events to the rental_events journal.
type PgRentalEventRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgRentalEventRepository(db *pgxpool.Pool, logger *slog.Logger) *PgRentalEventRepository {
	return &PgRentalEventRepository{db: db, logger: logger.With("component", "rental_event_repository_pg")}
}

func (r *PgRentalEventRepository) Create(ctx context.Context, event *domain.RentalEvent) error {
	query := `
		INSERT INTO rental_events (id, kind, phone, seller_id, buyer_id, status, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var buyerID *int64
	if event.BuyerID != 0 {
		id := int64(event.BuyerID)
		buyerID = &id
	}
	_, err := r.db.Exec(ctx, query,
		event.ID, string(event.Kind), event.Phone, int64(event.SellerID), buyerID,
		event.Status.String(), event.OccurredAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating rental event", "error", err, "event_id", event.ID, "phone", event.Phone)
		return fmt.Errorf("creating rental event: %w", err)
	}
	return nil
}

// ListByPhone returns the journal of one number, oldest first.
func (r *PgRentalEventRepository) ListByPhone(ctx context.Context, phone string) ([]domain.RentalEvent, error) {
	query := `
		SELECT id, kind, phone, seller_id, COALESCE(buyer_id, 0), status, occurred_at
		FROM rental_events
		WHERE phone = $1
		ORDER BY occurred_at, id
	`
	rows, err := r.db.Query(ctx, query, phone)
	if err != nil {
		return nil, fmt.Errorf("listing rental events for %s: %w", phone, err)
	}
	defer rows.Close()

	var events []domain.RentalEvent
	for rows.Next() {
		var (
			e                 domain.RentalEvent
			kind, status      string
			sellerID, buyerID int64
		)
		if err := rows.Scan(&e.ID, &kind, &e.Phone, &sellerID, &buyerID, &status, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning rental event: %w", err)
		}
		e.Kind = domain.RentalEventKind(kind)
		e.Status = domain.NumberStatus(status)
		e.SellerID = domain.ChatID(sellerID)
		e.BuyerID = domain.ChatID(buyerID)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rental events: %w", err)
	}
	return events, nil
}
