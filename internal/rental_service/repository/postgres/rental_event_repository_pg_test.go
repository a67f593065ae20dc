package postgres

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/rental_bot/internal/platform/database"
	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

// Runs against a real database only when APP_TEST_POSTGRES_DSN is set.
func TestPgRentalEventRepository_CreateAndList(t *testing.T) {
	dsn := os.Getenv("APP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("APP_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.NewDBPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, database.EnsureSchema(ctx, pool))

	repo := NewPgRentalEventRepository(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))

	phone := "+7999" + time.Now().Format("0405") + "123"
	at := time.Now().UTC().Truncate(time.Millisecond)
	registered := domain.NewRentalEvent(domain.EventNumberRegistered, domain.Number{
		Phone: phone, SellerID: 100, Status: domain.NumberStatusFree, StatusChangedAt: at,
	})
	reserved := domain.NewRentalEvent(domain.EventNumberReserved, domain.Number{
		Phone: phone, SellerID: 100, BuyerID: 200, Status: domain.NumberStatusReserved, StatusChangedAt: at.Add(time.Second),
	})
	require.NoError(t, repo.Create(ctx, &registered))
	require.NoError(t, repo.Create(ctx, &reserved))

	events, err := repo.ListByPhone(ctx, phone)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventNumberRegistered, events[0].Kind)
	assert.Equal(t, domain.ChatID(0), events[0].BuyerID)
	assert.Equal(t, domain.EventNumberReserved, events[1].Kind)
	assert.Equal(t, domain.ChatID(200), events[1].BuyerID)
	assert.True(t, at.Equal(events[0].OccurredAt))
}
