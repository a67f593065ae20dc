package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
	"github.com/aradsms/rental_bot/internal/rental_service/repository/memory"
)

const (
	testSeller domain.ChatID = 100
	testBuyer  domain.ChatID = 200
	testOther  domain.ChatID = 300

	testPhone = "+79991234567"
)

var testNow = time.Date(2026, 3, 1, 12, 34, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockEventPublisher is a mock implementation of domain.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishRentalEvent(ctx context.Context, event domain.RentalEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) kinds() []domain.RentalEventKind {
	var out []domain.RentalEventKind
	for _, call := range m.Calls {
		if call.Method == "PublishRentalEvent" {
			out = append(out, call.Arguments.Get(1).(domain.RentalEvent).Kind)
		}
	}
	return out
}

type engineFixture struct {
	engine    *MatchingEngine
	numbers   *memory.NumberRegistry
	sessions  *memory.SessionStore
	publisher *MockEventPublisher
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	gate, err := NewAccessGate("lolpop", bcrypt.MinCost)
	require.NoError(t, err)

	now := func() time.Time { return testNow }
	publisher := new(MockEventPublisher)
	publisher.On("PublishRentalEvent", mock.Anything, mock.Anything).Return(nil)

	numbers := memory.NewNumberRegistry(discardLogger(), now)
	sessions := memory.NewSessionStore()
	engine := NewMatchingEngine(numbers, sessions, gate, publisher, discardLogger(), EngineConfig{
		FreeListLimit: 5,
		Location:      time.UTC,
		Now:           now,
	})
	return &engineFixture{engine: engine, numbers: numbers, sessions: sessions, publisher: publisher}
}

// asSeller puts id in the seller menu.
func (f *engineFixture) asSeller(t *testing.T, id domain.ChatID) {
	t.Helper()
	f.engine.BecomeSeller(context.Background(), id)
}

// asBuyer authenticates id as a buyer.
func (f *engineFixture) asBuyer(t *testing.T, id domain.ChatID) {
	t.Helper()
	ctx := context.Background()
	f.engine.PromptAccessCode(ctx, id)
	f.engine.AuthenticateBuyer(ctx, id, "lolpop")
	require.Equal(t, domain.RoleBuyer, f.sessions.Get(id).Role)
}

// register adds phone for seller through the seller flow.
func (f *engineFixture) register(t *testing.T, seller domain.ChatID, phone string) {
	t.Helper()
	ctx := context.Background()
	f.engine.PromptAddNumber(ctx, seller)
	f.engine.AddNumber(ctx, seller, phone)
	_, err := f.numbers.Get(phone)
	require.NoError(t, err)
}

// codeSent drives testPhone to CodeSent for testBuyer.
func (f *engineFixture) codeSent(t *testing.T, code string) {
	t.Helper()
	ctx := context.Background()
	f.asSeller(t, testSeller)
	f.register(t, testSeller, testPhone)
	f.asBuyer(t, testBuyer)
	f.engine.PickNumber(ctx, testBuyer, testPhone)
	f.engine.RelayCode(ctx, testSeller, code)

	n, err := f.numbers.Get(testPhone)
	require.NoError(t, err)
	require.Equal(t, domain.NumberStatusCodeSent, n.Status)
}

type answeredCallback struct {
	ID   string
	Text string
}

// fakeTransport records outbound calls and serves scripted update batches.
type fakeTransport struct {
	mu sync.Mutex

	batches    [][]domain.Update
	getErrs    []error
	offsets    []int64
	sent       []domain.OutboundMessage
	answered   []answeredCallback
	sendErrs   []error
	answerErrs []error
	sendCalls  int
	calls      []string
}

func (f *fakeTransport) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]domain.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeTransport) SendMessage(_ context.Context, msg domain.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	f.calls = append(f.calls, fmt.Sprintf("send:%d", msg.ChatID))
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) AnswerCallback(_ context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "answer:"+callbackID)
	if len(f.answerErrs) > 0 {
		err := f.answerErrs[0]
		f.answerErrs = f.answerErrs[1:]
		if err != nil {
			return err
		}
	}
	f.answered = append(f.answered, answeredCallback{ID: callbackID, Text: text})
	return nil
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.answered = nil
	f.sendCalls = 0
	f.calls = nil
}

func (f *fakeTransport) sentTo(id domain.ChatID) []domain.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.OutboundMessage
	for _, m := range f.sent {
		if m.ChatID == id {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func fastDelivererConfig() DelivererConfig {
	return DelivererConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func tokensOf(kb domain.Keyboard) []string {
	var out []string
	for _, row := range kb {
		for _, b := range row {
			out = append(out, b.Token)
		}
	}
	return out
}
