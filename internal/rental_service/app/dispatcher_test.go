package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

type dispatcherFixture struct {
	*engineFixture
	transport  *fakeTransport
	dispatcher *EventDispatcher
	nextID     int64
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	f := newEngineFixture(t)
	transport := &fakeTransport{}
	deliverer := NewDeliverer(transport, discardLogger(), fastDelivererConfig())
	return &dispatcherFixture{
		engineFixture: f,
		transport:     transport,
		dispatcher:    NewEventDispatcher(f.engine, f.sessions, deliverer, discardLogger()),
	}
}

func (f *dispatcherFixture) text(id domain.ChatID, text string) {
	f.nextID++
	f.dispatcher.Dispatch(context.Background(), domain.Update{
		ID:      f.nextID,
		Message: &domain.IncomingMessage{ChatID: id, Text: text},
	})
}

func (f *dispatcherFixture) press(id domain.ChatID, token string) string {
	f.nextID++
	cbID := "cb-" + token
	f.dispatcher.Dispatch(context.Background(), domain.Update{
		ID:       f.nextID,
		Callback: &domain.CallbackPress{ChatID: id, Token: token, CallbackID: cbID},
	})
	return cbID
}

func (f *dispatcherFixture) lastTo(t *testing.T, id domain.ChatID) domain.OutboundMessage {
	t.Helper()
	msgs := f.transport.sentTo(id)
	require.NotEmpty(t, msgs, "no message sent to %d", id)
	return msgs[len(msgs)-1]
}

func TestEventDispatcher_ChatFlow(t *testing.T) {
	f := newDispatcherFixture(t)

	f.text(testSeller, "/start")
	f.press(testSeller, TokenSeller)
	f.press(testSeller, TokenAdd)
	f.text(testSeller, "+79991234567")
	assert.Contains(t, f.lastTo(t, testSeller).Text, "добавлен")

	f.text(testBuyer, "/start")
	f.press(testBuyer, TokenBuyerCode)
	f.text(testBuyer, "lolpop")
	f.press(testBuyer, TokenFree)
	f.press(testBuyer, PrefixPick+testPhone)
	assert.Contains(t, f.lastTo(t, testSeller).Text, "ЗАКАЗ!")

	f.text(testSeller, "4821")
	assert.Contains(t, f.lastTo(t, testBuyer).Text, "<b>4821</b>")

	f.text(testBuyer, "не встал, код не подошел")
	assert.Contains(t, f.lastTo(t, testSeller).Text, "НЕ ВСТАЛ")

	n, err := f.numbers.Get(testPhone)
	require.NoError(t, err)
	assert.Equal(t, domain.NumberStatusFailed, n.Status)

	// Every press was acknowledged exactly once.
	assert.Len(t, f.transport.answered, 5)
}

func TestEventDispatcher_CallbackAckedBeforeMessages(t *testing.T) {
	f := newDispatcherFixture(t)

	cbID := f.press(testSeller, TokenSeller)

	require.NotEmpty(t, f.transport.calls)
	assert.Equal(t, "answer:"+cbID, f.transport.calls[0])
	assert.Equal(t, "send:100", f.transport.calls[1])
	assert.Equal(t, "Сдатчик", f.transport.answered[0].Text)
}

func TestEventDispatcher_TextOutsideInputStateIsIgnored(t *testing.T) {
	f := newDispatcherFixture(t)
	f.asBuyer(t, testBuyer)

	f.text(testBuyer, "hello there")
	f.text(testBuyer, "+79991234567")

	assert.Zero(t, f.transport.sentCount())
	sess := f.sessions.Get(testBuyer)
	assert.Equal(t, domain.StateBuyerMenu, sess.State)
	assert.Empty(t, f.numbers.List())
}

func TestEventDispatcher_IdleTextIsIgnored(t *testing.T) {
	f := newDispatcherFixture(t)

	f.text(testOther, "hi")

	assert.Zero(t, f.transport.sentCount())
	assert.Equal(t, domain.NewSession(testOther), f.sessions.Get(testOther))
}

func TestEventDispatcher_CallbacksOnlyAcknowledged(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testing.T, *dispatcherFixture)
		who   domain.ChatID
		token string
	}{
		{name: "unknown token", who: testBuyer, token: "definitely_not_a_token"},
		{name: "buyer token from seller", setup: func(t *testing.T, f *dispatcherFixture) { f.asSeller(t, testSeller) }, who: testSeller, token: TokenFree},
		{name: "seller token from buyer", setup: func(t *testing.T, f *dispatcherFixture) { f.asBuyer(t, testBuyer) }, who: testBuyer, token: TokenAdd},
		{name: "pick without role", who: testOther, token: PrefixPick + testPhone},
		{name: "outcome from seller", setup: func(t *testing.T, f *dispatcherFixture) { f.asSeller(t, testSeller) }, who: testSeller, token: TokenOutcomeOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t)
			f.asSeller(t, testSeller)
			f.register(t, testSeller, testPhone)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			before := f.sessions.Get(tt.who)

			cbID := f.press(tt.who, tt.token)

			require.Len(t, f.transport.answered, 1)
			assert.Equal(t, cbID, f.transport.answered[0].ID)
			assert.Empty(t, f.transport.answered[0].Text)
			assert.Zero(t, f.transport.sentCount())
			assert.Equal(t, before, f.sessions.Get(tt.who))

			n, err := f.numbers.Get(testPhone)
			require.NoError(t, err)
			assert.Equal(t, domain.NumberStatusFree, n.Status)
		})
	}
}

func TestEventDispatcher_AccessCodeFromAnyRole(t *testing.T) {
	f := newDispatcherFixture(t)
	f.asSeller(t, testSeller)

	f.press(testSeller, TokenBuyerCode)
	f.text(testSeller, "LOLPOP")

	sess := f.sessions.Get(testSeller)
	assert.Equal(t, domain.RoleBuyer, sess.Role)
	assert.Equal(t, domain.StateBuyerMenu, sess.State)
}

func TestEventDispatcher_StartResetsMidFlow(t *testing.T) {
	f := newDispatcherFixture(t)
	f.asSeller(t, testSeller)
	f.press(testSeller, TokenAdd)
	require.Equal(t, domain.StateAwaitingNumberInput, f.sessions.Get(testSeller).State)

	f.text(testSeller, " /start ")

	assert.Equal(t, domain.NewSession(testSeller), f.sessions.Get(testSeller))
	assert.Empty(t, f.numbers.List())
}

func TestEventDispatcher_CrashButton(t *testing.T) {
	f := newDispatcherFixture(t)
	f.codeSent(t, "4821")
	f.press(testBuyer, TokenOutcomeOK)

	f.press(testBuyer, TokenSuccess)
	last := f.lastTo(t, testBuyer)
	require.Equal(t, []string{PrefixCrash + testPhone}, tokensOf(last.Keyboard))

	f.press(testBuyer, PrefixCrash+testPhone)
	n, err := f.numbers.Get(testPhone)
	require.NoError(t, err)
	assert.Equal(t, domain.NumberStatusCrashed, n.Status)
	assert.Contains(t, f.lastTo(t, testSeller).Text, "СЛЕТЕЛ!")
}

func TestEventDispatcher_UpdateWithoutPayload(t *testing.T) {
	f := newDispatcherFixture(t)

	f.dispatcher.Dispatch(context.Background(), domain.Update{ID: 1})

	assert.Zero(t, f.transport.sentCount())
	assert.Empty(t, f.transport.answered)
}
