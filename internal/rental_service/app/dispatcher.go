package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

type textHandler func(ctx context.Context, chatID domain.ChatID, text string) domain.Effects

type routeKey struct {
	role  domain.Role
	state domain.ConversationState
}

type callbackRoute struct {
	role   domain.Role // RoleNone accepts any role
	handle func(ctx context.Context, chatID domain.ChatID, arg string) domain.Effects
}

// EventDispatcher routes inbound updates to matching engine use cases.
// Routing is total: a combination without a route is a no-op, and every
// button press is acknowledged.
type EventDispatcher struct {
	engine    *MatchingEngine
	sessions  domain.SessionStore
	deliverer *Deliverer
	logger    *slog.Logger

	textRoutes     map[routeKey]textHandler
	callbackRoutes map[string]callbackRoute
	prefixRoutes   map[string]callbackRoute
}

func NewEventDispatcher(engine *MatchingEngine, sessions domain.SessionStore, deliverer *Deliverer, logger *slog.Logger) *EventDispatcher {
	d := &EventDispatcher{
		engine:    engine,
		sessions:  sessions,
		deliverer: deliverer,
		logger:    logger.With("component", "dispatcher"),
	}

	d.textRoutes = map[routeKey]textHandler{
		{domain.RoleSeller, domain.StateAwaitingNumberInput}:  engine.AddNumber,
		{domain.RoleSeller, domain.StateAwaitingCodeInput}:    engine.RelayCode,
		{domain.RoleBuyer, domain.StateAwaitingPhoneInput}:    engine.FindNumber,
		{domain.RoleBuyer, domain.StateAwaitingOutcomeReport}: engine.ReportOutcomeText,
	}

	noArg := func(fn func(context.Context, domain.ChatID) domain.Effects) func(context.Context, domain.ChatID, string) domain.Effects {
		return func(ctx context.Context, id domain.ChatID, _ string) domain.Effects { return fn(ctx, id) }
	}
	outcome := func(o domain.Outcome) func(context.Context, domain.ChatID, string) domain.Effects {
		return func(ctx context.Context, id domain.ChatID, _ string) domain.Effects {
			return engine.ReportOutcome(ctx, id, o)
		}
	}

	d.callbackRoutes = map[string]callbackRoute{
		TokenSeller:     {domain.RoleNone, noArg(engine.BecomeSeller)},
		TokenBuyerCode:  {domain.RoleNone, noArg(engine.PromptAccessCode)},
		TokenAdd:        {domain.RoleSeller, noArg(engine.PromptAddNumber)},
		TokenMy:         {domain.RoleSeller, noArg(engine.ListSellerNumbers)},
		TokenFree:       {domain.RoleBuyer, noArg(engine.BrowseFree)},
		TokenFind:       {domain.RoleBuyer, noArg(engine.PromptFind)},
		TokenOrders:     {domain.RoleBuyer, noArg(engine.ListOrders)},
		TokenSuccess:    {domain.RoleBuyer, noArg(engine.ListSucceeded)},
		TokenOutcomeOK:  {domain.RoleBuyer, outcome(domain.OutcomeSucceeded)},
		TokenOutcomeBad: {domain.RoleBuyer, outcome(domain.OutcomeFailed)},
	}
	d.prefixRoutes = map[string]callbackRoute{
		PrefixPick:  {domain.RoleBuyer, engine.PickNumber},
		PrefixCrash: {domain.RoleBuyer, engine.ReportCrash},
	}
	return d
}

// Dispatch handles one update to completion, including delivery.
func (d *EventDispatcher) Dispatch(ctx context.Context, u domain.Update) {
	updatesReceivedCounter.WithLabelValues(u.Kind()).Inc()

	switch {
	case u.Callback != nil:
		fx := d.routeCallback(ctx, *u.Callback)
		d.deliverer.Deliver(ctx, u.Callback.CallbackID, fx)
	case u.Message != nil:
		fx := d.routeMessage(ctx, *u.Message)
		if len(fx.Messages) > 0 {
			d.deliverer.Deliver(ctx, "", fx)
		}
	default:
		updatesIgnoredCounter.WithLabelValues(u.Kind()).Inc()
		d.logger.DebugContext(ctx, "Skipping update without message or callback", "update_id", u.ID)
	}
}

func (d *EventDispatcher) routeMessage(ctx context.Context, m domain.IncomingMessage) domain.Effects {
	text := strings.TrimSpace(m.Text)
	if text == "/start" {
		return d.engine.Start(ctx, m.ChatID)
	}

	sess := d.sessions.Get(m.ChatID)
	if sess.State == domain.StateAwaitingAccessCode {
		return d.engine.AuthenticateBuyer(ctx, m.ChatID, text)
	}

	handle, ok := d.textRoutes[routeKey{sess.Role, sess.State}]
	if !ok {
		updatesIgnoredCounter.WithLabelValues("message").Inc()
		d.logger.DebugContext(ctx, "Ignoring text outside an input state", "chat_id", m.ChatID, "role", sess.Role, "state", sess.State)
		return domain.Effects{}
	}
	return handle(ctx, m.ChatID, text)
}

func (d *EventDispatcher) routeCallback(ctx context.Context, cb domain.CallbackPress) domain.Effects {
	route, arg, ok := d.lookupCallback(cb.Token)
	if !ok {
		updatesIgnoredCounter.WithLabelValues("callback").Inc()
		d.logger.DebugContext(ctx, "Unknown callback token", "chat_id", cb.ChatID, "token", cb.Token)
		return domain.Effects{}
	}

	if route.role != domain.RoleNone {
		if sess := d.sessions.Get(cb.ChatID); sess.Role != route.role {
			updatesIgnoredCounter.WithLabelValues("callback").Inc()
			d.logger.InfoContext(ctx, "Callback ignored for role", "chat_id", cb.ChatID, "token", cb.Token, "role", sess.Role)
			return domain.Effects{}
		}
	}
	return route.handle(ctx, cb.ChatID, arg)
}

func (d *EventDispatcher) lookupCallback(token string) (callbackRoute, string, bool) {
	if route, ok := d.callbackRoutes[token]; ok {
		return route, "", true
	}
	for prefix, route := range d.prefixRoutes {
		if arg, found := strings.CutPrefix(token, prefix); found {
			return route, arg, true
		}
	}
	return callbackRoute{}, "", false
}
