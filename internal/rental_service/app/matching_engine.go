package app

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

// EngineConfig tunes the matching engine.
type EngineConfig struct {
	FreeListLimit int            // max numbers shown by browse and success lists
	Location      *time.Location // time zone of the HH:MM stamps in messages
	Now           func() time.Time
}

// PhraseChecker verifies the shared buyer access phrase.
type PhraseChecker interface {
	Check(phrase string) bool
}

// MatchingEngine runs the use cases that touch numbers and sessions together.
// Each use case mutates state under one lock and returns the effects to
// deliver; events are published after the lock is released. Domain errors
// never leave a use case, they become user-facing messages.
type MatchingEngine struct {
	mu        sync.Mutex
	numbers   domain.NumberRegistry
	sessions  domain.SessionStore
	gate      PhraseChecker
	publisher domain.EventPublisher
	logger    *slog.Logger
	cfg       EngineConfig
}

// NewMatchingEngine wires the engine. publisher may be nil.
func NewMatchingEngine(
	numbers domain.NumberRegistry,
	sessions domain.SessionStore,
	gate PhraseChecker,
	publisher domain.EventPublisher,
	logger *slog.Logger,
	cfg EngineConfig,
) *MatchingEngine {
	if cfg.FreeListLimit <= 0 {
		cfg.FreeListLimit = 5
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &MatchingEngine{
		numbers:   numbers,
		sessions:  sessions,
		gate:      gate,
		publisher: publisher,
		logger:    logger.With("component", "matching_engine"),
		cfg:       cfg,
	}
}

// unitOfWork collects what one use case produced while holding the lock.
type unitOfWork struct {
	fx     domain.Effects
	events []domain.RentalEvent
}

func (u *unitOfWork) emit(kind domain.RentalEventKind, n domain.Number) {
	u.events = append(u.events, domain.NewRentalEvent(kind, n))
}

func (e *MatchingEngine) run(ctx context.Context, useCase string, fn func(u *unitOfWork)) domain.Effects {
	timer := prometheus.NewTimer(useCaseDurationHist.WithLabelValues(useCase))
	var u unitOfWork

	e.mu.Lock()
	fn(&u)
	e.mu.Unlock()
	timer.ObserveDuration()

	for _, ev := range u.events {
		numberTransitionsCounter.WithLabelValues(string(ev.Kind)).Inc()
		if e.publisher == nil {
			continue
		}
		if err := e.publisher.PublishRentalEvent(ctx, ev); err != nil {
			e.logger.WarnContext(ctx, "Failed to publish rental event", "error", err, "event_id", ev.ID, "kind", ev.Kind, "phone", ev.Phone)
		}
	}
	return u.fx
}

// updateSession applies mutate and logs instead of failing: the only error
// the store reports is an out-of-range state, which the engine never sets.
func (e *MatchingEngine) updateSession(ctx context.Context, id domain.ChatID, mutate func(*domain.Session)) {
	if _, err := e.sessions.Upsert(id, mutate); err != nil {
		e.logger.ErrorContext(ctx, "Failed to update session", "error", err, "chat_id", id)
	}
}

// Start resets the participant and greets them with the role choice.
func (e *MatchingEngine) Start(ctx context.Context, id domain.ChatID) domain.Effects {
	return e.run(ctx, "start", func(u *unitOfWork) {
		e.sessions.Reset(id)
		u.fx.Notify(id, "👋 <b>MAX БОТ</b>\n\nВыберите роль:", startKeyboard())
	})
}

func (e *MatchingEngine) BecomeSeller(ctx context.Context, id domain.ChatID) domain.Effects {
	return e.run(ctx, "become_seller", func(u *unitOfWork) {
		e.updateSession(ctx, id, func(s *domain.Session) {
			s.Role = domain.RoleSeller
			s.State = domain.StateSellerMenu
			s.ActiveNumber = ""
		})
		u.fx.Toast = "Сдатчик"
		u.fx.Notify(id, "📱 <b>Сдатчик</b>", sellerKeyboard())
	})
}

func (e *MatchingEngine) PromptAccessCode(ctx context.Context, id domain.ChatID) domain.Effects {
	return e.run(ctx, "prompt_access_code", func(u *unitOfWork) {
		e.updateSession(ctx, id, func(s *domain.Session) { s.State = domain.StateAwaitingAccessCode })
		u.fx.Toast = "Введите код"
		u.fx.Notify(id, "👤 Введите код доступа:", nil)
	})
}

// AuthenticateBuyer grants the buyer role when phrase matches the shared
// access phrase. The hash comparison runs before the engine lock is taken.
func (e *MatchingEngine) AuthenticateBuyer(ctx context.Context, id domain.ChatID, phrase string) domain.Effects {
	matched := e.gate.Check(phrase)
	return e.run(ctx, "authenticate_buyer", func(u *unitOfWork) {
		if !matched {
			accessAttemptsCounter.WithLabelValues("failure").Inc()
			e.logger.WarnContext(ctx, "Buyer authentication failed", "chat_id", id, "error", domain.ErrAuthenticationFailed)
			u.fx.Notify(id, "❌ Неверный код", nil)
			return
		}
		accessAttemptsCounter.WithLabelValues("success").Inc()
		e.updateSession(ctx, id, func(s *domain.Session) {
			s.Role = domain.RoleBuyer
			s.State = domain.StateBuyerMenu
			s.ActiveNumber = ""
		})
		e.logger.InfoContext(ctx, "Buyer authenticated", "chat_id", id)
		u.fx.Notify(id, "✅ <b>Покупатель</b>", buyerKeyboard())
	})
}

func (e *MatchingEngine) PromptAddNumber(ctx context.Context, sellerID domain.ChatID) domain.Effects {
	return e.run(ctx, "prompt_add_number", func(u *unitOfWork) {
		e.updateSession(ctx, sellerID, func(s *domain.Session) { s.State = domain.StateAwaitingNumberInput })
		u.fx.Toast = "Введите номер"
		u.fx.Notify(sellerID, "➕ Номер для сдачи (формат: +79991234567):", nil)
	})
}

// AddNumber registers a seller's phone. On a rejected phone the seller stays
// in number input so they can try again.
func (e *MatchingEngine) AddNumber(ctx context.Context, sellerID domain.ChatID, rawPhone string) domain.Effects {
	return e.run(ctx, "add_number", func(u *unitOfWork) {
		n, err := e.numbers.Register(rawPhone, sellerID)
		switch {
		case errors.Is(err, domain.ErrInvalidPhoneFormat):
			u.fx.Notify(sellerID, "❌ Неверный формат номера", nil)
			return
		case errors.Is(err, domain.ErrDuplicateRegistration):
			u.fx.Notify(sellerID, "❌ Номер уже зарегистрирован", nil)
			return
		case err != nil:
			e.logger.ErrorContext(ctx, "Failed to register number", "error", err, "seller_id", sellerID)
			u.fx.Notify(sellerID, "❌ Ошибка", nil)
			return
		}

		e.updateSession(ctx, sellerID, func(s *domain.Session) { s.State = domain.StateSellerMenu })
		u.emit(domain.EventNumberRegistered, n)
		e.logger.InfoContext(ctx, "Number registered", "phone", n.Phone, "seller_id", sellerID)
		u.fx.Notify(sellerID, fmt.Sprintf("✅ <code>%s</code> добавлен!", n.Phone), sellerKeyboard())
	})
}

// ListSellerNumbers shows every number the seller registered with its status.
func (e *MatchingEngine) ListSellerNumbers(ctx context.Context, sellerID domain.ChatID) domain.Effects {
	return e.run(ctx, "list_seller_numbers", func(u *unitOfWork) {
		numbers := e.numbers.ListBySeller(sellerID)
		if len(numbers) == 0 {
			u.fx.Toast = "Нет"
			u.fx.Notify(sellerID, "📭 Нет номеров", nil)
			return
		}
		u.fx.Toast = fmt.Sprintf("Номеров: %d", len(numbers))
		u.fx.Notify(sellerID, "📊 <b>Номера:</b>\n\n"+historyLines(numbers, sellerLabels, e.cfg.Location), nil)
	})
}

// BrowseFree lists free numbers in registration order with a select button each.
func (e *MatchingEngine) BrowseFree(ctx context.Context, buyerID domain.ChatID) domain.Effects {
	return e.run(ctx, "browse_free", func(u *unitOfWork) {
		free := e.numbers.ListFree()
		if len(free) == 0 {
			u.fx.Toast = "Нет"
			u.fx.Notify(buyerID, "📭 Нет номеров", nil)
			return
		}
		shown := firstN(free, e.cfg.FreeListLimit)
		u.fx.Toast = fmt.Sprintf("Свободных: %d", len(free))
		u.fx.Notify(buyerID, "📋 <b>Свободные:</b>\n\n"+freeLines(shown, e.cfg.Location), nil)
		u.fx.Notify(buyerID, "👇 Выберите:", pickKeyboard(shown))
	})
}

// PickNumber reserves phone for the buyer and hands the order to its seller.
func (e *MatchingEngine) PickNumber(ctx context.Context, buyerID domain.ChatID, phone string) domain.Effects {
	return e.run(ctx, "pick_number", func(u *unitOfWork) {
		e.reserveLocked(ctx, u, buyerID, phone)
	})
}

func (e *MatchingEngine) reserveLocked(ctx context.Context, u *unitOfWork, buyerID domain.ChatID, phone string) {
	n, err := e.numbers.Reserve(phone, buyerID)
	if err != nil {
		e.logger.InfoContext(ctx, "Reservation rejected", "error", err, "phone", phone, "buyer_id", buyerID)
		u.fx.Toast = "❌ Занят"
		u.fx.Notify(buyerID, "❌ Занят", nil)
		return
	}

	e.updateSession(ctx, n.SellerID, func(s *domain.Session) {
		s.State = domain.StateAwaitingCodeInput
		s.ActiveNumber = n.Phone
	})
	u.emit(domain.EventNumberReserved, n)
	e.logger.InfoContext(ctx, "Number reserved", "phone", n.Phone, "buyer_id", buyerID, "seller_id", n.SellerID)

	u.fx.Toast = "✅ Забронирован"
	u.fx.Notify(buyerID, fmt.Sprintf("✅ <code>%s</code>\n⏳ Ждите код...", n.Phone), buyerKeyboard())
	u.fx.Notify(n.SellerID, fmt.Sprintf("🎉 <b>ЗАКАЗ!</b>\n\n📱 %s\n👤 Ждет код\n\nОтправьте код из SMS сообщением.", n.Phone), nil)
}

func (e *MatchingEngine) PromptFind(ctx context.Context, buyerID domain.ChatID) domain.Effects {
	return e.run(ctx, "prompt_find", func(u *unitOfWork) {
		e.updateSession(ctx, buyerID, func(s *domain.Session) { s.State = domain.StateAwaitingPhoneInput })
		u.fx.Toast = "Введите номер"
		u.fx.Notify(buyerID, "🔍 Номер (формат: +79991234567):", nil)
	})
}

// FindNumber looks up a typed phone and reserves it when free. The buyer is
// back in the menu afterwards whatever the result.
func (e *MatchingEngine) FindNumber(ctx context.Context, buyerID domain.ChatID, rawPhone string) domain.Effects {
	return e.run(ctx, "find_number", func(u *unitOfWork) {
		defer e.updateSession(ctx, buyerID, func(s *domain.Session) { s.State = domain.StateBuyerMenu })

		phone, err := domain.NormalizePhone(rawPhone)
		if err != nil {
			u.fx.Notify(buyerID, "❌ Неверный формат номера", buyerKeyboard())
			return
		}
		n, err := e.numbers.Get(phone)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			u.fx.Notify(buyerID, fmt.Sprintf("❌ %s нет", phone), buyerKeyboard())
		case err != nil:
			e.logger.ErrorContext(ctx, "Failed to look up number", "error", err, "phone", phone)
			u.fx.Notify(buyerID, "❌ Ошибка", buyerKeyboard())
		case n.Status == domain.NumberStatusFree:
			e.reserveLocked(ctx, u, buyerID, phone)
		default:
			u.fx.Notify(buyerID, fmt.Sprintf("❌ %s занят", phone), buyerKeyboard())
		}
	})
}

// RelayCode forwards the SMS code the seller typed to the buyer holding the
// seller's active number.
func (e *MatchingEngine) RelayCode(ctx context.Context, sellerID domain.ChatID, rawCode string) domain.Effects {
	return e.run(ctx, "relay_code", func(u *unitOfWork) {
		code := strings.TrimSpace(rawCode)
		if code == "" {
			u.fx.Notify(sellerID, "🔢 Введите код из SMS:", nil)
			return
		}

		fail := func(text string, err error) {
			e.logger.InfoContext(ctx, "Code relay failed", "error", err, "seller_id", sellerID)
			e.updateSession(ctx, sellerID, func(s *domain.Session) {
				s.State = domain.StateSellerMenu
				s.ActiveNumber = ""
			})
			u.fx.Notify(sellerID, text, sellerKeyboard())
		}

		sess := e.sessions.Get(sellerID)
		if !sess.HasActiveNumber() {
			fail("❌ Нет активного номера", domain.ErrNotFound)
			return
		}
		current, err := e.numbers.Get(sess.ActiveNumber)
		if err != nil {
			fail("❌ Ошибка", err)
			return
		}
		if !current.HasBuyer() {
			fail("❌ Нет покупателя", domain.ErrWrongState)
			return
		}
		n, err := e.numbers.SubmitCode(current.Phone, code, sellerID)
		if err != nil {
			fail("❌ Ошибка: номер не ожидает код", err)
			return
		}

		e.updateSession(ctx, n.BuyerID, func(s *domain.Session) {
			s.State = domain.StateAwaitingOutcomeReport
			s.ActiveNumber = n.Phone
		})
		e.updateSession(ctx, sellerID, func(s *domain.Session) {
			s.State = domain.StateSellerMenu
			s.ActiveNumber = ""
		})
		u.emit(domain.EventNumberCodeSent, n)
		e.logger.InfoContext(ctx, "Code relayed", "phone", n.Phone, "seller_id", sellerID, "buyer_id", n.BuyerID)

		escaped := html.EscapeString(code)
		u.fx.Notify(n.BuyerID, fmt.Sprintf("🎉 <b>КОД!</b>\n\n📱 %s\n🔢 <b>%s</b>", n.Phone, escaped), outcomeKeyboard(n.StatusChangedAt.In(e.cfg.Location)))
		u.fx.Notify(sellerID, fmt.Sprintf("✅ <b>Отправлен!</b>\n\n📱 %s\n🔢 %s", n.Phone, escaped), sellerKeyboard())
	})
}

// ListOrders shows every number the buyer ever reserved.
func (e *MatchingEngine) ListOrders(ctx context.Context, buyerID domain.ChatID) domain.Effects {
	return e.run(ctx, "list_orders", func(u *unitOfWork) {
		orders := e.numbers.ListByBuyer(buyerID)
		if len(orders) == 0 {
			u.fx.Toast = "Нет"
			u.fx.Notify(buyerID, "📭 Нет заказов", nil)
			return
		}
		u.fx.Toast = fmt.Sprintf("Заказов: %d", len(orders))
		u.fx.Notify(buyerID, "📦 <b>Заказы:</b>\n\n"+historyLines(orders, buyerLabels, e.cfg.Location), nil)
	})
}

// ListSucceeded shows the buyer's successful rentals with a crash button each.
func (e *MatchingEngine) ListSucceeded(ctx context.Context, buyerID domain.ChatID) domain.Effects {
	return e.run(ctx, "list_succeeded", func(u *unitOfWork) {
		succeeded := e.numbers.ListSucceededByBuyer(buyerID)
		if len(succeeded) == 0 {
			u.fx.Toast = "Нет"
			u.fx.Notify(buyerID, "✅ Нет успешных", nil)
			return
		}
		shown := firstN(succeeded, e.cfg.FreeListLimit)
		u.fx.Toast = fmt.Sprintf("Успешных: %d", len(succeeded))
		u.fx.Notify(buyerID, "✅ <b>Успешные:</b>\n\n"+succeededLines(shown, e.cfg.Location), nil)
		u.fx.Notify(buyerID, "👇 Слетели:", crashKeyboard(shown))
	})
}

// ReportOutcome records the buyer's structured answer for the number
// waiting on it.
func (e *MatchingEngine) ReportOutcome(ctx context.Context, buyerID domain.ChatID, outcome domain.Outcome) domain.Effects {
	return e.run(ctx, "report_outcome", func(u *unitOfWork) {
		phone, ok := e.outcomeTargetLocked(ctx, buyerID)
		if !ok {
			e.abandonOutcomeLocked(ctx, u, buyerID)
			return
		}
		e.finishOutcomeLocked(ctx, u, buyerID, phone, outcome)
	})
}

// ReportOutcomeText classifies a free-text answer with ParseOutcome; text
// that says neither re-prompts without touching any state.
func (e *MatchingEngine) ReportOutcomeText(ctx context.Context, buyerID domain.ChatID, text string) domain.Effects {
	return e.run(ctx, "report_outcome_text", func(u *unitOfWork) {
		phone, ok := e.outcomeTargetLocked(ctx, buyerID)
		if !ok {
			e.abandonOutcomeLocked(ctx, u, buyerID)
			return
		}
		outcome, ok := ParseOutcome(text)
		if !ok {
			u.fx.Notify(buyerID, "❓ Нажмите кнопку:", outcomeKeyboard(e.cfg.Now().In(e.cfg.Location)))
			return
		}
		e.finishOutcomeLocked(ctx, u, buyerID, phone, outcome)
	})
}

// outcomeTargetLocked resolves the number the buyer is answering for. The
// session is the primary source; the registry's buyer index backs it up
// when the session lost its active number (e.g. the buyer pressed /start
// between receiving the code and answering).
func (e *MatchingEngine) outcomeTargetLocked(ctx context.Context, buyerID domain.ChatID) (string, bool) {
	if sess := e.sessions.Get(buyerID); sess.HasActiveNumber() {
		return sess.ActiveNumber, true
	}
	n, err := e.numbers.PendingOutcome(buyerID)
	if err != nil {
		return "", false
	}
	e.logger.InfoContext(ctx, "Outcome target recovered from buyer index", "buyer_id", buyerID, "phone", n.Phone)
	return n.Phone, true
}

func (e *MatchingEngine) abandonOutcomeLocked(ctx context.Context, u *unitOfWork, buyerID domain.ChatID) {
	e.updateSession(ctx, buyerID, func(s *domain.Session) {
		s.State = domain.StateBuyerMenu
		s.ActiveNumber = ""
	})
	u.fx.Toast = "❌ Ошибка"
	u.fx.Notify(buyerID, "❌ Нет номера, ожидающего ответа", buyerKeyboard())
}

func (e *MatchingEngine) finishOutcomeLocked(ctx context.Context, u *unitOfWork, buyerID domain.ChatID, phone string, outcome domain.Outcome) {
	defer e.updateSession(ctx, buyerID, func(s *domain.Session) {
		s.State = domain.StateBuyerMenu
		s.ActiveNumber = ""
	})

	n, err := e.numbers.ReportOutcome(phone, outcome, buyerID)
	if err != nil {
		e.logger.InfoContext(ctx, "Outcome report rejected", "error", err, "phone", phone, "buyer_id", buyerID)
		u.fx.Toast = "❌ Ошибка"
		u.fx.Notify(buyerID, "❌ Ошибка", buyerKeyboard())
		return
	}

	stamp := n.StatusChangedAt.In(e.cfg.Location).Format(clockLayout)
	e.logger.InfoContext(ctx, "Outcome reported", "phone", n.Phone, "buyer_id", buyerID, "status", n.Status)
	if n.Status == domain.NumberStatusSucceeded {
		u.emit(domain.EventNumberSucceeded, n)
		u.fx.Toast = "Встал"
		u.fx.Notify(n.SellerID, fmt.Sprintf("🎉 <b>ВСТАЛ!</b>\n\n📱 %s\n🕒 %s", n.Phone, stamp), nil)
		u.fx.Notify(buyerID, fmt.Sprintf("✅ <b>Спасибо!</b>\n\n📱 %s", n.Phone), buyerKeyboard())
		return
	}
	u.emit(domain.EventNumberFailed, n)
	u.fx.Toast = "Не встал"
	u.fx.Notify(n.SellerID, fmt.Sprintf("❌ <b>НЕ ВСТАЛ</b>\n\n📱 %s\n🕒 %s", n.Phone, stamp), nil)
	u.fx.Notify(buyerID, fmt.Sprintf("❌ <b>Спасибо!</b>\n\n📱 %s", n.Phone), buyerKeyboard())
}

// ReportCrash marks a successful rental as crashed. The buyer's session is
// left as it is.
func (e *MatchingEngine) ReportCrash(ctx context.Context, buyerID domain.ChatID, phone string) domain.Effects {
	return e.run(ctx, "report_crash", func(u *unitOfWork) {
		n, err := e.numbers.ReportCrash(phone, buyerID)
		if err != nil {
			e.logger.InfoContext(ctx, "Crash report rejected", "error", err, "phone", phone, "buyer_id", buyerID)
			u.fx.Toast = "❌ Недоступно"
			return
		}

		stamp := n.CrashedAt.In(e.cfg.Location).Format(clockLayout)
		u.emit(domain.EventNumberCrashed, n)
		e.logger.InfoContext(ctx, "Crash reported", "phone", n.Phone, "buyer_id", buyerID)
		u.fx.Toast = "Слетел"
		u.fx.Notify(n.SellerID, fmt.Sprintf("💥 <b>СЛЕТЕЛ!</b>\n\n📱 %s\n🕒 %s", n.Phone, stamp), nil)
		u.fx.Notify(buyerID, fmt.Sprintf("💥 <b>Отмечено!</b>\n\n📱 %s", n.Phone), buyerKeyboard())
	})
}
