package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

// Callback tokens carried by inline buttons.
const (
	TokenSeller     = "seller"
	TokenBuyerCode  = "buyer_code"
	TokenAdd        = "add"
	TokenMy         = "my"
	TokenFree       = "free"
	TokenFind       = "find"
	TokenOrders     = "orders"
	TokenSuccess    = "success"
	TokenOutcomeOK  = "ok"
	TokenOutcomeBad = "fail"

	PrefixPick  = "pick_"
	PrefixCrash = "crash_"
)

const clockLayout = "15:04"

func startKeyboard() domain.Keyboard {
	return domain.Keyboard{
		{{Label: "📱 Сдать номер", Token: TokenSeller}},
		{{Label: "👤 Стать покупателем", Token: TokenBuyerCode}},
	}
}

func sellerKeyboard() domain.Keyboard {
	return domain.Keyboard{
		{{Label: "➕ Добавить", Token: TokenAdd}},
		{{Label: "📊 Мои", Token: TokenMy}},
	}
}

func buyerKeyboard() domain.Keyboard {
	return domain.Keyboard{
		{{Label: "📋 Свободные", Token: TokenFree}},
		{{Label: "🔍 Найти", Token: TokenFind}},
		{{Label: "📦 Заказы", Token: TokenOrders}},
		{{Label: "✅ Успешные", Token: TokenSuccess}},
	}
}

// outcomeKeyboard offers the two structured outcome answers, stamped with
// the time the code was relayed.
func outcomeKeyboard(at time.Time) domain.Keyboard {
	stamp := at.Format(clockLayout)
	return domain.Keyboard{
		{{Label: fmt.Sprintf("✅ Встал (%s)", stamp), Token: TokenOutcomeOK}},
		{{Label: fmt.Sprintf("❌ Не встал (%s)", stamp), Token: TokenOutcomeBad}},
	}
}

func pickKeyboard(numbers []domain.Number) domain.Keyboard {
	kb := make(domain.Keyboard, 0, len(numbers))
	for _, n := range numbers {
		kb = append(kb, []domain.Button{{Label: "Выбрать " + n.Phone, Token: PrefixPick + n.Phone}})
	}
	return kb
}

func crashKeyboard(numbers []domain.Number) domain.Keyboard {
	kb := make(domain.Keyboard, 0, len(numbers))
	for _, n := range numbers {
		kb = append(kb, []domain.Button{{Label: "💥 " + n.Phone + " слетел", Token: PrefixCrash + n.Phone}})
	}
	return kb
}

// sellerLabels and buyerLabels name each status as its side sees it.
var sellerLabels = map[domain.NumberStatus]string{
	domain.NumberStatusFree:      "🟢 Свободен",
	domain.NumberStatusReserved:  "🟡 В работе",
	domain.NumberStatusCodeSent:  "📨 Код отправлен",
	domain.NumberStatusSucceeded: "✅ Успех",
	domain.NumberStatusFailed:    "❌ Не встал",
	domain.NumberStatusCrashed:   "💥 Слетел",
}

var buyerLabels = map[domain.NumberStatus]string{
	domain.NumberStatusReserved:  "⏳ Ожидает",
	domain.NumberStatusCodeSent:  "📨 Получил код",
	domain.NumberStatusSucceeded: "✅ Встал",
	domain.NumberStatusFailed:    "❌ Не встал",
	domain.NumberStatusCrashed:   "💥 Слетел",
}

func historyLines(numbers []domain.Number, labels map[domain.NumberStatus]string, loc *time.Location) string {
	lines := make([]string, 0, len(numbers))
	for _, n := range numbers {
		label, ok := labels[n.Status]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("📱 %s - %s (%s)", n.Phone, label, n.StatusTime().In(loc).Format(clockLayout)))
	}
	return strings.Join(lines, "\n")
}

// freeLines stamps each number with its registration time.
func freeLines(numbers []domain.Number, loc *time.Location) string {
	lines := make([]string, 0, len(numbers))
	for _, n := range numbers {
		lines = append(lines, fmt.Sprintf("📱 <code>%s</code> (%s)", n.Phone, n.RegisteredAt.In(loc).Format(clockLayout)))
	}
	return strings.Join(lines, "\n")
}

func succeededLines(numbers []domain.Number, loc *time.Location) string {
	lines := make([]string, 0, len(numbers))
	for _, n := range numbers {
		lines = append(lines, fmt.Sprintf("📱 <code>%s</code> (встал: %s)", n.Phone, n.SucceededAt.In(loc).Format(clockLayout)))
	}
	return strings.Join(lines, "\n")
}

func firstN(numbers []domain.Number, limit int) []domain.Number {
	if limit > 0 && len(numbers) > limit {
		return numbers[:limit]
	}
	return numbers
}
