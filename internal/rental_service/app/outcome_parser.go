package app

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

const (
	phraseFailed    = "не встал"
	phraseSucceeded = "встал"
)

// ParseOutcome classifies a buyer's free-text reply. The negative phrase
// wins whenever it appears, even alongside the positive one, because
// "встал" is a substring of "не встал". ok is false when neither appears.
func ParseOutcome(text string) (outcome domain.Outcome, ok bool) {
	lowered := cases.Lower(language.Russian).String(text)
	switch {
	case strings.Contains(lowered, phraseFailed):
		return domain.OutcomeFailed, true
	case strings.Contains(lowered, phraseSucceeded):
		return domain.OutcomeSucceeded, true
	}
	return "", false
}
