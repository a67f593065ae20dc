package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		text   string
		want   domain.Outcome
		wantOK bool
	}{
		{"встал", domain.OutcomeSucceeded, true},
		{"Встал, спасибо", domain.OutcomeSucceeded, true},
		{"ВСТАЛ!", domain.OutcomeSucceeded, true},
		{"не встал", domain.OutcomeFailed, true},
		{"Не встал, код не подошел", domain.OutcomeFailed, true},
		{"встал? нет, не встал", domain.OutcomeFailed, true},
		{"пока не знаю", "", false},
		{"", "", false},
		{"ok", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseOutcome(tt.text)
		assert.Equal(t, tt.wantOK, ok, "text %q", tt.text)
		assert.Equal(t, tt.want, got, "text %q", tt.text)
	}
}
