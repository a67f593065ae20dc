package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessGate(t *testing.T) {
	gate, err := NewAccessGate("lolpop", bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		phrase string
		want   bool
	}{
		{"lolpop", true},
		{"LOLPOP", true},
		{"  LolPop\n", true},
		{"lol pop", false},
		{"lolpo", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gate.Check(tt.phrase), "phrase %q", tt.phrase)
	}
}

func TestAccessGate_CyrillicPhraseIsCaseInsensitive(t *testing.T) {
	gate, err := NewAccessGate("Пароль", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, gate.Check("ПАРОЛЬ"))
	assert.False(t, gate.Check("парол"))
}

func TestNewAccessGate_RejectsEmptyPhrase(t *testing.T) {
	_, err := NewAccessGate("   ", bcrypt.MinCost)
	assert.Error(t, err)
}
