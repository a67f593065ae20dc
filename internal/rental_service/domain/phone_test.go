package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "canonical", raw: "+79991234567", want: "+79991234567"},
		{name: "leading eight", raw: "89991234567", want: "+79991234567"},
		{name: "leading seven", raw: "79991234567", want: "+79991234567"},
		{name: "surrounding whitespace", raw: " \t+79991234567\n", want: "+79991234567"},
		{name: "spaces inside", raw: "+7 999 123 45 67", wantErr: true},
		{name: "tabs and newline inside", raw: "8\t999\n1234567", wantErr: true},
		{name: "space after prefix", raw: "7 9991234567", wantErr: true},
		{name: "too short", raw: "+7999123456", wantErr: true},
		{name: "too long", raw: "899912345678", wantErr: true},
		{name: "wrong country", raw: "+19991234567", wantErr: true},
		{name: "dashes", raw: "8-999-123-45-67", wantErr: true},
		{name: "letters", raw: "+7999abc4567", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhoneFormat)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	for _, raw := range []string{"89991234567", " 79990000001 ", "+79995550000"} {
		once, err := NormalizePhone(raw)
		require.NoError(t, err)
		twice, err := NormalizePhone(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestParseNumberStatus(t *testing.T) {
	st, ok := ParseNumberStatus("code_sent")
	assert.True(t, ok)
	assert.Equal(t, NumberStatusCodeSent, st)

	_, ok = ParseNumberStatus("CODE_SENT")
	assert.False(t, ok)

	assert.True(t, NumberStatusCrashed.IsTerminal())
	assert.True(t, NumberStatusFailed.IsTerminal())
	assert.False(t, NumberStatusSucceeded.IsTerminal())
}

func TestUpdateKind(t *testing.T) {
	assert.Equal(t, "callback", Update{Callback: &CallbackPress{}}.Kind())
	assert.Equal(t, "message", Update{Message: &IncomingMessage{}}.Kind())
	assert.Equal(t, "other", Update{}.Kind())
}
