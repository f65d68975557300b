package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"normalizes case and space", "  User@Example.COM ", "user@example.com", true},
		{"plus addressing", "a.b+c@mail.example.org", "a.b+c@mail.example.org", true},
		{"empty", "   ", "", false},
		{"no domain dot", "user@localhost", "", false},
		{"missing at", "user.example.com", "", false},
		{"too long", strings.Repeat("a", 250) + "@example.com", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEmail(tt.input)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidEmail)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Value())
		})
	}
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "u***@example.com", MaskEmail("user@example.com"))
	assert.Equal(t, "***", MaskEmail("abcd"))
	assert.Equal(t, "***", MaskEmail("hunter2-secret"))
	assert.Equal(t, "***", MaskEmail("@example.com"))
	assert.Equal(t, "***", MaskEmail("user@"))
	assert.Equal(t, "***", MaskEmail("a@b@c.com"))
	assert.Equal(t, "", MaskEmail(""))

	e, err := ParseEmail("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u***@example.com", e.String())
}

func TestPasswordHash(t *testing.T) {
	_, err := NewPasswordHash("plaintext")
	assert.ErrorIs(t, err, ErrPrecondition)

	h, err := PasswordHashFromTrusted("anything-nonempty")
	require.NoError(t, err)
	assert.Equal(t, "PasswordHash[PROTECTED]", h.String())

	_, err = PasswordHashFromTrusted("")
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestParseAccountStatus(t *testing.T) {
	s, err := ParseAccountStatus("suspended")
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, s)
	assert.False(t, s.CanAuthenticate())
	assert.True(t, StatusActive.CanAuthenticate())

	_, err = ParseAccountStatus("")
	assert.ErrorIs(t, err, ErrPrecondition)
}
