package clienterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tcases := []struct {
		name     string
		err      error
		expected Kind
	}{
		{
			name:     "direct client error",
			err:      NewSendFailedError(errors.New("append: connection reset")),
			expected: KindSendFailed,
		},
		{
			name:     "wrapped client error",
			err:      fmt.Errorf("send: %w", NewSessionExpiredError()),
			expected: KindSessionExpired,
		},
		{
			name:     "plain error has no kind",
			err:      errors.New("boom"),
			expected: Kind(""),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, KindOf(tc.err), "unexpected kind for %v", tc.err)
		})
	}
}

func TestAuthRejectedMessage(t *testing.T) {
	t.Run("provider message surfaced verbatim", func(t *testing.T) {
		err := NewAuthRejectedError(errors.New("wrong password"))
		assert.Equal(t, "wrong password", err.UserMessage(), "expected provider text to be surfaced")
	})

	t.Run("fallback when provider gives nothing", func(t *testing.T) {
		err := NewAuthRejectedError(nil)
		assert.Equal(t, "invalid credentials", err.UserMessage(), "expected fallback message")
	})
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("dial tcp: refused")
	err := NewDirectoryUnavailableError(inner)
	assert.ErrorIs(t, err, inner, "expected inner error to be reachable via Unwrap")
}
