package session

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"nil", nil, ""},
		{"invalid credentials", ErrInvalidCredentials, TextCodeInvalidCredentials},
		{"rate limited", ErrRateLimited, TextCodeRateLimited},
		{"server error", ErrServerError, TextCodeServerError},
		{"timeout", ErrNetworkTimeout, TextCodeNetworkTimeout},
		{"offline", ErrOffline, TextCodeOffline},
		{"malformed", ErrMalformedResponse, TextCodeMalformedResponse},
		{"validation", ErrValidationFailed, TextCodeValidationFailed},
		{"plain error", errors.New("boom"), TextCodeUnknownFailure},
		{"wrapped rich error", fmt.Errorf("outer: %w", ErrRateLimited), TextCodeRateLimited},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, ErrorKind(tc.err))
		})
	}
}

func TestErrorMessageNeverExposesInternals(t *testing.T) {
	assert.Equal(t, "", ErrorMessage(nil))
	assert.Equal(t, "Invalid username or password", ErrorMessage(ErrInvalidCredentials))
	assert.Equal(t, "Too many login attempts. Please try again later", ErrorMessage(ErrRateLimited))

	// raw transport errors surface only the generic message
	assert.Equal(t, "Authentication failed", ErrorMessage(errors.New("dial tcp 10.0.0.1:443: i/o timeout")))
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, IsInvalidCredentials(ErrInvalidCredentials))
	assert.True(t, IsRateLimited(ErrRateLimited))
	assert.True(t, IsValidationError(ErrValidationFailed))
	assert.True(t, IsMalformedResponse(ErrMalformedResponse))
	assert.True(t, IsOffline(ErrOffline))
	assert.True(t, IsNetworkTimeout(ErrNetworkTimeout))

	assert.False(t, IsRateLimited(ErrInvalidCredentials))
	assert.False(t, IsInvalidCredentials(nil))
}

func TestDecoratedErrorKeepsKind(t *testing.T) {
	decorated := ErrRateLimited.WithMetadata(map[string]any{"retry_after_seconds": 30})

	assert.Equal(t, 30, decorated.Metadata["retry_after_seconds"])
	assert.Equal(t, TextCodeRateLimited, decorated.TextCode)
	assert.Equal(t, goerrors.CategoryRateLimit, decorated.Category)
	assert.True(t, IsRateLimited(decorated))
}
