package session

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "invalid_credentials"
	TextCodeRateLimited        = "rate_limited"
	TextCodeServerError        = "server_error"
	TextCodeNetworkTimeout     = "network_timeout"
	TextCodeOffline            = "offline"
	TextCodeMalformedResponse  = "malformed_response"
	TextCodeValidationFailed   = "validation_failed"
	TextCodeUnknownFailure     = "unknown_failure"
)

// ErrInvalidCredentials is returned when the backend rejects the supplied
// identifier/secret or an expired bearer credential.
var ErrInvalidCredentials = goerrors.New("Invalid username or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrRateLimited is returned when the backend throttles the caller. Each
// rate-limited failure is terminal for that call; any Retry-After hint is
// carried in the error metadata.
var ErrRateLimited = goerrors.New("Too many login attempts. Please try again later", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited)

// ErrServerError is returned for 5xx responses.
var ErrServerError = goerrors.New("Server error. Please try again later", goerrors.CategoryInternal).
	WithTextCode(TextCodeServerError).
	WithCode(goerrors.CodeInternal)

// ErrNetworkTimeout is returned when a request exceeds the transport timeout.
var ErrNetworkTimeout = goerrors.New("Request timed out. Please check your connection", goerrors.CategoryOperation).
	WithTextCode(TextCodeNetworkTimeout)

// ErrOffline is returned when no connectivity is available.
var ErrOffline = goerrors.New("No internet connection. Please check your network", goerrors.CategoryOperation).
	WithTextCode(TextCodeOffline)

// ErrMalformedResponse is returned when a response is missing required fields.
var ErrMalformedResponse = goerrors.New("Invalid response format from authentication server", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMalformedResponse)

// ErrValidationFailed is returned by client-side input checks before any
// network call is issued.
var ErrValidationFailed = goerrors.New("invalid input", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidationFailed).
	WithCode(goerrors.CodeBadRequest)

// ErrUnknownFailure is the fallback kind; it keeps the original message.
var ErrUnknownFailure = goerrors.New("Authentication failed", goerrors.CategoryInternal).
	WithTextCode(TextCodeUnknownFailure)

// ErrorKind extracts the taxonomy text code from a classified error, or
// TextCodeUnknownFailure when the error carries no code.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode != "" {
		return rich.TextCode
	}

	return TextCodeUnknownFailure
}

// ErrorMessage returns the human-readable message for UI display. Transport
// internals are never exposed; unclassified errors surface a generic message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Message != "" {
		return rich.Message
	}

	return "Authentication failed"
}

func IsInvalidCredentials(err error) bool { return ErrorKind(err) == TextCodeInvalidCredentials }
func IsRateLimited(err error) bool        { return ErrorKind(err) == TextCodeRateLimited }
func IsValidationError(err error) bool    { return ErrorKind(err) == TextCodeValidationFailed }
func IsMalformedResponse(err error) bool  { return ErrorKind(err) == TextCodeMalformedResponse }
func IsOffline(err error) bool            { return ErrorKind(err) == TextCodeOffline }
func IsNetworkTimeout(err error) bool     { return ErrorKind(err) == TextCodeNetworkTimeout }
