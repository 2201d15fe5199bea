package session

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of the authenticated user as returned by the
// backend. The record is treated as immutable once obtained.
type Identity struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// AuthResult is the normalized outcome of a successful credential exchange,
// whether it came from a password login, a verification code, or a federated
// identity token.
type AuthResult struct {
	Credential string
	Subject    *Identity
	ExpiresAt  *time.Time
}

// RefreshResult carries the replacement credential issued by the backend.
type RefreshResult struct {
	Credential string
	ExpiresAt  *time.Time
}

// CredentialTransport performs the network exchanges that acquire, check, and
// replace bearer credentials. Implementations classify every failure into the
// error taxonomy defined in this package.
type CredentialTransport interface {
	Login(ctx context.Context, identifier, secret string) (*AuthResult, error)
	Validate(ctx context.Context, credential string) (*Identity, error)
	Refresh(ctx context.Context, credential string) (*RefreshResult, error)
	RequestVerification(ctx context.Context, identifier, secret string) error
	VerifyCode(ctx context.Context, identifier, secret, code string) (*AuthResult, error)
}

// InvalidationSource lets the session manager observe out-of-band credential
// rejections. Transports raise the signal when the general API rejects an
// authenticated request; the returned function removes the observer.
type InvalidationSource interface {
	OnInvalidate(fn func()) (unsubscribe func())
}

// Config holds session options
type Config interface {
	GetAPIBaseURL() string
	GetAuthBaseURL() string
	GetRequestTimeout() time.Duration
	GetCredentialKey() string
	GetIdentityKey() string
	GetSignInRoute() string
	GetHomeRoute() string
	GetRedirectParam() string
}

// DefaultLogger returns the fallback stdout logger used when no Logger is
// injected.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
