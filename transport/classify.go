package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"syscall"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pushercoin/go-session"
)

// classifyTransportError maps a failure that happened before any HTTP status
// was produced: timeouts, DNS failures, refused connections.
func classifyTransportError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return session.ErrNetworkTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return session.ErrNetworkTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return session.ErrOffline
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return session.ErrOffline
	}

	return goerrors.Wrap(err, goerrors.CategoryOperation, "Authentication failed").
		WithTextCode(session.TextCodeUnknownFailure)
}

// classifyStatus maps an HTTP error status into the session taxonomy. Unknown
// statuses fall back to the generic kind carrying the backend's message when
// it sent one.
func classifyStatus(status int, message, retryAfter string) *goerrors.Error {
	switch {
	case status == http.StatusUnauthorized:
		return session.ErrInvalidCredentials
	case status == http.StatusTooManyRequests:
		metadata := map[string]any{"status": status}
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			metadata["retry_after_seconds"] = seconds
		}
		return session.ErrRateLimited.WithMetadata(metadata)
	case status >= http.StatusInternalServerError:
		return session.ErrServerError.WithMetadata(map[string]any{"status": status})
	}

	if message == "" {
		message = "Authentication failed"
	}

	return goerrors.New(message, goerrors.CategoryInternal).
		WithTextCode(session.TextCodeUnknownFailure).
		WithMetadata(map[string]any{"status": status})
}
