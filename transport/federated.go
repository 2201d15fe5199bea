package transport

import (
	"context"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pushercoin/go-session"
)

// ExchangeIdentityToken forwards an opaque federated identity credential to
// the backend and maps the response into the same shape as a password login.
func (c *Client) ExchangeIdentityToken(ctx context.Context, idToken string) (*session.AuthResult, error) {
	if err := requireFields(map[string]string{"id_token": idToken}); err != nil {
		return nil, err
	}

	payload := map[string]string{"id_token": idToken}

	status, body, _, err := c.do(ctx, classAPI, c.apiBase, "/google-auth/authentication", payload, c.bearer())
	if err != nil {
		return nil, err
	}

	if status >= http.StatusBadRequest {
		return nil, federatedError(status, extractMessage(body))
	}

	var resp tokenResponse
	if err := decodeBody(body, &resp); err != nil {
		return nil, err
	}

	result, err := resp.authResult()
	if err != nil {
		return nil, err
	}

	// Federated responses may omit the nicename and display name; fall back
	// to the email so the subject is always presentable.
	if result.Subject.Username == "" {
		result.Subject.Username = result.Subject.Email
	}
	if result.Subject.DisplayName == "" {
		result.Subject.DisplayName = result.Subject.Email
	}

	return result, nil
}

func federatedError(status int, message string) *goerrors.Error {
	metadata := map[string]any{"status": status}

	switch {
	case status == http.StatusBadRequest:
		return goerrors.New("Invalid Google token", goerrors.CategoryAuth).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(metadata)
	case status == http.StatusUnauthorized:
		return goerrors.New("Google authentication failed", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithMetadata(metadata)
	case status == http.StatusForbidden:
		return goerrors.New("Account access denied", goerrors.CategoryAuthz).
			WithCode(goerrors.CodeForbidden).
			WithMetadata(metadata)
	case status >= http.StatusInternalServerError:
		return session.ErrServerError.WithMetadata(metadata)
	}

	if message == "" {
		message = "Google authentication failed"
	}
	return goerrors.New(message, goerrors.CategoryAuth).WithMetadata(metadata)
}
