package transport

import (
	"context"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/pushercoin/go-session"
)

// verification codes are exactly six digits; anything else is rejected
// before a network call is issued.
var verificationCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// RequestVerification asks the backend to send a one-time code through the
// user's out-of-band channel.
func (c *Client) RequestVerification(ctx context.Context, identifier, secret string) error {
	if err := requireFields(map[string]string{
		"identifier": identifier,
		"secret":     secret,
	}); err != nil {
		return err
	}

	payload := map[string]string{
		"login":    identifier,
		"password": secret,
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.post(ctx, classAPI, c.apiBase, "/user/request-verification/", payload, "", &resp); err != nil {
		return err
	}

	if !resp.Success {
		message := resp.Message
		if message == "" {
			message = "Verification request failed"
		}
		return goerrors.New(message, goerrors.CategoryOperation).
			WithTextCode(session.TextCodeUnknownFailure)
	}

	return nil
}

// VerifyCode exchanges identifier, secret, and a six-digit code for a full
// session credential.
func (c *Client) VerifyCode(ctx context.Context, identifier, secret, code string) (*session.AuthResult, error) {
	if err := requireFields(map[string]string{
		"identifier": identifier,
		"secret":     secret,
	}); err != nil {
		return nil, err
	}

	if err := validation.Validate(code,
		validation.Required,
		validation.Match(verificationCodePattern),
	); err != nil {
		return nil, session.ErrValidationFailed.WithMetadata(map[string]any{
			"fields": "code must be exactly 6 digits",
		})
	}

	payload := map[string]string{
		"login":    identifier,
		"password": secret,
		"code":     code,
	}

	var resp tokenResponse
	if err := c.post(ctx, classAPI, c.apiBase, "/user/verify-code/", payload, "", &resp); err != nil {
		return nil, err
	}

	return resp.authResult()
}
