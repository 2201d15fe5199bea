package transport

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/pushercoin/go-session"
)

// tokenResponse is the backend's credential payload, shared by login,
// code verification, and the federated exchange.
type tokenResponse struct {
	Token           string      `json:"token"`
	UserID          json.Number `json:"user_id"`
	UserNicename    string      `json:"user_nicename"`
	UserEmail       string      `json:"user_email"`
	UserDisplayName string      `json:"user_display_name"`
	TokenExpires    int64       `json:"token_expires,omitempty"`
}

func (r tokenResponse) authResult() (*session.AuthResult, error) {
	if r.Token == "" {
		return nil, session.ErrMalformedResponse.WithMetadata(map[string]any{
			"reason": "response missing token",
		})
	}

	expiry := session.CredentialExpiry(r.Token)
	if r.TokenExpires > 0 {
		t := time.Unix(r.TokenExpires, 0)
		expiry = &t
	}

	return &session.AuthResult{
		Credential: r.Token,
		Subject: &session.Identity{
			ID:          r.UserID.String(),
			Username:    r.UserNicename,
			Email:       r.UserEmail,
			DisplayName: r.UserDisplayName,
		},
		ExpiresAt: expiry,
	}, nil
}

// Login exchanges an identifier/secret pair for a credential. Inputs are
// checked before any network call.
func (c *Client) Login(ctx context.Context, identifier, secret string) (*session.AuthResult, error) {
	if err := requireFields(map[string]string{
		"identifier": identifier,
		"secret":     secret,
	}); err != nil {
		return nil, err
	}

	payload := map[string]string{
		"username": strings.TrimSpace(identifier),
		"password": secret,
	}

	var resp tokenResponse
	if err := c.post(ctx, classAuth, c.authBase, "/token", payload, "", &resp); err != nil {
		return nil, err
	}

	return resp.authResult()
}

// Validate performs a read-only credential check. It does not mutate any
// session state and never raises the invalidation signal; the caller decides
// what a rejection means.
func (c *Client) Validate(ctx context.Context, credential string) (*session.Identity, error) {
	if err := requireFields(map[string]string{"credential": credential}); err != nil {
		return nil, err
	}

	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.post(ctx, classAuth, c.authBase, "/token/validate", nil, credential, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, nil
	}

	subject := &session.Identity{}
	if err := json.Unmarshal(resp.Data, subject); err != nil {
		return nil, session.ErrMalformedResponse.WithMetadata(map[string]any{
			"reason": err.Error(),
		})
	}

	return subject, nil
}

// Refresh exchanges the current credential for a replacement one.
func (c *Client) Refresh(ctx context.Context, credential string) (*session.RefreshResult, error) {
	if err := requireFields(map[string]string{"credential": credential}); err != nil {
		return nil, err
	}

	var resp struct {
		Token        string `json:"token"`
		TokenExpires int64  `json:"token_expires,omitempty"`
	}
	if err := c.post(ctx, classAuth, c.authBase, "/token/refresh", nil, credential, &resp); err != nil {
		return nil, err
	}

	if resp.Token == "" {
		return nil, session.ErrMalformedResponse.WithMetadata(map[string]any{
			"reason": "refresh response missing token",
		})
	}

	expiry := session.CredentialExpiry(resp.Token)
	if resp.TokenExpires > 0 {
		t := time.Unix(resp.TokenExpires, 0)
		expiry = &t
	}

	return &session.RefreshResult{Credential: resp.Token, ExpiresAt: expiry}, nil
}

// requireFields fails fast with a validation error when any input is empty.
func requireFields(fields map[string]string) error {
	rules := validation.Errors{}
	for name, value := range fields {
		rules[name] = validation.Validate(value, validation.Required)
	}

	if err := rules.Filter(); err != nil {
		return session.ErrValidationFailed.WithMetadata(map[string]any{
			"fields": err.Error(),
		})
	}

	return nil
}
