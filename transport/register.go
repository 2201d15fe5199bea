package transport

import (
	"context"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
	"github.com/pushercoin/go-session"
)

// Registration is the sign-up payload.
type Registration struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Phone    string `json:"phone"`
	Password string `json:"password"`

	// PhoneRegion is the default region used to parse national phone
	// numbers. Not sent to the backend.
	PhoneRegion string `json:"-"`
}

// Validate checks the payload client-side before it is submitted.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Nickname, validation.Required, validation.Length(3, 50)),
		validation.Field(&r.Phone, validation.By(r.validPhone)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (r Registration) validPhone(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}

	region := r.PhoneRegion
	if region == "" {
		region = "US"
	}

	number, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return fmt.Errorf("must be a valid phone number")
	}
	if !phonenumbers.IsValidNumber(number) {
		return fmt.Errorf("must be a valid phone number")
	}

	return nil
}

// SignUp registers a new user. The success payload is opaque to the client;
// failures map to status-specific messages.
func (c *Client) SignUp(ctx context.Context, reg Registration) (map[string]any, error) {
	if err := reg.Validate(); err != nil {
		return nil, session.ErrValidationFailed.WithMetadata(map[string]any{
			"fields": err.Error(),
		})
	}

	status, payload, _, err := c.do(ctx, classAPI, c.apiBase, "/user/sign-up", reg, c.bearer())
	if err != nil {
		return nil, err
	}

	if status >= http.StatusBadRequest {
		return nil, registrationError(status, extractMessage(payload))
	}

	var result map[string]any
	if err := decodeBody(payload, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// registrationError maps sign-up failures to the messages the product shows.
func registrationError(status int, message string) *goerrors.Error {
	metadata := map[string]any{"status": status}

	switch status {
	case http.StatusBadRequest:
		if message == "" {
			message = "Invalid registration data. Please check your input."
		}
		return goerrors.New(message, goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(metadata)
	case http.StatusUnauthorized:
		return goerrors.New("Authentication failed. Please check your credentials.", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithMetadata(metadata)
	case http.StatusConflict:
		return goerrors.New("User already exists. Please try with different email or nickname.", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict).
			WithMetadata(metadata)
	case http.StatusUnprocessableEntity:
		if message == "" {
			message = "Validation failed. Please check your input data."
		}
		return goerrors.New(message, goerrors.CategoryValidation).
			WithTextCode(session.TextCodeValidationFailed).
			WithMetadata(metadata)
	case http.StatusInternalServerError:
		return session.ErrServerError.WithMetadata(metadata)
	}

	if message == "" {
		message = fmt.Sprintf("Registration failed with status %d.", status)
	}
	return goerrors.New(message, goerrors.CategoryInternal).WithMetadata(metadata)
}
