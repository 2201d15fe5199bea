// Package federated bridges a third-party identity provider's sign-in flow
// into the credential transport/session pipeline. The provider sits behind
// the Prompter capability interface so the flow stays testable without the
// real identity service.
package federated

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pushercoin/go-session"
)

const (
	TextCodeProviderUnavailable = "federated_provider_unavailable"
	TextCodePromptDismissed     = "federated_prompt_dismissed"
	TextCodeNoCredential        = "federated_no_credential"
)

// ErrProviderUnavailable is returned when the identity provider does not
// become ready within the initialization window.
var ErrProviderUnavailable = goerrors.New("identity provider is not available", goerrors.CategoryOperation).
	WithTextCode(TextCodeProviderUnavailable)

// ErrPromptDismissed is returned when the user dismisses the sign-in prompt.
var ErrPromptDismissed = goerrors.New("sign-in was dismissed", goerrors.CategoryAuth).
	WithTextCode(TextCodePromptDismissed)

// ErrNoCredential is returned when the prompt completes without producing an
// identity credential.
var ErrNoCredential = goerrors.New("no credential received from identity provider", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoCredential)

// Prompter is the capability surface of a third-party identity provider.
type Prompter interface {
	// Ready reports whether the provider is loaded and able to prompt.
	Ready(ctx context.Context) error

	// Prompt runs the provider's sign-in flow and resolves with an opaque
	// identity credential.
	Prompt(ctx context.Context) (string, error)

	// DisableAutoSelect turns off automatic re-sign-in. Best effort.
	DisableAutoSelect()

	// Cancel aborts an in-flight prompt. Best effort.
	Cancel()
}

// Exchanger forwards an identity credential to the backend's federated
// endpoint. Satisfied by transport.Client.
type Exchanger interface {
	ExchangeIdentityToken(ctx context.Context, idToken string) (*session.AuthResult, error)
}

// Adapter drives the prompt-then-exchange flow.
type Adapter struct {
	prompter  Prompter
	exchanger Exchanger
	logger    session.Logger

	pollInterval time.Duration
	readyTimeout time.Duration

	mu          sync.Mutex
	initialized bool
}

// AdapterOption customizes adapter construction.
type AdapterOption func(*Adapter)

// WithPollInterval sets how often readiness is probed during Initialize.
func WithPollInterval(interval time.Duration) AdapterOption {
	return func(a *Adapter) {
		if interval > 0 {
			a.pollInterval = interval
		}
	}
}

// WithReadyTimeout bounds how long Initialize waits for the provider.
func WithReadyTimeout(timeout time.Duration) AdapterOption {
	return func(a *Adapter) {
		if timeout > 0 {
			a.readyTimeout = timeout
		}
	}
}

func WithLogger(logger session.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter builds a federated sign-in adapter.
func NewAdapter(prompter Prompter, exchanger Exchanger, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		prompter:     prompter,
		exchanger:    exchanger,
		logger:       session.DefaultLogger(),
		pollInterval: 100 * time.Millisecond,
		readyTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// Initialize waits for the identity provider to become ready, polling at a
// fixed short interval with a bounded overall wait. Idempotent after the
// first success; concurrent calls before that each run their own poll, which
// is harmless.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	if a.initialized {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, a.readyTimeout)
	defer cancel()

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		err := a.prompter.Ready(ctx)
		if err == nil {
			a.mu.Lock()
			a.initialized = true
			a.mu.Unlock()
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			metadata := map[string]any{"timeout": a.readyTimeout.String()}
			if lastErr != nil {
				metadata["error"] = lastErr.Error()
			}
			return ErrProviderUnavailable.WithMetadata(metadata)
		case <-ticker.C:
		}
	}
}

// Initialized reports whether a previous Initialize succeeded.
func (a *Adapter) Initialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialized
}

// SignIn triggers the provider's prompt and resolves with the opaque
// identity credential. Initializes the provider first when needed.
func (a *Adapter) SignIn(ctx context.Context) (string, error) {
	if err := a.Initialize(ctx); err != nil {
		return "", err
	}

	credential, err := a.prompter.Prompt(ctx)
	if err != nil {
		var rich *goerrors.Error
		if goerrors.As(err, &rich) {
			return "", rich
		}
		return "", goerrors.Wrap(err, goerrors.CategoryAuth, "sign-in was dismissed").
			WithTextCode(TextCodePromptDismissed)
	}

	if credential == "" {
		return "", ErrNoCredential
	}

	return credential, nil
}

// Exchange forwards the identity credential to the backend's federated
// endpoint; the result has the same shape as a password login.
func (a *Adapter) Exchange(ctx context.Context, idToken string) (*session.AuthResult, error) {
	return a.exchanger.ExchangeIdentityToken(ctx, idToken)
}

// SignInAndExchange runs the complete federated flow.
func (a *Adapter) SignInAndExchange(ctx context.Context) (*session.AuthResult, error) {
	credential, err := a.SignIn(ctx)
	if err != nil {
		return nil, err
	}

	return a.Exchange(ctx, credential)
}

// DisableAutoSelect turns off the provider's automatic re-sign-in. No-op
// when the provider never became ready.
func (a *Adapter) DisableAutoSelect() {
	if !a.Initialized() {
		return
	}
	a.prompter.DisableAutoSelect()
}

// CancelPrompt aborts an in-flight prompt. No-op when the provider never
// became ready.
func (a *Adapter) CancelPrompt() {
	if !a.Initialized() {
		return
	}
	a.prompter.Cancel()
}
