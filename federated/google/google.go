// Package google implements the federated.Prompter capability for Google
// sign-in: OIDC discovery, an auth-code flow with a loopback callback, and
// local id_token verification before the raw token is handed back for the
// backend exchange.
package google

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/pushercoin/go-session"
	"github.com/pushercoin/go-session/federated"
	"golang.org/x/oauth2"
)

const defaultIssuerURL = "https://accounts.google.com"

// Config holds Google sign-in configuration.
type Config struct {
	ClientID     string
	ClientSecret string

	// IssuerURL overrides the OIDC issuer, mainly for tests.
	IssuerURL string

	// ListenAddr is where the loopback callback listens. Defaults to an
	// ephemeral localhost port.
	ListenAddr string

	Scopes []string

	// OpenURL presents the consent URL to the user, typically by opening a
	// browser. Best effort; failures are logged and the flow keeps waiting
	// for the callback.
	OpenURL func(url string) error

	HTTPClient *http.Client
}

// Prompter implements federated.Prompter for Google.
type Prompter struct {
	cfg    Config
	logger session.Logger

	mu          sync.Mutex
	provider    *oidc.Provider
	verifier    *oidc.IDTokenVerifier
	oauth       *oauth2.Config
	listener    net.Listener
	forceSelect bool
}

var _ federated.Prompter = (*Prompter)(nil)

// Option customizes prompter construction.
type Option func(*Prompter)

func WithLogger(logger session.Logger) Option {
	return func(p *Prompter) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Google prompter. Discovery is deferred to Ready.
func New(cfg Config, opts ...Option) *Prompter {
	if cfg.IssuerURL == "" {
		cfg.IssuerURL = defaultIssuerURL
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	p := &Prompter{
		cfg:    cfg,
		logger: session.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// Ready performs OIDC discovery on first call and reports whether the
// provider can prompt. Subsequent calls are cheap.
func (p *Prompter) Ready(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.provider != nil {
		return nil
	}

	if p.cfg.ClientID == "" {
		return goerrors.New("google client id is not configured", goerrors.CategoryValidation)
	}

	if p.cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, p.cfg.HTTPClient)
	}

	provider, err := oidc.NewProvider(ctx, p.cfg.IssuerURL)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "google oidc discovery failed")
	}

	p.provider = provider
	p.verifier = provider.Verifier(&oidc.Config{ClientID: p.cfg.ClientID})
	p.oauth = &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		Scopes:       p.cfg.Scopes,
	}

	return nil
}

type callbackResult struct {
	code string
	err  error
}

// Prompt runs the auth-code flow: serve a loopback callback, hand the
// consent URL to the user, exchange the code, verify the id_token, and
// return the raw token for the backend exchange.
func (p *Prompter) Prompt(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.provider == nil {
		p.mu.Unlock()
		return "", goerrors.New("google provider is not initialized", goerrors.CategoryOperation)
	}
	oauthCfg := *p.oauth
	verifier := p.verifier
	forceSelect := p.forceSelect
	p.mu.Unlock()

	listener, err := net.Listen("tcp", p.cfg.ListenAddr)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open callback listener")
	}

	p.mu.Lock()
	p.listener = listener
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.listener = nil
		p.mu.Unlock()
	}()

	oauthCfg.RedirectURL = fmt.Sprintf("http://%s/callback", listener.Addr().String())
	state := uuid.NewString()
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case query.Get("state") != state:
			results <- callbackResult{err: goerrors.New("oauth state mismatch", goerrors.CategoryAuth)}
			http.Error(w, "state mismatch", http.StatusBadRequest)
		case query.Get("error") != "":
			results <- callbackResult{err: federated.ErrPromptDismissed.
				WithMetadata(map[string]any{"error": query.Get("error")})}
			fmt.Fprintln(w, "Sign-in cancelled. You can close this window.")
		default:
			results <- callbackResult{code: query.Get("code")}
			fmt.Fprintln(w, "Sign-in complete. You can close this window.")
		}
	})

	server := &http.Server{Handler: mux}
	serveDone := make(chan struct{})
	go func() {
		server.Serve(listener)
		close(serveDone)
	}()
	defer server.Close()

	var authOpts []oauth2.AuthCodeOption
	if forceSelect {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("prompt", "select_account"))
	}
	authURL := oauthCfg.AuthCodeURL(state, authOpts...)

	if p.cfg.OpenURL != nil {
		if err := p.cfg.OpenURL(authURL); err != nil {
			p.logger.Warn("failed to open consent url: %v", err)
		}
	} else {
		p.logger.Info("visit the following URL to sign in: %s", authURL)
	}

	var result callbackResult
	select {
	case <-ctx.Done():
		return "", goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "sign-in wait cancelled")
	case <-serveDone:
		// Cancel closed the listener; a callback that raced the close may
		// still have delivered a result.
		select {
		case result = <-results:
		default:
			return "", federated.ErrPromptDismissed.WithMetadata(map[string]any{
				"error": "cancelled",
			})
		}
	case result = <-results:
	}

	if result.err != nil {
		return "", result.err
	}
	if result.code == "" {
		return "", goerrors.New("callback carried no authorization code", goerrors.CategoryAuth)
	}

	if p.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.cfg.HTTPClient)
	}

	token, err := oauthCfg.Exchange(ctx, result.code)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryAuth, "google token exchange failed")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", nil
	}

	if _, err := verifier.Verify(ctx, rawIDToken); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryAuth, "google id_token verification failed")
	}

	return rawIDToken, nil
}

// DisableAutoSelect forces the account chooser on the next prompt.
func (p *Prompter) DisableAutoSelect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forceSelect = true
}

// Cancel aborts an in-flight prompt by closing the callback listener.
func (p *Prompter) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.listener != nil {
		p.listener.Close()
		p.listener = nil
	}
}
