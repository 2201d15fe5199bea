// Package transport wraps the outbound REST calls that exchange, check, and
// replace bearer credentials against the rooms/chat backend, and classifies
// every failure into the session error taxonomy.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pushercoin/go-session"
)

// endpointClass separates auth endpoints, whose 401s are classified but never
// raise the invalidation signal, from general API endpoints.
type endpointClass int

const (
	classAuth endpointClass = iota
	classAPI
)

// CredentialSource yields the current bearer credential, or "" when the
// session is unauthenticated.
type CredentialSource func() string

// Client performs the network calls to the authentication backend and the
// general API backend. It implements session.CredentialTransport and
// session.InvalidationSource.
type Client struct {
	http     *http.Client
	apiBase  string
	authBase string

	credentials CredentialSource
	store       session.Store
	logger      session.Logger

	mu           sync.Mutex
	nextObserver int
	observers    map[int]func()
}

var _ session.CredentialTransport = (*Client)(nil)
var _ session.InvalidationSource = (*Client)(nil)

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. The default carries
// the configured request timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithCredentialSource wires the source of the current bearer credential;
// general API requests attach it when present.
func WithCredentialSource(source CredentialSource) Option {
	return func(c *Client) {
		c.credentials = source
	}
}

// WithSnapshotStore lets the client clear persisted credentials directly when
// the general API rejects them. Clearing is idempotent, so concurrent failing
// requests are safe.
func WithSnapshotStore(store session.Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

func WithLogger(logger session.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a transport client from the given configuration.
func New(cfg session.Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = session.SimpleConfig{}
	}

	c := &Client{
		http:      &http.Client{Timeout: cfg.GetRequestTimeout()},
		apiBase:   strings.TrimRight(cfg.GetAPIBaseURL(), "/"),
		authBase:  strings.TrimRight(cfg.GetAuthBaseURL(), "/"),
		logger:    session.DefaultLogger(),
		observers: map[int]func(){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// OnInvalidate registers an observer for the invalidation signal. The
// returned function removes it.
func (c *Client) OnInvalidate(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Client) bearer() string {
	if c.credentials == nil {
		return ""
	}
	return c.credentials()
}

// Post issues an authenticated JSON POST against the general API, attaching
// the current credential when present. Room/chat callers use this for their
// CRUD glue; failures come back classified.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.post(ctx, classAPI, c.apiBase, path, body, c.bearer(), out)
}

// Get issues an authenticated GET against the general API.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	status, payload, retryAfter, err := c.roundTrip(ctx, classAPI, http.MethodGet, c.apiBase+path, nil, c.bearer())
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return classifyStatus(status, extractMessage(payload), retryAfter)
	}
	return decodeBody(payload, out)
}

// post issues a JSON POST, maps error statuses through the default
// classifier, and decodes a success payload into out when provided.
func (c *Client) post(ctx context.Context, class endpointClass, base, path string, body any, bearer string, out any) error {
	status, payload, retryAfter, err := c.do(ctx, class, base, path, body, bearer)
	if err != nil {
		return err
	}

	if status >= http.StatusBadRequest {
		return classifyStatus(status, extractMessage(payload), retryAfter)
	}

	return decodeBody(payload, out)
}

// do performs a JSON POST and handles the invalidation side effect.
// Transport-level failures are returned classified; HTTP error statuses are
// left to the caller to map.
func (c *Client) do(ctx context.Context, class endpointClass, base, path string, body any, bearer string) (int, []byte, string, error) {
	return c.roundTrip(ctx, class, http.MethodPost, base+path, body, bearer)
}

// roundTrip issues the request. A 401 from the general API on a request that
// carried a credential clears the snapshot store and notifies every observer,
// once per failing request.
func (c *Client) roundTrip(ctx context.Context, class endpointClass, method, url string, body any, bearer string) (int, []byte, string, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, "", session.ErrValidationFailed.WithMetadata(map[string]any{
				"reason": "request body not serializable",
			})
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, "", session.ErrValidationFailed.WithMetadata(map[string]any{
			"reason": err.Error(),
		})
	}

	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, "", classifyTransportError(err)
	}

	if resp.StatusCode == http.StatusUnauthorized && class == classAPI && bearer != "" {
		c.invalidate(ctx)
	}

	return resp.StatusCode, payload, resp.Header.Get("Retry-After"), nil
}

func (c *Client) invalidate(ctx context.Context) {
	if c.store != nil {
		if err := c.store.Clear(ctx); err != nil {
			c.logger.Warn("snapshot clear on invalidation failed: %v", err)
		}
	}

	c.mu.Lock()
	observers := make([]func(), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		if fn != nil {
			fn()
		}
	}
}

func decodeBody(payload []byte, out any) error {
	if out == nil || len(payload) == 0 {
		return nil
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return session.ErrMalformedResponse.WithMetadata(map[string]any{
			"reason": err.Error(),
		})
	}

	return nil
}

// extractMessage pulls the backend's human-readable message out of an error
// payload without exposing raw transport internals.
func extractMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.Message
}
