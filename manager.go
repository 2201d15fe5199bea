package session

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Session holds the current credential and subject. A session is
// authenticated only when both are present.
type Session struct {
	Credential string
	Subject    *Identity
	ExpiresAt  *time.Time
}

// Authenticated reports whether the session carries a credential and subject.
func (s Session) Authenticated() bool {
	return s.Credential != "" && s.Subject != nil
}

// Manager owns the session lifecycle: restore, login, refresh, logout, and
// invalidation. It is constructed explicitly and injected into collaborators
// (guard, views); there is no ambient singleton. All methods are safe for
// concurrent use, though callers are expected to serialize UI-triggered
// mutations; only Initialize coalesces concurrent invocations.
type Manager struct {
	mu        sync.Mutex
	transport CredentialTransport
	store     Store
	cfg       Config
	logger    Logger
	sink      ActivitySink
	now       func() time.Time

	status  Status
	session Session
	lastErr *goerrors.Error

	initStarted bool
	ready       chan struct{}

	unsubscribe func()
	onRedirect  func(route string)
}

// ManagerOption customizes manager construction.
type ManagerOption func(*Manager)

// WithStore sets the snapshot store. Defaults to an in-memory store.
func WithStore(store Store) ManagerOption {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}

func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish session events.
func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(m *Manager) {
		m.sink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithRedirectHandler registers the navigation callback fired by
// Logout(true). The handler receives the sign-in route.
func WithRedirectHandler(fn func(route string)) ManagerOption {
	return func(m *Manager) {
		m.onRedirect = fn
	}
}

// NewManager builds a session manager around the given transport. When the
// transport is an InvalidationSource the manager subscribes its logout path
// at construction; Close removes the subscription.
func NewManager(transport CredentialTransport, cfg Config, opts ...ManagerOption) *Manager {
	if cfg == nil {
		cfg = SimpleConfig{}
	}

	m := &Manager{
		transport: transport,
		store:     NewMemoryStore(),
		cfg:       cfg,
		logger:    defLogger{},
		sink:      noopActivitySink{},
		now:       time.Now,
		status:    StatusUnauthenticated,
		ready:     make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if source, ok := transport.(InvalidationSource); ok {
		m.unsubscribe = source.OnInvalidate(m.handleInvalidation)
	}

	return m
}

// Close removes the invalidation subscription. The manager remains usable
// but no longer reacts to transport-raised invalidation signals.
func (m *Manager) Close() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Status returns the current authentication status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Session returns a copy of the current session.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := m.session
	if m.session.Subject != nil {
		subject := *m.session.Subject
		copied.Subject = &subject
	}
	return copied
}

// Authenticated reports whether the session is fully authenticated.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == StatusAuthenticated && m.session.Authenticated()
}

// LastError returns the classified error recorded by the most recent failed
// mutation, for UI display. Cleared on logout and successful login.
func (m *Manager) LastError() *goerrors.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Initialize restores a persisted snapshot and validates its credential
// against the backend. It runs the restore step at most once per manager;
// concurrent and repeated calls coalesce into waiting for the first run to
// settle.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.initStarted {
		m.mu.Unlock()
		return m.WaitReady(ctx)
	}
	m.initStarted = true
	m.mu.Unlock()

	m.restore(ctx)
	close(m.ready)

	return nil
}

// WaitReady blocks until Initialize has settled or the context is done. It
// does not trigger initialization by itself.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "session initialization wait cancelled")
	}
}

// Ready reports whether Initialize has settled.
func (m *Manager) Ready() bool {
	select {
	case <-m.ready:
		return true
	default:
		return false
	}
}

func (m *Manager) restore(ctx context.Context) {
	snapshot, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("snapshot restore failed: %v", err)
		return
	}

	if !snapshot.Valid() {
		return
	}

	m.mu.Lock()
	m.status = StatusAuthenticating
	m.mu.Unlock()

	subject, err := m.transport.Validate(ctx, snapshot.Credential)
	if err != nil {
		m.logger.Info("persisted credential rejected, clearing session: %v", err)
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			m.logger.Warn("snapshot clear failed: %v", clearErr)
		}

		m.mu.Lock()
		m.status = StatusUnauthenticated
		m.session = Session{}
		m.mu.Unlock()

		m.recordActivity(ctx, ActivityEvent{
			EventType:  ActivityEventRestoreFailure,
			FromStatus: StatusAuthenticating,
			ToStatus:   StatusUnauthenticated,
			Metadata:   map[string]any{"error": ErrorMessage(err)},
		})
		return
	}

	if subject == nil {
		subject = snapshot.Subject
	}

	m.mu.Lock()
	m.status = StatusAuthenticated
	m.session = Session{
		Credential: snapshot.Credential,
		Subject:    subject,
		ExpiresAt:  CredentialExpiry(snapshot.Credential),
	}
	m.mu.Unlock()

	m.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventRestoreSuccess,
		UserID:     subject.ID,
		FromStatus: StatusAuthenticating,
		ToStatus:   StatusAuthenticated,
	})
}

// Login exchanges an identifier/secret pair for a session. Allowed from the
// Unauthenticated and Error states only.
func (m *Manager) Login(ctx context.Context, identifier, secret string) error {
	if err := m.begin(); err != nil {
		return err
	}

	result, err := m.transport.Login(ctx, identifier, secret)
	if err != nil {
		return m.fail(ctx, ActivityEventLoginFailure, err)
	}

	return m.complete(ctx, result)
}

// LoginWithResult installs a pre-validated backend response, e.g. the outcome
// of a federated exchange. Same contract as Login.
func (m *Manager) LoginWithResult(ctx context.Context, result *AuthResult) error {
	if err := m.begin(); err != nil {
		return err
	}

	return m.complete(ctx, result)
}

// RequestVerification asks the backend to deliver a one-time code through the
// user's out-of-band channel. No session state changes.
func (m *Manager) RequestVerification(ctx context.Context, identifier, secret string) error {
	return m.transport.RequestVerification(ctx, identifier, secret)
}

// LoginWithCode completes the two-step verification variant of login.
func (m *Manager) LoginWithCode(ctx context.Context, identifier, secret, code string) error {
	if err := m.begin(); err != nil {
		return err
	}

	result, err := m.transport.VerifyCode(ctx, identifier, secret, code)
	if err != nil {
		return m.fail(ctx, ActivityEventLoginFailure, err)
	}

	return m.complete(ctx, result)
}

// Refresh replaces the current credential and re-persists the snapshot.
// Refresh failure is always fatal to the session: there is no
// retry-with-old-credential path, so the manager logs out without redirect.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.status != StatusAuthenticated {
		from := m.status
		m.mu.Unlock()
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from":   from,
			"reason": "refresh requires an authenticated session",
		})
	}
	credential := m.session.Credential
	userID := ""
	if m.session.Subject != nil {
		userID = m.session.Subject.ID
	}
	m.mu.Unlock()

	result, err := m.transport.Refresh(ctx, credential)
	if err != nil {
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventRefreshFailure,
			UserID:    userID,
			Metadata:  map[string]any{"error": ErrorMessage(err)},
		})
		m.Logout(false)
		return m.classify(err)
	}

	if result == nil || result.Credential == "" {
		err := ErrMalformedResponse.WithMetadata(map[string]any{
			"reason": "refresh response missing token",
		})
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventRefreshFailure,
			UserID:    userID,
			Metadata:  map[string]any{"error": err.Message},
		})
		m.Logout(false)
		return err
	}

	expiry := result.ExpiresAt
	if expiry == nil {
		expiry = CredentialExpiry(result.Credential)
	}

	m.mu.Lock()
	// An invalidation signal may have torn the session down while the
	// request was in flight; the replacement credential is then dropped.
	if m.status != StatusAuthenticated {
		m.mu.Unlock()
		return nil
	}
	m.session.Credential = result.Credential
	m.session.ExpiresAt = expiry
	snapshot := &Snapshot{Credential: m.session.Credential, Subject: m.session.Subject}
	if err := m.store.Save(ctx, snapshot); err != nil {
		m.logger.Warn("snapshot save failed: %v", err)
	}
	m.mu.Unlock()

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRefreshSuccess,
		UserID:    userID,
	})

	return nil
}

// Logout drops the session from any state. It always clears both the
// in-memory session and the persisted snapshot, and never fails; storage
// errors are logged. When redirect is true the registered redirect handler
// receives the sign-in route.
func (m *Manager) Logout(redirect bool) {
	ctx := context.Background()

	m.mu.Lock()
	from := m.status
	userID := ""
	if m.session.Subject != nil {
		userID = m.session.Subject.ID
	}
	m.session = Session{}
	m.status = StatusUnauthenticated
	m.lastErr = nil
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("snapshot clear failed: %v", err)
	}
	onRedirect := m.onRedirect
	m.mu.Unlock()

	m.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventLogout,
		UserID:     userID,
		FromStatus: from,
		ToStatus:   StatusUnauthenticated,
		Metadata:   map[string]any{"redirect": redirect},
	})

	if redirect && onRedirect != nil {
		onRedirect(m.cfg.GetSignInRoute())
	}
}

// handleInvalidation is the transport-raised invalidation path. Each signal
// results in exactly one logout without redirect; when it races an in-flight
// login the extra teardown clears already-empty state, which is harmless.
func (m *Manager) handleInvalidation() {
	m.recordActivity(context.Background(), ActivityEvent{
		EventType: ActivityEventSessionInvalidated,
	})
	m.Logout(false)
}

func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !canTransition(m.status, StatusAuthenticating) {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": m.status,
			"to":   StatusAuthenticating,
		})
	}

	m.status = StatusAuthenticating
	m.lastErr = nil
	return nil
}

func (m *Manager) fail(ctx context.Context, eventType ActivityEventType, err error) error {
	classified := m.classify(err)

	m.mu.Lock()
	m.session = Session{}
	m.status = StatusError
	m.lastErr = classified
	if clearErr := m.store.Clear(ctx); clearErr != nil {
		m.logger.Warn("snapshot clear failed: %v", clearErr)
	}
	m.mu.Unlock()

	m.recordActivity(ctx, ActivityEvent{
		EventType:  eventType,
		FromStatus: StatusAuthenticating,
		ToStatus:   StatusError,
		Metadata:   map[string]any{"error": classified.Message, "kind": classified.TextCode},
	})

	return classified
}

func (m *Manager) complete(ctx context.Context, result *AuthResult) error {
	if result == nil || result.Credential == "" || result.Subject == nil {
		return m.fail(ctx, ActivityEventLoginFailure, ErrMalformedResponse.WithMetadata(map[string]any{
			"reason": "auth result missing token or user",
		}))
	}

	expiry := result.ExpiresAt
	if expiry == nil {
		expiry = CredentialExpiry(result.Credential)
	}

	m.mu.Lock()
	m.status = StatusAuthenticated
	m.session = Session{
		Credential: result.Credential,
		Subject:    result.Subject,
		ExpiresAt:  expiry,
	}
	m.lastErr = nil
	snapshot := &Snapshot{Credential: result.Credential, Subject: result.Subject}
	if err := m.store.Save(ctx, snapshot); err != nil {
		m.logger.Warn("snapshot save failed: %v", err)
	}
	m.mu.Unlock()

	m.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		UserID:     result.Subject.ID,
		FromStatus: StatusAuthenticating,
		ToStatus:   StatusAuthenticated,
	})

	return nil
}

func (m *Manager) classify(err error) *goerrors.Error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "Authentication failed").
		WithTextCode(TextCodeUnknownFailure)
}

func (m *Manager) recordActivity(ctx context.Context, event ActivityEvent) {
	ensureEventID(&event)
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}

	sink := normalizeActivitySink(m.sink)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}
