package session

import (
	"context"
	"net/url"
)

// Route describes a navigation target. RequiresAuth and RequiresGuest mirror
// the route metadata flags consumed by the guard; everything else about the
// route is opaque here.
type Route struct {
	Name          string
	Path          string
	RequiresAuth  bool
	RequiresGuest bool
}

// Decision is the resolved outcome of a navigation check.
type Decision struct {
	Allowed    bool
	RedirectTo string
	Reason     string
}

// ResolveNavigation is a pure function of the target route and the current
// session status:
//   - protected route, session not authenticated: redirect to sign-in with
//     the original path preserved as a query parameter
//   - guest-only route, session authenticated: redirect home
//   - otherwise the transition is allowed unchanged
func ResolveNavigation(target Route, status Status, cfg Config) Decision {
	if cfg == nil {
		cfg = SimpleConfig{}
	}

	authenticated := status == StatusAuthenticated

	if target.RequiresAuth && !authenticated {
		dest := cfg.GetSignInRoute()
		if target.Path != "" {
			query := url.Values{}
			query.Set(cfg.GetRedirectParam(), target.Path)
			dest += "?" + query.Encode()
		}
		return Decision{
			Allowed:    false,
			RedirectTo: dest,
			Reason:     "route requires authentication",
		}
	}

	if target.RequiresGuest && authenticated {
		return Decision{
			Allowed:    false,
			RedirectTo: cfg.GetHomeRoute(),
			Reason:     "guest route but session is authenticated",
		}
	}

	return Decision{Allowed: true}
}

// Guard evaluates navigation against the manager's session state. The first
// check blocks until the manager's restore-from-storage step has settled, so
// navigation never resolves against a not-yet-restored session.
type Guard struct {
	manager *Manager
	cfg     Config
	logger  Logger
}

// GuardOption customizes guard construction.
type GuardOption func(*Guard)

func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGuard builds a navigation guard around the given manager.
func NewGuard(manager *Manager, cfg Config, opts ...GuardOption) *Guard {
	if cfg == nil {
		cfg = SimpleConfig{}
	}

	g := &Guard{
		manager: manager,
		cfg:     cfg,
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Check resolves a navigation to the target route. It triggers session
// initialization when it has not started yet and waits for it to settle.
func (g *Guard) Check(ctx context.Context, target Route) (Decision, error) {
	if err := g.manager.Initialize(ctx); err != nil {
		return Decision{}, err
	}

	status := g.manager.Status()
	decision := ResolveNavigation(target, status, g.cfg)

	if !decision.Allowed {
		g.logger.Debug("navigation redirected: route=%s status=%s dest=%s reason=%s",
			target.Name, status, decision.RedirectTo, decision.Reason)
	}

	return decision, nil
}
