// Package session manages the client side of the rooms/chat product's
// bearer-credential lifecycle: acquiring, persisting, validating, refreshing,
// and invalidating a session against the remote REST backend, plus gating
// navigation on session state.
//
// Session lifecycle:
//   - Manager is the explicitly constructed session context. It restores a
//     persisted snapshot once per process, drives the
//     unauthenticated/authenticating/authenticated/error state machine, and
//     writes every credential change through to its snapshot Store so memory
//     and storage never disagree after a completed call.
//   - Transports classify every network failure into the error taxonomy in
//     this package and raise an invalidation signal when the general API
//     rejects a credential. The manager subscribes that signal at
//     construction and tears the session down exactly once per signal.
//
// Navigation:
//   - ResolveNavigation is a pure function of (route metadata, status). Guard
//     wraps it with the wait-for-restore step and a go-router middleware
//     adapter so protected and guest-only routes redirect consistently.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter describing login, logout,
//     refresh, restore, and invalidation events. Sinks run best-effort
//     (errors are logged) so forwarding to a queue never blocks the session.
package session
