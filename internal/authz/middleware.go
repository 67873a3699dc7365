package authz

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/pulsefit/pulsefit/internal/shared"
)

// GymDirectory answers the tenant-side questions a guard needs. Implemented
// by the gyms service.
type GymDirectory interface {
	CountForUser(ctx context.Context, userID uuid.UUID) (int, error)
	WritesSuspended(ctx context.Context, gymID uuid.UUID) (bool, error)
}

// DecisionRecorder counts guard outcomes for operator visibility.
type DecisionRecorder interface {
	RecordDecision(state GuardState, reason DenyReason)
}

// Paths is the redirect contract with the UI layer: each denial class maps to
// a distinct surface so the user is never shown an ambiguous failure.
type Paths struct {
	Login      string
	Onboarding string
	SelectGym  string
	Forbidden  string
}

// DefaultPaths returns the standard redirect targets.
func DefaultPaths() Paths {
	return Paths{
		Login:      "/auth/login",
		Onboarding: "/onboarding",
		SelectGym:  "/gyms/select",
		Forbidden:  "/forbidden",
	}
}

// Middleware wires route guards for HTTP handlers.
type Middleware struct {
	Resolver *Resolver
	Gate     *PlatformGate
	Gyms     GymDirectory
	Logger   *slog.Logger
	Metrics  DecisionRecorder
	Paths    Paths
}

// Require evaluates the requirement for the current principal and selected
// gym, redirecting per the decision. On grant the tenant session is placed in
// the request context.
func (m Middleware) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap, tenantSess, err := m.snapshot(r, req)
			if err != nil {
				// ResolutionFailed: fail closed as a permission denial.
				decision := denied(DenyPermission)
				m.record(decision)
				m.redirect(w, r, decision)
				return
			}
			decision := Evaluate(snap, req)
			m.record(decision)
			if !decision.Granted() {
				m.redirect(w, r, decision)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithTenantSession(r.Context(), tenantSess)))
		})
	}
}

// RequireAuthenticated only enforces that a principal is logged in. Used by
// routes that run before a gym is selected.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := m.currentPrincipal(r); !ok {
				m.record(Decision{State: StateUnauthenticated})
				http.Redirect(w, r, m.Paths.Login, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePlatform admits only platform-scoped super admins. Denials route to
// the forbidden surface, never to login or onboarding.
func (m Middleware) RequirePlatform() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := m.currentPrincipal(r)
			if !ok {
				m.record(Decision{State: StateUnauthenticated})
				http.Redirect(w, r, m.Paths.Login, http.StatusSeeOther)
				return
			}
			decision := m.Gate.Check(r.Context(), principal)
			m.record(decision)
			if !decision.Granted() {
				http.Redirect(w, r, m.Paths.Forbidden, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// snapshot assembles the resolved state the pure guard evaluates. All I/O
// happens here. A non-nil error means resolution failed and the caller must
// fail closed.
func (m Middleware) snapshot(r *http.Request, req Requirement) (Snapshot, *TenantSession, error) {
	ctx := r.Context()
	principal, ok := m.currentPrincipal(r)
	if !ok {
		return Snapshot{}, nil, nil
	}
	snap := Snapshot{Principal: &principal}

	gymID, selected := m.selectedGym(r)
	if !selected {
		count, err := m.Gyms.CountForUser(ctx, principal.ID)
		if err != nil {
			m.logError(r, "count gyms", err)
			return Snapshot{}, nil, err
		}
		snap.GymsAvailable = count
		return snap, nil, nil
	}

	tenantSess, err := m.Resolver.Resolve(ctx, principal, gymID)
	if err != nil {
		if IsNotFound(err) {
			// No assignment in the selected gym: treat the selection as void
			// and let the decision table route to selection/onboarding.
			count, cerr := m.Gyms.CountForUser(ctx, principal.ID)
			if cerr != nil {
				m.logError(r, "count gyms", cerr)
				return Snapshot{}, nil, cerr
			}
			snap.GymsAvailable = count
			return snap, nil, nil
		}
		m.logError(r, "resolve role", err)
		return Snapshot{}, nil, err
	}
	snap.Session = tenantSess

	if req.Permission.Write() {
		suspended, err := m.Gyms.WritesSuspended(ctx, gymID)
		if err != nil {
			m.logError(r, "writes suspended", err)
			return Snapshot{}, nil, err
		}
		snap.WritesSuspended = suspended
	}
	return snap, tenantSess, nil
}

func (m Middleware) currentPrincipal(r *http.Request) (Principal, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return Principal{}, false
	}
	id, err := uuid.Parse(sess.User())
	if err != nil {
		return Principal{}, false
	}
	return Principal{ID: id}, true
}

func (m Middleware) selectedGym(r *http.Request) (uuid.UUID, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(sess.ActiveGym())
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (m Middleware) redirect(w http.ResponseWriter, r *http.Request, decision Decision) {
	switch decision.State {
	case StateLoading:
		// Server-side auth resolution is synchronous; loading only surfaces
		// when a snapshot is built from an unresolved client state.
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	case StateUnauthenticated:
		http.Redirect(w, r, m.Paths.Login, http.StatusSeeOther)
	case StateNoTenant:
		http.Redirect(w, r, m.Paths.Onboarding, http.StatusSeeOther)
	case StateSelectGym:
		http.Redirect(w, r, m.Paths.SelectGym, http.StatusSeeOther)
	default:
		http.Redirect(w, r, m.Paths.Forbidden, http.StatusSeeOther)
	}
}

func (m Middleware) record(decision Decision) {
	if m.Metrics != nil {
		m.Metrics.RecordDecision(decision.State, decision.Reason)
	}
}

func (m Middleware) logError(r *http.Request, msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
}
