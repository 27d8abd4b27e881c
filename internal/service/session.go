package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/internal/gate"
	"github.com/utafrali/shopease/internal/repository"
	"github.com/utafrali/shopease/pkg/async"
	"github.com/utafrali/shopease/pkg/middleware"
)

// IdentitySource reports who is calling. Ok(nil) means nobody is signed in.
type IdentitySource interface {
	Identity(ctx context.Context) async.Result[*domain.Identity]
}

// RoleSource reports whether an identity may open the admin console.
type RoleSource interface {
	IsAdmin(ctx context.Context, id *domain.Identity) async.Result[bool]
}

// ClaimsIdentity reads the identity from token claims attached by
// middleware.Authenticate.
type ClaimsIdentity struct{}

func (ClaimsIdentity) Identity(ctx context.Context) async.Result[*domain.Identity] {
	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok || claims.UserID == "" {
		return async.Ok[*domain.Identity](nil)
	}
	return async.Ok(&domain.Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	})
}

// UserRoleSource re-reads the role from the user store so a revoked admin
// loses access before the token expires. A lookup that runs past timeout
// reports Pending instead of a verdict.
type UserRoleSource struct {
	users   repository.UserRepository
	timeout time.Duration
}

// NewUserRoleSource creates a role source. A zero timeout disables it.
func NewUserRoleSource(users repository.UserRepository, timeout time.Duration) *UserRoleSource {
	return &UserRoleSource{users: users, timeout: timeout}
}

func (s *UserRoleSource) IsAdmin(ctx context.Context, id *domain.Identity) async.Result[bool] {
	if id == nil {
		return async.Ok(false)
	}

	lookupCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	user, err := s.users.GetByID(lookupCtx, id.UserID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return async.Pending[bool]()
		}
		return async.Err[bool](err)
	}
	return async.Ok(user.IsAdmin())
}

// SessionResolver turns collaborator results into gate states. Failures
// resolve to Anonymous or Denied; only Pending keeps a decision open.
type SessionResolver struct {
	identities IdentitySource
	roles      RoleSource
	gate       *gate.Gate
	logger     *slog.Logger
}

// NewSessionResolver creates a session resolver.
func NewSessionResolver(identities IdentitySource, roles RoleSource, g *gate.Gate, logger *slog.Logger) *SessionResolver {
	return &SessionResolver{
		identities: identities,
		roles:      roles,
		gate:       g,
		logger:     logger,
	}
}

// Resolve builds the gate request for path. The role is looked up only for
// admin views.
func (r *SessionResolver) Resolve(ctx context.Context, path string) (gate.Request, *domain.Identity) {
	req := gate.Request{Path: path}

	identity := r.identities.Identity(ctx)
	var id *domain.Identity
	switch identity.State() {
	case async.StatePending:
		req.Auth = gate.AuthPending
	case async.StateErr:
		r.logger.WarnContext(ctx, "identity lookup failed, treating caller as anonymous",
			slog.String("error", identity.Err().Error()),
		)
		req.Auth = gate.Anonymous
	default:
		id, _ = identity.Value()
		if id == nil {
			req.Auth = gate.Anonymous
		} else {
			req.Auth = gate.Authenticated
		}
	}

	if req.Auth != gate.Authenticated || gate.Classify(path) != gate.Admin {
		return req, id
	}

	admin := r.roles.IsAdmin(ctx, id)
	switch admin.State() {
	case async.StatePending:
		req.Authorization = gate.AuthorizationPending
	case async.StateErr:
		r.logger.WarnContext(ctx, "role lookup failed, denying admin access",
			slog.String("user_id", id.UserID),
			slog.String("error", admin.Err().Error()),
		)
		req.Authorization = gate.Denied
	default:
		if ok, _ := admin.Value(); ok {
			req.Authorization = gate.Granted
		} else {
			req.Authorization = gate.Denied
		}
	}
	return req, id
}

// Navigate resolves the caller and evaluates path for the session.
func (r *SessionResolver) Navigate(ctx context.Context, sessionID, path string) (gate.Decision, *domain.Identity) {
	req, id := r.Resolve(ctx, path)
	decision, err := r.gate.Navigate(ctx, sessionID, req)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to remember login target",
			slog.String("session_id", sessionID),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
	return decision, id
}
