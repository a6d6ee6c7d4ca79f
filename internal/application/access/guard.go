package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-push-dispatch/internal/domain"
	jwtinfra "github.com/go-push-dispatch/internal/infrastructure/jwt"
)

type TokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// RoleLookup returns the stored role of a user, or domain.ErrNotFound.
type RoleLookup interface {
	Role(ctx context.Context, userID string) (string, error)
}

// Guard decides whether a caller may broadcast.
type Guard interface {
	// Authorize returns the caller's user id when the bearer token is valid
	// and the caller holds the admin role.
	Authorize(ctx context.Context, authHeader string) (string, error)
}

type guard struct {
	verifier TokenVerifier
	roles    RoleLookup
	logger   *slog.Logger
}

// NewGuard builds a Guard. A nil verifier rejects every caller.
func NewGuard(verifier TokenVerifier, roles RoleLookup, logger *slog.Logger) Guard {
	return &guard{verifier: verifier, roles: roles, logger: logger.With("component", "access_guard")}
}

func (g *guard) Authorize(ctx context.Context, authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("missing or invalid authorization header: %w", domain.ErrUnauthorized)
	}
	if g.verifier == nil {
		return "", fmt.Errorf("token verification not configured: %w", domain.ErrUnauthorized)
	}
	claims, err := g.verifier.Verify(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		g.logger.Debug("bearer rejected", "err", err)
		return "", fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}

	// Roles come from the users table, never from the token.
	role, err := g.roles.Role(ctx, claims.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("unknown caller %s: %w", claims.UserID, domain.ErrForbidden)
	}
	if err != nil {
		return "", fmt.Errorf("look up caller role: %w", err)
	}
	if role != domain.RoleAdmin {
		g.logger.Info("non-admin broadcast attempt", "user_id", claims.UserID, "role", role)
		return "", fmt.Errorf("admin role required: %w", domain.ErrForbidden)
	}
	return claims.UserID, nil
}
