package authgate

import (
	"context"
	"fmt"
)

// PermissionPolicy decides whether an identity holds a permission. Policies
// must not perform network I/O; they are evaluated on every guarded request.
type PermissionPolicy interface {
	Name() string
	Allowed(ctx context.Context, id Identity, permission string) (bool, error)
}

// PolicyFunc adapts a function into a named [PermissionPolicy].
func PolicyFunc(name string, fn func(ctx context.Context, id Identity, permission string) (bool, error)) PermissionPolicy {
	return funcPolicy{name: name, fn: fn}
}

type funcPolicy struct {
	name string
	fn   func(context.Context, Identity, string) (bool, error)
}

func (p funcPolicy) Name() string { return p.name }

func (p funcPolicy) Allowed(ctx context.Context, id Identity, permission string) (bool, error) {
	return p.fn(ctx, id, permission)
}

// AdminOnly returns the default policy: every permission for ADMIN, none
// for anyone else.
func AdminOnly() PermissionPolicy { return adminOnly{} }

type adminOnly struct{}

func (adminOnly) Name() string { return "admin-only" }

func (adminOnly) Allowed(_ context.Context, id Identity, _ string) (bool, error) {
	return id.Role == RoleAdmin, nil
}

// RequireRole fails with [ErrUnauthenticated] for a nil identity and with
// [ErrForbidden] unless the role matches exactly.
func RequireRole(id *Identity, role string) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if id.Role != role {
		return ErrForbidden
	}
	return nil
}

// RequirePermission evaluates the engine's permission policy. A policy
// error denies the request.
func (e *Engine) RequirePermission(ctx context.Context, id *Identity, permission string) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if e == nil {
		return ErrEngineNotReady
	}

	allowed, err := e.policy.Allowed(ctx, *id, permission)
	if err != nil {
		e.logger.WarnContext(ctx, "authgate: permission policy failed",
			"policy", e.policy.Name(), "permission", permission, "error", err)
		e.deny(ctx, id, permission)
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	if !allowed {
		e.deny(ctx, id, permission)
		return ErrForbidden
	}
	return nil
}

func (e *Engine) deny(ctx context.Context, id *Identity, permission string) {
	e.metrics.Inc(MetricGuardDenied)
	e.emitAudit(ctx, auditEventPermissionDenied, false, id.ID, "", ErrForbidden, func() map[string]string {
		return map[string]string{
			"permission": permission,
			"policy":     e.policy.Name(),
		}
	})
}
