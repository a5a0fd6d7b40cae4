package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/MrEthical07/authgate"
)

// DefaultRegoQuery is evaluated when no query is configured.
const DefaultRegoQuery = "data.authgate.authz.allow"

// AdminOnlyRego reproduces the engine's default policy in Rego.
const AdminOnlyRego = `package authgate.authz

default allow := false

allow if {
	input.identity.role == "ADMIN"
}
`

// Rego evaluates a prepared OPA query against
// {"identity": {...}, "permission": "..."}. The query must yield a boolean.
type Rego struct {
	query rego.PreparedEvalQuery
}

// NewRego compiles module and prepares query. An empty query selects
// [DefaultRegoQuery].
func NewRego(ctx context.Context, module, query string) (*Rego, error) {
	if module == "" {
		return nil, errors.New("rego module is required")
	}
	if query == "" {
		query = DefaultRegoQuery
	}
	pq, err := rego.New(
		rego.Query(query),
		rego.Module("authgate.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile rego policy: %w", err)
	}
	return &Rego{query: pq}, nil
}

// Name implements [authgate.PermissionPolicy].
func (r *Rego) Name() string { return "rego" }

// Allowed implements [authgate.PermissionPolicy]. Undefined results deny.
func (r *Rego) Allowed(ctx context.Context, id authgate.Identity, permission string) (bool, error) {
	input := map[string]interface{}{
		"identity": map[string]interface{}{
			"id":    id.ID,
			"email": id.Email,
			"role":  id.Role,
			"plan":  id.Plan,
		},
		"permission": permission,
	}
	rs, err := r.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval rego policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("rego policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}
