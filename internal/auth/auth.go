package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/querygate/querygate/internal/security"
)

// APIKeyValidator maps an API key to the security context every
// execution call requires.
type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (security.Context, bool)
}

type StaticAPIKeyValidator struct {
	keys map[string]security.Context
}

// NewStaticAPIKeyValidator parses a comma-separated list of entries of
// the form key:user:tenant:role[:segment].
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]security.Context{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	entries := strings.Split(spec, ",")
	for _, entry := range entries {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 4 && len(parts) != 5 {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:user:tenant:role[:segment]", entry)
		}
		key := strings.TrimSpace(parts[0])
		user := strings.TrimSpace(parts[1])
		tenant := strings.TrimSpace(parts[2])
		if key == "" || user == "" || tenant == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key/user/tenant", entry)
		}
		role, err := security.ParseRole(parts[3])
		if err != nil {
			return nil, fmt.Errorf("invalid static key entry %q: %w", entry, err)
		}
		sctx := security.Context{UserID: user, TenantID: tenant, Role: role}
		if len(parts) == 5 {
			sctx.Segment = strings.TrimSpace(parts[4])
		}
		validator.keys[key] = sctx
	}

	return validator, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (security.Context, bool) {
	sctx, ok := v.keys[apiKey]
	return sctx, ok
}
