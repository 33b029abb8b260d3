package security

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleEditor:
		return RoleEditor, nil
	case RoleViewer:
		return RoleViewer, nil
	default:
		return "", fmt.Errorf("invalid role: %q", raw)
	}
}

// Context carries the caller identity for a single execution. Every
// execution path requires one explicitly; there is no default or
// fallback identity anywhere in the codebase.
type Context struct {
	UserID   string
	TenantID string
	Role     Role
	// Segment is an optional tenant/business-unit discriminator. When
	// set, it is pushed into a session variable on the target database
	// so native RLS policies can read it.
	Segment string
}

func (c Context) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(c.TenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}
	if _, err := ParseRole(string(c.Role)); err != nil {
		return err
	}
	return nil
}

func (c Context) IsAdmin() bool {
	return c.Role == RoleAdmin
}
