package rls

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/querygate/querygate/internal/query"
)

var ErrNotFound = errors.New("rls: policy not found")

// Policy binds a table to an administrator-authored boolean SQL
// predicate, scoped to a workspace and connection and optionally to a
// role or user. A nil Role/UserID acts as a wildcard. The condition is
// trusted input: it is spliced into the rewritten statement verbatim.
type Policy struct {
	ID           string
	Name         string
	WorkspaceID  string
	ConnectionID string
	TableName    string
	Condition    string
	Role         *string
	UserID       *string
	IsActive     bool
	CreatedAt    time.Time
}

// PolicyQuery scopes policy resolution to one caller and connection.
type PolicyQuery struct {
	UserID       string
	WorkspaceID  string
	ConnectionID string
	Role         string
}

// Resolver fetches the active candidate policies for a query, in a
// stable order. Selection order matters: the rewriter applies only the
// first policy whose table matches.
type Resolver interface {
	PoliciesForUser(ctx context.Context, q PolicyQuery) ([]Policy, error)
}

type CreatePolicyInput struct {
	ID           string
	Name         string
	WorkspaceID  string
	ConnectionID string
	TableName    string
	Condition    string
	Role         *string
	UserID       *string
}

// Store is the administrative surface over the policy table.
type Store interface {
	Resolver
	CreatePolicy(ctx context.Context, in CreatePolicyInput) (Policy, error)
	ListPolicies(ctx context.Context, workspaceID string) ([]Policy, error)
	DeactivatePolicy(ctx context.Context, policyID string) error
}

// Apply tests each candidate policy's table name against the statement
// text and rewrites the statement with the first match. The match is a
// case-insensitive word-boundary scan, a heuristic standing in for
// real reference resolution: it cannot tell a FROM clause from a
// string literal, and only one policy is ever applied even when the
// statement touches several governed tables.
func Apply(sqlText string, policies []Policy) (string, *Policy) {
	for i := range policies {
		policy := policies[i]
		if !MatchesTable(sqlText, policy.TableName) {
			continue
		}
		return Rewrite(sqlText, policy), &policy
	}
	return sqlText, nil
}

// MatchesTable reports whether the statement references tableName as a
// whole word, ignoring case.
func MatchesTable(sqlText, tableName string) bool {
	if tableName == "" {
		return false
	}
	pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(tableName) + `\b`)
	if err != nil {
		return false
	}
	return pattern.MatchString(sqlText)
}

// Rewrite wraps the original statement as a subquery filtered by the
// policy condition.
func Rewrite(sqlText string, policy Policy) string {
	inner := query.StripTrailingSemicolons(sqlText)
	return fmt.Sprintf("SELECT * FROM (%s) AS subq WHERE %s", inner, policy.Condition)
}
