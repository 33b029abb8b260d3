package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/querygate/querygate/internal/rls"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// PoliciesForUser returns the active policies scoped to the workspace
// and connection, keeping rows whose role or user binding is either a
// wildcard (NULL) or matches the caller. Ordered by creation so the
// rewriter's first-match behavior is deterministic.
func (s *Store) PoliciesForUser(ctx context.Context, q rls.PolicyQuery) ([]rls.Policy, error) {
	query := `
SELECT id, name, workspace_id, connection_id, table_name, condition, role, user_id, is_active, created_at
FROM rls_policy
WHERE workspace_id = $1
  AND connection_id = $2
  AND is_active
  AND (role IS NULL OR role = $3)
  AND (user_id IS NULL OR user_id = $4)
ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, q.WorkspaceID, q.ConnectionID, q.Role, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("list policies for user: %w", err)
	}
	defer func() { _ = rows.Close() }()

	policies := make([]rls.Policy, 0)
	for rows.Next() {
		var policy rls.Policy
		if err := rows.Scan(
			&policy.ID,
			&policy.Name,
			&policy.WorkspaceID,
			&policy.ConnectionID,
			&policy.TableName,
			&policy.Condition,
			&policy.Role,
			&policy.UserID,
			&policy.IsActive,
			&policy.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan policy row: %w", err)
		}
		policies = append(policies, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy rows: %w", err)
	}
	return policies, nil
}

func (s *Store) CreatePolicy(ctx context.Context, in rls.CreatePolicyInput) (rls.Policy, error) {
	query := `
INSERT INTO rls_policy (id, name, workspace_id, connection_id, table_name, condition, role, user_id, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
RETURNING created_at`

	policy := rls.Policy{
		ID:           in.ID,
		Name:         in.Name,
		WorkspaceID:  in.WorkspaceID,
		ConnectionID: in.ConnectionID,
		TableName:    in.TableName,
		Condition:    in.Condition,
		Role:         in.Role,
		UserID:       in.UserID,
		IsActive:     true,
	}
	if err := s.db.QueryRowContext(ctx, query,
		in.ID, in.Name, in.WorkspaceID, in.ConnectionID, in.TableName, in.Condition, in.Role, in.UserID,
	).Scan(&policy.CreatedAt); err != nil {
		return rls.Policy{}, fmt.Errorf("create policy: %w", err)
	}
	return policy, nil
}

func (s *Store) ListPolicies(ctx context.Context, workspaceID string) ([]rls.Policy, error) {
	query := `
SELECT id, name, workspace_id, connection_id, table_name, condition, role, user_id, is_active, created_at
FROM rls_policy
WHERE workspace_id = $1
ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	policies := make([]rls.Policy, 0)
	for rows.Next() {
		var policy rls.Policy
		if err := rows.Scan(
			&policy.ID,
			&policy.Name,
			&policy.WorkspaceID,
			&policy.ConnectionID,
			&policy.TableName,
			&policy.Condition,
			&policy.Role,
			&policy.UserID,
			&policy.IsActive,
			&policy.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan policy row: %w", err)
		}
		policies = append(policies, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy rows: %w", err)
	}
	return policies, nil
}

func (s *Store) DeactivatePolicy(ctx context.Context, policyID string) error {
	result, err := s.db.ExecContext(ctx, `
UPDATE rls_policy
SET is_active = FALSE
WHERE id = $1`, policyID)
	if err != nil {
		return fmt.Errorf("deactivate policy: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate policy rows affected: %w", err)
	}
	if affected == 0 {
		return rls.ErrNotFound
	}
	return nil
}
