package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/querygate/querygate/internal/audit"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, in audit.AppendInput) error {
	query := `
INSERT INTO audit_log (user_id, tenant_id, role, segment, action, resource, details, status, execution_time_ms, row_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := s.db.ExecContext(ctx, query,
		in.Context.UserID,
		in.Context.TenantID,
		string(in.Context.Role),
		in.Context.Segment,
		in.Action,
		in.Resource,
		in.Details,
		string(in.Status),
		in.ExecutionTimeMs,
		in.RowCount,
	); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListRecent(ctx context.Context, tenantID string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
SELECT id, user_id, tenant_id, role, segment, action, resource, details, status, execution_time_ms, row_count, created_at
FROM audit_log
WHERE tenant_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// ListBefore returns archival candidates older than the cutoff, oldest
// first, capped at limit.
func (s *Store) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]audit.Entry, error) {
	query := `
SELECT id, user_id, tenant_id, role, segment, action, resource, details, status, execution_time_ms, row_count, created_at
FROM audit_log
WHERE created_at < $1
ORDER BY created_at ASC, id ASC
LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries before cutoff: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// DeleteBatch removes archived entries by id. Only the archiver calls
// this, after the batch has been durably uploaded.
func (s *Store) DeleteBatch(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
DELETE FROM audit_log
WHERE id IN (%s)`, strings.Join(placeholders, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete audit batch: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete audit batch rows affected: %w", err)
	}
	return affected, nil
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	entries := make([]audit.Entry, 0)
	for rows.Next() {
		var entry audit.Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.TenantID,
			&entry.Role,
			&entry.Segment,
			&entry.Action,
			&entry.Resource,
			&entry.Details,
			&entry.Status,
			&entry.ExecutionTimeMs,
			&entry.RowCount,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return entries, nil
}
