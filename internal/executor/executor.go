package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/querygate/querygate/internal/connections"
	"github.com/querygate/querygate/internal/query"
	"github.com/querygate/querygate/internal/security"
)

const (
	// MaxPageSize is the hard cap on rows per page.
	MaxPageSize     = 50000
	DefaultPageSize = 100

	// sessionSegmentVar is the transaction-scoped variable native
	// database RLS policies read. Set via set_config so the value is
	// bound, not spliced.
	sessionSegmentVar = "app.tenant_segment"
)

// OpenFunc opens a database handle for a resolved target DSN. Tests
// swap it for a sqlmock-backed handle.
type OpenFunc func(dsn string) (*sql.DB, error)

func defaultOpen(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// Executor runs validated statements against customer databases. Every
// call resolves its target, holds exactly one physical connection for
// the call's lifetime, and releases it on every exit path. There is no
// pooling across calls.
type Executor struct {
	Connections connections.Resolver
	Open        OpenFunc
	Logger      *slog.Logger
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ExecutePaginated wraps the statement as a subquery, counts the total
// rows, then fetches one page at offset (page-1)*pageSize.
func (e *Executor) ExecutePaginated(ctx context.Context, connectionID, sqlText string, page, pageSize int, sctx security.Context) query.Result {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	offset := (page - 1) * pageSize

	start := time.Now()
	inner := query.StripTrailingSemicolons(sqlText)

	var result query.Result
	err := e.withConnection(ctx, connectionID, sctx, func(runner querier) error {
		countSQL := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS subq", inner)
		var total int64
		row, err := runner.QueryContext(ctx, countSQL)
		if err != nil {
			return fmt.Errorf("count query: %w", err)
		}
		if err := scanSingleInt64(row, &total); err != nil {
			return fmt.Errorf("count query: %w", err)
		}

		pageSQL := fmt.Sprintf("SELECT * FROM (%s) AS subq LIMIT %d OFFSET %d", inner, pageSize, offset)
		columns, rows, err := queryRows(ctx, runner, pageSQL)
		if err != nil {
			return err
		}

		result = query.Result{
			Success:   true,
			Columns:   columns,
			Rows:      rows,
			RowCount:  len(rows),
			TotalRows: &total,
		}
		return nil
	})
	if err != nil {
		return query.Failure(err.Error(), time.Since(start).Milliseconds())
	}
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result
}

// ExecuteRaw runs the statement with an optional row limit applied by
// wrapping it as a subquery.
func (e *Executor) ExecuteRaw(ctx context.Context, connectionID, sqlText string, limit int, sctx security.Context) query.Result {
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	start := time.Now()
	sqlToRun := query.StripTrailingSemicolons(sqlText)
	if limit > 0 {
		sqlToRun = fmt.Sprintf("SELECT * FROM (%s) AS subq LIMIT %d", sqlToRun, limit)
	}

	var result query.Result
	err := e.withConnection(ctx, connectionID, sctx, func(runner querier) error {
		columns, rows, err := queryRows(ctx, runner, sqlToRun)
		if err != nil {
			return err
		}
		result = query.Result{
			Success:  true,
			Columns:  columns,
			Rows:     rows,
			RowCount: len(rows),
		}
		return nil
	})
	if err != nil {
		return query.Failure(err.Error(), time.Since(start).Milliseconds())
	}
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result
}

// ExecuteArgs runs a pre-built statement with bound parameters. The
// aggregation path uses it; callers are responsible for having built
// the statement from sanitized identifiers only.
func (e *Executor) ExecuteArgs(ctx context.Context, connectionID, sqlText string, args []any, sctx security.Context) query.Result {
	start := time.Now()

	var result query.Result
	err := e.withConnection(ctx, connectionID, sctx, func(runner querier) error {
		columns, rows, err := queryRows(ctx, runner, sqlText, args...)
		if err != nil {
			return err
		}
		result = query.Result{
			Success:  true,
			Columns:  columns,
			Rows:     rows,
			RowCount: len(rows),
		}
		return nil
	})
	if err != nil {
		return query.Failure(err.Error(), time.Since(start).Milliseconds())
	}
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result
}

// withConnection resolves the target, dials it, and hands a querier to
// fn. When the caller carries a segment the work runs inside a
// transaction that first sets the session RLS variable, so native
// database policies see it as a second enforcement layer. The
// connection is closed on every path.
func (e *Executor) withConnection(ctx context.Context, connectionID string, sctx security.Context, fn func(querier) error) error {
	if e.Connections == nil {
		return fmt.Errorf("connection resolver is not configured")
	}

	target, err := e.Connections.GetConnection(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("resolve connection %q: %w", connectionID, err)
	}
	if target.Engine != connections.EnginePostgres {
		return &connections.UnsupportedEngineError{Engine: target.Engine}
	}

	open := e.Open
	if open == nil {
		open = defaultOpen
	}
	db, err := open(target.DSN())
	if err != nil {
		return fmt.Errorf("open connection %q: %w", connectionID, err)
	}
	db.SetMaxOpenConns(1)
	defer func() { _ = db.Close() }()

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection %q: %w", connectionID, err)
	}
	defer func() { _ = conn.Close() }()

	if sctx.Segment == "" {
		return fn(conn)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "SELECT set_config($1, $2, true)", sessionSegmentVar, sctx.Segment); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("set session segment: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func queryRows(ctx context.Context, runner querier, sqlText string, args ...any) ([]string, [][]any, error) {
	rows, err := runner.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, resultRows, nil
}

func scanSingleInt64(rows *sql.Rows, dst *int64) error {
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return fmt.Errorf("no rows returned")
	}
	if err := rows.Scan(dst); err != nil {
		return err
	}
	return rows.Err()
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
