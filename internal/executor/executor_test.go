package executor

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/querygate/querygate/internal/connections"
	"github.com/querygate/querygate/internal/security"
)

type fakeResolver struct {
	target connections.Target
	err    error
	calls  int
}

func (f *fakeResolver) GetConnection(_ context.Context, _ string) (connections.Target, error) {
	f.calls++
	return f.target, f.err
}

func postgresTarget() connections.Target {
	return connections.Target{
		ID:       "conn-1",
		Engine:   connections.EnginePostgres,
		Host:     "db.internal",
		Port:     5432,
		Database: "analytics",
		Username: "reader",
		Password: "secret",
	}
}

func mockExecutor(t *testing.T, resolver *fakeResolver) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return &Executor{
		Connections: resolver,
		Open: func(_ string) (*sql.DB, error) {
			return db, nil
		},
	}, mock
}

func viewer() security.Context {
	return security.Context{UserID: "u-1", TenantID: "t-1", Role: security.RoleViewer}
}

func TestExecutePaginated(t *testing.T) {
	resolver := &fakeResolver{target: postgresTarget()}
	exec, mock := mockExecutor(t, resolver)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM (SELECT * FROM orders) AS subq")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(250)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM (SELECT * FROM orders) AS subq LIMIT 50 OFFSET 100")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "total"}).
			AddRow(int64(101), 10.5).
			AddRow(int64(102), 20.0))

	result := exec.ExecutePaginated(context.Background(), "conn-1", "SELECT * FROM orders;", 3, 50, viewer())
	if !result.Success {
		t.Fatalf("expected success, got %s", result.Error)
	}
	if result.TotalRows == nil || *result.TotalRows != 250 {
		t.Fatalf("unexpected total rows: %v", result.TotalRows)
	}
	if result.RowCount != 2 || len(result.Rows) != 2 {
		t.Fatalf("unexpected row count: %d", result.RowCount)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "id" {
		t.Fatalf("unexpected columns: %v", result.Columns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecutePaginatedDefaultsAndCaps(t *testing.T) {
	resolver := &fakeResolver{target: postgresTarget()}
	exec, mock := mockExecutor(t, resolver)

	// Page 0 becomes 1, pageSize 0 becomes the default.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 100 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result := exec.ExecutePaginated(context.Background(), "conn-1", "SELECT * FROM orders", 0, 0, viewer())
	if !result.Success {
		t.Fatalf("expected success, got %s", result.Error)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}

	exec2, mock2 := mockExecutor(t, resolver)
	mock2.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock2.ExpectQuery(regexp.QuoteMeta("LIMIT 50000 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result = exec2.ExecutePaginated(context.Background(), "conn-1", "SELECT * FROM orders", 1, 90000, viewer())
	if !result.Success {
		t.Fatalf("expected success, got %s", result.Error)
	}
	if err := mock2.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteWithSegmentRunsInTransaction(t *testing.T) {
	resolver := &fakeResolver{target: postgresTarget()}
	exec, mock := mockExecutor(t, resolver)

	sctx := viewer()
	sctx.Segment = "emea"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT set_config($1, $2, true)")).
		WithArgs("app.tenant_segment", "emea").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM orders")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	result := exec.ExecuteRaw(context.Background(), "conn-1", "SELECT * FROM orders", 0, sctx)
	if !result.Success {
		t.Fatalf("expected success, got %s", result.Error)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteWithSegmentRollsBackOnFailure(t *testing.T) {
	resolver := &fakeResolver{target: postgresTarget()}
	exec, mock := mockExecutor(t, resolver)

	sctx := viewer()
	sctx.Segment = "emea"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT set_config($1, $2, true)")).
		WithArgs("app.tenant_segment", "emea").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM orders")).
		WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	result := exec.ExecuteRaw(context.Background(), "conn-1", "SELECT * FROM orders", 0, sctx)
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "relation does not exist") {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteRawAppliesLimit(t *testing.T) {
	resolver := &fakeResolver{target: postgresTarget()}
	exec, mock := mockExecutor(t, resolver)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM (SELECT * FROM orders) AS subq LIMIT 10")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	result := exec.ExecuteRaw(context.Background(), "conn-1", "SELECT * FROM orders", 10, viewer())
	if !result.Success {
		t.Fatalf("expected success, got %s", result.Error)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteArgsBindsParameters(t *testing.T) {
	resolver := &fakeResolver{target: postgresTarget()}
	exec, mock := mockExecutor(t, resolver)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS count FROM orders WHERE status = $1")).
		WithArgs("complete").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(9)))

	result := exec.ExecuteArgs(context.Background(), "conn-1", "SELECT COUNT(*) AS count FROM orders WHERE status = $1 ORDER BY count DESC LIMIT 1000", []any{"complete"}, viewer())
	if !result.Success {
		t.Fatalf("expected success, got %s", result.Error)
	}
	if result.RowCount != 1 {
		t.Fatalf("unexpected row count: %d", result.RowCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteNormalizesByteSlices(t *testing.T) {
	resolver := &fakeResolver{target: postgresTarget()}
	exec, mock := mockExecutor(t, resolver)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM customers")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow([]byte("acme")))

	result := exec.ExecuteRaw(context.Background(), "conn-1", "SELECT name FROM customers", 0, viewer())
	if !result.Success {
		t.Fatalf("expected success, got %s", result.Error)
	}
	if got, ok := result.Rows[0][0].(string); !ok || got != "acme" {
		t.Fatalf("expected string value, got %#v", result.Rows[0][0])
	}
}

func TestExecuteRejectsUnsupportedEngine(t *testing.T) {
	target := postgresTarget()
	target.Engine = "mysql"
	resolver := &fakeResolver{target: target}
	exec := &Executor{
		Connections: resolver,
		Open: func(_ string) (*sql.DB, error) {
			t.Fatal("open must not be called for unsupported engines")
			return nil, nil
		},
	}

	result := exec.ExecuteRaw(context.Background(), "conn-1", "SELECT 1", 0, viewer())
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "unsupported engine") {
		t.Fatalf("unexpected error: %s", result.Error)
	}
}

func TestExecuteUnknownConnection(t *testing.T) {
	resolver := &fakeResolver{err: connections.ErrNotFound}
	exec := &Executor{
		Connections: resolver,
		Open: func(_ string) (*sql.DB, error) {
			t.Fatal("open must not be called when resolution fails")
			return nil, nil
		},
	}

	result := exec.ExecuteRaw(context.Background(), "missing", "SELECT 1", 0, viewer())
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "resolve connection") {
		t.Fatalf("unexpected error: %s", result.Error)
	}
}
