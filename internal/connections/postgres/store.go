package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/querygate/querygate/internal/connections"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetConnection(ctx context.Context, connectionID string) (connections.Target, error) {
	query := `
SELECT id, name, engine, host, port, database_name, username, password, ssl_mode, created_at
FROM connection_target
WHERE id = $1`

	var target connections.Target
	if err := s.db.QueryRowContext(ctx, query, connectionID).Scan(
		&target.ID,
		&target.Name,
		&target.Engine,
		&target.Host,
		&target.Port,
		&target.Database,
		&target.Username,
		&target.Password,
		&target.SSLMode,
		&target.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return connections.Target{}, connections.ErrNotFound
		}
		return connections.Target{}, fmt.Errorf("get connection: %w", err)
	}
	return target, nil
}

func (s *Store) CreateConnection(ctx context.Context, in connections.CreateTargetInput) (connections.Target, error) {
	sslMode := in.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	query := `
INSERT INTO connection_target (id, name, engine, host, port, database_name, username, password, ssl_mode)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at`

	target := connections.Target{
		ID:       in.ID,
		Name:     in.Name,
		Engine:   in.Engine,
		Host:     in.Host,
		Port:     in.Port,
		Database: in.Database,
		Username: in.Username,
		Password: in.Password,
		SSLMode:  sslMode,
	}
	if err := s.db.QueryRowContext(ctx, query,
		in.ID, in.Name, in.Engine, in.Host, in.Port, in.Database, in.Username, in.Password, sslMode,
	).Scan(&target.CreatedAt); err != nil {
		return connections.Target{}, fmt.Errorf("create connection: %w", err)
	}
	return target, nil
}

func (s *Store) ListConnections(ctx context.Context) ([]connections.Target, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, engine, host, port, database_name, username, password, ssl_mode, created_at
FROM connection_target
ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	targets := make([]connections.Target, 0)
	for rows.Next() {
		var target connections.Target
		if err := rows.Scan(
			&target.ID,
			&target.Name,
			&target.Engine,
			&target.Host,
			&target.Port,
			&target.Database,
			&target.Username,
			&target.Password,
			&target.SSLMode,
			&target.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan connection row: %w", err)
		}
		targets = append(targets, target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connection rows: %w", err)
	}
	return targets, nil
}

func (s *Store) DeleteConnection(ctx context.Context, connectionID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
DELETE FROM connection_target
WHERE id = $1`, connectionID)
	if err != nil {
		return false, fmt.Errorf("delete connection: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete connection rows affected: %w", err)
	}
	return affected > 0, nil
}
