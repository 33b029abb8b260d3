package connections

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var ErrNotFound = errors.New("connections: not found")

const EnginePostgres = "postgres"

// UnsupportedEngineError is returned when a target resolves to an
// engine this gateway cannot execute against.
type UnsupportedEngineError struct {
	Engine string
}

func (e *UnsupportedEngineError) Error() string {
	return fmt.Sprintf("unsupported engine %q: only postgres targets are supported", e.Engine)
}

// Target describes a customer database a query can be executed
// against. Credentials are stored alongside the host; the API layer
// never echoes the password back out.
type Target struct {
	ID        string
	Name      string
	Engine    string
	Host      string
	Port      int
	Database  string
	Username  string
	Password  string
	SSLMode   string
	CreatedAt time.Time
}

// DSN builds a pgx-compatible connection string. Credentials and the
// database name are URL-escaped so they survive special characters.
func (t Target) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(t.Username, t.Password),
		Host:   t.Host + ":" + strconv.Itoa(t.Port),
		Path:   "/" + t.Database,
	}
	sslMode := t.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	values := url.Values{}
	values.Set("sslmode", sslMode)
	u.RawQuery = values.Encode()
	return u.String()
}

// Resolver looks up a registered connection target by id.
type Resolver interface {
	GetConnection(ctx context.Context, connectionID string) (Target, error)
}

type CreateTargetInput struct {
	ID       string
	Name     string
	Engine   string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// Store is the full CRUD surface backing the admin API.
type Store interface {
	Resolver
	CreateConnection(ctx context.Context, in CreateTargetInput) (Target, error)
	ListConnections(ctx context.Context) ([]Target, error)
	DeleteConnection(ctx context.Context, connectionID string) (bool, error)
}
