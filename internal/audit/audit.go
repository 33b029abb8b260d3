package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/querygate/querygate/internal/observability"
	"github.com/querygate/querygate/internal/security"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// maxDetailsLen caps the statement snippet stored with each entry so a
// pathological query cannot bloat the log.
const maxDetailsLen = 500

// Entry records one execution attempt, success or failure. Entries are
// append-only; nothing in the system updates or deletes them except
// the archiver's retention pass.
type Entry struct {
	ID              int64
	UserID          string
	TenantID        string
	Role            string
	Segment         string
	Action          string
	Resource        string
	Details         string
	Status          Status
	ExecutionTimeMs *int64
	RowCount        *int64
	CreatedAt       time.Time
}

type AppendInput struct {
	Context         security.Context
	Action          string
	Resource        string
	Details         string
	Status          Status
	ExecutionTimeMs *int64
	RowCount        *int64
}

type Store interface {
	Append(ctx context.Context, in AppendInput) error
	ListRecent(ctx context.Context, tenantID string, limit int) ([]Entry, error)
}

// Recorder writes audit entries and absorbs store failures: an audit
// write error is logged and counted, never returned, so it can never
// mask or roll back the primary result.
type Recorder struct {
	Store  Store
	Logger *slog.Logger
}

func (r *Recorder) Record(ctx context.Context, in AppendInput) {
	if r == nil || r.Store == nil {
		return
	}
	in.Details = Truncate(in.Details)
	if err := r.Store.Append(ctx, in); err != nil {
		observability.IncrementAuditWriteFailure()
		if r.Logger != nil {
			r.Logger.ErrorContext(ctx, "audit write failed",
				slog.String("action", in.Action),
				slog.String("resource", in.Resource),
				slog.Any("error", err),
			)
		}
	}
}

func Truncate(details string) string {
	runes := []rune(details)
	if len(runes) <= maxDetailsLen {
		return details
	}
	return string(runes[:maxDetailsLen])
}
