package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/querygate/querygate/internal/audit"
	"github.com/querygate/querygate/internal/observability"
	"github.com/querygate/querygate/internal/storage"
)

// Source is the slice of the audit store the archiver needs: list aged
// entries, then delete the ones that were durably uploaded.
type Source interface {
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]audit.Entry, error)
	DeleteBatch(ctx context.Context, ids []int64) (int64, error)
}

type Config struct {
	Interval   time.Duration
	MaxAge     time.Duration
	BatchLimit int
}

// Service exports aged audit entries to the object store as parquet
// and prunes them from postgres afterwards. Entries are only deleted
// once the upload has succeeded, so a failed run leaves the log
// intact.
type Service struct {
	Audit  Source
	Store  storage.ObjectStore
	Config Config
	Logger *slog.Logger
	Clock  func() time.Time
}

type Summary struct {
	EntriesScanned  int   `json:"entries_scanned"`
	EntriesArchived int64 `json:"entries_archived"`
	ObjectKey       string `json:"object_key,omitempty"`
	BytesWritten    int64 `json:"bytes_written"`
}

type parquetEntry struct {
	ID              int64  `parquet:"id"`
	UserID          string `parquet:"user_id"`
	TenantID        string `parquet:"tenant_id"`
	Role            string `parquet:"role"`
	Segment         string `parquet:"segment"`
	Action          string `parquet:"action"`
	Resource        string `parquet:"resource"`
	Details         string `parquet:"details"`
	Status          string `parquet:"status"`
	ExecutionTimeMs int64  `parquet:"execution_time_ms"`
	RowCount        int64  `parquet:"row_count"`
	CreatedAtUnixMs int64  `parquet:"created_at_unix_ms"`
}

// Run executes RunOnce on the configured interval until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary, err := s.RunOnce(ctx)
			if err != nil {
				observability.ObserveArchiveRun(false, 0)
				if s.Logger != nil {
					s.Logger.ErrorContext(ctx, "audit archive run failed", slog.Any("error", err))
				}
				continue
			}
			observability.ObserveArchiveRun(true, summary.EntriesArchived)
			if s.Logger != nil && summary.EntriesArchived > 0 {
				s.Logger.InfoContext(ctx, "audit archive run completed",
					slog.Int64("entries_archived", summary.EntriesArchived),
					slog.String("object_key", summary.ObjectKey),
				)
			}
		}
	}
}

// RunOnce archives at most one batch of aged entries.
func (s *Service) RunOnce(ctx context.Context) (Summary, error) {
	s.ensureDefaults()

	cutoff := s.Clock().Add(-s.Config.MaxAge)
	entries, err := s.Audit.ListBefore(ctx, cutoff, s.Config.BatchLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("list archival candidates: %w", err)
	}
	if len(entries) == 0 {
		return Summary{}, nil
	}

	data, err := EncodeEntriesToParquet(entries)
	if err != nil {
		return Summary{}, fmt.Errorf("encode audit batch: %w", err)
	}

	key := objectKey(s.Clock(), entries)
	if _, err := s.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: "application/octet-stream"}); err != nil {
		return Summary{}, fmt.Errorf("upload audit batch: %w", err)
	}

	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	deleted, err := s.Audit.DeleteBatch(ctx, ids)
	if err != nil {
		// The batch is uploaded but still in postgres; the next run
		// re-archives it under a new key rather than losing entries.
		return Summary{}, fmt.Errorf("prune archived entries: %w", err)
	}

	return Summary{
		EntriesScanned:  len(entries),
		EntriesArchived: deleted,
		ObjectKey:       key,
		BytesWritten:    int64(len(data)),
	}, nil
}

func EncodeEntriesToParquet(entries []audit.Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("entries are required")
	}

	rows := make([]parquetEntry, 0, len(entries))
	for _, entry := range entries {
		row := parquetEntry{
			ID:              entry.ID,
			UserID:          entry.UserID,
			TenantID:        entry.TenantID,
			Role:            entry.Role,
			Segment:         entry.Segment,
			Action:          entry.Action,
			Resource:        entry.Resource,
			Details:         entry.Details,
			Status:          string(entry.Status),
			CreatedAtUnixMs: entry.CreatedAt.UnixMilli(),
		}
		if entry.ExecutionTimeMs != nil {
			row.ExecutionTimeMs = *entry.ExecutionTimeMs
		}
		if entry.RowCount != nil {
			row.RowCount = *entry.RowCount
		}
		rows = append(rows, row)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetEntry](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func objectKey(now time.Time, entries []audit.Entry) string {
	first := entries[0].ID
	last := entries[len(entries)-1].ID
	return fmt.Sprintf("%s/audit_%d_%d.parquet", now.UTC().Format("2006/01/02"), first, last)
}

func (s *Service) ensureDefaults() {
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.Config.Interval <= 0 {
		s.Config.Interval = 10 * time.Minute
	}
	if s.Config.MaxAge <= 0 {
		s.Config.MaxAge = 30 * 24 * time.Hour
	}
	if s.Config.BatchLimit <= 0 {
		s.Config.BatchLimit = 5000
	}
}
