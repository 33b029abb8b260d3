package audit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/querygate/querygate/internal/security"
)

type fakeStore struct {
	appended []AppendInput
	err      error
}

func (f *fakeStore) Append(_ context.Context, in AppendInput) error {
	f.appended = append(f.appended, in)
	return f.err
}

func (f *fakeStore) ListRecent(_ context.Context, _ string, _ int) ([]Entry, error) {
	return nil, nil
}

func TestRecorderAppendsEntry(t *testing.T) {
	store := &fakeStore{}
	recorder := &Recorder{Store: store}

	elapsed := int64(42)
	rows := int64(7)
	recorder.Record(context.Background(), AppendInput{
		Context:         security.Context{UserID: "u-1", TenantID: "t-1", Role: security.RoleViewer},
		Action:          "execute_query",
		Resource:        "conn-1",
		Details:         "SELECT * FROM orders",
		Status:          StatusSuccess,
		ExecutionTimeMs: &elapsed,
		RowCount:        &rows,
	})

	if len(store.appended) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.appended))
	}
	got := store.appended[0]
	if got.Status != StatusSuccess || got.Action != "execute_query" || got.Resource != "conn-1" {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.ExecutionTimeMs == nil || *got.ExecutionTimeMs != 42 {
		t.Fatalf("unexpected execution time: %v", got.ExecutionTimeMs)
	}
}

func TestRecorderTruncatesDetails(t *testing.T) {
	store := &fakeStore{}
	recorder := &Recorder{Store: store}

	recorder.Record(context.Background(), AppendInput{
		Context: security.Context{UserID: "u-1", TenantID: "t-1", Role: security.RoleViewer},
		Action:  "execute_query",
		Details: strings.Repeat("x", 2000),
		Status:  StatusFailure,
	})

	if len(store.appended) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.appended))
	}
	if got := len([]rune(store.appended[0].Details)); got != 500 {
		t.Fatalf("expected details truncated to 500 runes, got %d", got)
	}
}

func TestRecorderSwallowsStoreFailures(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	recorder := &Recorder{Store: store}

	// Must not panic or propagate; the primary result owns the call.
	recorder.Record(context.Background(), AppendInput{
		Context: security.Context{UserID: "u-1", TenantID: "t-1", Role: security.RoleViewer},
		Action:  "execute_query",
		Status:  StatusSuccess,
	})
	if len(store.appended) != 1 {
		t.Fatalf("expected append to be attempted once, got %d", len(store.appended))
	}
}

func TestRecorderNilStoreIsNoop(t *testing.T) {
	var recorder *Recorder
	recorder.Record(context.Background(), AppendInput{Action: "execute_query"})

	recorder = &Recorder{}
	recorder.Record(context.Background(), AppendInput{Action: "execute_query"})
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short"); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	long := strings.Repeat("é", 600)
	if got := Truncate(long); len([]rune(got)) != 500 {
		t.Fatalf("expected 500 runes, got %d", len([]rune(got)))
	}
}
