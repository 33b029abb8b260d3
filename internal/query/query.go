package query

import "strings"

// Result is the structured outcome of every execution attempt. A raw
// driver error never crosses this boundary; it is folded into Error
// with Success=false.
type Result struct {
	Success         bool     `json:"success"`
	Columns         []string `json:"columns,omitempty"`
	Rows            [][]any  `json:"rows,omitempty"`
	RowCount        int      `json:"row_count"`
	TotalRows       *int64   `json:"total_rows,omitempty"`
	ExecutionTimeMs int64    `json:"execution_time_ms"`
	Error           string   `json:"error,omitempty"`
}

// Request is a raw-SQL execution request against a registered
// connection target.
type Request struct {
	ConnectionID string
	WorkspaceID  string
	SQL          string
	Page         int
	PageSize     int
	Limit        int
}

func Failure(message string, elapsedMs int64) Result {
	return Result{Success: false, Error: message, ExecutionTimeMs: elapsedMs}
}

// StripTrailingSemicolons normalizes a statement before it is wrapped
// as a subquery.
func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
