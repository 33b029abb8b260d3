package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type auditEntryResponse struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"user_id"`
	TenantID        string    `json:"tenant_id"`
	Role            string    `json:"role"`
	Segment         string    `json:"segment,omitempty"`
	Action          string    `json:"action"`
	Resource        string    `json:"resource"`
	Details         string    `json:"details"`
	Status          string    `json:"status"`
	ExecutionTimeMs *int64    `json:"execution_time_ms,omitempty"`
	RowCount        *int64    `json:"row_count,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func handleListAudit(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.AuditLog == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AUDIT_NOT_CONFIGURED", "audit store is not configured", false, nil)
		return
	}
	sctx, err := requireAdmin(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(r.Context(), w, http.StatusBadRequest, "LIMIT_INVALID", "limit must be a positive integer", false, nil)
			return
		}
		limit = parsed
	}

	entries, err := deps.AuditLog.ListRecent(r.Context(), sctx.TenantID, limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "AUDIT_STORE_ERROR", "failed to list audit entries", true, map[string]any{"details": err.Error()})
		return
	}

	response := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, auditEntryResponse{
			ID:              entry.ID,
			UserID:          entry.UserID,
			TenantID:        entry.TenantID,
			Role:            entry.Role,
			Segment:         entry.Segment,
			Action:          entry.Action,
			Resource:        entry.Resource,
			Details:         entry.Details,
			Status:          string(entry.Status),
			ExecutionTimeMs: entry.ExecutionTimeMs,
			RowCount:        entry.RowCount,
			CreatedAt:       entry.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": response})
}
