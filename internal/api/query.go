package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/querygate/querygate/internal/aggregate"
	"github.com/querygate/querygate/internal/query"
)

type rawQueryRequest struct {
	ConnectionID string `json:"connection_id"`
	WorkspaceID  string `json:"workspace_id"`
	SQL          string `json:"sql"`
	Limit        int    `json:"limit"`
}

type paginatedQueryRequest struct {
	ConnectionID string `json:"connection_id"`
	WorkspaceID  string `json:"workspace_id"`
	SQL          string `json:"sql"`
	Page         int    `json:"page"`
	PageSize     int    `json:"page_size"`
}

func handleRawQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Query == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}

	sctx, err := securityContextFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "IDENTITY_REQUIRED", err.Error(), false, nil)
		return
	}

	var request rawQueryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if strings.TrimSpace(request.ConnectionID) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "CONNECTION_REQUIRED", "connection_id is required", false, nil)
		return
	}

	result := deps.Query.ExecuteRawQuery(r.Context(), sctx, query.Request{
		ConnectionID: request.ConnectionID,
		WorkspaceID:  request.WorkspaceID,
		SQL:          request.SQL,
		Limit:        request.Limit,
	})
	writeJSON(w, http.StatusOK, result)
}

func handlePaginatedQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Query == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}

	sctx, err := securityContextFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "IDENTITY_REQUIRED", err.Error(), false, nil)
		return
	}

	var request paginatedQueryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if strings.TrimSpace(request.ConnectionID) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "CONNECTION_REQUIRED", "connection_id is required", false, nil)
		return
	}

	result := deps.Query.ExecutePaginatedQuery(r.Context(), sctx, query.Request{
		ConnectionID: request.ConnectionID,
		WorkspaceID:  request.WorkspaceID,
		SQL:          request.SQL,
		Page:         request.Page,
		PageSize:     request.PageSize,
	})
	writeJSON(w, http.StatusOK, result)
}

func handleAggregate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Query == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}

	sctx, err := securityContextFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "IDENTITY_REQUIRED", err.Error(), false, nil)
		return
	}

	var spec aggregate.Spec
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&spec); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid aggregation spec", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(spec.Table) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLE_REQUIRED", "table is required", false, nil)
		return
	}
	if strings.TrimSpace(spec.ConnectionID) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "CONNECTION_REQUIRED", "connection_id is required", false, nil)
		return
	}

	result := deps.Query.ExecuteAggregation(r.Context(), sctx, spec)
	writeJSON(w, http.StatusOK, result)
}
