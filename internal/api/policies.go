package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/querygate/querygate/internal/rls"
)

type policyResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	WorkspaceID  string    `json:"workspace_id"`
	ConnectionID string    `json:"connection_id"`
	TableName    string    `json:"table_name"`
	Condition    string    `json:"condition"`
	Role         *string   `json:"role,omitempty"`
	UserID       *string   `json:"user_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type createPolicyRequest struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	WorkspaceID  string  `json:"workspace_id"`
	ConnectionID string  `json:"connection_id"`
	TableName    string  `json:"table_name"`
	Condition    string  `json:"condition"`
	Role         *string `json:"role,omitempty"`
	UserID       *string `json:"user_id,omitempty"`
}

func handleListPolicies(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Policies == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "POLICIES_NOT_CONFIGURED", "policy store is not configured", false, nil)
		return
	}
	if _, err := requireAdmin(r); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	workspaceID := strings.TrimSpace(r.URL.Query().Get("workspace_id"))
	if workspaceID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "WORKSPACE_REQUIRED", "workspace_id is required", false, nil)
		return
	}

	policies, err := deps.Policies.ListPolicies(r.Context(), workspaceID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "POLICY_STORE_ERROR", "failed to list policies", true, map[string]any{"details": err.Error()})
		return
	}

	response := make([]policyResponse, 0, len(policies))
	for _, policy := range policies {
		response = append(response, toPolicyResponse(policy))
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": response})
}

func handleCreatePolicy(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Policies == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "POLICIES_NOT_CONFIGURED", "policy store is not configured", false, nil)
		return
	}
	if _, err := requireAdmin(r); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request createPolicyRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid policy body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.ID) == "" || strings.TrimSpace(request.Name) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "POLICY_INVALID", "id and name are required", false, nil)
		return
	}
	if strings.TrimSpace(request.WorkspaceID) == "" || strings.TrimSpace(request.ConnectionID) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "POLICY_INVALID", "workspace_id and connection_id are required", false, nil)
		return
	}
	if strings.TrimSpace(request.TableName) == "" || strings.TrimSpace(request.Condition) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "POLICY_INVALID", "table_name and condition are required", false, nil)
		return
	}

	policy, err := deps.Policies.CreatePolicy(r.Context(), rls.CreatePolicyInput{
		ID:           request.ID,
		Name:         request.Name,
		WorkspaceID:  request.WorkspaceID,
		ConnectionID: request.ConnectionID,
		TableName:    request.TableName,
		Condition:    request.Condition,
		Role:         request.Role,
		UserID:       request.UserID,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "POLICY_STORE_ERROR", "failed to create policy", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, toPolicyResponse(policy))
}

func handleDeactivatePolicy(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Policies == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "POLICIES_NOT_CONFIGURED", "policy store is not configured", false, nil)
		return
	}
	if _, err := requireAdmin(r); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	policyID := r.PathValue("id")
	if strings.TrimSpace(policyID) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "POLICY_ID_REQUIRED", "policy id is required", false, nil)
		return
	}

	if err := deps.Policies.DeactivatePolicy(r.Context(), policyID); err != nil {
		if errors.Is(err, rls.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "POLICY_NOT_FOUND", "policy was not found", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "POLICY_STORE_ERROR", "failed to deactivate policy", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deactivated", "id": policyID})
}

func toPolicyResponse(policy rls.Policy) policyResponse {
	return policyResponse{
		ID:           policy.ID,
		Name:         policy.Name,
		WorkspaceID:  policy.WorkspaceID,
		ConnectionID: policy.ConnectionID,
		TableName:    policy.TableName,
		Condition:    policy.Condition,
		Role:         policy.Role,
		UserID:       policy.UserID,
		IsActive:     policy.IsActive,
		CreatedAt:    policy.CreatedAt,
	}
}
