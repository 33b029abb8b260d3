package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/querygate/querygate/internal/connections"
)

// connectionResponse deliberately omits the stored password.
type connectionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Engine    string    `json:"engine"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Database  string    `json:"database"`
	Username  string    `json:"username"`
	SSLMode   string    `json:"ssl_mode"`
	CreatedAt time.Time `json:"created_at"`
}

type createConnectionRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Engine   string `json:"engine"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`
}

func handleListConnections(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Connections == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CONNECTIONS_NOT_CONFIGURED", "connection store is not configured", false, nil)
		return
	}
	if _, err := requireAdmin(r); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	targets, err := deps.Connections.ListConnections(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "CONNECTION_STORE_ERROR", "failed to list connections", true, map[string]any{"details": err.Error()})
		return
	}

	response := make([]connectionResponse, 0, len(targets))
	for _, target := range targets {
		response = append(response, toConnectionResponse(target))
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": response})
}

func handleCreateConnection(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Connections == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CONNECTIONS_NOT_CONFIGURED", "connection store is not configured", false, nil)
		return
	}
	if _, err := requireAdmin(r); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request createConnectionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid connection body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.ID) == "" || strings.TrimSpace(request.Name) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "CONNECTION_INVALID", "id and name are required", false, nil)
		return
	}
	if strings.TrimSpace(request.Host) == "" || strings.TrimSpace(request.Database) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "CONNECTION_INVALID", "host and database are required", false, nil)
		return
	}
	engine := strings.TrimSpace(request.Engine)
	if engine == "" {
		engine = connections.EnginePostgres
	}
	if engine != connections.EnginePostgres {
		writeError(r.Context(), w, http.StatusBadRequest, "ENGINE_UNSUPPORTED", (&connections.UnsupportedEngineError{Engine: engine}).Error(), false, nil)
		return
	}

	target, err := deps.Connections.CreateConnection(r.Context(), connections.CreateTargetInput{
		ID:       request.ID,
		Name:     request.Name,
		Engine:   engine,
		Host:     request.Host,
		Port:     request.Port,
		Database: request.Database,
		Username: request.Username,
		Password: request.Password,
		SSLMode:  request.SSLMode,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "CONNECTION_STORE_ERROR", "failed to create connection", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, toConnectionResponse(target))
}

func handleDeleteConnection(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Connections == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CONNECTIONS_NOT_CONFIGURED", "connection store is not configured", false, nil)
		return
	}
	if _, err := requireAdmin(r); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	connectionID := r.PathValue("id")
	if strings.TrimSpace(connectionID) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "CONNECTION_ID_REQUIRED", "connection id is required", false, nil)
		return
	}

	deleted, err := deps.Connections.DeleteConnection(r.Context(), connectionID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "CONNECTION_STORE_ERROR", "failed to delete connection", true, map[string]any{"details": err.Error()})
		return
	}
	if !deleted {
		writeError(r.Context(), w, http.StatusNotFound, "CONNECTION_NOT_FOUND", "connection was not found", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": connectionID})
}

func toConnectionResponse(target connections.Target) connectionResponse {
	return connectionResponse{
		ID:        target.ID,
		Name:      target.Name,
		Engine:    target.Engine,
		Host:      target.Host,
		Port:      target.Port,
		Database:  target.Database,
		Username:  target.Username,
		SSLMode:   target.SSLMode,
		CreatedAt: target.CreatedAt,
	}
}
