package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/querygate/querygate/internal/audit"
	"github.com/querygate/querygate/internal/auth"
	"github.com/querygate/querygate/internal/config"
	"github.com/querygate/querygate/internal/connections"
	"github.com/querygate/querygate/internal/observability"
	"github.com/querygate/querygate/internal/rls"
	"github.com/querygate/querygate/internal/security"
	"github.com/querygate/querygate/internal/service"
)

type ReadinessCheck func(ctx context.Context) error


type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Query             *service.Service
	Policies          rls.Store
	Connections       connections.Store
	AuditLog          audit.Store
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		handleRawQuery(deps, w, r)
	})
	protected.HandleFunc("POST /v1/query/paginated", func(w http.ResponseWriter, r *http.Request) {
		handlePaginatedQuery(deps, w, r)
	})
	protected.HandleFunc("POST /v1/aggregate", func(w http.ResponseWriter, r *http.Request) {
		handleAggregate(deps, w, r)
	})
	protected.HandleFunc("GET /v1/policies", func(w http.ResponseWriter, r *http.Request) {
		handleListPolicies(deps, w, r)
	})
	protected.HandleFunc("POST /v1/policies", func(w http.ResponseWriter, r *http.Request) {
		handleCreatePolicy(deps, w, r)
	})
	protected.HandleFunc("DELETE /v1/policies/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleDeactivatePolicy(deps, w, r)
	})
	protected.HandleFunc("GET /v1/connections", func(w http.ResponseWriter, r *http.Request) {
		handleListConnections(deps, w, r)
	})
	protected.HandleFunc("POST /v1/connections", func(w http.ResponseWriter, r *http.Request) {
		handleCreateConnection(deps, w, r)
	})
	protected.HandleFunc("DELETE /v1/connections/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleDeleteConnection(deps, w, r)
	})
	protected.HandleFunc("GET /v1/audit", func(w http.ResponseWriter, r *http.Request) {
		handleListAudit(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("POST /v1/query", protectedHandler)
	mux.Handle("POST /v1/query/paginated", protectedHandler)
	mux.Handle("POST /v1/aggregate", protectedHandler)
	mux.Handle("GET /v1/policies", protectedHandler)
	mux.Handle("POST /v1/policies", protectedHandler)
	mux.Handle("DELETE /v1/policies/{id}", protectedHandler)
	mux.Handle("GET /v1/connections", protectedHandler)
	mux.Handle("POST /v1/connections", protectedHandler)
	mux.Handle("DELETE /v1/connections/{id}", protectedHandler)
	mux.Handle("GET /v1/audit", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckMetadataDSN(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Metadata.DSN == "" {
			return errors.New("metadata dsn is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// securityContextFromRequest builds the mandatory caller identity.
// With auth enabled it comes from the validated API key; without it
// (dev profiles) the caller must still supply identity headers; there
// is no fallback "system" identity.
func securityContextFromRequest(r *http.Request) (security.Context, error) {
	if sctx, ok := auth.SecurityContextFromContext(r.Context()); ok {
		return sctx, nil
	}

	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
	if userID == "" || tenantID == "" {
		return security.Context{}, fmt.Errorf("caller identity is required")
	}
	role, err := security.ParseRole(r.Header.Get("X-Role"))
	if err != nil {
		return security.Context{}, err
	}
	return security.Context{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		Segment:  strings.TrimSpace(r.Header.Get("X-Segment")),
	}, nil
}

func requireAdmin(r *http.Request) (security.Context, error) {
	sctx, err := securityContextFromRequest(r)
	if err != nil {
		return security.Context{}, err
	}
	if !sctx.IsAdmin() {
		return security.Context{}, fmt.Errorf("admin role is required")
	}
	return sctx, nil
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
