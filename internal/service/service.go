package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/querygate/querygate/internal/aggregate"
	"github.com/querygate/querygate/internal/audit"
	"github.com/querygate/querygate/internal/executor"
	"github.com/querygate/querygate/internal/guard"
	"github.com/querygate/querygate/internal/observability"
	"github.com/querygate/querygate/internal/query"
	"github.com/querygate/querygate/internal/rls"
	"github.com/querygate/querygate/internal/security"
)

const (
	ActionExecuteQuery          = "execute_query"
	ActionExecutePaginatedQuery = "execute_paginated_query"
	ActionExecuteAggregation    = "execute_aggregation"
)

// Service is the externally consumed surface of the gateway: three
// call shapes, each validated by the guard, optionally rewritten for
// row-level security, executed on a per-call connection, and audited
// whether it succeeds or fails.
type Service struct {
	Policies rls.Resolver
	Executor *executor.Executor
	Audit    *audit.Recorder
	Logger   *slog.Logger
}

// ExecuteRawQuery validates and runs a caller-composed statement with
// an optional row limit.
func (s *Service) ExecuteRawQuery(ctx context.Context, sctx security.Context, req query.Request) query.Result {
	return s.runSQL(ctx, sctx, ActionExecuteQuery, req, func(sqlText string) query.Result {
		return s.Executor.ExecuteRaw(ctx, req.ConnectionID, sqlText, req.Limit, sctx)
	})
}

// ExecutePaginatedQuery validates and runs a caller-composed statement
// with count+limit/offset pagination.
func (s *Service) ExecutePaginatedQuery(ctx context.Context, sctx security.Context, req query.Request) query.Result {
	return s.runSQL(ctx, sctx, ActionExecutePaginatedQuery, req, func(sqlText string) query.Result {
		return s.Executor.ExecutePaginated(ctx, req.ConnectionID, sqlText, req.Page, req.PageSize, sctx)
	})
}

func (s *Service) runSQL(ctx context.Context, sctx security.Context, action string, req query.Request, run func(sqlText string) query.Result) query.Result {
	start := time.Now()

	if err := sctx.Validate(); err != nil {
		result := query.Failure(fmt.Sprintf("invalid security context: %v", err), 0)
		s.recordAudit(ctx, sctx, action, req.ConnectionID, req.SQL, result)
		return result
	}

	// Guard first: a denied statement never opens a connection.
	if err := guard.Check(req.SQL); err != nil {
		observability.IncrementGuardRejection()
		result := query.Failure(err.Error(), time.Since(start).Milliseconds())
		s.recordAudit(ctx, sctx, action, req.ConnectionID, req.SQL, result)
		return result
	}

	sqlText := req.SQL
	if s.Policies != nil {
		policies, err := s.Policies.PoliciesForUser(ctx, rls.PolicyQuery{
			UserID:       sctx.UserID,
			WorkspaceID:  req.WorkspaceID,
			ConnectionID: req.ConnectionID,
			Role:         string(sctx.Role),
		})
		if err != nil {
			result := query.Failure(fmt.Sprintf("resolve row-level security policies: %v", err), time.Since(start).Milliseconds())
			s.recordAudit(ctx, sctx, action, req.ConnectionID, req.SQL, result)
			return result
		}
		rewritten, applied := rls.Apply(sqlText, policies)
		if applied != nil {
			observability.IncrementRLSRewrite()
			if s.Logger != nil {
				s.Logger.InfoContext(ctx, "rls policy applied",
					slog.String("policy_id", applied.ID),
					slog.String("table", applied.TableName),
					slog.String("connection_id", req.ConnectionID),
				)
			}
			sqlText = rewritten
		}
	}

	result := run(sqlText)
	observability.ObserveQueryExecution(action, result.Success, time.Since(start))
	s.recordAudit(ctx, sctx, action, req.ConnectionID, req.SQL, result)
	return result
}

// ExecuteAggregation builds and runs a GROUP BY query from a
// declarative spec. No raw SQL enters on this path, so the guard and
// text rewriter do not apply; segment-based session RLS still does.
func (s *Service) ExecuteAggregation(ctx context.Context, sctx security.Context, spec aggregate.Spec) query.Result {
	start := time.Now()
	details := fmt.Sprintf("aggregation on %s", spec.Table)

	if err := sctx.Validate(); err != nil {
		result := query.Failure(fmt.Sprintf("invalid security context: %v", err), 0)
		s.recordAudit(ctx, sctx, ActionExecuteAggregation, spec.ConnectionID, details, result)
		return result
	}

	sqlText, args, err := aggregate.Build(spec)
	if err != nil {
		result := query.Failure(fmt.Sprintf("build aggregation: %v", err), time.Since(start).Milliseconds())
		s.recordAudit(ctx, sctx, ActionExecuteAggregation, spec.ConnectionID, details, result)
		return result
	}

	result := s.Executor.ExecuteArgs(ctx, spec.ConnectionID, sqlText, args, sctx)
	observability.ObserveQueryExecution(ActionExecuteAggregation, result.Success, time.Since(start))
	s.recordAudit(ctx, sctx, ActionExecuteAggregation, spec.ConnectionID, sqlText, result)
	return result
}

func (s *Service) recordAudit(ctx context.Context, sctx security.Context, action, resource, details string, result query.Result) {
	status := audit.StatusSuccess
	if !result.Success {
		status = audit.StatusFailure
		if result.Error != "" {
			details = fmt.Sprintf("%s | error: %s", details, result.Error)
		}
	}
	elapsed := result.ExecutionTimeMs
	rowCount := int64(result.RowCount)
	s.Audit.Record(ctx, audit.AppendInput{
		Context:         sctx,
		Action:          action,
		Resource:        resource,
		Details:         details,
		Status:          status,
		ExecutionTimeMs: &elapsed,
		RowCount:        &rowCount,
	})
}
