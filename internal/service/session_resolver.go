package service

import (
	"context"
	"net/http"

	"testcase-workflow-be/internal/pkg/logger"
	"testcase-workflow-be/internal/repository/memory"
	"testcase-workflow-be/pkg/backend"
	"testcase-workflow-be/pkg/events"
	"testcase-workflow-be/pkg/store"
	"testcase-workflow-be/pkg/workflow"
)

// sessionResolver finds workflow sessions in memory, rebuilds them from the
// backend on a miss, and reconciles their stage with the backend status.
type sessionResolver struct {
	repo      *memory.SessionRepository
	source    backend.DataSource
	publisher IPublisherService
	metrics   *WorkflowMetrics
	logger    logger.ILogger
}

// resolve returns the session and, when it had to be fetched, the backend
// details used to build it.
func (r *sessionResolver) resolve(ctx context.Context, sessionId, userId string) (*store.WorkflowSession, *backend.SessionDetails, error) {
	if sess, ok := r.repo.Get(sessionId); ok {
		return sess, nil, nil
	}

	sess := store.NewWorkflowSession(sessionId, userId, "")
	ticket := sess.Issue(store.ActionStatus)

	details, err := r.source.GetSessionDetails(ctx, sessionId)
	if err != nil {
		if apiErr, ok := backend.AsAPIError(err); ok && apiErr.Status == http.StatusNotFound {
			return nil, nil, opError("resolve session", ErrSessionNotFound)
		}
		return nil, nil, opError("resolve session", err)
	}

	sess.Commit(ticket, func(s *store.WorkflowSession) {
		s.ProjectName = details.ProjectName
		s.UserPrompt = details.UserPrompt
		s.Observe(ticket, details.Status)
	})

	stored := r.repo.GetOrAdd(sess)
	if stored == sess {
		r.logger.Info("SESSION", "Workflow session rebuilt from backend", map[string]interface{}{
			"session_id": sessionId,
			"status":     details.Status,
			"stage":      string(sess.Snapshot().State.Stage),
		})
	}
	return stored, details, nil
}

// refresh fetches the backend status and applies it. The status is stamped
// when the fetch is issued, so it cannot undo a local transition that
// completed while the fetch was in flight.
func (r *sessionResolver) refresh(ctx context.Context, sess *store.WorkflowSession) (*backend.SessionDetails, error) {
	ticket := sess.Issue(store.ActionStatus)

	details, err := r.source.GetSessionDetails(ctx, sess.ID)
	if err != nil {
		r.logger.Error("SESSION", "Status refresh failed", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
		return nil, opError("refresh status", err)
	}

	var before, after workflow.State
	committed := sess.Commit(ticket, func(s *store.WorkflowSession) {
		before = s.State
		s.Observe(ticket, details.Status)
		after = s.State
		if s.ProjectName == "" {
			s.ProjectName = details.ProjectName
		}
	})
	if !committed {
		// A newer refresh is in flight and will apply its own status.
		r.logger.Debug("SESSION", "Superseded status read ignored", map[string]interface{}{
			"session_id": sess.ID,
			"status":     details.Status,
		})
		return details, nil
	}

	r.stageChanged(ctx, sess.ID, before, after)
	return details, nil
}

func (r *sessionResolver) stageChanged(ctx context.Context, sessionId string, before, after workflow.State) {
	if before.Stage == after.Stage {
		return
	}

	r.metrics.Transitions.WithLabelValues(string(after.Stage), string(after.Source)).Inc()
	r.logger.Info("WORKFLOW", "Stage changed", map[string]interface{}{
		"session_id": sessionId,
		"from":       string(before.Stage),
		"to":         string(after.Stage),
		"source":     string(after.Source),
	})
	r.publish(ctx, events.New(events.TypeStageChanged, sessionId, map[string]interface{}{
		"from":        string(before.Stage),
		"to":          string(after.Stage),
		"source":      string(after.Source),
		"description": after.Stage.Description(),
		"steps":       workflow.Steps(after.Stage),
	}))
}

func (r *sessionResolver) staleDropped(ctx context.Context, sessionId string, action store.Action) {
	r.metrics.StaleDropped.WithLabelValues(string(action)).Inc()
	r.logger.Warn("WORKFLOW", "Discarded stale result", map[string]interface{}{
		"session_id": sessionId,
		"action":     string(action),
	})
	r.publish(ctx, events.New(events.TypeStaleResultDropped, sessionId, map[string]interface{}{
		"action": string(action),
	}))
}

func (r *sessionResolver) backendFailed(ctx context.Context, sessionId, operation string, err error) {
	r.logger.Error("WORKFLOW", "Backend call failed", map[string]interface{}{
		"session_id": sessionId,
		"operation":  operation,
		"error":      err.Error(),
	})
	r.publish(ctx, events.New(events.TypeBackendCallFailed, sessionId, map[string]interface{}{
		"operation": operation,
		"error":     err.Error(),
	}))
}

func (r *sessionResolver) messageAppended(ctx context.Context, sessionId string, msg backend.ChatMessage) {
	r.publish(ctx, events.New(events.TypeMessageAppended, sessionId, map[string]interface{}{
		"id":         msg.Id,
		"role":       string(msg.Role),
		"text":       msg.Text,
		"chat_id":    msg.ChatId,
		"created_at": msg.CreatedAt,
	}))
}

func (r *sessionResolver) publish(ctx context.Context, e events.Event) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, e); err != nil {
		r.logger.Warn("WORKFLOW", "Failed to publish event", map[string]interface{}{
			"event_type": e.EventType(),
			"error":      err.Error(),
		})
	}
}
