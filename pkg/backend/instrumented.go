package backend

import (
	"context"
	"time"

	"testcase-workflow-be/internal/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors recorded for every backend call.
type Metrics struct {
	Calls    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testcase_workflow",
			Subsystem: "backend",
			Name:      "calls_total",
			Help:      "Backend calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "testcase_workflow",
			Subsystem: "backend",
			Name:      "call_duration_seconds",
			Help:      "Backend call latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.Calls, m.Duration)
	return m
}

// Instrumented decorates a DataSource with metrics and structured logs.
type Instrumented struct {
	next    DataSource
	metrics *Metrics
	logger  logger.ILogger
}

// Ensure Instrumented implements DataSource
var _ DataSource = &Instrumented{}

func NewInstrumented(next DataSource, metrics *Metrics, logger logger.ILogger) *Instrumented {
	return &Instrumented{next: next, metrics: metrics, logger: logger}
}

func (i *Instrumented) observe(op string, start time.Time, err error, details map[string]interface{}) {
	elapsed := time.Since(start)
	outcome := outcomeOf(err)

	i.metrics.Calls.WithLabelValues(op, outcome).Inc()
	i.metrics.Duration.WithLabelValues(op).Observe(elapsed.Seconds())

	if details == nil {
		details = map[string]interface{}{}
	}
	details["operation"] = op
	details["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		details["error"] = err.Error()
		i.logger.Error("BACKEND", "Backend call failed", details)
		return
	}
	i.logger.Debug("BACKEND", "Backend call completed", details)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransportError(err):
		return "transport_error"
	default:
		if _, ok := AsAPIError(err); ok {
			return "api_error"
		}
		return "error"
	}
}

func (i *Instrumented) CreateSession(ctx context.Context, projectName string) (s *Session, err error) {
	defer func(start time.Time) {
		i.observe("create_session", start, err, map[string]interface{}{"project_name": projectName})
	}(time.Now())
	return i.next.CreateSession(ctx, projectName)
}

func (i *Instrumented) GetUserSessions(ctx context.Context) (s []Session, err error) {
	defer func(start time.Time) { i.observe("get_user_sessions", start, err, nil) }(time.Now())
	return i.next.GetUserSessions(ctx)
}

func (i *Instrumented) GetActiveSessions(ctx context.Context) (s []Session, err error) {
	defer func(start time.Time) { i.observe("get_active_sessions", start, err, nil) }(time.Now())
	return i.next.GetActiveSessions(ctx)
}

func (i *Instrumented) GetSessionDetails(ctx context.Context, sessionId string) (d *SessionDetails, err error) {
	defer func(start time.Time) {
		i.observe("get_session_details", start, err, map[string]interface{}{"session_id": sessionId})
	}(time.Now())
	return i.next.GetSessionDetails(ctx, sessionId)
}

func (i *Instrumented) FetchContext(ctx context.Context, sessionId, prompt string) (r *ContextResult, err error) {
	defer func(start time.Time) {
		i.observe("fetch_context", start, err, map[string]interface{}{"session_id": sessionId})
	}(time.Now())
	return i.next.FetchContext(ctx, sessionId, prompt)
}

func (i *Instrumented) AnalyzeRequirements(ctx context.Context, sessionId, prompt string) (r *AnalysisResult, err error) {
	defer func(start time.Time) {
		i.observe("analyze_requirements", start, err, map[string]interface{}{"session_id": sessionId})
	}(time.Now())
	return i.next.AnalyzeRequirements(ctx, sessionId, prompt)
}

func (i *Instrumented) EditRequirements(ctx context.Context, sessionId string, requirements []string) (r *EditResult, err error) {
	defer func(start time.Time) {
		i.observe("edit_requirements", start, err, map[string]interface{}{
			"session_id":        sessionId,
			"requirement_count": len(requirements),
		})
	}(time.Now())
	return i.next.EditRequirements(ctx, sessionId, requirements)
}

func (i *Instrumented) GenerateTestCases(ctx context.Context, sessionId, prompt string) (r *GenerationResult, err error) {
	defer func(start time.Time) {
		details := map[string]interface{}{"session_id": sessionId}
		if r != nil {
			details["test_case_count"] = len(r.TestCases)
		}
		i.observe("generate_test_cases", start, err, details)
	}(time.Now())
	return i.next.GenerateTestCases(ctx, sessionId, prompt)
}

func (i *Instrumented) SendMessage(ctx context.Context, chatId, text string) (m *ChatMessage, err error) {
	defer func(start time.Time) {
		i.observe("send_message", start, err, map[string]interface{}{"chat_id": chatId})
	}(time.Now())
	return i.next.SendMessage(ctx, chatId, text)
}

func (i *Instrumented) GetChats(ctx context.Context, sessionId string) (c []Chat, err error) {
	defer func(start time.Time) {
		i.observe("get_chats", start, err, map[string]interface{}{"session_id": sessionId})
	}(time.Now())
	return i.next.GetChats(ctx, sessionId)
}

func (i *Instrumented) GetMessages(ctx context.Context, chatId string) (m []ChatMessage, err error) {
	defer func(start time.Time) {
		i.observe("get_messages", start, err, map[string]interface{}{"chat_id": chatId})
	}(time.Now())
	return i.next.GetMessages(ctx, chatId)
}

func (i *Instrumented) UploadDocument(ctx context.Context, req UploadRequest) (r *UploadResult, err error) {
	defer func(start time.Time) {
		i.observe("upload_document", start, err, map[string]interface{}{"filename": req.Filename})
	}(time.Now())
	return i.next.UploadDocument(ctx, req)
}
