package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"testcase-workflow-be/internal/pkg/logger"
	"testcase-workflow-be/pkg/store"
	"testcase-workflow-be/pkg/workflow"

	"github.com/robfig/cron/v3"
)

const pollTimeout = 20 * time.Second

// SessionLister yields the sessions to reconcile.
type SessionLister interface {
	All() []*store.WorkflowSession
}

// Refresher re-reads a session's backend status and applies it.
type Refresher interface {
	Refresh(ctx context.Context, userId, sessionId string) error
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context, userId, sessionId string) error

func (f RefreshFunc) Refresh(ctx context.Context, userId, sessionId string) error {
	return f(ctx, userId, sessionId)
}

// StatusPoller periodically reconciles in-memory sessions with the backend,
// so stages follow changes made by other clients.
type StatusPoller struct {
	spec      string
	sessions  SessionLister
	refresher Refresher
	logger    logger.ILogger
	cron      *cron.Cron
}

func NewStatusPoller(spec string, sessions SessionLister, refresher Refresher, log logger.ILogger) (*StatusPoller, error) {
	if spec == "" {
		return nil, errors.New("status poll spec is required")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid status poll spec: %w", err)
	}

	return &StatusPoller{
		spec:      spec,
		sessions:  sessions,
		refresher: refresher,
		logger:    log,
	}, nil
}

func (p *StatusPoller) Start() error {
	p.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := p.cron.AddFunc(p.spec, p.run); err != nil {
		return fmt.Errorf("failed to add status poll job: %w", err)
	}
	p.cron.Start()

	p.logger.Info("POLLER", "Status poller started", map[string]interface{}{"spec": p.spec})
	return nil
}

// Stop waits for a running poll to finish or ctx to end.
func (p *StatusPoller) Stop(ctx context.Context) {
	if p.cron == nil {
		return
	}
	select {
	case <-p.cron.Stop().Done():
	case <-ctx.Done():
	}
	p.logger.Info("POLLER", "Status poller stopped", nil)
}

func (p *StatusPoller) run() {
	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()
	p.PollOnce(ctx)
}

// PollOnce refreshes every session that has not completed and returns how
// many refreshes failed.
func (p *StatusPoller) PollOnce(ctx context.Context) int {
	failed := 0
	polled := 0
	for _, sess := range p.sessions.All() {
		snap := sess.Snapshot()
		if snap.State.Stage == workflow.StageComplete {
			continue
		}
		polled++

		if err := p.refresher.Refresh(ctx, snap.UserID, snap.ID); err != nil {
			failed++
			p.logger.Warn("POLLER", "Status refresh failed", map[string]interface{}{
				"session_id": snap.ID,
				"error":      err.Error(),
			})
		}
	}

	p.logger.Debug("POLLER", "Status poll finished", map[string]interface{}{
		"polled": polled,
		"failed": failed,
	})
	return failed
}
