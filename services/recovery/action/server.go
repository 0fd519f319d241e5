// Package action exposes a recovery behavior through a goal, feedback, result and cancel
// interface. A server runs at most one goal at a time.
package action

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/recovery/logging"
	"go.viam.com/recovery/services/recovery"
	"go.viam.com/recovery/services/recovery/backup"
	"go.viam.com/recovery/utils"
)

var (
	// ErrGoalActive is returned by Submit when a goal is executing and preemption is off.
	ErrGoalActive = errors.New("a goal is already executing")
	// ErrServerClosed is returned by Submit after Close.
	ErrServerClosed = errors.New("action server is closed")
)

const stopTimeout = time.Second

// GoalStatus summarizes a goal for ListGoalStatuses.
type GoalStatus struct {
	ID          uuid.UUID
	Goal        recovery.Goal
	Status      recovery.Status
	SubmittedAt time.Time
}

// Server accepts backup goals and executes them one at a time on a background worker.
type Server struct {
	cfg      Config
	behavior *backup.Behavior
	clock    clock.Clock
	logger   logging.Logger
	workers  *utils.StoppableWorkers

	// submitMu serializes Submit so preemption waits for the old goal before starting the new one.
	submitMu sync.Mutex

	mu      sync.Mutex
	active  *GoalHandle
	history []*GoalHandle
}

// NewServer returns a server for behavior. A nil clock uses the wall clock and a nil logger the
// global one.
func NewServer(cfg Config, behavior *backup.Behavior, clk clock.Clock, logger logging.Logger) (*Server, error) {
	if err := cfg.Validate("action"); err != nil {
		return nil, err
	}
	if behavior == nil {
		return nil, errors.New("action server needs a behavior")
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.Global().Sublogger("action")
	}
	return &Server{
		cfg:      cfg,
		behavior: behavior,
		clock:    clk,
		logger:   logger,
		workers:  utils.NewBackgroundStoppableWorkers(),
	}, nil
}

// Submit validates goal and starts executing it. Invalid goals, and goals that cannot capture a
// start pose, are rejected with a *recovery.GoalRejectedError and leave any active goal running.
// While another goal executes Submit returns ErrGoalActive, or cancels that goal and waits for it
// when preemption is configured.
func (s *Server) Submit(ctx context.Context, goal recovery.Goal) (*GoalHandle, error) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	if s.workers.Context().Err() != nil {
		return nil, ErrServerClosed
	}
	// a goal that would be rejected must not disturb the active one
	if err := s.behavior.Admit(ctx, goal); err != nil {
		s.logger.Infow("goal rejected", "error", err)
		return nil, err
	}
	if active := s.activeGoal(); active != nil {
		if !s.cfg.Preempt {
			return nil, ErrGoalActive
		}
		s.logger.Infow("preempting active goal", "id", active.ID().String())
		active.Cancel()
		if _, err := active.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "waiting for preempted goal to stop")
		}
	}

	handle := newGoalHandle(goal, s.cfg.FeedbackBuffer, s.clock.Now(), s.logger)
	run, err := s.behavior.Start(ctx, goal, handle.publishFeedback)
	if err != nil {
		s.logger.Infow("goal rejected", "error", err)
		return nil, err
	}
	handle.start(run)

	s.mu.Lock()
	s.active = handle
	s.history = append([]*GoalHandle{handle}, s.history...)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[:s.cfg.HistorySize]
	}
	s.mu.Unlock()

	debugName := logging.DebugModeName(ctx)
	if !s.workers.Add(func(ctx context.Context) {
		if debugName != "" {
			ctx = logging.EnableDebugMode(ctx, debugName)
		}
		handle.finish(run.Execute(ctx))
	}) {
		handle.finish(run.Abort(ctx, "action server closed"))
		return nil, ErrServerClosed
	}
	handle.logger.CDebugw(ctx, "goal accepted", "target_distance", goal.TargetDistance)
	return handle, nil
}

func (s *Server) activeGoal() *GoalHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.Status().IsTerminal() {
		return nil
	}
	return s.active
}

// Goal looks up a goal still held in the history.
func (s *Server) Goal(id uuid.UUID) (*GoalHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Find(s.history, func(h *GoalHandle) bool {
		return h.ID() == id
	})
}

// ListGoalStatuses returns the most recent goals, newest first.
func (s *Server) ListGoalStatuses() []GoalStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.history, func(h *GoalHandle, _ int) GoalStatus {
		return GoalStatus{ID: h.ID(), Goal: h.Goal(), Status: h.Status(), SubmittedAt: h.SubmittedAt()}
	})
}

// Close cancels the active goal, waits for its result and leaves the base stopped. Submit fails
// with ErrServerClosed afterwards.
func (s *Server) Close(ctx context.Context) error {
	stopped := make(chan struct{})
	goutils.PanicCapturingGo(func() {
		defer close(stopped)
		s.workers.Stop()
	})

	var err error
	select {
	case <-stopped:
	case <-ctx.Done():
		err = errors.Wrap(ctx.Err(), "timed out waiting for the active goal to stop")
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	return multierr.Combine(err, errors.Wrap(s.behavior.Stop(stopCtx), "failed to stop base"))
}
