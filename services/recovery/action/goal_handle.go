package action

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"go.viam.com/recovery/logging"
	"go.viam.com/recovery/services/recovery"
	"go.viam.com/recovery/services/recovery/backup"
)

// GoalHandle is the caller's view of an accepted goal.
type GoalHandle struct {
	id          uuid.UUID
	goal        recovery.Goal
	submittedAt time.Time
	logger      logging.Logger

	run      *backup.Run
	status   atomic.Uint32
	feedback chan recovery.Feedback
	dropped  rate.Sometimes

	finishOnce sync.Once
	done       chan struct{}
	result     recovery.Result
}

func newGoalHandle(goal recovery.Goal, feedbackBuffer int, submittedAt time.Time, logger logging.Logger) *GoalHandle {
	id := uuid.New()
	h := &GoalHandle{
		id:          id,
		goal:        goal,
		submittedAt: submittedAt,
		logger:      logger.Sublogger(id.String()),
		feedback:    make(chan recovery.Feedback, feedbackBuffer),
		dropped:     rate.Sometimes{Interval: 5 * time.Second},
		done:        make(chan struct{}),
	}
	h.status.Store(uint32(recovery.StatusAccepted))
	return h
}

// ID uniquely identifies the goal.
func (h *GoalHandle) ID() uuid.UUID {
	return h.id
}

// Goal returns the submitted goal.
func (h *GoalHandle) Goal() recovery.Goal {
	return h.goal
}

// SubmittedAt is when the goal was accepted.
func (h *GoalHandle) SubmittedAt() time.Time {
	return h.submittedAt
}

// Status returns the goal's lifecycle status.
func (h *GoalHandle) Status() recovery.Status {
	return recovery.Status(h.status.Load())
}

// Cancel asks the goal to stop. The result reports StatusCanceled unless the goal reached
// another terminal status first.
func (h *GoalHandle) Cancel() {
	h.run.Cancel()
}

// Feedback streams progress while the goal executes. It is closed once the result is available.
func (h *GoalHandle) Feedback() <-chan recovery.Feedback {
	return h.feedback
}

// Done is closed once the result is available.
func (h *GoalHandle) Done() <-chan struct{} {
	return h.done
}

// Result returns the result if the goal is terminal.
func (h *GoalHandle) Result() (recovery.Result, bool) {
	select {
	case <-h.done:
		return h.result, true
	default:
		return recovery.Result{}, false
	}
}

// Wait blocks until the goal is terminal or ctx is done.
func (h *GoalHandle) Wait(ctx context.Context) (recovery.Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return recovery.Result{}, ctx.Err()
	}
}

func (h *GoalHandle) start(run *backup.Run) {
	h.run = run
	h.status.Store(uint32(run.Status()))
}

func (h *GoalHandle) publishFeedback(fb recovery.Feedback) {
	select {
	case h.feedback <- fb:
	default:
		h.dropped.Do(func() {
			h.logger.Warnw("feedback reader is behind, dropping feedback", "distance_traveled", fb.DistanceTraveled)
		})
	}
}

func (h *GoalHandle) finish(result recovery.Result) {
	h.finishOnce.Do(func() {
		h.result = result
		h.status.Store(uint32(result.Status))
		close(h.feedback)
		close(h.done)
	})
}
