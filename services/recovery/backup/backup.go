// Package backup implements the recovery behavior that drives a base a signed distance along its
// heading, stopping early when the path ahead is blocked, the time allowance runs out or the goal
// is canceled.
package backup

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"go.viam.com/recovery/components/base"
	"go.viam.com/recovery/control"
	"go.viam.com/recovery/logging"
	"go.viam.com/recovery/services/recovery"
	"go.viam.com/recovery/spatialmath"
	"go.viam.com/recovery/utils"
)

const (
	stopTimeout     = time.Second
	warnInterval    = 5 * time.Second
	shutdownMessage = "behavior shut down before the goal finished"
)

// Behavior builds runs for backup goals. A Behavior can start any number of runs but the caller
// must only execute one at a time against the same base.
type Behavior struct {
	cfg       Config
	period    time.Duration
	base      base.Base
	localizer recovery.Localizer
	checker   *CollisionChecker
	order     []TerminationCheck
	clock     clock.Clock
	logger    logging.Logger
}

// NewBehavior returns a backup behavior. A nil clock uses the wall clock and a nil logger the global
// one.
func NewBehavior(
	cfg Config,
	b base.Base,
	localizer recovery.Localizer,
	oracle Oracle,
	clk clock.Clock,
	logger logging.Logger,
) (*Behavior, error) {
	if err := cfg.Validate("backup"); err != nil {
		return nil, err
	}
	if b == nil || localizer == nil || oracle == nil {
		return nil, errors.New("backup behavior needs a base, a localizer and an obstacle map")
	}
	order, err := TerminationOrderByName(cfg.TerminationOrder)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.Global().Sublogger("backup")
	}
	period := cfg.TickPeriod()
	return &Behavior{
		cfg:       cfg,
		period:    period,
		base:      b,
		localizer: localizer,
		checker:   NewCollisionChecker(oracle, cfg.Footprint(), period),
		order:     order,
		clock:     clk,
		logger:    logger,
	}, nil
}

// Config returns the behavior's configuration.
func (b *Behavior) Config() Config {
	return b.cfg
}

// TickPeriod is the control loop period.
func (b *Behavior) TickPeriod() time.Duration {
	return b.period
}

// Stop halts the base.
func (b *Behavior) Stop(ctx context.Context) error {
	return b.base.Stop(ctx, nil)
}

// Admit returns the rejection Start would give goal right now, without starting anything.
func (b *Behavior) Admit(ctx context.Context, goal recovery.Goal) error {
	if _, _, err := b.plan(goal); err != nil {
		return err
	}
	_, err := b.startPose(ctx)
	return err
}

// plan validates goal and builds its velocity planner, returning the tolerance in effect.
func (b *Behavior) plan(goal recovery.Goal) (float64, *control.VelocityPlanner, error) {
	if err := goal.Validate(); err != nil {
		return 0, nil, err
	}
	tolerance := goal.Tolerance
	if tolerance == 0 {
		tolerance = b.cfg.DefaultTolerance
	}
	planner, err := control.NewVelocityPlanner(b.cfg.PlannerConfig(), tolerance, b.period)
	if err != nil {
		return 0, nil, errors.Wrap(err, "cannot build velocity planner")
	}
	return tolerance, planner, nil
}

func (b *Behavior) startPose(ctx context.Context) (spatialmath.TimedPose, error) {
	poseCtx, cancel := context.WithTimeout(ctx, b.period)
	defer cancel()
	pose, err := b.localizer.CurrentPosition(poseCtx)
	if err != nil {
		return spatialmath.TimedPose{}, &recovery.GoalRejectedError{Code: recovery.ErrorCodePoseUnavailable, Message: err.Error()}
	}
	return pose, nil
}

// Start validates goal, captures the start pose and returns a run that is already executing.
// Rejections are returned as *recovery.GoalRejectedError. onFeedback may be nil; it is called from
// the goroutine ticking the run.
func (b *Behavior) Start(ctx context.Context, goal recovery.Goal, onFeedback func(recovery.Feedback)) (*Run, error) {
	tolerance, planner, err := b.plan(goal)
	if err != nil {
		return nil, err
	}
	start, err := b.startPose(ctx)
	if err != nil {
		return nil, err
	}

	now := b.clock.Now()
	run := &Run{
		behavior:   b,
		goal:       goal,
		tolerance:  tolerance,
		startTime:  now,
		deadline:   now.Add(goal.TimeAllowance),
		tracker:    NewDistanceTracker(start),
		planner:    planner,
		onFeedback: onFeedback,
		stalePose:  rate.Sometimes{Interval: warnInterval},
		sinkWarn:   rate.Sometimes{Interval: warnInterval},
		logger:     b.logger,
	}
	run.status.Store(uint32(recovery.StatusExecuting))
	b.logger.CDebugw(ctx, "backup goal started",
		"target_distance", goal.TargetDistance,
		"speed_limit", goal.SpeedLimit,
		"time_allowance", goal.TimeAllowance,
		"tolerance", tolerance,
		"start_pose", start.Pose.String(),
	)
	return run, nil
}

// Run is the state of one backup goal. Tick, Execute and Abort must be called from a single
// goroutine; Cancel and Status are safe from any goroutine.
type Run struct {
	behavior   *Behavior
	goal       recovery.Goal
	tolerance  float64
	startTime  time.Time
	deadline   time.Time
	tracker    *DistanceTracker
	planner    *control.VelocityPlanner
	onFeedback func(recovery.Feedback)
	logger     logging.Logger

	cancelRequested atomic.Bool
	status          atomic.Uint32
	result          *recovery.Result

	stalePose rate.Sometimes
	sinkWarn  rate.Sometimes
}

// Goal returns the goal being run.
func (r *Run) Goal() recovery.Goal {
	return r.goal
}

// Tolerance is the tolerance in effect, after defaults.
func (r *Run) Tolerance() float64 {
	return r.tolerance
}

// Deadline is when the goal times out.
func (r *Run) Deadline() time.Time {
	return r.deadline
}

// Status returns the current lifecycle status.
func (r *Run) Status() recovery.Status {
	return recovery.Status(r.status.Load())
}

// Cancel requests cancellation. It takes effect on the next tick.
func (r *Run) Cancel() {
	r.cancelRequested.Store(true)
}

// Tick runs one control step. It returns the result and true once the run is terminal; further
// calls return the same result without touching the base.
func (r *Run) Tick(ctx context.Context) (recovery.Result, bool) {
	if r.result != nil {
		return *r.result, true
	}
	if ctx.Err() != nil {
		return r.Abort(ctx, shutdownMessage), true
	}
	b := r.behavior
	tickCtx, cancel := context.WithTimeout(ctx, b.period)
	defer cancel()

	if sample, err := b.localizer.CurrentPosition(tickCtx); err != nil {
		r.stalePose.Do(func() {
			r.logger.Warnw("pose unavailable, using last known pose", "error", err)
		})
	} else {
		r.tracker.Update(sample)
	}

	traveled := r.tracker.Distance()
	pose := r.tracker.Pose()
	ts := &TickState{
		Now:             b.clock.Now(),
		Deadline:        r.deadline,
		Traveled:        traveled,
		Target:          r.goal.TargetDistance,
		Tolerance:       r.tolerance,
		CancelRequested: r.cancelRequested.Load(),
		Command:         r.planner.Plan(r.goal.TargetDistance-traveled, r.goal.SpeedLimit),
	}
	ts.safety = func() (bool, error) {
		return b.checker.IsSafe(tickCtx, pose, ts.Command)
	}

	if outcome, check, done := Evaluate(b.order, ts); done {
		if outcome.Code == recovery.ErrorCodeCollisionRisk && ctx.Err() != nil {
			return r.Abort(ctx, shutdownMessage), true
		}
		r.logger.CDebugw(ctx, "termination check fired", "check", check, "distance_traveled", traveled)
		return r.finish(ctx, outcome), true
	}

	linear := r3.Vector{Y: ts.Command.Linear * 1000}
	angular := r3.Vector{Z: utils.RadToDeg(ts.Command.Angular)}
	if err := b.base.SetVelocity(tickCtx, linear, angular, nil); err != nil {
		r.sinkWarn.Do(func() {
			r.logger.Warnw("failed to command base velocity", "error", err)
		})
	}
	if r.onFeedback != nil {
		r.onFeedback(recovery.Feedback{DistanceTraveled: traveled})
	}
	return recovery.Result{}, false
}

// Execute ticks the run at the behavior's cycle frequency until it is terminal. If ctx is done
// first the run is aborted with a canceled result.
func (r *Run) Execute(ctx context.Context) recovery.Result {
	ticker := r.behavior.clock.Ticker(r.behavior.period)
	defer ticker.Stop()
	for {
		if result, done := r.Tick(ctx); done {
			return result
		}
		select {
		case <-ctx.Done():
			return r.Abort(ctx, shutdownMessage)
		case <-ticker.C:
		}
	}
}

// Abort stops the base and ends the run as canceled with the distance traveled so far. It is a
// no-op on a terminal run.
func (r *Run) Abort(ctx context.Context, reason string) recovery.Result {
	if r.result != nil {
		return *r.result
	}
	poseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.behavior.period)
	defer cancel()
	if sample, err := r.behavior.localizer.CurrentPosition(poseCtx); err == nil {
		r.tracker.Update(sample)
	}
	return r.finish(ctx, Outcome{Status: recovery.StatusCanceled, Code: recovery.ErrorCodeCanceled, Message: reason})
}

func (r *Run) finish(ctx context.Context, outcome Outcome) recovery.Result {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if err := r.behavior.base.Stop(stopCtx, nil); err != nil {
		r.logger.Errorw("failed to stop base", "error", err)
	}

	result := recovery.Result{
		Status:           outcome.Status,
		TotalElapsedTime: r.behavior.clock.Since(r.startTime),
		ErrorCode:        outcome.Code,
		ErrorMessage:     outcome.Message,
		DistanceTraveled: r.tracker.Distance(),
	}
	r.result = &result
	r.status.Store(uint32(outcome.Status))
	r.logger.Infow("backup goal finished",
		"status", result.Status.String(),
		"error_code", result.ErrorCode.String(),
		"distance_traveled", result.DistanceTraveled,
		"elapsed", result.TotalElapsedTime,
	)
	return result
}
