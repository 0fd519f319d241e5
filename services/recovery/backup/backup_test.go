package backup

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"

	"go.viam.com/recovery/components/base/fake"
	"go.viam.com/recovery/costmap"
	"go.viam.com/recovery/logging"
	"go.viam.com/recovery/services/recovery"
	"go.viam.com/recovery/spatialmath"
	"go.viam.com/recovery/testutils/inject"
)

const maxTicks = 1000

type harness struct {
	clk      *clock.Mock
	base     *fake.Base
	grid     *costmap.Grid
	behavior *Behavior
	logs     *observer.ObservedLogs
	feedback []recovery.Feedback
}

// newHarness builds a behavior over a fake base at the origin facing +X in an empty 10m costmap.
func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	logger, logs := logging.NewObservedTestLogger(t)
	clk := clock.NewMock()
	grid, err := costmap.NewGrid(costmap.DefaultConfig())
	test.That(t, err, test.ShouldBeNil)
	b := fake.NewBase(clk, spatialmath.NewZeroPose(), logger)

	behavior, err := NewBehavior(cfg, b, b, grid, clk, logger)
	test.That(t, err, test.ShouldBeNil)
	return &harness{clk: clk, base: b, grid: grid, behavior: behavior, logs: logs}
}

func (h *harness) start(t *testing.T, goal recovery.Goal) *Run {
	t.Helper()
	run, err := h.behavior.Start(context.Background(), goal, func(fb recovery.Feedback) {
		h.feedback = append(h.feedback, fb)
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, run.Status(), test.ShouldEqual, recovery.StatusExecuting)
	return run
}

// drive ticks the run, advancing the mock clock one period between ticks, until it is terminal.
func (h *harness) drive(t *testing.T, run *Run) (recovery.Result, int) {
	t.Helper()
	ctx := context.Background()
	for ticks := 1; ticks <= maxTicks; ticks++ {
		if result, done := run.Tick(ctx); done {
			return result, ticks
		}
		h.clk.Add(h.behavior.TickPeriod())
	}
	t.Fatalf("run did not finish within %d ticks", maxTicks)
	return recovery.Result{}, 0
}

func (h *harness) addWall() {
	h.grid.MarkRectangle(r2.RectFromPoints(r2.Point{X: -1.1, Y: -1}, r2.Point{X: -1.0, Y: 1}), costmap.LethalObstacle)
}

func TestNewBehavior(t *testing.T) {
	logger := logging.NewTestLogger(t)
	b := fake.NewBase(clock.NewMock(), spatialmath.NewZeroPose(), logger)
	oracle := &inject.Oracle{}

	cfg := DefaultConfig()
	cfg.CycleFrequencyHz = 0
	_, err := NewBehavior(cfg, b, b, oracle, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `error validating "backup"`)

	_, err = NewBehavior(DefaultConfig(), nil, b, oracle, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	behavior, err := NewBehavior(DefaultConfig(), b, b, oracle, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, behavior.TickPeriod(), test.ShouldEqual, 100*time.Millisecond)
}

func TestStartRejections(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	_, err := h.behavior.Start(context.Background(), recovery.Goal{TargetDistance: -1, TimeAllowance: time.Second}, nil)
	code, ok := recovery.RejectionCode(err)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, code, test.ShouldEqual, recovery.ErrorCodeInvalidGoal)

	logger := logging.NewTestLogger(t)
	noPose := &inject.Localizer{CurrentPositionFunc: func(ctx context.Context) (spatialmath.TimedPose, error) {
		return spatialmath.TimedPose{}, recovery.ErrNoPose
	}}
	behavior, err := NewBehavior(DefaultConfig(), h.base, noPose, h.grid, h.clk, logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = behavior.Start(context.Background(), recovery.Goal{TargetDistance: -1, SpeedLimit: 0.1, TimeAllowance: time.Second}, nil)
	code, ok = recovery.RejectionCode(err)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, code, test.ShouldEqual, recovery.ErrorCodePoseUnavailable)
	test.That(t, err.Error(), test.ShouldContainSubstring, recovery.ErrNoPose.Error())
}

func TestDefaultTolerance(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	run := h.start(t, recovery.Goal{TargetDistance: -0.1, SpeedLimit: 0.1, TimeAllowance: time.Second})
	test.That(t, run.Tolerance(), test.ShouldEqual, defaultTolerance)
	test.That(t, run.Deadline().Equal(h.clk.Now().Add(time.Second)), test.ShouldBeTrue)
}

func TestBackupScenarios(t *testing.T) {
	for _, order := range []string{GoalFirstOrderName, SafetyFirstOrderName} {
		for _, tc := range []struct {
			name      string
			target    float64
			tolerance float64
			wall      bool
			code      recovery.ErrorCode
		}{
			{"short clear backup", -0.05, 0.01, false, recovery.ErrorCodeNone},
			{"medium clear backup", -0.2, 0.1, false, recovery.ErrorCodeNone},
			{"long backup into wall", -2.0, 0.1, true, recovery.ErrorCodeCollisionRisk},
		} {
			t.Run(order+"/"+tc.name, func(t *testing.T) {
				cfg := DefaultConfig()
				cfg.TerminationOrder = order
				h := newHarness(t, cfg)
				if tc.wall {
					h.addWall()
				}
				goal := recovery.Goal{
					TargetDistance: tc.target,
					SpeedLimit:     0.25,
					TimeAllowance:  30 * time.Second,
					Tolerance:      tc.tolerance,
				}
				run := h.start(t, goal)
				result, ticks := h.drive(t, run)

				test.That(t, result.ErrorCode, test.ShouldEqual, tc.code)
				test.That(t, run.Status(), test.ShouldEqual, result.Status)
				test.That(t, result.DistanceTraveled, test.ShouldBeLessThan, 0)
				test.That(t, len(h.feedback), test.ShouldEqual, ticks-1)

				switch tc.code {
				case recovery.ErrorCodeNone:
					test.That(t, result.Status, test.ShouldEqual, recovery.StatusSucceeded)
					test.That(t, result.ErrorMessage, test.ShouldBeEmpty)
					test.That(t, math.Abs(result.DistanceTraveled-tc.target), test.ShouldBeLessThanOrEqualTo, tc.tolerance)
				case recovery.ErrorCodeCollisionRisk:
					test.That(t, result.Status, test.ShouldEqual, recovery.StatusFailed)
					test.That(t, math.Abs(result.DistanceTraveled), test.ShouldBeLessThan, math.Abs(tc.target))
					// the rear of the footprint stops short of the wall at x = -1.0
					test.That(t, result.DistanceTraveled, test.ShouldBeGreaterThan, -0.81)
					test.That(t, result.DistanceTraveled, test.ShouldBeLessThan, -0.7)
				}

				for _, cmd := range h.base.Commands() {
					test.That(t, cmd.Linear, test.ShouldBeLessThanOrEqualTo, 0)
					test.That(t, math.Abs(cmd.Linear), test.ShouldBeLessThanOrEqualTo, goal.SpeedLimit+1e-9)
					test.That(t, cmd.Angular, test.ShouldEqual, 0)
				}
				moving, err := h.base.IsMoving(context.Background())
				test.That(t, err, test.ShouldBeNil)
				test.That(t, moving, test.ShouldBeFalse)
				test.That(t, h.base.StopCount(), test.ShouldEqual, 1)
			})
		}
	}
}

func TestTerminalRunIsInert(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	run := h.start(t, recovery.Goal{TargetDistance: -0.2, SpeedLimit: 0.25, TimeAllowance: 30 * time.Second, Tolerance: 0.1})
	result, _ := h.drive(t, run)

	feedbackCount := len(h.feedback)
	commandCount := len(h.base.Commands())
	for i := 0; i < 5; i++ {
		h.clk.Add(h.behavior.TickPeriod())
		again, done := run.Tick(context.Background())
		test.That(t, done, test.ShouldBeTrue)
		test.That(t, again, test.ShouldResemble, result)
	}
	test.That(t, run.Abort(context.Background(), "late"), test.ShouldResemble, result)
	test.That(t, len(h.feedback), test.ShouldEqual, feedbackCount)
	test.That(t, len(h.base.Commands()), test.ShouldEqual, commandCount)
	test.That(t, h.base.StopCount(), test.ShouldEqual, 1)
}

// The goal is within tolerance on the first tick while the footprint already overlaps an
// obstacle. GoalFirstOrder reports success here although the pose is unsafe; SafetyFirstOrder
// reports the collision risk.
func TestGoalReachedWhileFootprintOccupied(t *testing.T) {
	goal := recovery.Goal{TargetDistance: -0.05, SpeedLimit: 0.25, TimeAllowance: 30 * time.Second, Tolerance: 0.1}

	t.Run("goal first reports success", func(t *testing.T) {
		h := newHarness(t, DefaultConfig())
		h.grid.MarkRectangle(r2.RectFromPoints(r2.Point{X: -0.05, Y: -0.05}, r2.Point{X: 0.05, Y: 0.05}), costmap.LethalObstacle)
		result, ticks := h.drive(t, h.start(t, goal))
		test.That(t, ticks, test.ShouldEqual, 1)
		test.That(t, result.Status, test.ShouldEqual, recovery.StatusSucceeded)
		test.That(t, result.ErrorCode, test.ShouldEqual, recovery.ErrorCodeNone)
		test.That(t, h.base.Commands(), test.ShouldBeEmpty)
	})

	t.Run("safety first reports collision risk", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TerminationOrder = SafetyFirstOrderName
		h := newHarness(t, cfg)
		h.grid.MarkRectangle(r2.RectFromPoints(r2.Point{X: -0.05, Y: -0.05}, r2.Point{X: 0.05, Y: 0.05}), costmap.LethalObstacle)
		result, ticks := h.drive(t, h.start(t, goal))
		test.That(t, ticks, test.ShouldEqual, 1)
		test.That(t, result.Status, test.ShouldEqual, recovery.StatusFailed)
		test.That(t, result.ErrorCode, test.ShouldEqual, recovery.ErrorCodeCollisionRisk)
		test.That(t, h.base.Commands(), test.ShouldBeEmpty)
	})
}

func TestTimeout(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	goal := recovery.Goal{TargetDistance: -2, SpeedLimit: 0.05, TimeAllowance: 2 * time.Second, Tolerance: 0.1}
	result, _ := h.drive(t, h.start(t, goal))

	test.That(t, result.Status, test.ShouldEqual, recovery.StatusFailed)
	test.That(t, result.ErrorCode, test.ShouldEqual, recovery.ErrorCodeTimeout)
	test.That(t, result.TotalElapsedTime, test.ShouldBeGreaterThanOrEqualTo, goal.TimeAllowance)
	test.That(t, math.Abs(result.DistanceTraveled), test.ShouldBeLessThan, 2)
	test.That(t, result.DistanceTraveled, test.ShouldBeLessThan, 0)
}

func TestTimeoutWithoutPoseUpdates(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	first := true
	localizer := &inject.Localizer{Localizer: h.base}
	localizer.CurrentPositionFunc = func(ctx context.Context) (spatialmath.TimedPose, error) {
		if first {
			first = false
			return h.base.CurrentPosition(ctx)
		}
		return spatialmath.TimedPose{}, errors.New("odometry dropped")
	}
	logger, logs := logging.NewObservedTestLogger(t)
	behavior, err := NewBehavior(DefaultConfig(), h.base, localizer, h.grid, h.clk, logger)
	test.That(t, err, test.ShouldBeNil)
	h.behavior = behavior

	result, _ := h.drive(t, h.start(t, recovery.Goal{TargetDistance: -0.5, SpeedLimit: 0.25, TimeAllowance: time.Second}))
	test.That(t, result.ErrorCode, test.ShouldEqual, recovery.ErrorCodeTimeout)
	test.That(t, result.DistanceTraveled, test.ShouldEqual, 0.)
	test.That(t, logs.FilterMessage("pose unavailable, using last known pose").Len(), test.ShouldEqual, 1)
}

func TestCancel(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	run := h.start(t, recovery.Goal{TargetDistance: -2, SpeedLimit: 0.25, TimeAllowance: 30 * time.Second, Tolerance: 0.1})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, done := run.Tick(ctx)
		test.That(t, done, test.ShouldBeFalse)
		h.clk.Add(h.behavior.TickPeriod())
	}

	run.Cancel()
	test.That(t, run.Status(), test.ShouldEqual, recovery.StatusExecuting)
	result, done := run.Tick(ctx)
	test.That(t, done, test.ShouldBeTrue)
	test.That(t, result.Status, test.ShouldEqual, recovery.StatusCanceled)
	test.That(t, result.ErrorCode, test.ShouldEqual, recovery.ErrorCodeCanceled)
	test.That(t, result.DistanceTraveled, test.ShouldBeLessThan, 0)
	test.That(t, run.Status(), test.ShouldEqual, recovery.StatusCanceled)
	test.That(t, h.base.StopCount(), test.ShouldEqual, 1)
	test.That(t, len(h.feedback), test.ShouldEqual, 5)
}

func TestOracleFailureIsCollisionRisk(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	oracle := &inject.Oracle{OccupiedFunc: func(ctx context.Context, footprint spatialmath.Polygon) (bool, error) {
		return false, errors.New("costmap unavailable")
	}}
	behavior, err := NewBehavior(DefaultConfig(), h.base, h.base, oracle, h.clk, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	h.behavior = behavior

	result, ticks := h.drive(t, h.start(t, recovery.Goal{TargetDistance: -1, SpeedLimit: 0.25, TimeAllowance: 30 * time.Second}))
	test.That(t, ticks, test.ShouldEqual, 1)
	test.That(t, result.Status, test.ShouldEqual, recovery.StatusFailed)
	test.That(t, result.ErrorCode, test.ShouldEqual, recovery.ErrorCodeCollisionRisk)
	test.That(t, result.ErrorMessage, test.ShouldContainSubstring, "costmap unavailable")
	test.That(t, h.base.Commands(), test.ShouldBeEmpty)
}

func TestVelocitySinkFailureKeepsRunning(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	var setCalls int
	b := &inject.Base{Base: h.base}
	b.SetVelocityFunc = func(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
		setCalls++
		return errors.New("motor fault")
	}
	logger, logs := logging.NewObservedTestLogger(t)
	behavior, err := NewBehavior(DefaultConfig(), b, h.base, h.grid, h.clk, logger)
	test.That(t, err, test.ShouldBeNil)
	h.behavior = behavior

	result, ticks := h.drive(t, h.start(t, recovery.Goal{TargetDistance: -1, SpeedLimit: 0.25, TimeAllowance: time.Second}))
	test.That(t, result.ErrorCode, test.ShouldEqual, recovery.ErrorCodeTimeout)
	test.That(t, setCalls, test.ShouldEqual, ticks-1)
	test.That(t, h.base.StopCount(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("failed to command base velocity").Len(), test.ShouldEqual, 1)
}

func TestExecuteShutdown(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	run := h.start(t, recovery.Goal{TargetDistance: -2, SpeedLimit: 0.25, TimeAllowance: 30 * time.Second, Tolerance: 0.1})
	for i := 0; i < 5; i++ {
		_, done := run.Tick(context.Background())
		test.That(t, done, test.ShouldBeFalse)
		h.clk.Add(h.behavior.TickPeriod())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := run.Execute(ctx)
	test.That(t, result.Status, test.ShouldEqual, recovery.StatusCanceled)
	test.That(t, result.ErrorCode, test.ShouldEqual, recovery.ErrorCodeCanceled)
	test.That(t, result.ErrorMessage, test.ShouldEqual, shutdownMessage)
	test.That(t, result.DistanceTraveled, test.ShouldBeLessThan, 0)
	test.That(t, h.base.StopCount(), test.ShouldEqual, 1)
}

func TestExecuteWithMockClock(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ticked := make(chan float64)
	goal := recovery.Goal{TargetDistance: -0.2, SpeedLimit: 0.25, TimeAllowance: time.Minute, Tolerance: 0.1}
	run, err := h.behavior.Start(context.Background(), goal, func(fb recovery.Feedback) {
		ticked <- fb.DistanceTraveled
	})
	test.That(t, err, test.ShouldBeNil)

	resultCh := make(chan recovery.Result, 1)
	go func() {
		resultCh <- run.Execute(context.Background())
	}()

	// advance the clock one period after every executing tick so each tick sees exactly one
	// period of motion
	var ticks int
	for {
		select {
		case <-ticked:
			ticks++
			h.clk.Add(h.behavior.TickPeriod())
		case result := <-resultCh:
			test.That(t, result.ErrorCode, test.ShouldEqual, recovery.ErrorCodeNone)
			test.That(t, math.Abs(result.DistanceTraveled-goal.TargetDistance), test.ShouldBeLessThanOrEqualTo, goal.Tolerance)
			test.That(t, ticks, test.ShouldBeGreaterThan, 0)
			return
		}
	}
}
