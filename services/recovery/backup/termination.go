package backup

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/recovery/control"
	"go.viam.com/recovery/services/recovery"
)

// TickState is what the termination checks see on one control tick.
type TickState struct {
	Now             time.Time
	Deadline        time.Time
	Traveled        float64
	Target          float64
	Tolerance       float64
	CancelRequested bool
	// Command is what will be issued if no check fires.
	Command control.Velocity

	safety    func() (bool, error)
	evaluated bool
	safe      bool
	safetyErr error
}

// Safe runs the collision check for Command at most once per tick.
func (ts *TickState) Safe() (bool, error) {
	if !ts.evaluated {
		ts.evaluated = true
		if ts.safety == nil {
			ts.safe = true
		} else {
			ts.safe, ts.safetyErr = ts.safety()
		}
	}
	return ts.safe, ts.safetyErr
}

// Outcome is how a goal ended.
type Outcome struct {
	Status  recovery.Status
	Code    recovery.ErrorCode
	Message string
}

// TerminationCheck is one named condition that can end a goal.
type TerminationCheck struct {
	Name  string
	Check func(ts *TickState) (Outcome, bool)
}

// GoalReachedCheck fires once the traveled distance is within tolerance of the target.
var GoalReachedCheck = TerminationCheck{
	Name: "goal_reached",
	Check: func(ts *TickState) (Outcome, bool) {
		if math.Abs(ts.Target-ts.Traveled) > ts.Tolerance {
			return Outcome{}, false
		}
		return Outcome{Status: recovery.StatusSucceeded, Code: recovery.ErrorCodeNone}, true
	},
}

// TimeoutCheck fires once the deadline has been reached.
var TimeoutCheck = TerminationCheck{
	Name: "timeout",
	Check: func(ts *TickState) (Outcome, bool) {
		if ts.Now.Before(ts.Deadline) {
			return Outcome{}, false
		}
		return Outcome{
			Status:  recovery.StatusFailed,
			Code:    recovery.ErrorCodeTimeout,
			Message: fmt.Sprintf("time allowance exceeded after traveling %.3f of %.3f m", ts.Traveled, ts.Target),
		}, true
	},
}

// CanceledCheck fires when a cancel was requested before this tick.
var CanceledCheck = TerminationCheck{
	Name: "canceled",
	Check: func(ts *TickState) (Outcome, bool) {
		if !ts.CancelRequested {
			return Outcome{}, false
		}
		return Outcome{Status: recovery.StatusCanceled, Code: recovery.ErrorCodeCanceled, Message: "goal canceled"}, true
	},
}

// CollisionRiskCheck fires when the footprint projected along the next command is occupied or
// the obstacle map cannot be queried.
var CollisionRiskCheck = TerminationCheck{
	Name: "collision_risk",
	Check: func(ts *TickState) (Outcome, bool) {
		safe, err := ts.Safe()
		switch {
		case err != nil:
			return Outcome{Status: recovery.StatusFailed, Code: recovery.ErrorCodeCollisionRisk, Message: err.Error()}, true
		case !safe:
			return Outcome{
				Status:  recovery.StatusFailed,
				Code:    recovery.ErrorCodeCollisionRisk,
				Message: fmt.Sprintf("collision ahead after traveling %.3f m", ts.Traveled),
			}, true
		default:
			return Outcome{}, false
		}
	},
}

// GoalFirstOrder lets a reached goal win over a collision detected on the same tick, so a goal
// can succeed even though its final projected step is unsafe.
var GoalFirstOrder = []TerminationCheck{GoalReachedCheck, TimeoutCheck, CanceledCheck, CollisionRiskCheck}

// SafetyFirstOrder reports a collision risk before anything else.
var SafetyFirstOrder = []TerminationCheck{CollisionRiskCheck, GoalReachedCheck, TimeoutCheck, CanceledCheck}

// TerminationOrderByName returns a copy of the check order for a config name. The empty name is
// GoalFirstOrder.
func TerminationOrderByName(name string) ([]TerminationCheck, error) {
	switch name {
	case "", GoalFirstOrderName:
		return slices.Clone(GoalFirstOrder), nil
	case SafetyFirstOrderName:
		return slices.Clone(SafetyFirstOrder), nil
	default:
		return nil, errors.Errorf("unknown termination_order %q, expected %q or %q",
			name, GoalFirstOrderName, SafetyFirstOrderName)
	}
}

// Evaluate runs the checks in order and returns the first outcome along with the name of the
// check that produced it.
func Evaluate(order []TerminationCheck, ts *TickState) (Outcome, string, bool) {
	for _, check := range order {
		if outcome, done := check.Check(ts); done {
			return outcome, check.Name, true
		}
	}
	return Outcome{}, "", false
}

