// Package recovery defines the goal, feedback and result types shared by recovery behaviors,
// along with the pose source they consume.
package recovery

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/recovery/utils"
)

// Status is the lifecycle state of a goal.
type Status uint8

// The set of goal statuses. Succeeded, Failed and Canceled are terminal.
const (
	StatusAccepted Status = iota
	StatusExecuting
	StatusSucceeded
	StatusFailed
	StatusCanceled
)

// TerminalStatusSet contains every status a goal never leaves.
var TerminalStatusSet = map[Status]struct{}{
	StatusSucceeded: {},
	StatusFailed:    {},
	StatusCanceled:  {},
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	_, ok := TerminalStatusSet[s]
	return ok
}

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusExecuting:
		return "executing"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// ErrorCode classifies how a goal ended.
type ErrorCode uint8

// The set of error codes. ErrorCodeNone means the goal succeeded.
const (
	ErrorCodeNone ErrorCode = iota
	ErrorCodeTimeout
	ErrorCodeCollisionRisk
	ErrorCodeCanceled
	ErrorCodeInvalidGoal
	ErrorCodePoseUnavailable
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeNone:
		return "none"
	case ErrorCodeTimeout:
		return "timeout"
	case ErrorCodeCollisionRisk:
		return "collision_risk"
	case ErrorCodeCanceled:
		return "canceled"
	case ErrorCodeInvalidGoal:
		return "invalid_goal"
	case ErrorCodePoseUnavailable:
		return "pose_unavailable"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint8(c))
	}
}

// Goal asks a behavior to drive a signed distance along the robot's heading.
type Goal struct {
	// TargetDistance is in meters; negative drives backward.
	TargetDistance float64
	// SpeedLimit is the maximum speed in m/s.
	SpeedLimit float64
	// TimeAllowance bounds how long the goal may run.
	TimeAllowance time.Duration
	// Tolerance is the accepted distance error in meters. Zero selects the behavior's default.
	Tolerance float64
}

// Validate returns a *GoalRejectedError with ErrorCodeInvalidGoal if the goal cannot be run.
func (g Goal) Validate() error {
	switch {
	case !utils.IsFinite(g.TargetDistance):
		return NewInvalidGoalError("target distance must be finite, got %v", g.TargetDistance)
	case !utils.IsFinite(g.SpeedLimit) || g.SpeedLimit <= 0:
		return NewInvalidGoalError("speed limit must be positive, got %v", g.SpeedLimit)
	case g.TimeAllowance <= 0:
		return NewInvalidGoalError("time allowance must be positive, got %v", g.TimeAllowance)
	case !utils.IsFinite(g.Tolerance) || g.Tolerance < 0:
		return NewInvalidGoalError("tolerance must not be negative, got %v", g.Tolerance)
	}
	return nil
}

// Feedback reports progress while a goal executes.
type Feedback struct {
	// DistanceTraveled is signed along the start heading, matching TargetDistance.
	DistanceTraveled float64
}

// Result is reported exactly once when a goal reaches a terminal status.
type Result struct {
	Status           Status
	TotalElapsedTime time.Duration
	ErrorCode        ErrorCode
	ErrorMessage     string
	DistanceTraveled float64
}

// GoalRejectedError is returned when a goal is refused before it is accepted.
type GoalRejectedError struct {
	Code    ErrorCode
	Message string
}

func (e *GoalRejectedError) Error() string {
	return fmt.Sprintf("goal rejected (%s): %s", e.Code, e.Message)
}

// NewInvalidGoalError returns a rejection for a malformed goal.
func NewInvalidGoalError(format string, args ...interface{}) error {
	return &GoalRejectedError{Code: ErrorCodeInvalidGoal, Message: fmt.Sprintf(format, args...)}
}

// RejectionCode returns the code carried by a rejection error, and false for any other error.
func RejectionCode(err error) (ErrorCode, bool) {
	var rejected *GoalRejectedError
	if errors.As(err, &rejected) {
		return rejected.Code, true
	}
	return ErrorCodeNone, false
}
