package action

import (
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// Config describes the action server.
type Config struct {
	// Preempt makes a new goal cancel the active one instead of being rejected.
	Preempt bool `json:"preempt"`
	// FeedbackBuffer is how many feedback messages a goal holds for a slow reader before dropping.
	FeedbackBuffer int `json:"feedback_buffer"`
	// HistorySize bounds how many goals ListGoalStatuses reports.
	HistorySize int `json:"history_size"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{FeedbackBuffer: 16, HistorySize: 16}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.FeedbackBuffer < 0 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("feedback_buffer must not be negative, got %d", cfg.FeedbackBuffer))
	}
	if cfg.HistorySize < 1 {
		return goutils.NewConfigValidationError(path, errors.Errorf("history_size must be at least 1, got %d", cfg.HistorySize))
	}
	return nil
}
