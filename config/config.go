// Package config reads the JSON configuration of a backup recovery setup: the behavior, the
// action server, the simulated world and the log level.
package config

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/recovery/costmap"
	"go.viam.com/recovery/logging"
	"go.viam.com/recovery/services/recovery/action"
	"go.viam.com/recovery/services/recovery/backup"
	"go.viam.com/recovery/utils"
)

// Config is the top level configuration.
type Config struct {
	ConfigFilePath string `json:"-"`

	LogLevel  string         `json:"log_level"`
	Backup    backup.Config  `json:"backup"`
	Action    action.Config  `json:"action"`
	Costmap   costmap.Config `json:"costmap"`
	Obstacles []Obstacle     `json:"obstacles"`
}

// Obstacle is an axis aligned box of lethal cost in world coordinates, in meters.
type Obstacle struct {
	Name string  `json:"name"`
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Rect returns the obstacle's extent.
func (o Obstacle) Rect() r2.Rect {
	return r2.RectFromPoints(r2.Point{X: o.MinX, Y: o.MinY}, r2.Point{X: o.MaxX, Y: o.MaxY})
}

// Validate ensures all parts of the obstacle are valid.
func (o *Obstacle) Validate(path string) error {
	if o.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	for _, v := range []float64{o.MinX, o.MinY, o.MaxX, o.MaxY} {
		if !utils.IsFinite(v) {
			return goutils.NewConfigValidationError(path, errors.New("bounds must be finite"))
		}
	}
	if o.MinX > o.MaxX || o.MinY > o.MaxY {
		return goutils.NewConfigValidationError(path, errors.New("min bounds must not exceed max bounds"))
	}
	return nil
}

// Default returns a config with every section at its defaults.
func Default() *Config {
	return &Config{
		LogLevel: logging.INFO.String(),
		Backup:   backup.DefaultConfig(),
		Action:   action.DefaultConfig(),
		Costmap:  costmap.DefaultConfig(),
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if _, err := logging.LevelFromString(c.LogLevel); err != nil {
		return goutils.NewConfigValidationError("log_level", err)
	}
	if err := c.Backup.Validate("backup"); err != nil {
		return err
	}
	if err := c.Action.Validate("action"); err != nil {
		return err
	}
	if err := c.Costmap.Validate("costmap"); err != nil {
		return err
	}
	for idx := range c.Obstacles {
		if err := c.Obstacles[idx].Validate(fmt.Sprintf("obstacles.%d", idx)); err != nil {
			return err
		}
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() logging.Level {
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// BuildGrid returns a costmap with every configured obstacle marked lethal.
func (c *Config) BuildGrid() (*costmap.Grid, error) {
	grid, err := costmap.NewGrid(c.Costmap)
	if err != nil {
		return nil, err
	}
	for _, obstacle := range c.Obstacles {
		grid.MarkRectangle(obstacle.Rect(), costmap.LethalObstacle)
	}
	return grid, nil
}
