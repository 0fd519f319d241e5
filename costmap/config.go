package costmap

import (
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/recovery/utils"
)

// Config describes the size and placement of a grid.
type Config struct {
	// Resolution is the edge length of a cell in meters.
	Resolution float64 `json:"resolution"`
	// Width and Height are in cells.
	Width  int `json:"width"`
	Height int `json:"height"`
	// OriginX and OriginY locate the corner of cell (0, 0) in meters.
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
	// TrackUnknown makes unknown cells count as occupied.
	TrackUnknown bool  `json:"track_unknown"`
	DefaultCost  uint8 `json:"default_cost"`
}

// DefaultConfig is a 10m x 10m grid at 5cm resolution centered on the origin.
func DefaultConfig() Config {
	return Config{
		Resolution: 0.05,
		Width:      200,
		Height:     200,
		OriginX:    -5,
		OriginY:    -5,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Resolution <= 0 || !utils.IsFinite(cfg.Resolution) {
		return goutils.NewConfigValidationError(path, errors.Errorf("resolution must be positive, got %v", cfg.Resolution))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("width and height must be positive, got %dx%d", cfg.Width, cfg.Height))
	}
	if !utils.IsFinite(cfg.OriginX) || !utils.IsFinite(cfg.OriginY) {
		return goutils.NewConfigValidationError(path, errors.New("origin must be finite"))
	}
	return nil
}
