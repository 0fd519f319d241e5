// Package costmap implements a 2D occupancy grid that answers footprint occupancy queries.
//
// Cell values follow the usual costmap conventions: 0 is free, 253 is inside the inscribed
// radius of an obstacle, 254 is a lethal obstacle and 255 means nothing is known about the cell.
package costmap

import (
	"context"
	"math"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/recovery/spatialmath"
)

// Well known cell costs.
const (
	FreeSpace                 uint8 = 0
	InscribedInflatedObstacle uint8 = 253
	LethalObstacle            uint8 = 254
	NoInformation             uint8 = 255
)

// ErrOutOfBounds is returned when a query touches space outside the grid.
var ErrOutOfBounds = errors.New("footprint is outside the costmap")

// Grid is a fixed size occupancy grid. It is safe for concurrent use.
type Grid struct {
	mu    sync.RWMutex
	cfg   Config
	costs []uint8
}

// NewGrid allocates a grid filled with cfg.DefaultCost.
func NewGrid(cfg Config) (*Grid, error) {
	if err := cfg.Validate("costmap"); err != nil {
		return nil, err
	}
	costs := make([]uint8, cfg.Width*cfg.Height)
	if cfg.DefaultCost != FreeSpace {
		for i := range costs {
			costs[i] = cfg.DefaultCost
		}
	}
	return &Grid{cfg: cfg, costs: costs}, nil
}

// Config returns the grid's configuration.
func (g *Grid) Config() Config {
	return g.cfg
}

// WorldToMap returns the cell containing pt, and whether that cell is on the grid.
func (g *Grid) WorldToMap(pt r2.Point) (int, int, bool) {
	mx := int(math.Floor((pt.X - g.cfg.OriginX) / g.cfg.Resolution))
	my := int(math.Floor((pt.Y - g.cfg.OriginY) / g.cfg.Resolution))
	return mx, my, g.inBounds(mx, my)
}

// MapToWorld returns the center of a cell.
func (g *Grid) MapToWorld(mx, my int) r2.Point {
	return r2.Point{
		X: g.cfg.OriginX + (float64(mx)+0.5)*g.cfg.Resolution,
		Y: g.cfg.OriginY + (float64(my)+0.5)*g.cfg.Resolution,
	}
}

func (g *Grid) inBounds(mx, my int) bool {
	return mx >= 0 && my >= 0 && mx < g.cfg.Width && my < g.cfg.Height
}

// Cost returns the cost of a cell. Cells off the grid report NoInformation.
func (g *Grid) Cost(mx, my int) uint8 {
	if !g.inBounds(mx, my) {
		return NoInformation
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.costs[my*g.cfg.Width+mx]
}

// SetCost sets the cost of a single cell.
func (g *Grid) SetCost(mx, my int, cost uint8) error {
	if !g.inBounds(mx, my) {
		return errors.Wrapf(ErrOutOfBounds, "cell (%d, %d)", mx, my)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.costs[my*g.cfg.Width+mx] = cost
	return nil
}

// MarkRectangle sets every cell whose center lies in the world space rectangle to cost. Parts
// of the rectangle that fall off the grid are ignored.
func (g *Grid) MarkRectangle(rect r2.Rect, cost uint8) {
	loX, loY, _ := g.WorldToMap(rect.Lo())
	hiX, hiY, _ := g.WorldToMap(rect.Hi())
	loX, loY = max(loX, 0), max(loY, 0)
	hiX, hiY = min(hiX, g.cfg.Width-1), min(hiY, g.cfg.Height-1)

	g.mu.Lock()
	defer g.mu.Unlock()
	for my := loY; my <= hiY; my++ {
		for mx := loX; mx <= hiX; mx++ {
			if rect.ContainsPoint(g.MapToWorld(mx, my)) {
				g.costs[my*g.cfg.Width+mx] = cost
			}
		}
	}
}

// Clear resets every cell to the configured default cost.
func (g *Grid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.costs {
		g.costs[i] = g.cfg.DefaultCost
	}
}

// footprintCells lists the cells covered by a world frame polygon: every cell whose center is
// inside it plus every cell its perimeter passes through.
func (g *Grid) footprintCells(footprint spatialmath.Polygon) ([][2]int, error) {
	if len(footprint) < 3 {
		return nil, spatialmath.ErrDegeneratePolygon
	}
	bounds := footprint.Bounds()
	loX, loY, loOK := g.WorldToMap(bounds.Lo())
	hiX, hiY, hiOK := g.WorldToMap(bounds.Hi())
	if !loOK || !hiOK {
		return nil, ErrOutOfBounds
	}

	seen := make(map[[2]int]struct{})
	cells := make([][2]int, 0, (hiX-loX+1)*(hiY-loY+1))
	add := func(mx, my int) {
		key := [2]int{mx, my}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		cells = append(cells, key)
	}

	step := g.cfg.Resolution / 2
	for _, edge := range footprint.Edges() {
		delta := edge[1].Sub(edge[0])
		samples := int(math.Ceil(delta.Norm()/step)) + 1
		for i := 0; i <= samples; i++ {
			mx, my, _ := g.WorldToMap(edge[0].Add(delta.Mul(float64(i) / float64(samples))))
			add(mx, my)
		}
	}
	for my := loY; my <= hiY; my++ {
		for mx := loX; mx <= hiX; mx++ {
			if footprint.ContainsPoint(g.MapToWorld(mx, my)) {
				add(mx, my)
			}
		}
	}
	return cells, nil
}

// FootprintCost returns the highest cost under a world frame footprint, with unknown cells
// reported as NoInformation only when nothing lethal is present.
func (g *Grid) FootprintCost(footprint spatialmath.Polygon) (uint8, error) {
	cells, err := g.footprintCells(footprint)
	if err != nil {
		return NoInformation, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	highest := FreeSpace
	unknown := false
	for _, cell := range cells {
		cost := g.costs[cell[1]*g.cfg.Width+cell[0]]
		switch {
		case cost == NoInformation:
			unknown = true
		case cost >= LethalObstacle:
			return cost, nil
		case cost > highest:
			highest = cost
		}
	}
	if unknown {
		return NoInformation, nil
	}
	return highest, nil
}

// Occupied reports whether a world frame footprint overlaps a lethal cell, or an unknown cell
// when unknown space is tracked.
func (g *Grid) Occupied(ctx context.Context, footprint spatialmath.Polygon) (bool, error) {
	if err := ctx.Err(); err != nil {
		return true, err
	}
	cost, err := g.FootprintCost(footprint)
	if err != nil {
		return true, err
	}
	switch cost {
	case NoInformation:
		return g.cfg.TrackUnknown, nil
	case LethalObstacle:
		return true, nil
	default:
		return false, nil
	}
}
