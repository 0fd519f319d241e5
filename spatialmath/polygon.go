package spatialmath

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ErrDegeneratePolygon is returned when a polygon has fewer than three vertices.
var ErrDegeneratePolygon = errors.New("polygon needs at least three vertices")

// Polygon is a closed planar polygon. The last vertex connects back to the first.
type Polygon []r2.Point

// NewPolygon validates the vertices and returns them as a polygon.
func NewPolygon(vertices []r2.Point) (Polygon, error) {
	if len(vertices) < 3 {
		return nil, ErrDegeneratePolygon
	}
	return Polygon(append([]r2.Point(nil), vertices...)), nil
}

// NewRectangleFootprint returns a footprint centered on the robot origin with the given length
// along the heading and width across it.
func NewRectangleFootprint(length, width float64) Polygon {
	halfL, halfW := length/2, width/2
	return Polygon{
		{X: halfL, Y: halfW},
		{X: -halfL, Y: halfW},
		{X: -halfL, Y: -halfW},
		{X: halfL, Y: -halfW},
	}
}

// Transform places a polygon described in the robot frame at the given pose.
func (poly Polygon) Transform(pose Pose2D) Polygon {
	return lo.Map(poly, func(pt r2.Point, _ int) r2.Point {
		return pose.TransformPoint(pt)
	})
}

// Bounds returns the smallest axis aligned rectangle containing the polygon.
func (poly Polygon) Bounds() r2.Rect {
	return r2.RectFromPoints(poly...)
}

// Edges returns each edge as a pair of endpoints.
func (poly Polygon) Edges() [][2]r2.Point {
	edges := make([][2]r2.Point, 0, len(poly))
	for i := range poly {
		edges = append(edges, [2]r2.Point{poly[i], poly[(i+1)%len(poly)]})
	}
	return edges
}

// ContainsPoint reports whether pt lies inside the polygon using the even-odd rule.
// Points exactly on an edge may land either way.
func (poly Polygon) ContainsPoint(pt r2.Point) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) &&
			pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}
