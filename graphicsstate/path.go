package graphicsstate

import (
	"math"

	"github.com/tsawler/safepdf/model"
)

// PathSegmentType defines the type of path segment
type PathSegmentType int

const (
	// PathMoveTo starts a new subpath
	PathMoveTo PathSegmentType = iota
	// PathLineTo draws a line to a point
	PathLineTo
	// PathCurveTo draws a cubic Bézier curve
	PathCurveTo
	// PathClosePath closes the current subpath
	PathClosePath
)

// PathSegment represents a single segment of a path
type PathSegment struct {
	Type PathSegmentType

	// For MoveTo and LineTo: single point
	// For CurveTo: control point 1, control point 2, end point
	Points []model.Point
}

// Path represents a graphics path being constructed
type Path struct {
	// Segments contains all the path segments
	Segments []PathSegment

	// CurrentPoint is the current point in user space
	CurrentPoint model.Point

	// SubpathStart is the start of the current subpath (for closepath)
	SubpathStart model.Point

	// HasCurrentPoint indicates if a current point has been set
	HasCurrentPoint bool
}

// NewPath creates a new empty path
func NewPath() *Path {
	return &Path{
		Segments: make([]PathSegment, 0),
	}
}

// MoveTo starts a new subpath at the specified point (m operator)
func (p *Path) MoveTo(x, y float64) {
	pt := model.Point{X: x, Y: y}
	p.Segments = append(p.Segments, PathSegment{
		Type:   PathMoveTo,
		Points: []model.Point{pt},
	})
	p.CurrentPoint = pt
	p.SubpathStart = pt
	p.HasCurrentPoint = true
}

// LineTo appends a line segment from current point to (x, y) (l operator)
func (p *Path) LineTo(x, y float64) {
	if !p.HasCurrentPoint {
		// Treat as moveto if no current point
		p.MoveTo(x, y)
		return
	}

	pt := model.Point{X: x, Y: y}
	p.Segments = append(p.Segments, PathSegment{
		Type:   PathLineTo,
		Points: []model.Point{pt},
	})
	p.CurrentPoint = pt
}

// CurveTo appends a cubic Bézier curve (c operator)
// Control points (x1, y1) and (x2, y2), end point (x3, y3)
func (p *Path) CurveTo(x1, y1, x2, y2, x3, y3 float64) {
	if !p.HasCurrentPoint {
		p.MoveTo(x1, y1)
	}

	p.Segments = append(p.Segments, PathSegment{
		Type: PathCurveTo,
		Points: []model.Point{
			{X: x1, Y: y1},
			{X: x2, Y: y2},
			{X: x3, Y: y3},
		},
	})
	p.CurrentPoint = model.Point{X: x3, Y: y3}
}

// CurveToV appends a cubic Bézier curve with first control point = current point (v operator)
func (p *Path) CurveToV(x2, y2, x3, y3 float64) {
	if !p.HasCurrentPoint {
		return
	}
	p.CurveTo(p.CurrentPoint.X, p.CurrentPoint.Y, x2, y2, x3, y3)
}

// CurveToY appends a cubic Bézier curve with second control point = end point (y operator)
func (p *Path) CurveToY(x1, y1, x3, y3 float64) {
	if !p.HasCurrentPoint {
		return
	}
	p.CurveTo(x1, y1, x3, y3, x3, y3)
}

// ClosePath closes the current subpath (h operator)
func (p *Path) ClosePath() {
	if !p.HasCurrentPoint {
		return
	}

	p.Segments = append(p.Segments, PathSegment{
		Type: PathClosePath,
	})

	// Move current point back to subpath start
	p.CurrentPoint = p.SubpathStart
}

// Rectangle appends a rectangle as a complete subpath (re operator)
func (p *Path) Rectangle(x, y, width, height float64) {
	p.MoveTo(x, y)
	p.LineTo(x+width, y)
	p.LineTo(x+width, y+height)
	p.LineTo(x, y+height)
	p.ClosePath()
}

// Clear resets the path
func (p *Path) Clear() {
	p.Segments = p.Segments[:0]
	p.HasCurrentPoint = false
}

// IsEmpty returns true if the path has no segments
func (p *Path) IsEmpty() bool {
	return len(p.Segments) == 0
}

// Transform returns a copy of the path with every point mapped through m.
func (p *Path) Transform(m model.Matrix) *Path {
	out := &Path{
		Segments:        make([]PathSegment, len(p.Segments)),
		CurrentPoint:    m.Transform(p.CurrentPoint),
		SubpathStart:    m.Transform(p.SubpathStart),
		HasCurrentPoint: p.HasCurrentPoint,
	}
	for i, seg := range p.Segments {
		pts := make([]model.Point, len(seg.Points))
		for j, pt := range seg.Points {
			pts[j] = m.Transform(pt)
		}
		out.Segments[i] = PathSegment{Type: seg.Type, Points: pts}
	}
	return out
}

// Bounds returns the bounding box of every point on the path, control
// points included. An empty path has the zero rectangle.
func (p *Path) Bounds() model.Rect {
	var r model.Rect
	first := true
	for _, seg := range p.Segments {
		for _, pt := range seg.Points {
			if first {
				r = model.Rect{LLX: pt.X, LLY: pt.Y, URX: pt.X, URY: pt.Y}
				first = false
				continue
			}
			r.LLX = math.Min(r.LLX, pt.X)
			r.LLY = math.Min(r.LLY, pt.Y)
			r.URX = math.Max(r.URX, pt.X)
			r.URY = math.Max(r.URY, pt.Y)
		}
	}
	return r
}
