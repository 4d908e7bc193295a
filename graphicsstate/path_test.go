package graphicsstate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tsawler/safepdf/model"
)

func pt(x, y float64) model.Point {
	return model.Point{X: x, Y: y}
}

func seg(typ PathSegmentType, pts ...model.Point) PathSegment {
	return PathSegment{Type: typ, Points: pts}
}

func TestPathConstruction(t *testing.T) {
	tests := []struct {
		name    string
		build   func(p *Path)
		want    []PathSegment
		current model.Point
	}{
		{
			name:    "move and line",
			build:   func(p *Path) { p.MoveTo(1, 2); p.LineTo(3, 4) },
			want:    []PathSegment{seg(PathMoveTo, pt(1, 2)), seg(PathLineTo, pt(3, 4))},
			current: pt(3, 4),
		},
		{
			name:    "line without current point starts a subpath",
			build:   func(p *Path) { p.LineTo(5, 6) },
			want:    []PathSegment{seg(PathMoveTo, pt(5, 6))},
			current: pt(5, 6),
		},
		{
			name:    "curve",
			build:   func(p *Path) { p.MoveTo(0, 0); p.CurveTo(1, 1, 2, 1, 3, 0) },
			want:    []PathSegment{seg(PathMoveTo, pt(0, 0)), seg(PathCurveTo, pt(1, 1), pt(2, 1), pt(3, 0))},
			current: pt(3, 0),
		},
		{
			name:    "v takes the current point as first control",
			build:   func(p *Path) { p.MoveTo(4, 4); p.CurveToV(5, 6, 7, 4) },
			want:    []PathSegment{seg(PathMoveTo, pt(4, 4)), seg(PathCurveTo, pt(4, 4), pt(5, 6), pt(7, 4))},
			current: pt(7, 4),
		},
		{
			name:    "y repeats the end point",
			build:   func(p *Path) { p.MoveTo(0, 0); p.CurveToY(1, 2, 3, 3) },
			want:    []PathSegment{seg(PathMoveTo, pt(0, 0)), seg(PathCurveTo, pt(1, 2), pt(3, 3), pt(3, 3))},
			current: pt(3, 3),
		},
		{
			name:  "v and y need a current point",
			build: func(p *Path) { p.CurveToV(1, 1, 2, 2); p.CurveToY(1, 1, 2, 2); p.ClosePath() },
		},
		{
			name:    "close returns to the subpath start",
			build:   func(p *Path) { p.MoveTo(1, 1); p.LineTo(9, 1); p.LineTo(9, 9); p.ClosePath() },
			want:    []PathSegment{seg(PathMoveTo, pt(1, 1)), seg(PathLineTo, pt(9, 1)), seg(PathLineTo, pt(9, 9)), seg(PathClosePath)},
			current: pt(1, 1),
		},
		{
			name:  "rectangle",
			build: func(p *Path) { p.Rectangle(10, 20, 30, 40) },
			want: []PathSegment{
				seg(PathMoveTo, pt(10, 20)),
				seg(PathLineTo, pt(40, 20)),
				seg(PathLineTo, pt(40, 60)),
				seg(PathLineTo, pt(10, 60)),
				seg(PathClosePath),
			},
			current: pt(10, 20),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPath()
			tt.build(p)
			if tt.want == nil {
				assert.True(t, p.IsEmpty())
				assert.False(t, p.HasCurrentPoint)
				return
			}
			assert.Equal(t, tt.want, p.Segments)
			assert.Equal(t, tt.current, p.CurrentPoint)
		})
	}
}

func TestPathClear(t *testing.T) {
	p := NewPath()
	p.Rectangle(0, 0, 1, 1)
	p.Clear()
	assert.True(t, p.IsEmpty())
	assert.False(t, p.HasCurrentPoint)

	// The next line starts a fresh subpath
	p.LineTo(2, 2)
	assert.Equal(t, []PathSegment{seg(PathMoveTo, pt(2, 2))}, p.Segments)
}

func TestPathTransform(t *testing.T) {
	p := NewPath()
	p.MoveTo(1, 1)
	p.CurveTo(2, 2, 3, 3, 4, 1)
	p.ClosePath()

	m := model.Scale(2, 2).Multiply(model.Translate(10, 0))
	out := p.Transform(m)
	assert.Equal(t, []PathSegment{
		seg(PathMoveTo, pt(12, 2)),
		seg(PathCurveTo, pt(14, 4), pt(16, 6), pt(18, 2)),
		{Type: PathClosePath, Points: []model.Point{}},
	}, out.Segments)
	assert.Equal(t, pt(12, 2), out.CurrentPoint)
	assert.Equal(t, pt(12, 2), out.SubpathStart)
	assert.True(t, out.HasCurrentPoint)

	assert.Equal(t, pt(1, 1), p.Segments[0].Points[0], "source path was modified")
}

func TestPathBounds(t *testing.T) {
	assert.Equal(t, model.Rect{}, NewPath().Bounds())

	p := NewPath()
	p.MoveTo(5, 5)
	p.CurveTo(-5, 20, 15, 30, 10, 0)
	assert.Equal(t, model.Rect{LLX: -5, LLY: 0, URX: 15, URY: 30}, p.Bounds())
}
