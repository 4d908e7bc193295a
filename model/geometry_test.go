package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointDistance(t *testing.T) {
	tests := []struct {
		name     string
		p1, p2   Point
		expected float64
	}{
		{"same point", Point{0, 0}, Point{0, 0}, 0},
		{"horizontal", Point{0, 0}, Point{3, 0}, 3},
		{"diagonal 3-4-5", Point{0, 0}, Point{3, 4}, 5},
		{"negative coords", Point{-1, -1}, Point{2, 3}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.p1.Distance(tt.p2), 1e-9)
		})
	}
}

func TestRect(t *testing.T) {
	r := NewRect(100, 200, 0, 0)
	assert.Equal(t, Rect{0, 0, 100, 200}, r)
	assert.Equal(t, 100.0, r.Width())
	assert.Equal(t, 200.0, r.Height())
	assert.True(t, r.Contains(Point{50, 50}))
	assert.False(t, r.Contains(Point{150, 50}))

	assert.Equal(t, Rect{50, 50, 100, 200}, r.Intersect(Rect{50, 50, 300, 300}))
	assert.True(t, r.Intersect(Rect{500, 500, 600, 600}).IsEmpty())
	assert.Equal(t, Rect{0, 0, 300, 300}, r.Union(Rect{50, 50, 300, 300}))
	assert.Equal(t, r, Rect{}.Union(r))

	assert.Equal(t, Rect{10, 20, 70, 170}, r.Inset(10, 20, 30, 30))
	assert.True(t, r.Inset(60, 0, 60, 0).IsEmpty())
	assert.Equal(t, [4]float64{0, 0, 100, 200}, r.Array())
}

func TestRectTransform(t *testing.T) {
	r := Rect{0, 0, 10, 20}
	got := r.Transform(Rotate(math.Pi / 2))
	assert.InDelta(t, -20, got.LLX, 1e-9)
	assert.InDelta(t, 0, got.LLY, 1e-9)
	assert.InDelta(t, 0, got.URX, 1e-9)
	assert.InDelta(t, 10, got.URY, 1e-9)

	assert.Equal(t, Rect{5, 5, 25, 45}, r.Transform(Scale(2, 2).Multiply(Translate(5, 5))))
}

func TestMatrix(t *testing.T) {
	m := Scale(2, 3).Multiply(Translate(10, 20))
	assert.Equal(t, Point{12, 23}, m.Transform(Point{1, 1}))
	assert.True(t, Identity().IsIdentity())
	assert.False(t, m.IsIdentity())

	inv, ok := m.Invert()
	assert.True(t, ok)
	p := inv.Transform(m.Transform(Point{7, -4}))
	assert.InDelta(t, 7, p.X, 1e-9)
	assert.InDelta(t, -4, p.Y, 1e-9)

	_, ok = Matrix{0, 0, 0, 0, 1, 1}.Invert()
	assert.False(t, ok)

	sx, sy := Matrix{0, 3, -4, 0, 0, 0}.ScaleFactors()
	assert.Equal(t, 3.0, sx)
	assert.Equal(t, 4.0, sy)
}
