package model

import "math"

// Point represents a 2D point
type Point struct {
	X, Y float64
}

// Distance calculates the Euclidean distance to another point
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Rect is a rectangle in PDF user space, stored as lower-left and
// upper-right corners like a /MediaBox array.
type Rect struct {
	LLX, LLY float64
	URX, URY float64
}

// NewRect builds a rectangle from any two opposite corners.
func NewRect(x1, y1, x2, y2 float64) Rect {
	return Rect{
		LLX: math.Min(x1, x2),
		LLY: math.Min(y1, y2),
		URX: math.Max(x1, x2),
		URY: math.Max(y1, y2),
	}
}

// Width returns the horizontal extent
func (r Rect) Width() float64 {
	return r.URX - r.LLX
}

// Height returns the vertical extent
func (r Rect) Height() float64 {
	return r.URY - r.LLY
}

// IsEmpty returns true if the rectangle has zero area
func (r Rect) IsEmpty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// Contains checks if a point is inside the rectangle
func (r Rect) Contains(p Point) bool {
	return p.X >= r.LLX && p.X <= r.URX && p.Y >= r.LLY && p.Y <= r.URY
}

// Intersect returns the overlap of two rectangles. Disjoint rectangles
// yield the zero Rect.
func (r Rect) Intersect(other Rect) Rect {
	out := Rect{
		LLX: math.Max(r.LLX, other.LLX),
		LLY: math.Max(r.LLY, other.LLY),
		URX: math.Min(r.URX, other.URX),
		URY: math.Min(r.URY, other.URY),
	}
	if out.IsEmpty() {
		return Rect{}
	}
	return out
}

// Union returns the smallest rectangle containing both
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}
	return Rect{
		LLX: math.Min(r.LLX, other.LLX),
		LLY: math.Min(r.LLY, other.LLY),
		URX: math.Max(r.URX, other.URX),
		URY: math.Max(r.URY, other.URY),
	}
}

// Inset shrinks the rectangle by the given margins. Margins larger than
// the rectangle collapse it to the zero Rect.
func (r Rect) Inset(left, bottom, right, top float64) Rect {
	out := Rect{LLX: r.LLX + left, LLY: r.LLY + bottom, URX: r.URX - right, URY: r.URY - top}
	if out.IsEmpty() {
		return Rect{}
	}
	return out
}

// Transform returns the bounding box of the rectangle mapped through m.
func (r Rect) Transform(m Matrix) Rect {
	corners := [4]Point{
		m.Transform(Point{r.LLX, r.LLY}),
		m.Transform(Point{r.URX, r.LLY}),
		m.Transform(Point{r.LLX, r.URY}),
		m.Transform(Point{r.URX, r.URY}),
	}
	out := Rect{LLX: corners[0].X, LLY: corners[0].Y, URX: corners[0].X, URY: corners[0].Y}
	for _, c := range corners[1:] {
		out.LLX = math.Min(out.LLX, c.X)
		out.LLY = math.Min(out.LLY, c.Y)
		out.URX = math.Max(out.URX, c.X)
		out.URY = math.Max(out.URY, c.Y)
	}
	return out
}

// Array returns the rectangle as [llx lly urx ury].
func (r Rect) Array() [4]float64 {
	return [4]float64{r.LLX, r.LLY, r.URX, r.URY}
}

// Matrix represents a 2D affine transformation matrix
type Matrix [6]float64

// Identity returns an identity matrix
func Identity() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// Transform applies the matrix transformation to a point
func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// Multiply multiplies two matrices; the result applies m, then other.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		m[0]*other[0] + m[1]*other[2],
		m[0]*other[1] + m[1]*other[3],
		m[2]*other[0] + m[3]*other[2],
		m[2]*other[1] + m[3]*other[3],
		m[4]*other[0] + m[5]*other[2] + other[4],
		m[4]*other[1] + m[5]*other[3] + other[5],
	}
}

// Invert returns the inverse matrix. ok is false for singular matrices.
func (m Matrix) Invert() (inv Matrix, ok bool) {
	det := m[0]*m[3] - m[1]*m[2]
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Matrix{}, false
	}
	return Matrix{
		m[3] / det,
		-m[1] / det,
		-m[2] / det,
		m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, true
}

// ScaleFactors returns the lengths of the transformed unit vectors, which
// is how far one unit in x and y travels in the target space.
func (m Matrix) ScaleFactors() (sx, sy float64) {
	return math.Hypot(m[0], m[1]), math.Hypot(m[2], m[3])
}

// Translate creates a translation matrix
func Translate(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// Scale creates a scaling matrix
func Scale(sx, sy float64) Matrix {
	return Matrix{sx, 0, 0, sy, 0, 0}
}

// Rotate creates a rotation matrix (angle in radians)
func Rotate(angle float64) Matrix {
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	return Matrix{cos, sin, -sin, cos, 0, 0}
}

// IsIdentity returns true if the matrix is an identity matrix
func (m Matrix) IsIdentity() bool {
	return m == Identity()
}
