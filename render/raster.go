package render

import (
	"image"
	"image/color"
	"math"
	"sort"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/tsawler/safepdf/graphicsstate"
	"github.com/tsawler/safepdf/model"
)

const (
	// maxCurveSteps bounds the line segments one Bézier curve becomes.
	maxCurveSteps = 64
	// joinSides is the number of sides of the polygon drawn at each
	// stroke vertex for round joins and caps.
	joinSides = 8
)

// subpath is a flattened device-space polyline.
type subpath struct {
	pts    []model.Point
	closed bool
}

// flatten maps path through m and replaces curves by line segments.
// Subpaths holding a non-finite coordinate are dropped.
func flatten(path *graphicsstate.Path, m model.Matrix) []subpath {
	var out []subpath
	cur := -1
	var start model.Point
	begin := func(p model.Point) {
		out = append(out, subpath{pts: []model.Point{p}})
		cur = len(out) - 1
		start = p
	}
	for _, seg := range path.Segments {
		switch seg.Type {
		case graphicsstate.PathMoveTo:
			if len(seg.Points) == 1 {
				begin(m.Transform(seg.Points[0]))
			}
		case graphicsstate.PathLineTo:
			if len(seg.Points) != 1 {
				continue
			}
			p := m.Transform(seg.Points[0])
			if cur < 0 {
				begin(start)
			}
			out[cur].pts = append(out[cur].pts, p)
		case graphicsstate.PathCurveTo:
			if len(seg.Points) != 3 {
				continue
			}
			if cur < 0 {
				begin(start)
			}
			pts := out[cur].pts
			p0 := pts[len(pts)-1]
			p1, p2, p3 := m.Transform(seg.Points[0]), m.Transform(seg.Points[1]), m.Transform(seg.Points[2])
			out[cur].pts = appendCurve(pts, p0, p1, p2, p3)
		case graphicsstate.PathClosePath:
			if cur >= 0 {
				out[cur].closed = true
				cur = -1
			}
		}
	}

	kept := out[:0]
	for _, sp := range out {
		if finite(sp.pts) {
			kept = append(kept, sp)
		}
	}
	return kept
}

func appendCurve(pts []model.Point, p0, p1, p2, p3 model.Point) []model.Point {
	length := p0.Distance(p1) + p1.Distance(p2) + p2.Distance(p3)
	steps := maxCurveSteps
	if l := math.Ceil(length / 4); l < float64(maxCurveSteps) {
		steps = int(math.Max(l, 1))
	}
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		mt := 1 - t
		a, b, c, d := mt*mt*mt, 3*mt*mt*t, 3*mt*t*t, t*t*t
		pts = append(pts, model.Point{
			X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
			Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
		})
	}
	return pts
}

func finite(pts []model.Point) bool {
	for _, p := range pts {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}

// raster turns device-space polygons into coverage masks over a canvas
// of the given bounds. The vector rasterizer only implements the
// non-zero winding rule, which is also used for even-odd fills.
type raster struct {
	bounds image.Rectangle
	z      *vector.Rasterizer

	// band is the region edges are clamped to, in rasterizer coordinates.
	x0, y0, x1, y1 float64
}

func newRaster(bounds image.Rectangle) *raster {
	return &raster{bounds: bounds, z: vector.NewRasterizer(1, 1)}
}

// fill returns the coverage of paths, or nil when nothing on the canvas
// is covered. The mask spans the covered part of the canvas only.
func (r *raster) fill(paths []subpath) *image.Alpha {
	box := r.deviceBounds(paths)
	if box.Empty() {
		return nil
	}
	r.z.Reset(box.Dx(), box.Dy())
	r.x0, r.y0 = -1, -1
	r.x1, r.y1 = float64(box.Dx()+1), float64(box.Dy()+1)
	origin := model.Point{X: float64(box.Min.X), Y: float64(box.Min.Y)}

	for _, sp := range paths {
		if len(sp.pts) < 2 {
			continue
		}
		first := sub(sp.pts[0], origin)
		r.z.MoveTo(r.clampX(first.X), r.clampY(first.Y))
		prev := first
		for _, p := range sp.pts[1:] {
			p = sub(p, origin)
			r.edge(prev, p)
			prev = p
		}
		r.edge(prev, first)
		r.z.ClosePath()
	}

	mask := image.NewAlpha(box)
	r.z.Draw(mask, box, image.Opaque, image.Point{})
	return mask
}

// edge adds the segment a-b. It is split where it crosses the band and
// each piece is clamped into it. Pieces outside the band collapse onto
// its border, which keeps the winding number of every point inside.
func (r *raster) edge(a, b model.Point) {
	ts := make([]float64, 1, 6)
	cross := func(v0, v1, at float64) {
		if d := v1 - v0; d != 0 {
			if t := (at - v0) / d; t > 0 && t < 1 {
				ts = append(ts, t)
			}
		}
	}
	cross(a.X, b.X, r.x0)
	cross(a.X, b.X, r.x1)
	cross(a.Y, b.Y, r.y0)
	cross(a.Y, b.Y, r.y1)
	sort.Float64s(ts)
	ts = append(ts, 1)
	for _, t := range ts[1:] {
		p := model.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
		r.z.LineTo(r.clampX(p.X), r.clampY(p.Y))
	}
}

func (r *raster) clampX(x float64) float32 {
	return float32(math.Min(math.Max(x, r.x0), r.x1))
}

func (r *raster) clampY(y float64) float32 {
	return float32(math.Min(math.Max(y, r.y0), r.y1))
}

// deviceBounds returns the integer bounds of paths clipped to the canvas.
func (r *raster) deviceBounds(paths []subpath) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, sp := range paths {
		for _, p := range sp.pts {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}
	if minX > maxX {
		return image.Rectangle{}
	}
	return clampRect(minX, minY, maxX, maxY, r.bounds)
}

// clampRect rounds a float rectangle outwards and intersects it with
// bounds, avoiding integer overflow for huge coordinates.
func clampRect(minX, minY, maxX, maxY float64, bounds image.Rectangle) image.Rectangle {
	lo := func(v float64, min, max int) int {
		return int(math.Min(math.Max(math.Floor(v), float64(min)), float64(max)))
	}
	hi := func(v float64, min, max int) int {
		return int(math.Min(math.Max(math.Ceil(v), float64(min)), float64(max)))
	}
	return image.Rect(
		lo(minX, bounds.Min.X, bounds.Max.X), lo(minY, bounds.Min.Y, bounds.Max.Y),
		hi(maxX, bounds.Min.X, bounds.Max.X), hi(maxY, bounds.Min.Y, bounds.Max.Y),
	).Intersect(bounds)
}

func sub(p, q model.Point) model.Point {
	return model.Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// stroke returns the coverage of paths stroked with the given device
// width. Segments become quads and every vertex gets a round join, all
// wound the same way so the non-zero rule unions them.
func (r *raster) stroke(paths []subpath, width float64) *image.Alpha {
	hw := math.Max(width, 1) / 2
	var polys []subpath
	for _, sp := range paths {
		pts := sp.pts
		if sp.closed && len(pts) > 1 {
			pts = append(append([]model.Point(nil), pts...), pts[0])
		}
		for i := 1; i < len(pts); i++ {
			a, b := pts[i-1], pts[i]
			dx, dy := b.X-a.X, b.Y-a.Y
			l := math.Hypot(dx, dy)
			if l == 0 {
				continue
			}
			n := model.Point{X: -dy / l * hw, Y: dx / l * hw}
			polys = append(polys, subpath{pts: []model.Point{
				{X: a.X + n.X, Y: a.Y + n.Y},
				{X: b.X + n.X, Y: b.Y + n.Y},
				{X: b.X - n.X, Y: b.Y - n.Y},
				{X: a.X - n.X, Y: a.Y - n.Y},
			}})
		}
		if len(pts) > 1 {
			for _, p := range pts {
				polys = append(polys, disc(p, hw))
			}
		}
	}
	return r.fill(polys)
}

// disc approximates a circle, wound like the quads of stroke.
func disc(c model.Point, radius float64) subpath {
	pts := make([]model.Point, joinSides)
	for i := range pts {
		a := -float64(i) * 2 * math.Pi / joinSides
		pts[i] = model.Point{X: c.X + radius*math.Cos(a), Y: c.Y + radius*math.Sin(a)}
	}
	return subpath{pts: pts}
}

// intersectMask multiplies mask by clip in place. Pixels outside clip
// become transparent.
func intersectMask(mask, clip *image.Alpha) {
	if clip == nil {
		return
	}
	b := mask.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := mask.PixOffset(x, y)
			if !(image.Point{X: x, Y: y}.In(clip.Rect)) {
				mask.Pix[i] = 0
				continue
			}
			c := clip.Pix[clip.PixOffset(x, y)]
			mask.Pix[i] = uint8((uint32(mask.Pix[i])*uint32(c) + 127) / 255)
		}
	}
}

// clipTo returns a canvas-sized clip equal to clip narrowed by mask.
// Neither argument is modified.
func clipTo(bounds image.Rectangle, clip, mask *image.Alpha) *image.Alpha {
	out := image.NewAlpha(bounds)
	if mask == nil {
		return out
	}
	draw.Draw(out, mask.Rect, mask, mask.Rect.Min, draw.Src)
	intersectMask(out, clip)
	return out
}

// composite paints c through mask onto the canvas, honouring clip.
func composite(canvas *image.RGBA, mask, clip *image.Alpha, c color.NRGBA) {
	if mask == nil || c.A == 0 {
		return
	}
	intersectMask(mask, clip)
	draw.DrawMask(canvas, mask.Rect, image.NewUniform(c), image.Point{}, mask, mask.Rect.Min, draw.Over)
}

// deviceColor converts components in [0, 1] and a constant alpha.
func deviceColor(rgb [3]float64, alpha float64) color.NRGBA {
	b := func(v float64) uint8 {
		return uint8(math.Round(math.Min(math.Max(v, 0), 1) * 255))
	}
	return color.NRGBA{R: b(rgb[0]), G: b(rgb[1]), B: b(rgb[2]), A: b(alpha)}
}
