package render

import (
	"context"
	"image"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/safepdf/contentstream"
	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/font"
	"github.com/tsawler/safepdf/graphicsstate"
	"github.com/tsawler/safepdf/model"
	"github.com/tsawler/safepdf/pages"
)

// checkEvery is how many operators run between cancellation checks.
const checkEvery = 4096

// Annotation flags that hide an annotation on screen.
const (
	flagHidden = 1 << 1
	flagNoView = 1 << 5
)

// interp draws one page. Operators that change state go to the
// graphicsstate processor; painting, text showing and XObjects are
// handled here.
type interp struct {
	ctx    context.Context
	doc    Document
	log    *logrus.Entry
	canvas *image.RGBA
	raster *raster
	proc   *graphicsstate.Processor
	res    core.Dict

	fonts  map[int]*font.Font
	active map[int]bool
	depth  int
	ops    int

	// clipPending is set by W and W* and applied when the path ends.
	clipPending bool
	unsupported int
}

func newInterp(ctx context.Context, doc Document, log *logrus.Entry, canvas *image.RGBA, ctm model.Matrix, res core.Dict) *interp {
	in := &interp{
		ctx:    ctx,
		doc:    doc,
		log:    log,
		canvas: canvas,
		raster: newRaster(canvas.Bounds()),
		proc:   graphicsstate.NewProcessor(ctm),
		res:    res,
		fonts:  make(map[int]*font.Font),
		active: make(map[int]bool),
	}
	in.proc.ExtGState = in.extGState
	return in
}

// reset gives annotations a fresh graphics state, whatever the page
// content left behind.
func (in *interp) reset(ctm model.Matrix, res core.Dict) {
	gs := graphicsstate.NewGraphicsState()
	gs.CTM = ctm
	in.proc.State = gs
	in.proc.Path.Clear()
	in.res = res
	in.clipPending = false
}

func (in *interp) gs() *graphicsstate.GraphicsState {
	return in.proc.State
}

func (in *interp) resource(category, name string) core.Object {
	group, _ := in.doc.Resolve(in.res[category]).(core.Dict)
	return group[name]
}

func (in *interp) extGState(name string) core.Dict {
	d, _ := in.doc.Resolve(in.resource("ExtGState", name)).(core.Dict)
	return d
}

// content parses data and runs it. A parse error ends the stream; the
// operators before it are still drawn.
func (in *interp) content(data []byte) error {
	ops, err := contentstream.Parse(data)
	if err != nil {
		in.log.WithFields(logrus.Fields{"error": err, "operators": len(ops)}).Debug("content stream truncated")
	}
	return in.run(ops)
}

func (in *interp) run(ops []contentstream.Operation) error {
	for _, op := range ops {
		in.ops++
		if in.ops%checkEvery == 0 {
			if err := in.ctx.Err(); err != nil {
				return err
			}
		}
		if in.proc.Apply(op) {
			continue
		}
		if err := in.apply(op); err != nil {
			return err
		}
	}
	return nil
}

func (in *interp) apply(op contentstream.Operation) error {
	gs := in.gs()
	args := op.Operands
	switch op.Operator {
	// Path painting
	case "S":
		in.strokePath()
		in.endPath()
	case "s":
		in.proc.Path.ClosePath()
		in.strokePath()
		in.endPath()
	case "f", "F", "f*":
		in.fillPath()
		in.endPath()
	case "B", "B*":
		in.fillPath()
		in.strokePath()
		in.endPath()
	case "b", "b*":
		in.proc.Path.ClosePath()
		in.fillPath()
		in.strokePath()
		in.endPath()
	case "n":
		in.endPath()
	case "W", "W*":
		in.clipPending = true

	// Text showing
	case "Tj":
		if len(args) == 1 {
			in.showString(args[0])
		}
	case "'":
		gs.NextLine()
		if len(args) == 1 {
			in.showString(args[0])
		}
	case "\"":
		if len(args) == 3 {
			if aw, ok := core.Number(args[0]); ok {
				gs.SetWordSpacing(aw)
			}
			if ac, ok := core.Number(args[1]); ok {
				gs.SetCharSpacing(ac)
			}
			gs.NextLine()
			in.showString(args[2])
		}
	case "TJ":
		if len(args) == 1 {
			arr, _ := args[0].(core.Array)
			for _, elem := range arr {
				if n, ok := core.Number(elem); ok {
					gs.Kern(n)
					continue
				}
				in.showString(elem)
			}
		}

	// XObjects and images
	case "Do":
		if len(args) == 1 {
			if name, ok := args[0].(core.Name); ok {
				return in.xobject(string(name))
			}
		}
	case "BI":
		if op.Image != nil {
			named, _ := in.doc.Resolve(in.res["ColorSpace"]).(core.Dict)
			in.drawImage(op.Image.Stream(), named)
		}
	case "sh":
		in.unsupported++
	}
	return nil
}

func (in *interp) fillPath() {
	gs := in.gs()
	paths := flatten(in.proc.Path, gs.CTM)
	composite(in.canvas, in.raster.fill(paths), gs.Clip, deviceColor(gs.FillColor, gs.FillAlpha))
}

func (in *interp) strokePath() {
	gs := in.gs()
	paths := flatten(in.proc.Path, gs.CTM)
	composite(in.canvas, in.raster.stroke(paths, deviceWidth(gs.LineWidth, gs.CTM)), gs.Clip,
		deviceColor(gs.StrokeColor, gs.StrokeAlpha))
}

// deviceWidth scales a user-space line width by the CTM's area factor.
func deviceWidth(width float64, m model.Matrix) float64 {
	return width * math.Sqrt(math.Abs(m[0]*m[3]-m[1]*m[2]))
}

// endPath applies a pending clip and starts a new path.
func (in *interp) endPath() {
	if in.clipPending {
		in.clipPath()
		in.clipPending = false
	}
	in.proc.Path.Clear()
}

func (in *interp) clipPath() {
	gs := in.gs()
	mask := in.raster.fill(flatten(in.proc.Path, gs.CTM))
	gs.Clip = clipTo(in.canvas.Bounds(), gs.Clip, mask)
}

// xobject draws the named image or form XObject.
func (in *interp) xobject(name string) error {
	obj := in.resource("XObject", name)
	s, ok := in.doc.Resolve(obj).(*core.Stream)
	if !ok {
		in.log.WithFields(logrus.Fields{"name": name}).Debug("XObject not found")
		return nil
	}
	switch sub, _ := s.Dict.GetName("Subtype"); sub {
	case "Image":
		in.drawImage(s, nil)
	case "Form":
		ref, _ := obj.(core.IndirectRef)
		return in.form(ref.Number, s)
	default:
		in.unsupported++
	}
	return nil
}

// form draws a form XObject. num is its object number, 0 for direct
// streams. Forms already being drawn and forms nested deeper than
// MaxFormDepth are skipped.
func (in *interp) form(num int, s *core.Stream) error {
	if err := in.ctx.Err(); err != nil {
		return err
	}
	if in.depth >= MaxFormDepth || (num > 0 && in.active[num]) {
		in.log.WithFields(logrus.Fields{"object": num, "depth": in.depth}).Debug("form skipped")
		in.unsupported++
		return nil
	}
	data, err := s.Decode()
	if err != nil {
		in.log.WithFields(logrus.Fields{"object": num, "error": err}).Debug("form does not decode")
		in.unsupported++
		return nil
	}
	if num > 0 {
		in.active[num] = true
		defer delete(in.active, num)
	}

	gs := in.gs()
	depth := gs.Depth()
	gs.Save()
	if m, ok := matrixObject(in.doc, s.Dict["Matrix"]); ok {
		gs.Transform(m)
	}
	if bbox, ok := pages.RectFromObject(in.doc, s.Dict["BBox"]); ok {
		path := graphicsstate.NewPath()
		path.Rectangle(bbox.LLX, bbox.LLY, bbox.Width(), bbox.Height())
		gs.Clip = clipTo(in.canvas.Bounds(), gs.Clip, in.raster.fill(flatten(path, gs.CTM)))
	}

	savedRes, savedPath, savedClip := in.res, in.proc.Path, in.clipPending
	if res, ok := in.doc.Resolve(s.Dict["Resources"]).(core.Dict); ok {
		in.res = res
	}
	in.proc.Path = graphicsstate.NewPath()
	in.clipPending = false
	in.depth++

	err = in.content(data)

	in.depth--
	in.res, in.proc.Path, in.clipPending = savedRes, savedPath, savedClip
	for in.gs().Depth() > depth {
		if in.gs().Restore() != nil {
			break
		}
	}
	return err
}

// matrixObject reads a six-number matrix array.
func matrixObject(r Document, obj core.Object) (model.Matrix, bool) {
	arr, ok := r.Resolve(obj).(core.Array)
	if !ok {
		return model.Matrix{}, false
	}
	operands := make([]core.Object, len(arr))
	for i, e := range arr {
		operands[i] = r.Resolve(e)
	}
	m, ok := graphicsstate.MatrixFromOperands(operands)
	if !ok {
		return model.Matrix{}, false
	}
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.Matrix{}, false
		}
	}
	return m, true
}

// annotation draws the normal appearance of a visible annotation,
// mapped onto its /Rect.
func (in *interp) annotation(a core.Dict) error {
	if flags, _ := a.GetInt("F"); flags&(flagHidden|flagNoView) != 0 {
		return nil
	}
	ap, ok := in.doc.Resolve(a["AP"]).(core.Dict)
	if !ok {
		return nil
	}
	var obj core.Object = ap["N"]
	if states, ok := in.doc.Resolve(obj).(core.Dict); ok {
		state, _ := a.GetName("AS")
		obj = states[string(state)]
	}
	s, ok := in.doc.Resolve(obj).(*core.Stream)
	if !ok {
		return nil
	}
	rect, ok := pages.RectFromObject(in.doc, a["Rect"])
	if !ok || rect.IsEmpty() {
		return nil
	}
	bbox, ok := pages.RectFromObject(in.doc, s.Dict["BBox"])
	if !ok {
		return nil
	}
	if m, ok := matrixObject(in.doc, s.Dict["Matrix"]); ok {
		bbox = bbox.Transform(m)
	}
	if bbox.Width() == 0 || bbox.Height() == 0 {
		return nil
	}
	fit := model.Translate(-bbox.LLX, -bbox.LLY).
		Multiply(model.Scale(rect.Width()/bbox.Width(), rect.Height()/bbox.Height())).
		Multiply(model.Translate(rect.LLX, rect.LLY))

	gs := in.gs()
	depth := gs.Depth()
	gs.Save()
	gs.CTM = fit.Multiply(gs.CTM)
	ref, _ := obj.(core.IndirectRef)
	err := in.form(ref.Number, s)
	for gs.Depth() > depth {
		if gs.Restore() != nil {
			break
		}
	}
	return err
}
