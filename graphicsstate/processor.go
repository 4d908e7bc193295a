package graphicsstate

import (
	"github.com/tsawler/safepdf/contentstream"
	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/model"
)

// ExtGStateFunc looks up a named graphics state parameter dictionary in
// the current resources. It returns nil when the name is unknown.
type ExtGStateFunc func(name string) core.Dict

// Processor applies the state-changing operators of a content stream:
// graphics state, colour, path construction and text state. Painting, text
// showing and XObjects are left to the caller.
type Processor struct {
	State *GraphicsState
	Path  *Path

	// ExtGState resolves the operand of gs. May be nil.
	ExtGState ExtGStateFunc
}

// NewProcessor creates a processor with a default state and the given
// initial CTM.
func NewProcessor(ctm model.Matrix) *Processor {
	gs := NewGraphicsState()
	gs.CTM = ctm
	return &Processor{State: gs, Path: NewPath()}
}

// Apply updates the state for op and reports whether op was one the
// processor handles. Malformed operands are ignored.
func (p *Processor) Apply(op contentstream.Operation) bool {
	gs := p.State
	args := op.Operands
	switch op.Operator {
	// Graphics state operators
	case "q":
		gs.Save()
	case "Q":
		// Unbalanced restores are common in damaged files
		_ = gs.Restore()
	case "cm":
		if m, ok := MatrixFromOperands(args); ok {
			gs.Transform(m)
		}
	case "w":
		if v, ok := floats(args, 1); ok {
			gs.SetLineWidth(v[0])
		}
	case "J", "j", "M", "d", "i", "ri":
		// Line style and rendering intent do not affect the preview
	case "gs":
		p.applyExtGState(args)

	// Color operators
	case "G", "g", "RG", "rg", "K", "k":
		v, ok := floats(args, len(args))
		if !ok {
			break
		}
		p.setColor(op.Operator[0] >= 'a', v)
	case "CS", "cs":
		if len(args) != 1 {
			break
		}
		name, _ := args[0].(core.Name)
		if op.Operator == "cs" {
			gs.FillSpace = string(name)
			gs.FillColor = [3]float64{}
		} else {
			gs.StrokeSpace = string(name)
			gs.StrokeColor = [3]float64{}
		}
	case "SC", "SCN", "sc", "scn":
		fill := op.Operator[0] == 's'
		// A trailing pattern name carries no colour we can draw
		nums := args
		if len(nums) > 0 {
			if _, isName := nums[len(nums)-1].(core.Name); isName {
				nums = nums[:len(nums)-1]
			}
		}
		if v, ok := floats(nums, len(nums)); ok {
			p.setColor(fill, v)
		}

	// Path construction operators
	case "m":
		if v, ok := floats(args, 2); ok {
			p.Path.MoveTo(v[0], v[1])
		}
	case "l":
		if v, ok := floats(args, 2); ok {
			p.Path.LineTo(v[0], v[1])
		}
	case "c":
		if v, ok := floats(args, 6); ok {
			p.Path.CurveTo(v[0], v[1], v[2], v[3], v[4], v[5])
		}
	case "v":
		if v, ok := floats(args, 4); ok {
			p.Path.CurveToV(v[0], v[1], v[2], v[3])
		}
	case "y":
		if v, ok := floats(args, 4); ok {
			p.Path.CurveToY(v[0], v[1], v[2], v[3])
		}
	case "h":
		p.Path.ClosePath()
	case "re":
		if v, ok := floats(args, 4); ok {
			p.Path.Rectangle(v[0], v[1], v[2], v[3])
		}

	// Text state operators
	case "BT":
		gs.BeginText()
	case "ET":
	case "Tc":
		if v, ok := floats(args, 1); ok {
			gs.SetCharSpacing(v[0])
		}
	case "Tw":
		if v, ok := floats(args, 1); ok {
			gs.SetWordSpacing(v[0])
		}
	case "Tz":
		if v, ok := floats(args, 1); ok {
			gs.SetHorizontalScaling(v[0])
		}
	case "TL":
		if v, ok := floats(args, 1); ok {
			gs.SetLeading(v[0])
		}
	case "Tf":
		if len(args) == 2 {
			name, _ := args[0].(core.Name)
			if size, ok := core.Number(args[1]); ok {
				gs.SetFont(string(name), size)
			}
		}
	case "Tr":
		if v, ok := floats(args, 1); ok {
			gs.SetRenderingMode(int(v[0]))
		}
	case "Ts":
		if v, ok := floats(args, 1); ok {
			gs.SetTextRise(v[0])
		}
	case "Td":
		if v, ok := floats(args, 2); ok {
			gs.TranslateText(v[0], v[1])
		}
	case "TD":
		if v, ok := floats(args, 2); ok {
			gs.TranslateTextSetLeading(v[0], v[1])
		}
	case "Tm":
		if m, ok := MatrixFromOperands(args); ok {
			gs.SetTextMatrix(m)
		}
	case "T*":
		gs.NextLine()
	default:
		return false
	}
	return true
}

// setColor picks the colour model from the component count, which also
// covers ICCBased and CalRGB spaces.
func (p *Processor) setColor(fill bool, v []float64) {
	var r, g, b float64
	switch {
	case len(v) == 4:
		r, g, b = CMYKToRGB(v[0], v[1], v[2], v[3])
	case len(v) == 3:
		r, g, b = v[0], v[1], v[2]
	case len(v) == 1:
		r, g, b = v[0], v[0], v[0]
	default:
		// Separation, DeviceN and patterns without a usable tint
		return
	}
	if fill {
		p.State.SetFillColorRGB(r, g, b)
	} else {
		p.State.SetStrokeColorRGB(r, g, b)
	}
}

func (p *Processor) applyExtGState(args []core.Object) {
	if p.ExtGState == nil || len(args) != 1 {
		return
	}
	name, ok := args[0].(core.Name)
	if !ok {
		return
	}
	d := p.ExtGState(string(name))
	if d == nil {
		return
	}
	if lw, ok := d.GetNumber("LW"); ok {
		p.State.SetLineWidth(lw)
	}
	if ca, ok := d.GetNumber("CA"); ok {
		p.State.StrokeAlpha = clamp01(ca)
	}
	if ca, ok := d.GetNumber("ca"); ok {
		p.State.FillAlpha = clamp01(ca)
	}
}

// MatrixFromOperands reads six numbers as a matrix.
func MatrixFromOperands(args []core.Object) (model.Matrix, bool) {
	v, ok := floats(args, 6)
	if !ok {
		return model.Matrix{}, false
	}
	return model.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}, true
}

// floats converts exactly n numeric operands.
func floats(args []core.Object, n int) ([]float64, bool) {
	if len(args) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, a := range args {
		f, ok := core.Number(a)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// CMYKToRGB converts a CMYK colour with the naive complement formula.
func CMYKToRGB(c, m, y, k float64) (r, g, b float64) {
	return (1 - c) * (1 - k), (1 - m) * (1 - k), (1 - y) * (1 - k)
}
