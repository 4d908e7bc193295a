package text

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/tsawler/safepdf/contentstream"
	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/font"
	"github.com/tsawler/safepdf/graphicsstate"
	"github.com/tsawler/safepdf/model"
	"github.com/tsawler/safepdf/pages"
)

const (
	// maxFormDepth bounds nested form XObjects.
	maxFormDepth = 16
	// checkEvery is how many operators run between context checks.
	checkEvery = 4096
	// wordGap is the TJ adjustment, in thousandths of an em, read as a
	// space between words.
	wordGap = 200

	// Glyph boxes span this much of the em below and above the baseline.
	descent = -0.2
	ascent  = 0.8
)

// Fragment is the text drawn by one show operator.
type Fragment struct {
	Text string
	// Bounds is the box covered by the glyphs in default user space.
	Bounds    model.Rect
	FontSize  float64
	Direction Direction
}

// Resolver resolves indirect references.
type Resolver interface {
	Resolve(obj core.Object) core.Object
}

// Extractor collects positioned text from page content. Text in form
// XObjects is included. Invisible text (rendering mode 3 or 7) is not.
type Extractor struct {
	r     Resolver
	ctx   context.Context
	fonts map[int]*font.Font
	frags []Fragment
	ops   int
	depth int
}

// NewExtractor creates an extractor resolving objects through r.
func NewExtractor(r Resolver) *Extractor {
	return &Extractor{r: r, fonts: make(map[int]*font.Font)}
}

// Extract returns the fragments of a page in content order. Content that
// does not parse yields the fragments before the damage.
func (e *Extractor) Extract(ctx context.Context, p *pages.Page) ([]Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.Content()
	if err != nil {
		return nil, nil
	}
	e.ctx = ctx
	e.frags = nil
	if err := e.content(data, p.Resources(), model.Identity()); err != nil {
		return nil, err
	}
	return e.frags, nil
}

func (e *Extractor) content(data []byte, res core.Dict, ctm model.Matrix) error {
	ops, _ := contentstream.Parse(data)
	proc := graphicsstate.NewProcessor(ctm)
	for _, op := range ops {
		e.ops++
		if e.ops%checkEvery == 0 {
			if err := e.ctx.Err(); err != nil {
				return err
			}
		}
		if proc.Apply(op) {
			continue
		}
		gs := proc.State
		args := op.Operands
		switch op.Operator {
		case "Tj":
			if len(args) == 1 {
				e.show(gs, res, core.Array{args[0]})
			}
		case "'":
			gs.NextLine()
			if len(args) == 1 {
				e.show(gs, res, core.Array{args[0]})
			}
		case `"`:
			if len(args) == 3 {
				if aw, ok := core.Number(args[0]); ok {
					gs.SetWordSpacing(aw)
				}
				if ac, ok := core.Number(args[1]); ok {
					gs.SetCharSpacing(ac)
				}
				gs.NextLine()
				e.show(gs, res, core.Array{args[2]})
			}
		case "TJ":
			if len(args) == 1 {
				arr, _ := args[0].(core.Array)
				e.show(gs, res, arr)
			}
		case "Do":
			if len(args) == 1 {
				name, _ := args[0].(core.Name)
				if err := e.form(gs.CTM, res, string(name)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// show records one fragment for a TJ array; Tj and its variants pass a
// single string.
func (e *Extractor) show(gs *graphicsstate.GraphicsState, res core.Dict, items core.Array) {
	f := e.font(res, gs.Text.FontName)
	mode := gs.Text.RenderingMode
	visible := mode != 3 && mode != 7

	var sb strings.Builder
	var bounds model.Rect
	for _, item := range items {
		s, ok := item.(core.String)
		if !ok {
			if adj, ok := core.Number(item); ok {
				if adj <= -wordGap && sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				gs.Kern(adj)
			}
			continue
		}
		for _, g := range f.Decode([]byte(s)) {
			box := model.Rect{LLX: 0, LLY: descent, URX: g.Width / 1000, URY: ascent}.
				Transform(gs.TextRenderingMatrix())
			bounds = bounds.Union(box)
			sb.WriteString(g.Text)
			gs.GlyphAdvance(g.Width, g.Space)
		}
	}
	text := strings.TrimSpace(sb.String())
	if !visible || text == "" {
		return
	}
	e.frags = append(e.frags, Fragment{
		Text:      text,
		Bounds:    bounds,
		FontSize:  gs.GetEffectiveFontSize(),
		Direction: DetectDirection(text),
	})
}

// font loads the named font of res. Fonts reached through a reference
// are loaded once.
func (e *Extractor) font(res core.Dict, name string) *font.Font {
	fonts, _ := e.r.Resolve(res["Font"]).(core.Dict)
	obj := fonts[name]
	ref, isRef := obj.(core.IndirectRef)
	if isRef {
		if f, ok := e.fonts[ref.Number]; ok {
			return f
		}
	}
	dict, _ := e.r.Resolve(obj).(core.Dict)
	f := font.Load(dict, e.r)
	if isRef {
		e.fonts[ref.Number] = f
	}
	return f
}

// form extracts the text of a form XObject drawn at ctm.
func (e *Extractor) form(ctm model.Matrix, res core.Dict, name string) error {
	if e.depth >= maxFormDepth {
		return nil
	}
	xobjects, _ := e.r.Resolve(res["XObject"]).(core.Dict)
	s, ok := e.r.Resolve(xobjects[name]).(*core.Stream)
	if !ok {
		return nil
	}
	if sub, _ := s.Dict.GetName("Subtype"); sub != "Form" {
		return nil
	}
	data, err := s.Decode()
	if err != nil {
		return nil
	}
	if m, ok := e.r.Resolve(s.Dict["Matrix"]).(core.Array); ok {
		if fm, ok := graphicsstate.MatrixFromOperands(m); ok {
			ctm = fm.Multiply(ctm)
		}
	}
	inner, ok := e.r.Resolve(s.Dict["Resources"]).(core.Dict)
	if !ok {
		inner = res
	}
	e.depth++
	defer func() { e.depth-- }()
	return e.content(data, inner, ctm)
}

// Within returns the text of the fragments centred inside rect, one line
// at a time from the top. Words on a line run left to right, or right to
// left when the line is mostly right-to-left script.
func Within(frags []Fragment, rect model.Rect) string {
	var inside []Fragment
	for _, f := range frags {
		c := model.Point{X: (f.Bounds.LLX + f.Bounds.URX) / 2, Y: (f.Bounds.LLY + f.Bounds.URY) / 2}
		if rect.Contains(c) {
			inside = append(inside, f)
		}
	}
	if len(inside) == 0 {
		return ""
	}
	sort.SliceStable(inside, func(i, j int) bool {
		return inside[i].Bounds.URY > inside[j].Bounds.URY
	})

	var lines [][]Fragment
	for _, f := range inside {
		n := len(lines)
		if n > 0 && sameLine(lines[n-1][0], f) {
			lines[n-1] = append(lines[n-1], f)
			continue
		}
		lines = append(lines, []Fragment{f})
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, joinLine(line))
	}
	return strings.Join(out, " ")
}

func sameLine(a, b Fragment) bool {
	tol := math.Max(a.FontSize, b.FontSize) / 2
	return math.Abs(a.Bounds.LLY-b.Bounds.LLY) <= tol
}

func joinLine(line []Fragment) string {
	var sb strings.Builder
	for _, f := range line {
		sb.WriteString(f.Text)
	}
	rtl := DetectDirection(sb.String()) == RTL
	sort.SliceStable(line, func(i, j int) bool {
		if rtl {
			return line[i].Bounds.URX > line[j].Bounds.URX
		}
		return line[i].Bounds.LLX < line[j].Bounds.LLX
	})
	words := make([]string, len(line))
	for i, f := range line {
		words[i] = f.Text
	}
	return strings.Join(words, " ")
}
