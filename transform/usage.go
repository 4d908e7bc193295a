package transform

import (
	"context"
	"math"

	"github.com/tsawler/safepdf/contentstream"
	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/document"
	"github.com/tsawler/safepdf/font"
	"github.com/tsawler/safepdf/graphicsstate"
	"github.com/tsawler/safepdf/model"
	"github.com/tsawler/safepdf/pages"
)

const (
	// maxFormDepth bounds nested form XObjects while scanning.
	maxFormDepth = 16
	// checkEvery is how many operators run between cancellation checks.
	checkEvery = 4096
)

// extent is the largest size, in inches, at which an image is drawn.
type extent struct {
	w, h float64
}

// usage records how page content uses images and fonts.
type usage struct {
	ctx context.Context
	doc *document.Document

	// placed maps image objects to their largest placement.
	placed map[int]*extent
	// pinned holds images drawn somewhere their size is not known. They
	// are never resampled.
	pinned map[int]bool
	// codes maps font objects to the character codes shown with them.
	codes map[int]map[uint32]bool
	// heldFonts holds fonts named where content could not be read.
	heldFonts map[int]bool

	active map[int]bool
	// patterns holds tiling patterns already scanned.
	patterns map[int]bool
	depth    int
	ops      int
}

// scanUsage interprets the content of every page, the forms it draws and
// the appearance streams of its annotations.
func scanUsage(ctx context.Context, doc *document.Document) (*usage, error) {
	u := &usage{
		ctx:       ctx,
		doc:       doc,
		placed:    make(map[int]*extent),
		pinned:    make(map[int]bool),
		codes:     make(map[int]map[uint32]bool),
		heldFonts: make(map[int]bool),
		active:    make(map[int]bool),
		patterns:  make(map[int]bool),
	}
	for _, p := range doc.PageTree().Pages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := p.Resources()
		data, err := p.Content()
		if err != nil {
			u.pinResources(res)
			continue
		}
		if err := u.content(data, res, model.Identity(), false); err != nil {
			return nil, err
		}
		for _, a := range p.Annotations() {
			if err := u.appearance(a["AP"], res); err != nil {
				return nil, err
			}
		}
	}
	return u, nil
}

// appearance scans every appearance stream of an annotation. Their
// placement on the page is not tracked, so images in them are pinned.
func (u *usage) appearance(obj core.Object, res core.Dict) error {
	ap, ok := u.doc.Resolve(obj).(core.Dict)
	if !ok {
		return nil
	}
	for _, key := range []string{"N", "R", "D"} {
		entry := ap[key]
		var streams []core.Object
		if states, ok := u.doc.Resolve(entry).(core.Dict); ok {
			for _, k := range states.Keys() {
				streams = append(streams, states[k])
			}
		} else {
			streams = append(streams, entry)
		}
		for _, s := range streams {
			ref, _ := s.(core.IndirectRef)
			if st, ok := u.doc.Resolve(s).(*core.Stream); ok {
				if err := u.form(ref.Number, st, res, model.Identity(), true); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// pinResources pins every image and holds every font named in res.
func (u *usage) pinResources(res core.Dict) {
	xobjects, _ := u.doc.Resolve(res["XObject"]).(core.Dict)
	for _, v := range xobjects {
		if ref, ok := v.(core.IndirectRef); ok {
			u.pinned[ref.Number] = true
		}
	}
	fonts, _ := u.doc.Resolve(res["Font"]).(core.Dict)
	for _, v := range fonts {
		if ref, ok := v.(core.IndirectRef); ok {
			u.heldFonts[ref.Number] = true
		}
	}
}

// content interprets one content stream. With pin set, images are pinned
// instead of measured. Parse errors end the stream.
func (u *usage) content(data []byte, res core.Dict, ctm model.Matrix, pin bool) error {
	ops, err := contentstream.Parse(data)
	if err != nil {
		u.pinResources(res)
	}
	u.scanPatterns(res)
	proc := graphicsstate.NewProcessor(ctm)
	for _, op := range ops {
		u.ops++
		if u.ops%checkEvery == 0 {
			if err := u.ctx.Err(); err != nil {
				return err
			}
		}
		if proc.Apply(op) {
			continue
		}
		switch op.Operator {
		case "Tj", "'":
			if len(op.Operands) > 0 {
				u.show(proc.State, res, op.Operands[len(op.Operands)-1])
			}
		case `"`:
			if len(op.Operands) == 3 {
				u.show(proc.State, res, op.Operands[2])
			}
		case "TJ":
			if len(op.Operands) > 0 {
				arr, _ := op.Operands[0].(core.Array)
				for _, e := range arr {
					u.show(proc.State, res, e)
				}
			}
		case "Do":
			if len(op.Operands) > 0 {
				name, _ := op.Operands[0].(core.Name)
				if err := u.xobject(proc.State, res, string(name), pin); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// show records the codes of a shown string against the current font.
func (u *usage) show(gs *graphicsstate.GraphicsState, res core.Dict, obj core.Object) {
	str, ok := obj.(core.String)
	if !ok {
		return
	}
	fonts, _ := u.doc.Resolve(res["Font"]).(core.Dict)
	ref, ok := fonts[gs.Text.FontName].(core.IndirectRef)
	if !ok {
		return
	}
	dict, ok := u.doc.Resolve(ref).(core.Dict)
	if !ok {
		return
	}
	set := u.codes[ref.Number]
	if set == nil {
		set = make(map[uint32]bool)
		u.codes[ref.Number] = set
	}
	for _, g := range font.Load(dict, u.doc).Decode([]byte(str)) {
		set[g.Code] = true
	}
}

func (u *usage) xobject(gs *graphicsstate.GraphicsState, res core.Dict, name string, pin bool) error {
	xobjects, _ := u.doc.Resolve(res["XObject"]).(core.Dict)
	obj := xobjects[name]
	ref, _ := obj.(core.IndirectRef)
	s, ok := u.doc.Resolve(obj).(*core.Stream)
	if !ok {
		return nil
	}
	switch sub, _ := s.Dict.GetName("Subtype"); sub {
	case "Image":
		if ref.Number == 0 {
			return nil
		}
		if pin {
			u.pinned[ref.Number] = true
			return nil
		}
		m := gs.CTM
		w := math.Hypot(m[0], m[1]) / 72
		h := math.Hypot(m[2], m[3]) / 72
		e := u.placed[ref.Number]
		if e == nil {
			e = &extent{}
			u.placed[ref.Number] = e
		}
		e.w = math.Max(e.w, w)
		e.h = math.Max(e.h, h)
	case "Form":
		return u.form(ref.Number, s, res, gs.CTM, pin)
	}
	return nil
}

// form interprets a form XObject drawn at ctm. Forms without resources
// use those of the stream drawing them.
func (u *usage) form(num int, s *core.Stream, res core.Dict, ctm model.Matrix, pin bool) error {
	if err := u.ctx.Err(); err != nil {
		return err
	}
	if u.depth >= maxFormDepth || (num > 0 && u.active[num]) {
		if fres, ok := u.doc.Resolve(s.Dict["Resources"]).(core.Dict); ok {
			u.pinResources(fres)
		}
		return nil
	}
	data, err := s.Decode()
	if err != nil {
		if fres, ok := u.doc.Resolve(s.Dict["Resources"]).(core.Dict); ok {
			u.pinResources(fres)
		}
		return nil
	}
	if num > 0 {
		u.active[num] = true
		defer delete(u.active, num)
	}
	if m, ok := matrixObject(u.doc, s.Dict["Matrix"]); ok {
		ctm = m.Multiply(ctm)
	}
	if fres, ok := u.doc.Resolve(s.Dict["Resources"]).(core.Dict); ok {
		res = fres
	}
	u.depth++
	defer func() { u.depth-- }()
	return u.content(data, res, ctm, pin)
}

// scanPatterns scans the tiling patterns of res. Pattern space is not
// tracked, so their images are pinned.
func (u *usage) scanPatterns(res core.Dict) {
	patterns, _ := u.doc.Resolve(res["Pattern"]).(core.Dict)
	for _, k := range patterns.Keys() {
		ref, _ := patterns[k].(core.IndirectRef)
		if ref.Number > 0 {
			if u.patterns[ref.Number] {
				continue
			}
			u.patterns[ref.Number] = true
		}
		s, ok := u.doc.Resolve(patterns[k]).(*core.Stream)
		if !ok {
			continue
		}
		if pt, _ := core.Number(u.doc.Resolve(s.Dict["PatternType"])); pt != 1 {
			continue
		}
		// errors here are cancellation, seen again by the caller
		_ = u.form(ref.Number, s, res, model.Identity(), true)
	}
}

// matrixObject reads a /Matrix entry, rejecting non-finite values.
func matrixObject(r pages.Resolver, obj core.Object) (model.Matrix, bool) {
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
