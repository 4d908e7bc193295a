package transform

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/document"
	"github.com/tsawler/safepdf/font"
	"github.com/tsawler/safepdf/internal/filters"
	"github.com/tsawler/safepdf/pdfimage"
	"github.com/tsawler/safepdf/resolver"
)

// tolerance is how close to the target resolution an image may be before
// it is left alone.
const tolerance = 0.95

// strippedKeys are removed from every dictionary by Reduce.
var strippedKeys = map[string]bool{"Metadata": true, "PieceInfo": true, "Thumb": true}

// imageKeys are rewritten when an image is re-encoded.
var imageKeys = []string{"Length", "Filter", "DecodeParms", "Width", "Height", "BitsPerComponent", "ColorSpace", "Decode"}

// Reduce is [Transformer.Reduce] configured by opts.
func Reduce(ctx context.Context, doc *document.Document, level Level, opts ...Option) (*document.Document, error) {
	return New(opts...).Reduce(ctx, doc, level)
}

// Reduce returns a smaller copy of doc: images drawn above the level's
// resolution are downsampled, embedded TrueType programs are subset to
// the glyphs shown, unfiltered streams are compressed, metadata is
// stripped and unreferenced objects are dropped. Objects are renumbered
// in discovery order from the trailer, so reducing the output again at
// the same level changes nothing.
func (t *Transformer) Reduce(ctx context.Context, doc *document.Document, level Level) (*document.Document, error) {
	if doc.Encrypted() {
		return nil, core.ErrEncrypted
	}
	if !level.valid() {
		return nil, errorf("reduce", core.IndirectRef{}, "unknown level %d", int(level))
	}

	src := doc.Trailer()
	root, ok := src.GetIndirectRef("Root")
	if !ok {
		return nil, errorf("reduce", core.IndirectRef{}, "trailer has no /Root reference")
	}
	trailer := core.Dict{"Root": root}
	if id, ok := src["ID"]; ok {
		trailer["ID"] = id
	}
	changes := make(map[int]core.Object)
	if info, ok := src["Info"]; ok && level != Extreme {
		if level == Good {
			trailer["Info"] = info
		} else if kept := trimInfo(doc, info); kept != nil {
			num := doc.MaxObjectNumber() + 1
			changes[num] = kept
			trailer["Info"] = core.IndirectRef{Number: num}
		}
	}

	work, err := stripped(ctx, doc.Derive(changes, trailer), trailer)
	if err != nil {
		return nil, err
	}
	r := &reducer{ctx: ctx, doc: work, cfg: t.cfg, level: level, log: t.log, changes: make(map[int]core.Object)}
	if err := r.images(); err != nil {
		return nil, err
	}
	if err := r.fonts(); err != nil {
		return nil, err
	}
	work = work.Derive(r.changes, nil)
	r.doc, r.changes = work, make(map[int]core.Object)
	if err := r.compress(); err != nil {
		return nil, err
	}
	work = work.Derive(r.changes, nil)

	out, err := renumber(ctx, work, trailer)
	if err != nil {
		return nil, err
	}
	t.log.WithFields(logrus.Fields{
		"level":      level.String(),
		"objects":    doc.MaxObjectNumber(),
		"kept":       out.MaxObjectNumber(),
		"images":     r.resampled,
		"subsets":    r.subsets,
		"compressed": r.compressed,
	}).Debug("reduced")
	return out, nil
}

// trimInfo keeps the descriptive entries of the information dictionary.
// It returns nil when none are left.
func trimInfo(doc *document.Document, obj core.Object) core.Dict {
	info, ok := doc.Resolve(obj).(core.Dict)
	if !ok {
		return nil
	}
	kept := core.Dict{}
	for _, k := range keptInfo {
		if v, ok := info[k]; ok {
			kept[k] = v
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// stripped copies the objects reachable from trailer with the stripped
// keys removed, into a standalone document.
func stripped(ctx context.Context, doc *document.Document, trailer core.Dict) (*document.Document, error) {
	closure, err := resolver.NewWalker(doc, resolver.WithSkipKeys(keys(strippedKeys)...)).Closure(ctx, trailer)
	if err != nil {
		return nil, err
	}
	objects := make(map[int]core.Object, closure.Len())
	for _, num := range closure.Order {
		if obj, ok := doc.Lookup(num); ok {
			objects[num] = strip(obj)
		}
	}
	return document.New(trailer, objects), nil
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// strip copies obj without the stripped keys. Stream data is shared.
func strip(obj core.Object) core.Object {
	switch v := obj.(type) {
	case core.Dict:
		out := make(core.Dict, len(v))
		for k, e := range v {
			if !strippedKeys[k] {
				out[k] = strip(e)
			}
		}
		return out
	case core.Array:
		out := make(core.Array, len(v))
		for i, e := range v {
			out[i] = strip(e)
		}
		return out
	case *core.Stream:
		return &core.Stream{Dict: strip(v.Dict).(core.Dict), Data: v.Data}
	}
	return obj
}

// renumber copies the objects reachable from trailer, numbered from 1 in
// discovery order.
func renumber(ctx context.Context, doc *document.Document, trailer core.Dict) (*document.Document, error) {
	closure, err := resolver.NewWalker(doc).Closure(ctx, trailer)
	if err != nil {
		return nil, err
	}
	mapping := make(map[int]int, closure.Len())
	for i, num := range closure.Order {
		mapping[num] = i + 1
	}
	objects := make(map[int]core.Object, closure.Len())
	for _, num := range closure.Order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obj, _ := doc.Lookup(num)
		objects[mapping[num]] = resolver.Renumber(obj, mapping)
	}
	return document.New(resolver.Renumber(trailer, mapping).(core.Dict), objects), nil
}

// reducer holds the state of one Reduce call. changes collects replaced
// objects.
type reducer struct {
	ctx     context.Context
	doc     *document.Document
	cfg     config
	level   Level
	log     *logrus.Entry
	usage   *usage
	changes map[int]core.Object

	resampled, subsets, compressed int
}

// images downsamples every image drawn above the target resolution.
func (r *reducer) images() error {
	u, err := scanUsage(r.ctx, r.doc)
	if err != nil {
		return err
	}
	r.usage = u
	nums := make([]int, 0, len(u.placed))
	for num := range u.placed {
		if !u.pinned[num] {
			nums = append(nums, num)
		}
	}
	sort.Ints(nums)
	for _, num := range nums {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		obj, _ := r.doc.Lookup(num)
		s, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		if out := r.downsample(num, s, u.placed[num]); out != nil {
			r.changes[num] = out
			r.resampled++
		}
	}
	return nil
}

// downsample returns s resampled to the level's resolution at its largest
// placement, or nil when it is already small enough or cannot be handled.
func (r *reducer) downsample(num int, s *core.Stream, e *extent) *core.Stream {
	fields := logrus.Fields{"object": num}
	img, err := pdfimage.FromStream(s, r.doc, nil)
	if err != nil {
		fields["error"] = err
		r.log.WithFields(fields).Debug("image left as is")
		return nil
	}
	if img.Mask || img.BitsPerComponent != 8 || img.ColorSpace == nil {
		return nil
	}
	switch img.ColorSpace.Family {
	case pdfimage.Gray, pdfimage.RGB, pdfimage.CMYK:
	default:
		return nil
	}

	dpi := r.level.DPI()
	tw, th := math.Ceil(e.w*dpi), math.Ceil(e.h*dpi)
	scale := math.Max(tw/float64(img.Width), th/float64(img.Height))
	if scale >= tolerance {
		return nil
	}
	w := int(math.Max(1, math.Round(float64(img.Width)*scale)))
	h := int(math.Max(1, math.Round(float64(img.Height)*scale)))

	pic, err := img.ToImage()
	if err != nil {
		fields["error"] = err
		r.log.WithFields(fields).Debug("image left as is")
		return nil
	}
	dct := img.Filter == "DCTDecode"
	if _, cmyk := pic.(*image.CMYK); cmyk && dct {
		return nil
	}
	small := pdfimage.Resample(pic, w, h)
	var enc *pdfimage.Encoded
	if dct {
		enc, err = pdfimage.EncodeJPEG(small, r.cfg.jpegQuality)
	} else {
		enc, err = pdfimage.EncodeFlate(small)
	}
	if err != nil {
		fields["error"] = err
		r.log.WithFields(fields).Debug("image left as is")
		return nil
	}

	extra := s.Dict.Clone()
	for _, k := range imageKeys {
		delete(extra, k)
	}
	if _, ok := extra["Mask"].(core.IndirectRef); !ok {
		delete(extra, "Mask")
	}
	fields["from"] = [2]int{img.Width, img.Height}
	fields["to"] = [2]int{w, h}
	r.log.WithFields(fields).Debug("image downsampled")
	return enc.Stream(extra)
}

// fonts subsets the embedded TrueType programs of the fonts shown. A
// program is skipped when any font using it is listed in the interactive
// form resources or sits on a page whose content could not be read.
func (r *reducer) fonts() error {
	held := r.formFonts()
	for num := range r.usage.heldFonts {
		held[num] = true
	}

	users := make(map[int][]int)
	for _, ref := range r.doc.Refs() {
		obj, _ := r.doc.Lookup(ref.Number)
		d, ok := obj.(core.Dict)
		if !ok {
			continue
		}
		if t, _ := d.GetName("Type"); t != "Font" {
			continue
		}
		if prog, ok := programRef(font.Load(d, r.doc)); ok {
			users[prog] = append(users[prog], ref.Number)
		}
	}

	progs := make([]int, 0, len(users))
	for prog := range users {
		progs = append(progs, prog)
	}
	sort.Ints(progs)

	for _, prog := range progs {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		keepable := true
		for _, f := range users[prog] {
			if held[f] {
				keepable = false
			}
		}
		if !keepable {
			continue
		}
		if out := r.subset(prog, users[prog]); out != nil {
			r.changes[prog] = out
			r.subsets++
		}
	}
	return nil
}

// subset returns the program prog reduced to the glyphs its fonts show,
// or nil when that does not make it smaller.
func (r *reducer) subset(prog int, fontNums []int) *core.Stream {
	obj, _ := r.doc.Lookup(prog)
	s, ok := obj.(*core.Stream)
	if !ok {
		return nil
	}
	fields := logrus.Fields{"object": prog}
	data, err := s.Decode()
	if err != nil {
		fields["error"] = err
		r.log.WithFields(fields).Debug("font program left as is")
		return nil
	}
	tt, err := font.ParseTrueType(data)
	if err != nil {
		fields["error"] = err
		r.log.WithFields(fields).Debug("font program left as is")
		return nil
	}

	keep := make(map[uint16]bool)
	for _, num := range fontNums {
		codes := r.usage.codes[num]
		if len(codes) == 0 {
			continue
		}
		list := make([]uint32, 0, len(codes))
		for c := range codes {
			list = append(list, c)
		}
		d, _ := r.doc.Resolve(core.IndirectRef{Number: num}).(core.Dict)
		for gid := range font.Load(d, r.doc).GlyphIDs(tt, list, r.doc) {
			keep[gid] = true
		}
	}
	if len(keep) == 0 {
		return nil
	}
	sub, err := tt.Subset(keep)
	if err != nil {
		fields["error"] = err
		r.log.WithFields(fields).Debug("font program left as is")
		return nil
	}
	enc, err := filters.FlateEncode(sub)
	if err != nil || len(enc) >= len(s.Data) {
		return nil
	}
	d := s.Dict.Clone()
	delete(d, "DecodeParms")
	d["Filter"] = core.Name("FlateDecode")
	d["Length1"] = core.Int(len(sub))
	fields["glyphs"] = len(keep)
	fields["bytes"] = len(enc)
	r.log.WithFields(fields).Debug("font program subset")
	return core.NewStream(d, enc)
}

// programRef returns the object number of the TrueType program of a
// simple TrueType or CIDFontType2 font.
func programRef(f *font.Font) (int, bool) {
	switch f.Subtype {
	case "TrueType":
	case "Type0":
		if sub, _ := f.Descendant.GetName("Subtype"); sub != "CIDFontType2" {
			return 0, false
		}
	default:
		return 0, false
	}
	if f.Descriptor == nil {
		return 0, false
	}
	ref, ok := f.Descriptor["FontFile2"].(core.IndirectRef)
	return ref.Number, ok
}

// formFonts returns the fonts of the interactive form's default
// resources. Field appearances are built from them at fill time.
func (r *reducer) formFonts() map[int]bool {
	held := make(map[int]bool)
	catalog, err := r.doc.Catalog()
	if err != nil {
		return held
	}
	form, _ := r.doc.Resolve(catalog["AcroForm"]).(core.Dict)
	dr, _ := r.doc.Resolve(form["DR"]).(core.Dict)
	fonts, _ := r.doc.Resolve(dr["Font"]).(core.Dict)
	for _, v := range fonts {
		if ref, ok := v.(core.IndirectRef); ok {
			held[ref.Number] = true
		}
	}
	return held
}

// compress Flate-encodes streams that carry no filter when that makes
// them smaller.
func (r *reducer) compress() error {
	for _, ref := range r.doc.Refs() {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		obj, _ := r.doc.Lookup(ref.Number)
		s, ok := obj.(*core.Stream)
		if !ok || s.Dict.Has("Filter") || len(s.Data) == 0 {
			continue
		}
		enc, err := filters.FlateEncode(s.Data)
		if err != nil || len(enc) >= len(s.Data) {
			continue
		}
		d := s.Dict.Clone()
		delete(d, "DecodeParms")
		d["Filter"] = core.Name("FlateDecode")
		r.changes[ref.Number] = core.NewStream(d, enc)
		r.compressed++
	}
	return nil
}
