package risk

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/logging"
	"github.com/tsawler/safepdf/pages"
	"github.com/tsawler/safepdf/resolver"
	"github.com/tsawler/safepdf/text"
)

const (
	// maxDepth bounds descent into direct objects.
	maxDepth = 256
	// maxTreeNodes bounds the nodes visited in one name tree.
	maxTreeNodes = 4096
	// maxListed is how many orphan object numbers a description names.
	maxListed = 8
)

// Document is the object graph a Scanner inspects. *document.Document
// implements it.
type Document interface {
	Trailer() core.Dict
	Lookup(num int) (core.Object, bool)
	Resolve(obj core.Object) core.Object
	ObjectStreams(ctx context.Context) (map[int][]int, error)
}

// Scanner statically inspects documents for active content. Nothing it
// finds is ever executed or fetched. A Scanner is safe for concurrent use.
type Scanner struct {
	weights map[Severity]int
	log     *logrus.Entry
}

// NewScanner creates a scanner.
func NewScanner(opts ...Option) *Scanner {
	cfg := newConfig(opts)
	return &Scanner{weights: cfg.weights, log: logging.Component(cfg.logger, "risk")}
}

// scan holds the state of one Scan call.
type scan struct {
	*Scanner
	doc      Document
	findings []Finding

	// linkText maps an indirect URI action to the display text of the
	// link annotation using it.
	linkText map[int]string
	// labels maps a link annotation without /Contents to the page text
	// drawn under its /Rect.
	labels map[int]string
	// claimed holds embedded file streams already reported through the
	// file specification naming them.
	claimed map[int]bool
}

// Scan walks every object reachable from the trailer, the catalog's
// name trees among them, and returns the findings and score. Object
// streams holding objects nothing references are reported, and those
// hidden objects are inspected too. ctx is checked between objects.
func (s *Scanner) Scan(ctx context.Context, doc Document) (*Report, error) {
	sc := &scan{
		Scanner:  s,
		doc:      doc,
		linkText: make(map[int]string),
		labels:   make(map[int]string),
		claimed:  make(map[int]bool),
	}
	trailer := doc.Trailer()
	closure, err := resolver.NewWalker(doc).Closure(ctx, trailer)
	if err != nil {
		return nil, err
	}

	orphans, err := sc.orphans(ctx, closure)
	if err != nil {
		return nil, err
	}
	nums := append(append([]int(nil), closure.Order...), orphans...)

	if err := sc.linkLabels(ctx, trailer); err != nil {
		return nil, err
	}
	for _, num := range nums {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if obj, ok := doc.Lookup(num); ok {
			sc.prepare(num, obj)
		}
	}
	sc.visit(0, "", trailer, nil, 0)
	for _, num := range nums {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if obj, ok := doc.Lookup(num); ok {
			sc.visit(num, "", obj, nil, 0)
		}
	}
	sc.catalogTrees(trailer)

	report := newReport(sc.findings)
	s.log.WithFields(logrus.Fields{
		"objects":  len(nums),
		"findings": len(report.Findings),
		"score":    report.Score,
	}).Debug("scan complete")
	return report, nil
}

func (sc *scan) add(category Category, severity Severity, loc Location, format string, args ...interface{}) {
	sc.findings = append(sc.findings, Finding{
		Category:    category,
		Location:    loc,
		Severity:    severity,
		Weight:      sc.weights[severity],
		Description: fmt.Sprintf(format, args...),
	})
}

// orphans reports object streams whose members are not reachable from
// the trailer and returns those members.
func (sc *scan) orphans(ctx context.Context, closure *resolver.Closure) ([]int, error) {
	streams, err := sc.doc.ObjectStreams(ctx)
	if err != nil {
		return nil, err
	}
	containers := make([]int, 0, len(streams))
	for num := range streams {
		containers = append(containers, num)
	}
	sort.Ints(containers)

	var hidden []int
	for _, num := range containers {
		var unreached []int
		for _, member := range streams[num] {
			if !closure.Contains(member) {
				unreached = append(unreached, member)
			}
		}
		if len(unreached) == 0 {
			continue
		}
		hidden = append(hidden, unreached...)
		sc.add(SuspiciousObjectStream, Low, Location{Object: num},
			"object stream holds %d of %d objects unreachable from the trailer: %s",
			len(unreached), len(streams[num]), listNumbers(unreached))
	}
	return hidden, nil
}

func listNumbers(nums []int) string {
	parts := make([]string, 0, maxListed+1)
	for i, n := range nums {
		if i == maxListed {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, strconv.Itoa(n))
	}
	return strings.Join(parts, " ")
}

// linkLabels reads the page text under every link annotation that has
// no /Contents. Pages without such links are not interpreted.
func (sc *scan) linkLabels(ctx context.Context, trailer core.Dict) error {
	catalog, ok := sc.doc.Resolve(trailer["Root"]).(core.Dict)
	if !ok {
		return nil
	}
	extractor := text.NewExtractor(sc.doc)
	for _, page := range pages.NewTree(sc.doc, catalog["Pages"]).Pages() {
		annots, _ := sc.doc.Resolve(page.Dict["Annots"]).(core.Array)
		var frags []text.Fragment
		read := false
		for _, a := range annots {
			ref, ok := a.(core.IndirectRef)
			if !ok {
				continue
			}
			d, ok := sc.doc.Resolve(ref).(core.Dict)
			if !ok || d.Has("Contents") {
				continue
			}
			if sub, _ := d.GetName("Subtype"); sub != "Link" {
				continue
			}
			rect, ok := pages.RectFromObject(sc.doc, d["Rect"])
			if !ok {
				continue
			}
			if !read {
				var err error
				if frags, err = extractor.Extract(ctx, page); err != nil {
					return err
				}
				read = true
			}
			if label := text.Within(frags, rect); label != "" {
				sc.labels[ref.Number] = label
			}
		}
	}
	return nil
}

// prepare records cross-object context used by the rules: link text for
// indirect URI actions and the streams file specifications embed.
func (sc *scan) prepare(num int, obj core.Object) {
	d, ok := obj.(core.Dict)
	if !ok {
		return
	}
	if sub, _ := d.GetName("Subtype"); sub == "Link" {
		if ref, ok := d.GetIndirectRef("A"); ok {
			if contents, ok := d.GetString("Contents"); ok {
				sc.linkText[ref.Number] = DecodeText(contents)
			} else if label := sc.labels[num]; label != "" {
				sc.linkText[ref.Number] = label
			}
		}
	}
	if ef, ok := sc.doc.Resolve(d["EF"]).(core.Dict); ok {
		for _, v := range ef {
			if ref, ok := v.(core.IndirectRef); ok {
				sc.claimed[ref.Number] = true
			}
		}
	}
}

// visit applies the rules to obj and descends into its direct children.
// parent is the dictionary holding obj, if any.
func (sc *scan) visit(num int, path string, obj core.Object, parent core.Dict, depth int) {
	if depth > maxDepth {
		return
	}
	var d core.Dict
	switch v := obj.(type) {
	case core.Array:
		for i, e := range v {
			sc.visit(num, path+"["+strconv.Itoa(i)+"]", e, parent, depth+1)
		}
		return
	case core.Dict:
		d = v
	case *core.Stream:
		d = v.Dict
		if t, _ := d.GetName("Type"); t == "EmbeddedFile" && path == "" && !sc.claimed[num] {
			sc.add(EmbeddedFile, Medium, Location{Object: num}, "embedded file stream (%d bytes)", len(v.Data))
		}
	default:
		return
	}

	loc := Location{Object: num, Path: path}
	sc.action(loc, num, d, parent)
	if _, ok := sc.doc.Resolve(d["EF"]).(core.Dict); ok {
		sc.add(EmbeddedFile, Medium, loc, "embedded file %q", truncate(sc.filename(d)))
	}
	if sub, _ := d.GetName("Subtype"); sub == "FileAttachment" {
		sc.add(EmbeddedFile, Medium, loc, "file attachment annotation")
	}

	for _, k := range d.Keys() {
		switch d[k].(type) {
		case core.Dict, core.Array:
			sc.visit(num, path+"/"+k, d[k], d, depth+1)
		}
	}
}

// action applies the action rules to d.
func (sc *scan) action(loc Location, num int, d core.Dict, parent core.Dict) {
	kind, _ := sc.doc.Resolve(d["S"]).(core.Name)
	if kind == "JavaScript" || d.Has("JS") {
		sc.add(JavaScript, High, loc, "JavaScript action (%d bytes of script, not evaluated)", sc.scriptLength(d["JS"]))
	}
	switch kind {
	case "Launch":
		target := sc.filename(d)
		if win, ok := sc.doc.Resolve(d["Win"]).(core.Dict); ok && target == "" {
			target = sc.filename(win)
		}
		sc.add(LaunchAction, High, loc, "launch action for %q", truncate(target))
	case "URI":
		uri := sc.text(d["URI"])
		display := sc.linkText[num]
		if display == "" {
			if sub, _ := parent.GetName("Subtype"); sub == "Link" {
				display = sc.text(parent["Contents"])
			}
		}
		if display == "" && parent != nil {
			display = sc.labels[num]
		}
		reasons := uriFlags(uri, display)
		if len(reasons) == 0 {
			sc.add(ExternalURI, Medium, loc, "URI action to %q", truncate(uri))
			break
		}
		sc.add(ExternalURI, High, loc, "URI action to %q: %s", truncate(uri), strings.Join(reasons, "; "))
	case "SubmitForm":
		sc.add(ExternalURI, Medium, loc, "form submission to %q", truncate(sc.filename(d)))
	case "GoToR", "GoToE":
		sc.add(ExternalURI, Medium, loc, "%s action into %q", kind, truncate(sc.filename(d)))
	}
}

// scriptLength returns the size of a /JS string or stream.
func (sc *scan) scriptLength(obj core.Object) int {
	switch v := sc.doc.Resolve(obj).(type) {
	case core.String:
		return len(v)
	case *core.Stream:
		data, err := v.Decode()
		if err != nil {
			sc.log.WithFields(logrus.Fields{"error": err}).Debug("script stream does not decode")
			return len(v.Data)
		}
		return len(data)
	}
	return 0
}

// filename returns the file named by the /F entry of d, which may be a
// string or a file specification.
func (sc *scan) filename(d core.Dict) string {
	for _, key := range []string{"UF", "F"} {
		switch v := sc.doc.Resolve(d[key]).(type) {
		case core.String:
			return DecodeText(v)
		case core.Dict:
			if name := sc.filename(v); name != "" {
				return name
			}
		}
	}
	return ""
}

func (sc *scan) text(obj core.Object) string {
	if s, ok := sc.doc.Resolve(obj).(core.String); ok {
		return DecodeText(s)
	}
	return ""
}

// catalogTrees applies the document-level rules: named scripts, named
// embedded files and XFA forms.
func (sc *scan) catalogTrees(trailer core.Dict) {
	root, _ := trailer.GetIndirectRef("Root")
	catalog, ok := sc.doc.Resolve(trailer["Root"]).(core.Dict)
	if !ok {
		return
	}
	if names, ok := sc.doc.Resolve(catalog["Names"]).(core.Dict); ok {
		sc.nameTree(names["JavaScript"], func(name string) {
			sc.add(JavaScript, High, Location{Object: root.Number, Path: "/Names/JavaScript"},
				"document-level script %q", truncate(name))
		})
		sc.nameTree(names["EmbeddedFiles"], func(name string) {
			sc.add(EmbeddedFile, Medium, Location{Object: root.Number, Path: "/Names/EmbeddedFiles"},
				"embedded file listed as %q", truncate(name))
		})
	}
	if form, ok := sc.doc.Resolve(catalog["AcroForm"]).(core.Dict); ok && form.Has("XFA") {
		sc.add(JavaScript, High, Location{Object: root.Number, Path: "/AcroForm/XFA"},
			"XFA form, which may carry scripts")
	}
}

// nameTree calls fn with the key of every leaf entry of a name tree.
// Kids are visited breadth first; revisited and excess nodes are skipped.
func (sc *scan) nameTree(root core.Object, fn func(name string)) {
	seen := make(map[int]bool)
	queue := []core.Object{root}
	for n := 0; len(queue) > 0 && n < maxTreeNodes; n++ {
		cur := queue[0]
		queue = queue[1:]
		if ref, ok := cur.(core.IndirectRef); ok {
			if seen[ref.Number] {
				continue
			}
			seen[ref.Number] = true
		}
		node, ok := sc.doc.Resolve(cur).(core.Dict)
		if !ok {
			continue
		}
		if entries, ok := sc.doc.Resolve(node["Names"]).(core.Array); ok {
			for i := 0; i+1 < len(entries); i += 2 {
				fn(sc.text(entries[i]))
			}
		}
		if kids, ok := sc.doc.Resolve(node["Kids"]).(core.Array); ok {
			queue = append(queue, kids...)
		}
	}
}
