package reader

import (
	"context"
	"fmt"

	"github.com/tsawler/safepdf/core"
)

// Object returns the object with the given reference, parsing it on first
// access. Free and absent entries yield ErrObjectNotFound. The generation
// number is not checked; damaged files routinely get it wrong. The
// returned object is shared and must not be modified.
func (r *Reader) Object(ref core.IndirectRef) (core.Object, error) {
	r.mu.Lock()
	obj, ok := r.cache[ref.Number]
	r.mu.Unlock()
	if ok {
		return obj, nil
	}

	obj, err := r.load(ref.Number)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[ref.Number] = obj
	r.mu.Unlock()
	return obj, nil
}

// ResolveReference implements core.ReferenceResolver
func (r *Reader) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	return r.Object(ref)
}

// Resolve resolves an object if it's an indirect reference, otherwise
// returns it as-is
func (r *Reader) Resolve(obj core.Object) (core.Object, error) {
	if ref, ok := obj.(core.IndirectRef); ok {
		return r.Object(ref)
	}
	return obj, nil
}

func (r *Reader) load(num int) (core.Object, error) {
	entry, ok := r.table.Get(num)
	if !ok || !entry.InUse() || num <= 0 {
		return nil, fmt.Errorf("object %d: %w", num, ErrObjectNotFound)
	}
	if entry.Type == core.XRefCompressed {
		return r.loadCompressed(num, entry)
	}

	obj, err := r.parseAt(num, entry.Offset)
	if err == nil {
		return obj, nil
	}

	// The recorded offset is stale; look for the object by scanning
	scanned, serr := r.scan()
	if serr != nil {
		return nil, fmt.Errorf("object %d: %w", num, err)
	}
	if found, ok := scanned.Table.Get(num); ok && found.Offset != entry.Offset {
		if obj, err2 := r.parseAt(num, found.Offset); err2 == nil {
			r.noteRepair("object %d found at %d instead of %d", num, found.Offset, entry.Offset)
			return obj, nil
		}
	}
	return nil, fmt.Errorf("object %d: %w", num, err)
}

// parseAt parses "num G obj" at offset.
func (r *Reader) parseAt(num int, offset int64) (core.Object, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return nil, fmt.Errorf("offset %d out of range", offset)
	}
	p := core.NewParserAt(r.data, offset)
	p.SetReferenceResolver(lengthResolver{r})
	ind, err := p.ParseIndirectObject()
	if err != nil {
		return nil, err
	}
	if ind.Ref.Number != num {
		return nil, fmt.Errorf("object number mismatch: expected %d, got %d", num, ind.Ref.Number)
	}
	if p.Repaired() {
		r.noteRepair("object %d: stream /Length recovered from endstream marker", num)
	}
	return ind.Object, nil
}

func (r *Reader) loadCompressed(num int, entry *core.XRefEntry) (core.Object, error) {
	os, err := r.objectStream(entry.StreamNumber)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", num, err)
	}
	if obj, got, err := os.GetObjectByIndex(entry.Index); err == nil && got == num {
		return obj, nil
	}
	obj, _, err := os.GetObjectByNumber(num)
	if err != nil {
		return nil, fmt.Errorf("object %d in stream %d: %w", num, entry.StreamNumber, err)
	}
	return obj, nil
}

// objectStream returns the parsed object stream numbered num. Object
// streams must be direct objects, so this never recurses into another
// object stream.
func (r *Reader) objectStream(num int) (*core.ObjectStream, error) {
	r.mu.Lock()
	os, ok := r.objStms[num]
	r.mu.Unlock()
	if ok {
		return os, nil
	}

	entry, ok := r.table.Get(num)
	if !ok || entry.Type != core.XRefInUse {
		return nil, fmt.Errorf("object stream %d is not a direct object", num)
	}
	obj, err := r.Object(core.IndirectRef{Number: num, Generation: entry.Generation})
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*core.Stream)
	if !ok {
		return nil, fmt.Errorf("object stream %d is a %T", num, obj)
	}
	os, err = core.NewObjectStream(stream)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", num, err)
	}

	r.mu.Lock()
	r.objStms[num] = os
	r.mu.Unlock()
	return os, nil
}

// scan runs the linear re-scan once and caches the result.
func (r *Reader) scan() (*core.ScanResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanned != nil {
		return r.scanned, nil
	}
	res, err := core.ScanObjects(context.Background(), r.data)
	if err != nil {
		return nil, err
	}
	r.scanned = res
	return res, nil
}

// lengthResolver resolves indirect /Length values. It only reads direct
// objects and never resolves further references, so a stream whose
// /Length points back at itself cannot recurse.
type lengthResolver struct {
	r *Reader
}

func (l lengthResolver) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	l.r.mu.Lock()
	obj, ok := l.r.cache[ref.Number]
	l.r.mu.Unlock()
	if ok {
		return obj, nil
	}

	entry, ok := l.r.table.Get(ref.Number)
	if !ok || entry.Type != core.XRefInUse || entry.Offset < 0 || entry.Offset >= int64(len(l.r.data)) {
		return nil, fmt.Errorf("length object %d: %w", ref.Number, ErrObjectNotFound)
	}
	ind, err := core.NewParserAt(l.r.data, entry.Offset).ParseIndirectObject()
	if err != nil {
		return nil, err
	}
	if ind.Ref.Number != ref.Number {
		return nil, fmt.Errorf("length object number mismatch: expected %d, got %d", ref.Number, ind.Ref.Number)
	}
	return ind.Object, nil
}
