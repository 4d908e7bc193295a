package reader

import (
	"context"
	"fmt"

	"github.com/tsawler/safepdf/core"
)

// rebuild replaces the cross-reference table with one reconstructed by a
// linear scan and recovers a trailer.
func (r *Reader) rebuild(ctx context.Context) error {
	res, err := core.ScanObjects(ctx, r.data)
	if err != nil {
		return err
	}
	if len(res.Markers) == 0 {
		return fmt.Errorf("no objects found by re-scan: %w", core.ErrUnresolvableXref)
	}

	r.mu.Lock()
	r.scanned = res
	r.table = res.Table
	r.cache = make(map[int]core.Object)
	r.objStms = make(map[int]*core.ObjectStream)
	r.mu.Unlock()

	// Members of object streams found by the scan become compressed entries
	// unless a direct definition exists.
	for _, num := range res.Table.Live() {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, err := r.Object(core.IndirectRef{Number: num})
		if err != nil {
			continue
		}
		s, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		if t, _ := s.Dict.GetName("Type"); t != "ObjStm" {
			continue
		}
		os, err := r.objectStream(num)
		if err != nil {
			continue
		}
		for i, member := range os.ObjectNumbers() {
			if _, exists := res.Table.Get(member); !exists && member > 0 {
				res.Table.Set(member, &core.XRefEntry{Type: core.XRefCompressed, StreamNumber: num, Index: i})
			}
		}
	}

	trailer, how, err := r.recoverTrailer(ctx, res)
	if err != nil {
		return err
	}
	if _, ok := trailer.GetInt("Size"); !ok {
		trailer["Size"] = core.Int(r.Size())
	}
	r.trailer = trailer
	r.noteRepair("rebuilt %d objects by re-scan, trailer from %s", len(res.Table.Live()), how)
	return nil
}

// recoverTrailer tries, in order: the last "trailer" dictionary whose /Root
// resolves, the last cross-reference stream dictionary, and a catalog
// object found by the scan.
func (r *Reader) recoverTrailer(ctx context.Context, res *core.ScanResult) (core.Dict, string, error) {
	for i := len(res.Trailers) - 1; i >= 0; i-- {
		if r.rootResolves(res.Trailers[i]) {
			return res.Trailers[i].Clone(), "trailer dictionary", nil
		}
	}

	for i := len(res.Markers) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		s, ok := r.markerObject(res, i).(*core.Stream)
		if !ok {
			continue
		}
		if t, _ := s.Dict.GetName("Type"); t != "XRef" || !r.rootResolves(s.Dict) {
			continue
		}
		trailer := s.Dict.Clone()
		for _, k := range []string{"Type", "W", "Index", "Prev", "Filter", "DecodeParms", "Length"} {
			trailer.Delete(k)
		}
		return trailer, "cross-reference stream", nil
	}

	for i := len(res.Markers) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		d, ok := r.markerObject(res, i).(core.Dict)
		if !ok {
			continue
		}
		if t, _ := d.GetName("Type"); t == "Catalog" {
			return core.Dict{"Root": res.Markers[i].Ref}, "catalog object", nil
		}
	}
	return nil, "", core.ErrMissingTrailer
}

// markerObject returns the object for marker i only if it is the winning
// definition of its number.
func (r *Reader) markerObject(res *core.ScanResult, i int) core.Object {
	m := res.Markers[i]
	if entry, ok := res.Table.Get(m.Ref.Number); !ok || entry.Offset != m.Offset {
		return nil
	}
	obj, err := r.Object(m.Ref)
	if err != nil {
		return nil
	}
	return obj
}

func (r *Reader) rootResolves(trailer core.Dict) bool {
	ref, ok := trailer.GetIndirectRef("Root")
	if !ok {
		return false
	}
	obj, err := r.Object(ref)
	if err != nil {
		return false
	}
	_, ok = obj.(core.Dict)
	return ok
}
