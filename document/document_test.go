package document

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/internal/pdftest"
)

func TestOpen(t *testing.T) {
	b, l := pdftest.Pages(3)
	doc, err := Open(b.Bytes())
	require.NoError(t, err)

	assert.Equal(t, 3, doc.PageCount())
	assert.False(t, doc.Repaired())
	assert.False(t, doc.Encrypted())
	assert.NotNil(t, doc.Source())

	catalog, err := doc.Catalog()
	require.NoError(t, err)
	assert.Equal(t, core.Name("Catalog"), catalog["Type"])

	page, err := doc.Page(2)
	require.NoError(t, err)
	assert.Equal(t, l.Page[2], page.Ref.Number)
	content, err := page.Content()
	require.NoError(t, err)
	assert.Equal(t, pdftest.PageContent(2), content)

	assert.Len(t, doc.Refs(), len(b.Numbers()))
	assert.Equal(t, b.Numbers()[len(b.Numbers())-1], doc.MaxObjectNumber())
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(nil)
	assert.ErrorIs(t, err, core.ErrUnresolvableXref)

	b, _ := pdftest.Pages(1)
	_, err = Open(b.NoXRefBytes(), WithStrict(true))
	assert.Error(t, err)

	_, err = Open(b.NoXRefBytes())
	assert.NoError(t, err)
}

func TestPagesIteratorRestartable(t *testing.T) {
	doc, err := Open(pdftest.Document(4))
	require.NoError(t, err)

	it := doc.Pages()
	var first []int
	for it.Next() {
		first = append(first, it.Page().Index)
	}
	it.Reset()
	var second []int
	for it.Next() {
		second = append(second, it.Page().Index)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, first)
	assert.Equal(t, first, second)
}

func TestDanglingResolvesToNull(t *testing.T) {
	b, l := pdftest.Pages(1)
	b.Set(l.Page[0], fmt.Sprintf("<< /Type /Page /Parent %s /Contents %s /Annots [77 0 R] >>",
		pdftest.Ref(l.Pages), pdftest.Ref(l.Contents[0])))
	doc, err := Open(b.Bytes())
	require.NoError(t, err)

	page, err := doc.Page(0)
	require.NoError(t, err)
	assert.Empty(t, page.Annotations())

	assert.Equal(t, core.Null{}, doc.Resolve(core.IndirectRef{Number: 78}))
	assert.Equal(t, []core.IndirectRef{{Number: 77}, {Number: 78}}, doc.Dangling())
}

func TestResolveChain(t *testing.T) {
	doc := New(core.Dict{}, map[int]core.Object{
		1: core.IndirectRef{Number: 2},
		2: core.Int(42),
		3: core.IndirectRef{Number: 4},
		4: core.IndirectRef{Number: 3},
	})
	assert.Equal(t, core.Int(42), doc.Resolve(core.IndirectRef{Number: 1}))
	assert.Equal(t, core.Null{}, doc.Resolve(core.IndirectRef{Number: 3}), "reference loops end in null")
	assert.Equal(t, core.Name("x"), doc.Resolve(core.Name("x")))
	assert.Equal(t, core.Null{}, doc.Resolve(nil))
}

func TestDerive(t *testing.T) {
	b, l := pdftest.Pages(2)
	base, err := Open(b.Bytes())
	require.NoError(t, err)

	mark := core.Dict{"Type": core.Name("Font"), "BaseFont": core.Name("Courier")}
	derived := base.Derive(map[int]core.Object{
		l.Font:        mark,
		l.Contents[1]: nil,
		500:           core.Int(1),
	}, nil)

	obj, ok := derived.Lookup(l.Font)
	require.True(t, ok)
	assert.Equal(t, mark, obj)
	_, ok = derived.Lookup(l.Contents[1])
	assert.False(t, ok)
	assert.Equal(t, 500, derived.MaxObjectNumber())
	assert.Len(t, derived.Refs(), len(b.Numbers()))

	// The parent is unchanged
	orig, ok := base.Lookup(l.Font)
	require.True(t, ok)
	assert.Equal(t, core.Name("Helvetica"), orig.(core.Dict)["BaseFont"])
	_, ok = base.Lookup(l.Contents[1])
	assert.True(t, ok)
	assert.Equal(t, base.Trailer(), derived.Trailer())

	// Deletions in a middle layer can be undone by a later layer
	restored := derived.Derive(map[int]core.Object{l.Contents[1]: core.Int(9)}, core.Dict{"Root": core.IndirectRef{Number: l.Catalog}})
	obj, ok = restored.Lookup(l.Contents[1])
	require.True(t, ok)
	assert.Equal(t, core.Int(9), obj)
	assert.Equal(t, core.Dict{"Root": core.IndirectRef{Number: l.Catalog}}, restored.Trailer())
	assert.Same(t, base.Source(), restored.Source())
}

func TestNewDocument(t *testing.T) {
	objects := map[int]core.Object{
		1: core.Dict{"Type": core.Name("Catalog"), "Pages": core.IndirectRef{Number: 2}},
		2: core.Dict{"Type": core.Name("Pages"), "Kids": core.Array{core.IndirectRef{Number: 3}}, "Count": core.Int(1)},
		3: core.Dict{"Type": core.Name("Page"), "Parent": core.IndirectRef{Number: 2}},
		0: core.Int(1),
		4: nil,
	}
	doc := New(core.Dict{"Root": core.IndirectRef{Number: 1}}, objects)
	assert.Equal(t, 1, doc.PageCount())
	assert.Equal(t, []core.IndirectRef{{Number: 1}, {Number: 2}, {Number: 3}}, doc.Refs())
	assert.Nil(t, doc.Source())
	assert.False(t, doc.Repaired())
	assert.Nil(t, doc.Repairs())
}

func TestCatalogMissing(t *testing.T) {
	doc := New(core.Dict{}, nil)
	_, err := doc.Catalog()
	assert.ErrorIs(t, err, core.ErrMissingTrailer)
	assert.Equal(t, 0, doc.PageCount())

	doc = New(core.Dict{"Root": core.IndirectRef{Number: 9}}, nil)
	_, err = doc.Catalog()
	assert.ErrorIs(t, err, core.ErrMissingTrailer)
}

func TestEncrypted(t *testing.T) {
	doc := New(core.Dict{"Encrypt": core.IndirectRef{Number: 5}}, nil)
	assert.True(t, doc.Encrypted())
}

func TestObjectStreams(t *testing.T) {
	b, l := pdftest.Pages(1)
	stm := b.AddObjectStream(l.Font)
	doc, err := Open(b.Bytes())
	require.NoError(t, err)

	streams, err := doc.ObjectStreams(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int][]int{stm: {l.Font}}, streams)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = doc.ObjectStreams(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// Deleting the container hides it
	streams, err = doc.Derive(map[int]core.Object{stm: nil}, nil).ObjectStreams(context.Background())
	require.NoError(t, err)
	assert.Empty(t, streams)
}

func TestConcurrentResolve(t *testing.T) {
	doc, err := Open(pdftest.Document(6))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			page, err := doc.Page(i)
			if assert.NoError(t, err) {
				assert.Equal(t, 612.0, page.MediaBox().Width())
			}
			doc.Resolve(core.IndirectRef{Number: 1000 + i})
		}(i)
	}
	wg.Wait()
	assert.Len(t, doc.Dangling(), 6)
}
