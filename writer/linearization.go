package writer

import (
	"bytes"
	"context"

	"github.com/wudi/linpdf/ir/raw"
	"github.com/wudi/linpdf/ir/semantic"
	"github.com/wudi/linpdf/observability"
)

// writeLinearized is the LinearizedWriter of §4.5: it orchestrates
// collection, renumbering, layout, and the final emission sequence.
func (w *impl) writeLinearized(ctx context.Context, doc *semantic.Document, out WriterAt, cfg Config) error {
	logger := loggerFromConfig(cfg)
	tracer := tracerFromConfig(cfg)
	ctx, span := tracer.StartSpan(ctx, "writer.linearize")
	defer span.Finish()

	b, err := newObjectBuilder(doc, cfg).build()
	if err != nil {
		span.SetError(err)
		return err
	}

	col := newCollector(b.objects, b.catalogRef, b.pagesRef, b.infoRef, nil, nil, b.pageRefs)
	sets, err := col.collect()
	if err != nil {
		logger.Error("collection failed", observability.Error("err", err))
		span.SetError(err)
		return err
	}

	ren := renumber(b.objects, sets, b.catalogRef, b.infoRef)

	for _, interceptor := range w.interceptors {
		for _, ref := range append(append(append([]raw.ObjectRef{}, ren.newFirstPage...), flatten(ren.newRemaining)...), ren.newShared...) {
			if err := interceptor.BeforeWrite(ctx, ren.newObjects[ref]); err != nil {
				return err
			}
		}
	}

	ids := fileID(doc, cfg)
	layoutIn := layoutInput{
		linDictRef: ren.linDictRef,
		firstPage:  append(append([]raw.ObjectRef{}, ren.newDocLevel...), ren.newFirstPage...),
		hintRef:    ren.hintRef,
		remaining:  ren.newRemaining,
		shared:     ren.newShared,
		objects:    ren.newObjects,
		pageRefs:   ren.newPageRefs,
		pageShared: sets.PageSharedIdx,
		catalogRef: ren.newCatalog,
		infoRef:    ren.newInfo,
		doc:        doc,
		cfg:        cfg,
		ids:        ids,
	}

	result, err := computeLayout(layoutIn)
	if err != nil {
		logger.Error("layout failed", observability.Error("err", err))
		span.SetError(err)
		return err
	}

	var buf bytes.Buffer
	buf.Write(result.header)
	buf.Write(result.linDict)
	buf.Write(result.firstPageXRef)
	for _, ref := range result.firstPageObjs {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf.Write(serializeObject(ref, ren.newObjects[ref]))
	}
	buf.Write(result.hintData)
	for _, ref := range result.remainingObjs {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf.Write(serializeObject(ref, ren.newObjects[ref]))
	}
	for _, ref := range result.sharedObjs {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf.Write(serializeObject(ref, ren.newObjects[ref]))
	}
	buf.Write(result.mainXRef)

	if int64(buf.Len()) != result.totalLength {
		return newErr(KindLayoutDrift, "emitted %d bytes but layout computed %d", buf.Len(), result.totalLength)
	}

	n, werr := out.Write(buf.Bytes())
	if werr != nil {
		return wrapErr(KindSinkError, werr, "writing %d bytes to sink", buf.Len())
	}
	if n != buf.Len() {
		return wrapErr(KindSinkError, werr, "short write: wrote %d of %d bytes", n, buf.Len())
	}

	for _, interceptor := range w.interceptors {
		for _, ref := range append(append(append([]raw.ObjectRef{}, ren.newFirstPage...), flatten(ren.newRemaining)...), ren.newShared...) {
			_ = interceptor.AfterWrite(ctx, ren.newObjects[ref], result.size[ref])
		}
	}

	return nil
}

func flatten(pages [][]raw.ObjectRef) []raw.ObjectRef {
	var out []raw.ObjectRef
	for _, p := range pages {
		out = append(out, p...)
	}
	return out
}

// renumbered carries the object graph after §4.5's renumbering pass:
// object 1 -> linearization dict, then doc_level, then first_page, then
// the hint stream, then each remaining page's exclusives in page order,
// then shared.
type renumbered struct {
	newObjects  map[raw.ObjectRef]raw.Object
	mapping     map[raw.ObjectRef]raw.ObjectRef
	linDictRef  raw.ObjectRef
	hintRef     raw.ObjectRef
	newCatalog  raw.ObjectRef
	newInfo     *raw.ObjectRef
	newPageRefs []raw.ObjectRef
	newDocLevel []raw.ObjectRef
	newFirstPage []raw.ObjectRef
	newRemaining [][]raw.ObjectRef
	newShared   []raw.ObjectRef
}

func renumber(objects map[raw.ObjectRef]raw.Object, sets ObjectSets, catalogRef raw.ObjectRef, infoRef *raw.ObjectRef) *renumbered {
	mapping := make(map[raw.ObjectRef]raw.ObjectRef, len(objects)+2)
	next := 1

	linDictRef := raw.ObjectRef{Num: next, Gen: 0}
	next++

	assign := func(old raw.ObjectRef) raw.ObjectRef {
		nr := raw.ObjectRef{Num: next, Gen: 0}
		mapping[old] = nr
		next++
		return nr
	}

	for _, ref := range sets.DocLevel {
		assign(ref)
	}
	for _, ref := range sets.FirstPage {
		assign(ref)
	}

	hintRef := raw.ObjectRef{Num: next, Gen: 0}
	next++

	for p := 1; p < len(sets.Remaining); p++ {
		for _, ref := range sets.Remaining[p] {
			assign(ref)
		}
	}
	for _, ref := range sets.Shared {
		assign(ref)
	}

	newObjects := make(map[raw.ObjectRef]raw.Object, len(objects))
	for old, obj := range objects {
		nr, ok := mapping[old]
		if !ok {
			continue
		}
		newObjects[nr] = updateObjectRefs(obj, mapping)
	}

	newCatalog := mapping[catalogRef]
	var newInfo *raw.ObjectRef
	if infoRef != nil {
		nr := mapping[*infoRef]
		newInfo = &nr
	}

	newRemaining := make([][]raw.ObjectRef, len(sets.Remaining))
	for p, refs := range sets.Remaining {
		newRemaining[p] = mapRefs(refs, mapping)
	}

	return &renumbered{
		newObjects:   newObjects,
		mapping:      mapping,
		linDictRef:   linDictRef,
		hintRef:      hintRef,
		newCatalog:   newCatalog,
		newInfo:      newInfo,
		newPageRefs:  mapRefs(sets.PageRefs, mapping),
		newDocLevel:  mapRefs(sets.DocLevel, mapping),
		newFirstPage: mapRefs(sets.FirstPage, mapping),
		newRemaining: newRemaining,
		newShared:    mapRefs(sets.Shared, mapping),
	}
}

func mapRefs(refs []raw.ObjectRef, mapping map[raw.ObjectRef]raw.ObjectRef) []raw.ObjectRef {
	out := make([]raw.ObjectRef, len(refs))
	for i, r := range refs {
		out[i] = mapping[r]
	}
	return out
}

func updateObjectRefs(obj raw.Object, mapping map[raw.ObjectRef]raw.ObjectRef) raw.Object {
	switch v := obj.(type) {
	case raw.RefObj:
		if nr, ok := mapping[v.Ref()]; ok {
			return raw.Ref(nr.Num, nr.Gen)
		}
		return v
	case *raw.ArrayObj:
		newArr := raw.NewArray()
		for _, item := range v.Items {
			newArr.Append(updateObjectRefs(item, mapping))
		}
		return newArr
	case *raw.DictObj:
		newDict := raw.Dict()
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			newDict.Set(k, updateObjectRefs(val, mapping))
		}
		return newDict
	case *raw.StreamObj:
		nd := updateObjectRefs(v.Dict, mapping).(*raw.DictObj)
		return raw.NewStream(nd, v.Data)
	default:
		return obj
	}
}
