package writer

import (
	"sort"
	"strings"

	"github.com/wudi/linpdf/ir/raw"
	"github.com/wudi/linpdf/ir/semantic"
)

// objectBuilder converts a semantic.Document into the raw object graph the
// collector and layout consume. It allocates object numbers sequentially
// starting at 1; renumbering during linearization replaces these.
type objectBuilder struct {
	doc   *semantic.Document
	cfg   Config
	store *raw.Document
	next  int

	fontRefs map[*semantic.Font]raw.ObjectRef
	xobjRefs map[*semantic.XObject]raw.ObjectRef
}

func newObjectBuilder(doc *semantic.Document, cfg Config) *objectBuilder {
	return &objectBuilder{
		doc:      doc,
		cfg:      cfg,
		store:    raw.NewDocument(),
		next:     1,
		fontRefs: make(map[*semantic.Font]raw.ObjectRef),
		xobjRefs: make(map[*semantic.XObject]raw.ObjectRef),
	}
}

func (b *objectBuilder) alloc() raw.ObjectRef {
	ref := raw.ObjectRef{Num: b.next, Gen: 0}
	b.next++
	return ref
}

// insert records obj in the object store via the store's documented
// insert contract (§6), not a bare map write, so the builder stays usable
// against any raw.Document-shaped collaborator.
func (b *objectBuilder) insert(obj raw.Object) raw.ObjectRef {
	ref := b.alloc()
	b.store.Insert(ref, obj)
	return ref
}

// built is the object-store shape object_builder hands to the collector:
// a flat object table plus the refs the writer must name explicitly.
type built struct {
	objects    map[raw.ObjectRef]raw.Object
	catalogRef raw.ObjectRef
	pagesRef   raw.ObjectRef
	infoRef    *raw.ObjectRef
	pageRefs   []raw.ObjectRef
}

// A font embedded twice under the same *semantic.Font (or an XObject under
// the same *semantic.XObject) collapses onto a single indirect object, so
// that the collector sees it as reachable from more than one page closure
// and classifies it shared (§4.3) rather than duplicating it per page.
func (b *objectBuilder) build() (*built, error) {
	if len(b.doc.Pages) == 0 {
		return nil, newErr(KindEmptyDocument, "document has zero pages")
	}

	pagesRef := b.alloc()
	pageRefs := make([]raw.ObjectRef, len(b.doc.Pages))

	for i, p := range b.doc.Pages {
		pageDict := raw.Dict()
		pageDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
		pageDict.Set(raw.NameLiteral("Parent"), raw.Ref(pagesRef.Num, pagesRef.Gen))
		pageDict.Set(raw.NameLiteral("MediaBox"), rectArray(p.MediaBox))

		var contentRefs []raw.Object
		for _, cs := range p.Contents {
			data := serializeContentStream(cs)
			streamDict := raw.Dict()
			streamDict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))
			ref := b.insert(raw.NewStream(streamDict, data))
			contentRefs = append(contentRefs, raw.Ref(ref.Num, ref.Gen))
		}
		switch len(contentRefs) {
		case 0:
		case 1:
			pageDict.Set(raw.NameLiteral("Contents"), contentRefs[0])
		default:
			pageDict.Set(raw.NameLiteral("Contents"), raw.NewArray(contentRefs...))
		}

		if p.Resources != nil {
			pageDict.Set(raw.NameLiteral("Resources"), b.buildResources(p.Resources))
		}

		pageRefs[i] = b.insert(pageDict)
	}

	kids := make([]raw.Object, len(pageRefs))
	for i, ref := range pageRefs {
		kids[i] = raw.Ref(ref.Num, ref.Gen)
	}
	pagesDict := raw.Dict()
	pagesDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pagesDict.Set(raw.NameLiteral("Kids"), raw.NewArray(kids...))
	pagesDict.Set(raw.NameLiteral("Count"), raw.NumberInt(int64(len(pageRefs))))
	b.store.Insert(pagesRef, pagesDict)

	catalogDict := raw.Dict()
	catalogDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalogDict.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, pagesRef.Gen))
	if b.doc.Catalog != nil {
		if b.doc.Catalog.Lang != "" {
			catalogDict.Set(raw.NameLiteral("Lang"), raw.Str([]byte(b.doc.Catalog.Lang)))
		}
		if b.doc.Catalog.Marked {
			markInfo := raw.Dict()
			markInfo.Set(raw.NameLiteral("Marked"), raw.Bool(true))
			catalogDict.Set(raw.NameLiteral("MarkInfo"), markInfo)
		}
	}
	catalogRef := b.insert(catalogDict)

	var infoRef *raw.ObjectRef
	if b.doc.Info != nil {
		infoDict := raw.Dict()
		setIfNonEmpty(infoDict, "Title", b.doc.Info.Title)
		setIfNonEmpty(infoDict, "Author", b.doc.Info.Author)
		setIfNonEmpty(infoDict, "Subject", b.doc.Info.Subject)
		setIfNonEmpty(infoDict, "Creator", b.doc.Info.Creator)
		setIfNonEmpty(infoDict, "Producer", b.doc.Info.Producer)
		if len(b.doc.Info.Keywords) > 0 {
			infoDict.Set(raw.NameLiteral("Keywords"), raw.Str([]byte(strings.Join(b.doc.Info.Keywords, ", "))))
		}
		ref := b.insert(infoDict)
		infoRef = &ref
	}

	return &built{
		objects:    b.store.Objects,
		catalogRef: catalogRef,
		pagesRef:   pagesRef,
		infoRef:    infoRef,
		pageRefs:   pageRefs,
	}, nil
}

func setIfNonEmpty(d *raw.DictObj, key, val string) {
	if val == "" {
		return
	}
	d.Set(raw.NameLiteral(key), raw.Str([]byte(val)))
}

func (b *objectBuilder) buildResources(r *semantic.Resources) raw.Object {
	dict := raw.Dict()

	if len(r.Fonts) > 0 {
		names := make([]string, 0, len(r.Fonts))
		for name := range r.Fonts {
			names = append(names, name)
		}
		sort.Strings(names)

		fontsDict := raw.Dict()
		for _, name := range names {
			f := r.Fonts[name]
			ref, ok := b.fontRefs[f]
			if !ok {
				fontDict := raw.Dict()
				fontDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
				fontDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral(f.Subtype))
				fontDict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(f.BaseFont))
				ref = b.insert(fontDict)
				b.fontRefs[f] = ref
			}
			fontsDict.Set(raw.NameLiteral(name), raw.Ref(ref.Num, ref.Gen))
		}
		dict.Set(raw.NameLiteral("Font"), fontsDict)
	}

	if len(r.XObjects) > 0 {
		names := make([]string, 0, len(r.XObjects))
		for name := range r.XObjects {
			names = append(names, name)
		}
		sort.Strings(names)

		xDict := raw.Dict()
		for _, name := range names {
			x := r.XObjects[name]
			ref, ok := b.xobjRefs[x]
			if !ok {
				xobjDict := raw.Dict()
				xobjDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("XObject"))
				xobjDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral(x.Subtype))
				if x.Subtype == "Image" {
					xobjDict.Set(raw.NameLiteral("Width"), raw.NumberInt(int64(x.Width)))
					xobjDict.Set(raw.NameLiteral("Height"), raw.NumberInt(int64(x.Height)))
					xobjDict.Set(raw.NameLiteral("BitsPerComponent"), raw.NumberInt(int64(x.BitsPerComp)))
					if x.ColorSpace != "" {
						xobjDict.Set(raw.NameLiteral("ColorSpace"), raw.NameLiteral(x.ColorSpace))
					}
					if x.Filter != "" {
						xobjDict.Set(raw.NameLiteral("Filter"), raw.NameLiteral(x.Filter))
					}
				}
				xobjDict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(x.Data))))
				ref = b.insert(raw.NewStream(xobjDict, x.Data))
				b.xobjRefs[x] = ref
			}
			xDict.Set(raw.NameLiteral(name), raw.Ref(ref.Num, ref.Gen))
		}
		dict.Set(raw.NameLiteral("XObject"), xDict)
	}

	return dict
}
