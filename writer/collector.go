package writer

import "github.com/wudi/linpdf/ir/raw"

// ObjectSets is the output of collection: every live object classified
// into exactly one partition (§3).
type ObjectSets struct {
	DocLevel      []raw.ObjectRef   // catalog, pages root, info, outlines root, in that order
	FirstPage     []raw.ObjectRef   // closure(page 0) minus DocLevel minus Shared
	Remaining     [][]raw.ObjectRef // Remaining[p] for p in 1..N-1, traversal order
	Shared        []raw.ObjectRef   // reachable from >=2 page closures, minus DocLevel
	PageRefs      []raw.ObjectRef   // original refs of the N page dictionaries, in page order
	PageSharedIdx [][]int           // PageSharedIdx[p]: indices into Shared reachable from closure(p)
}

// collector computes the transitive closure of each page and partitions
// the reachable objects per §4.3.
type collector struct {
	objects map[raw.ObjectRef]raw.Object
	catalog raw.ObjectRef
	pages   raw.ObjectRef   // pages-tree root
	info    *raw.ObjectRef
	outline *raw.ObjectRef
	foreign map[raw.ObjectRef]bool // refs known to belong to a different document

	pageRefs []raw.ObjectRef
}

func newCollector(objects map[raw.ObjectRef]raw.Object, catalog, pagesRoot raw.ObjectRef, info, outline *raw.ObjectRef, foreign map[raw.ObjectRef]bool, pageRefs []raw.ObjectRef) *collector {
	return &collector{
		objects: objects,
		catalog: catalog,
		pages:   pagesRoot,
		info:    info,
		outline: outline,
		foreign: foreign,
		pageRefs: pageRefs,
	}
}

func (c *collector) collect() (ObjectSets, error) {
	if len(c.pageRefs) == 0 {
		return ObjectSets{}, newErr(KindEmptyDocument, "document has zero pages")
	}

	closures := make([][]raw.ObjectRef, len(c.pageRefs))
	membership := make(map[raw.ObjectRef]map[int]bool)
	for i, pref := range c.pageRefs {
		visited := newOrderedSet()
		if err := c.traverse(pref, visited); err != nil {
			return ObjectSets{}, err
		}
		closures[i] = visited.order
		for _, ref := range visited.order {
			if membership[ref] == nil {
				membership[ref] = make(map[int]bool)
			}
			membership[ref][i] = true
		}
	}

	docLevel := newOrderedSet()
	docLevel.add(c.catalog)
	docLevel.add(c.pages)
	if c.info != nil {
		docLevel.add(*c.info)
	}
	if c.outline != nil {
		docLevel.add(*c.outline)
	}

	classified := make(map[raw.ObjectRef]bool, len(c.objects))
	for _, ref := range docLevel.order {
		classified[ref] = true
	}

	var firstPage, shared []raw.ObjectRef
	for _, ref := range closures[0] {
		if classified[ref] {
			continue
		}
		if len(membership[ref]) > 1 {
			shared = append(shared, ref)
		} else {
			firstPage = append(firstPage, ref)
		}
		classified[ref] = true
	}

	remaining := make([][]raw.ObjectRef, len(c.pageRefs))
	for p := 1; p < len(c.pageRefs); p++ {
		for _, ref := range closures[p] {
			if classified[ref] {
				continue
			}
			if len(membership[ref]) >= 2 {
				shared = append(shared, ref)
			} else {
				remaining[p] = append(remaining[p], ref)
			}
			classified[ref] = true
		}
	}

	sharedIdx := make(map[raw.ObjectRef]int, len(shared))
	for i, ref := range shared {
		sharedIdx[ref] = i
	}
	pageSharedIdx := make([][]int, len(c.pageRefs))
	for p, closure := range closures {
		for _, ref := range closure {
			if idx, ok := sharedIdx[ref]; ok {
				pageSharedIdx[p] = append(pageSharedIdx[p], idx)
			}
		}
	}

	return ObjectSets{
		DocLevel:      docLevel.order,
		FirstPage:     firstPage,
		Remaining:     remaining,
		Shared:        shared,
		PageRefs:      c.pageRefs,
		PageSharedIdx: pageSharedIdx,
	}, nil
}

// traverse performs an iterative DFS from root, expanding dictionary values
// and array elements through every Reference, tolerating cycles via the
// visited set. References with object number 0, already-visited
// references, and references to a different document are skipped. A
// reference whose target is absent from the object table is a dangling
// reference.
func (c *collector) traverse(root raw.ObjectRef, visited *orderedSet) error {
	type frame struct{ ref raw.ObjectRef }
	stack := []raw.ObjectRef{root}
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if ref.Num == 0 || visited.has(ref) {
			continue
		}
		if c.foreign[ref] {
			continue
		}
		obj, ok := c.objects[ref]
		if !ok {
			return newErr(KindDanglingReference, "object %s is reachable but absent from the object table", ref)
		}
		visited.add(ref)
		for _, r := range extractRefs(obj) {
			if r.Num == 0 || visited.has(r) || c.foreign[r] {
				continue
			}
			stack = append(stack, r)
		}
	}
	return nil
}

func extractRefs(obj raw.Object) []raw.ObjectRef {
	var refs []raw.ObjectRef
	switch v := obj.(type) {
	case raw.RefObj:
		refs = append(refs, v.Ref())
	case *raw.ArrayObj:
		for _, item := range v.Items {
			refs = append(refs, extractRefs(item)...)
		}
	case *raw.DictObj:
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			refs = append(refs, extractRefs(val)...)
		}
	case *raw.StreamObj:
		refs = append(refs, extractRefs(v.Dict)...)
	}
	return refs
}

// orderedSet records membership with first-insertion order, giving the
// deterministic traversal order the spec requires.
type orderedSet struct {
	set   map[raw.ObjectRef]bool
	order []raw.ObjectRef
}

func newOrderedSet() *orderedSet {
	return &orderedSet{set: make(map[raw.ObjectRef]bool)}
}

func (s *orderedSet) has(ref raw.ObjectRef) bool { return s.set[ref] }

func (s *orderedSet) add(ref raw.ObjectRef) {
	if s.set[ref] {
		return
	}
	s.set[ref] = true
	s.order = append(s.order, ref)
}
