package writer

import (
	"bytes"
	"fmt"

	"github.com/wudi/linpdf/ir/raw"
	"github.com/wudi/linpdf/ir/semantic"
)

// linDictFields holds the values of the linearization dictionary's entries.
// The four offset/length-bearing entries (/L, /E, /T, /H) are always
// rendered at the same fixed textual width so that patching them in place
// never changes the dictionary's serialized length (§4.4, §9); /O and /N
// are plain decimal.
type linDictFields struct {
	L  int64
	O  int
	E  int64
	N  int
	T  int64
	H0 int64
	H1 int64
}

func formatFixed(v int64) (string, error) {
	if v < 0 || v > maxFixedWidthValue {
		return "", newErr(KindFormatOverflow, "value %d exceeds the 10-digit fixed-width budget", v)
	}
	return fmt.Sprintf("%010d", v), nil
}

// buildLinDictObject renders the full "N G obj ... endobj\n" envelope for
// the linearization dictionary. /L, /E, /T and /H are always exactly 10
// digits, so its length depends only on the decimal widths of /O and /N.
func buildLinDictObject(ref raw.ObjectRef, f linDictFields) ([]byte, error) {
	lStr, err := formatFixed(f.L)
	if err != nil {
		return nil, err
	}
	eStr, err := formatFixed(f.E)
	if err != nil {
		return nil, err
	}
	tStr, err := formatFixed(f.T)
	if err != nil {
		return nil, err
	}
	h0Str, err := formatFixed(f.H0)
	if err != nil {
		return nil, err
	}
	h1Str, err := formatFixed(f.H1)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d %d obj\n", ref.Num, ref.Gen)
	b.WriteString("<<\n")
	b.WriteString("/Linearized 1\n")
	fmt.Fprintf(&b, "/L %s\n", lStr)
	fmt.Fprintf(&b, "/H [%s %s]\n", h0Str, h1Str)
	fmt.Fprintf(&b, "/O %d\n", f.O)
	fmt.Fprintf(&b, "/E %s\n", eStr)
	fmt.Fprintf(&b, "/N %d\n", f.N)
	fmt.Fprintf(&b, "/T %s\n", tStr)
	b.WriteString(">>\nendobj\n")
	return b.Bytes(), nil
}

// layoutInput is everything the two-pass solver needs: the renumbered
// object graph already partitioned and ordered by the collector.
type layoutInput struct {
	linDictRef  raw.ObjectRef
	firstPage   []raw.ObjectRef // doc_level ++ first_page, renumbered, emission order
	hintRef     raw.ObjectRef
	remaining   [][]raw.ObjectRef // remaining[p], p=1..N-1, renumbered
	shared      []raw.ObjectRef
	objects     map[raw.ObjectRef]raw.Object
	pageRefs    []raw.ObjectRef // renumbered page-dict refs, page order
	pageShared  [][]int         // indices into shared, per page
	catalogRef  raw.ObjectRef
	infoRef     *raw.ObjectRef
	doc         *semantic.Document
	cfg         Config
	ids         [2][]byte
}

type layoutResult struct {
	firstPageObjs   []raw.ObjectRef // doc_level ++ first_page, renumbered, emission order
	remainingObjs   []raw.ObjectRef // remaining[1..N-1] flattened, emission order
	sharedObjs      []raw.ObjectRef
	size            map[raw.ObjectRef]int64
	offset          map[raw.ObjectRef]int64
	header          []byte
	linDict         []byte // final, patched
	hintData        []byte
	hintSOHTOff     int
	firstPageXRef   []byte
	mainXRef        []byte
	totalLength     int64
	firstPageMaxNum int
}

// computeLayout runs the estimate -> trial -> measure -> patch loop of
// §4.4. The only value whose textual width can legitimately drift between
// iterations is the first-page trailer's /Prev (it names the main
// cross-reference offset, computed only once the rest of the file is
// sized), so iteration continues until that width stabilizes.
func computeLayout(in layoutInput) (*layoutResult, error) {
	if in.objects == nil {
		in.objects = map[raw.ObjectRef]raw.Object{}
	}

	header := []byte(fmt.Sprintf("%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", pdfVersion(in.cfg)))
	headerLen := int64(len(header))

	size := make(map[raw.ObjectRef]int64, len(in.objects))
	for ref, obj := range in.objects {
		size[ref] = int64(len(serializeObject(ref, obj)))
	}

	remainingOrder := make([]raw.ObjectRef, 0)
	for p := 1; p < len(in.remaining); p++ {
		remainingOrder = append(remainingOrder, in.remaining[p]...)
	}

	firstPageMaxNum := in.linDictRef.Num
	for _, r := range in.firstPage {
		if r.Num > firstPageMaxNum {
			firstPageMaxNum = r.Num
		}
	}
	if in.hintRef.Num > firstPageMaxNum {
		firstPageMaxNum = in.hintRef.Num
	}

	maxObjNum := firstPageMaxNum
	if in.hintRef.Num > maxObjNum {
		maxObjNum = in.hintRef.Num
	}
	for _, r := range append(append([]raw.ObjectRef{}, remainingOrder...), in.shared...) {
		if r.Num > maxObjNum {
			maxObjNum = r.Num
		}
	}

	pageHints, sharedHints := buildHintSummaries(in, size)
	firstPageSharedCount := 0
	if len(in.pageShared) > 0 {
		firstPageSharedCount = len(in.pageShared[0])
	}
	// Provisional encode: header offset fields are zero-valued placeholders.
	// Their width (u32/u16, never bit-packed) is independent of value, so
	// the size computed here is final.
	provisional := encodeHintTables(pageHints, 0, sharedHints, uint32(firstSharedObjNum(in)), 0, firstPageSharedCount)
	hintStreamDict := raw.Dict()
	hintStreamDict.Set(raw.NameLiteral("S"), raw.NumberInt(int64(provisional.SOHTOffset)))
	hintStreamDict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(provisional.Bytes))))
	hintStreamSize := int64(len(serializeObject(in.hintRef, raw.NewStream(hintStreamDict, provisional.Bytes))))

	var (
		mainXRefOffsetGuess int64
		result              layoutResult
	)

	const maxIterations = 8
	for iter := 0; iter < maxIterations; iter++ {
		offset := make(map[raw.ObjectRef]int64, len(size)+2)
		cursor := headerLen

		linSizeProbe, err := buildLinDictObject(in.linDictRef, linDictFields{O: firstObjNum(in), N: len(in.pageRefs)})
		if err != nil {
			return nil, err
		}
		linSize := int64(len(linSizeProbe))
		offset[in.linDictRef] = cursor
		cursor += linSize

		firstPageXRefOffset := cursor
		fpTrailer := buildTrailer(firstPageMaxNum+1, in.catalogRef, in.infoRef, in.doc, in.cfg, in.ids)
		fpTrailer.Set(raw.NameLiteral("Prev"), raw.NumberInt(mainXRefOffsetGuess))
		fpTrailerBytes := serializePrimitive(fpTrailer)

		entryCount0 := firstPageMaxNum + 1
		fpXRefSize := int64(len("xref\n")) +
			int64(len(fmt.Sprintf("0 %d\n", entryCount0))) +
			int64(entryCount0)*20 +
			int64(len("trailer\n")) + int64(len(fpTrailerBytes)) + 1 +
			int64(len("startxref\n")) + int64(len(fmt.Sprintf("%d\n%%%%EOF\n", firstPageXRefOffset)))
		cursor += fpXRefSize

		for _, ref := range in.firstPage {
			offset[ref] = cursor
			cursor += size[ref]
		}

		endOfFirstPage := cursor
		hintOffset := cursor
		cursor += hintStreamSize
		offset[in.hintRef] = hintOffset

		for _, ref := range remainingOrder {
			offset[ref] = cursor
			cursor += size[ref]
		}
		for _, ref := range in.shared {
			offset[ref] = cursor
			cursor += size[ref]
		}

		mainXRefOffset := cursor
		mainTrailer := buildTrailer(maxObjNum+1, in.catalogRef, in.infoRef, in.doc, in.cfg, in.ids)
		mainTrailerBytes := serializePrimitive(mainTrailer)
		mainEntryCount := maxObjNum + 1
		mainSubsection := fmt.Sprintf("0 %d\n", mainEntryCount)
		mainXRefSize := int64(len("xref\n")) +
			int64(len(mainSubsection)) +
			int64(mainEntryCount)*20 +
			int64(len("trailer\n")) + int64(len(mainTrailerBytes)) +
			int64(len("\nstartxref\n")) +
			int64(len(fmt.Sprintf("%d\n%%%%EOF\n", mainXRefOffset)))
		cursor += mainXRefSize
		totalLength := cursor

		if totalLength > maxFixedWidthValue {
			return nil, newErr(KindFormatOverflow, "file length %d exceeds the 10-digit fixed-width budget", totalLength)
		}

		if mainXRefOffset == mainXRefOffsetGuess {
			// Converged: Prev's textual width (and therefore every size
			// derived from it) is stable. Finalize the hint tables with
			// real offsets, patch the linearization dict, and build the
			// cross-reference sections for real.
			firstObjOffset := int64(0)
			if len(in.pageRefs) > 0 {
				firstObjOffset = offset[in.pageRefs[0]]
			}
			firstSharedOffset := int64(0)
			if len(in.shared) > 0 {
				firstSharedOffset = offset[in.shared[0]]
			}
			final := encodeHintTables(pageHints, firstObjOffset, sharedHints, uint32(firstSharedObjNum(in)), firstSharedOffset, firstPageSharedCount)
			if err := assertStableSize("hint table", int64(len(provisional.Bytes)), int64(len(final.Bytes))); err != nil {
				return nil, err
			}
			hintStreamDict2 := raw.Dict()
			hintStreamDict2.Set(raw.NameLiteral("S"), raw.NumberInt(int64(final.SOHTOffset)))
			hintStreamDict2.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(final.Bytes))))
			hintStream := raw.NewStream(hintStreamDict2, final.Bytes)
			hintBytes := serializeObject(in.hintRef, hintStream)
			if err := assertStableSize("hint stream envelope", hintStreamSize, int64(len(hintBytes))); err != nil {
				return nil, err
			}

			linFields := linDictFields{
				L:  totalLength,
				O:  firstObjNum(in),
				E:  endOfFirstPage,
				N:  len(in.pageRefs),
				T:  mainXRefOffset + int64(len("xref\n")+len(mainSubsection)) - 1,
				H0: hintOffset,
				H1: hintStreamSize,
			}
			linBytes, err := buildLinDictObject(in.linDictRef, linFields)
			if err != nil {
				return nil, err
			}
			if err := assertStableSize("linearization dictionary", linSize, int64(len(linBytes))); err != nil {
				return nil, err
			}

			fpTrailerFinal := buildTrailer(firstPageMaxNum+1, in.catalogRef, in.infoRef, in.doc, in.cfg, in.ids)
			fpTrailerFinal.Set(raw.NameLiteral("Prev"), raw.NumberInt(mainXRefOffset))
			fpXRefBytes := buildXRefSection(entryCount0, offset, firstPageXRefOffset, fpTrailerFinal, true, 0)

			mainTrailerFinal := buildTrailer(maxObjNum+1, in.catalogRef, in.infoRef, in.doc, in.cfg, in.ids)
			mainXRefBytes := buildXRefSection(mainEntryCount, offset, mainXRefOffset, mainTrailerFinal, false, 0)

			size[in.linDictRef] = linSize
			size[in.hintRef] = hintStreamSize
			offset[in.linDictRef] = headerLen

			result = layoutResult{
				firstPageObjs:   append([]raw.ObjectRef{}, in.firstPage...),
				remainingObjs:   append([]raw.ObjectRef{}, remainingOrder...),
				sharedObjs:      append([]raw.ObjectRef{}, in.shared...),
				size:            size,
				offset:          offset,
				header:          header,
				linDict:         linBytes,
				hintData:        hintBytes,
				hintSOHTOff:     final.SOHTOffset,
				firstPageXRef:   fpXRefBytes,
				mainXRef:        mainXRefBytes,
				totalLength:     totalLength,
				firstPageMaxNum: firstPageMaxNum,
			}
			return &result, nil
		}

		mainXRefOffsetGuess = mainXRefOffset
	}

	return nil, newErr(KindLayoutDrift, "first-page trailer offset did not converge after %d iterations", maxIterations)
}

// assertStableSize reports KindLayoutDrift when a second-pass measurement
// disagrees with the size recorded during the first pass (§4.5 failure
// semantics: this always indicates a bug, never a recoverable condition).
func assertStableSize(label string, want, got int64) error {
	if want != got {
		return newErr(KindLayoutDrift, "%s size drifted from %d to %d bytes", label, want, got)
	}
	return nil
}

func firstObjNum(in layoutInput) int {
	if len(in.firstPage) == 0 {
		return 0
	}
	return in.pageRefs[0].Num
}

func firstSharedObjNum(in layoutInput) int {
	if len(in.shared) == 0 {
		return 0
	}
	return in.shared[0].Num
}

// buildHintSummaries derives per-page and per-shared-object hint records
// from static object sizes alone (§4.4: page_length excludes
// cross-reference bytes and does not depend on absolute position).
func buildHintSummaries(in layoutInput, size map[raw.ObjectRef]int64) ([]pageHint, []sharedHint) {
	pages := make([]pageHint, len(in.pageRefs))
	pageObjs := make([][]raw.ObjectRef, len(in.pageRefs))
	if len(in.pageRefs) > 0 {
		pageObjs[0] = in.firstPage
	}
	for p := 1; p < len(in.pageRefs); p++ {
		pageObjs[p] = in.remaining[p]
	}

	for p, objs := range pageObjs {
		var h pageHint
		h.ObjectCount = len(objs)
		for _, ref := range objs {
			h.PageLength += size[ref]
			if _, ok := in.objects[ref].(*raw.StreamObj); ok {
				h.ContentStreamCount++
				h.ContentStreamLength += size[ref]
			}
		}
		if p < len(in.pageShared) {
			h.SharedRefs = in.pageShared[p]
		}
		pages[p] = h
	}

	shared := make([]sharedHint, len(in.shared))
	for i, ref := range in.shared {
		shared[i] = sharedHint{Length: size[ref]}
	}
	return pages, shared
}

// buildXRefSection renders "xref\n<subsection>\ntrailer\n<dict>\nstartxref\n<off>\n%%EOF\n".
// Both sections end the trailer dictionary with a single newline before
// "startxref". With firstPage set, the first entry is always the free-list
// head for object 0; otherwise every number without an offset is written as
// a free entry.
func buildXRefSection(entryCount int, offset map[raw.ObjectRef]int64, xrefOffset int64, trailer *raw.DictObj, firstPage bool, startNum int) []byte {
	numToOffset := make(map[int]int64, len(offset))
	for ref, off := range offset {
		numToOffset[ref.Num] = off
	}

	var b bytes.Buffer
	b.WriteString("xref\n")
	fmt.Fprintf(&b, "%d %d\n", startNum, entryCount)
	first := startNum
	if firstPage {
		b.WriteString("0000000000 65535 f \n")
		first = startNum + 1
	}
	for num := first; num < startNum+entryCount; num++ {
		if off, ok := numToOffset[num]; ok {
			fmt.Fprintf(&b, "%010d 00000 n \n", off)
		} else {
			b.WriteString("0000000000 65535 f \n")
		}
	}
	b.WriteString("trailer\n")
	b.Write(serializePrimitive(trailer))
	b.WriteString("\n")
	b.WriteString("startxref\n")
	fmt.Fprintf(&b, "%d\n%%%%EOF\n", xrefOffset)
	return b.Bytes()
}
