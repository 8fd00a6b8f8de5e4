package writer

import "bytes"

// pageHint summarizes one page's contribution to the Page Offset Hint
// Table: object and byte-length counts plus the shared objects it
// references, indexed into the SOHT's entry order.
type pageHint struct {
	ObjectCount         int
	PageLength           int64
	ContentStreamCount   int
	ContentStreamLength  int64
	SharedRefs           []int // indices into the shared-object entry order
}

// sharedHint summarizes one shared object's contribution to the Shared
// Object Hint Table.
type sharedHint struct {
	Length int64
}

// hintTables is the encoded byte payload of both hint tables plus the
// intra-stream offset of the SOHT (the hint stream's /S entry).
type hintTables struct {
	Bytes     []byte
	SOHTOffset int
}

// encodeHintTables builds the Page Offset and Shared Object Hint Tables
// from summary records (§4.2) and concatenates them. Per-page and
// per-entry arrays are emitted contiguously across all pages/entries, one
// array at a time, not interleaved.
func encodeHintTables(pages []pageHint, firstPageObjOffset int64, shared []sharedHint, firstSharedObjNum uint32, firstSharedOffset int64, firstPageSharedCount int) hintTables {
	poht := encodePOHT(pages, firstPageObjOffset)
	soht := encodeSOHT(shared, firstSharedObjNum, firstSharedOffset, firstPageSharedCount)
	var out bytes.Buffer
	out.Write(poht)
	sohtOffset := out.Len()
	out.Write(soht)
	return hintTables{Bytes: out.Bytes(), SOHTOffset: sohtOffset}
}

func encodePOHT(pages []pageHint, firstPageObjOffset int64) []byte {
	var buf bytes.Buffer
	bw := newBitWriter(&buf)

	if len(pages) == 0 {
		return buf.Bytes()
	}

	minObjects, maxObjects := minMaxInt(pages, func(p pageHint) int64 { return int64(p.ObjectCount) })
	minLength, maxLength := minMaxInt(pages, func(p pageHint) int64 { return p.PageLength })
	minCSCount, _ := minMaxInt(pages, func(p pageHint) int64 { return int64(p.ContentStreamCount) })
	minCSLength, maxCSLength := minMaxInt(pages, func(p pageHint) int64 { return p.ContentStreamLength })

	maxSharedCount := int64(0)
	maxSharedID := int64(0)
	for _, p := range pages {
		if n := int64(len(p.SharedRefs)); n > maxSharedCount {
			maxSharedCount = n
		}
		for _, idx := range p.SharedRefs {
			if int64(idx) > maxSharedID {
				maxSharedID = int64(idx)
			}
		}
	}

	bitsObjCountDelta := bitsNeeded(maxObjects - minObjects)
	bitsPageLenDelta := bitsNeeded(maxLength - minLength)
	bitsCSOffsetDelta := uint(1) // field 6/7: no per-page offset array is transmitted (§9 open question a); kept at the historical minimum.
	bitsCSLenDelta := bitsNeeded(maxCSLength - minCSLength)
	bitsSharedCount := bitsNeeded(maxSharedCount)
	bitsSharedID := bitsNeeded(maxSharedID)
	bitsFracNumerator := uint(0) // fractional-position numerator is unused in the degenerate denominator=1 case (§9 open question b).

	// Header, fields 1-13.
	bw.writeU32(uint32(minObjects))
	bw.writeU32(uint32(firstPageObjOffset))
	bw.writeU16(uint16(bitsObjCountDelta))
	bw.writeU32(uint32(minLength))
	bw.writeU16(uint16(bitsPageLenDelta))
	bw.writeU32(0) // min content-stream offset: not tracked (open question a)
	bw.writeU16(uint16(bitsCSOffsetDelta))
	bw.writeU32(uint32(minCSLength))
	bw.writeU16(uint16(bitsCSLenDelta))
	bw.writeU16(uint16(bitsSharedCount))
	bw.writeU16(uint16(bitsSharedID))
	bw.writeU16(uint16(bitsFracNumerator))
	bw.writeU16(1) // fractional-position denominator, hard-coded (open question b)

	// Array 1: object_count_delta, width = field 3.
	for _, p := range pages {
		bw.writeBits(uint64(int64(p.ObjectCount)-minObjects), bitsObjCountDelta)
	}
	// Array 2: page_length_delta, width = field 5.
	for _, p := range pages {
		bw.writeBits(uint64(p.PageLength-minLength), bitsPageLenDelta)
	}
	// Array 3: shared_ref_count, width = field 10.
	for _, p := range pages {
		bw.writeBits(uint64(len(p.SharedRefs)), bitsSharedCount)
	}
	// Array 4: shared_object_id, width = field 11.
	for _, p := range pages {
		for _, idx := range p.SharedRefs {
			bw.writeBits(uint64(idx), bitsSharedID)
		}
	}
	// Array 5: fractional_position, width = field 12 (zero-width: no-op).
	for _, p := range pages {
		for range p.SharedRefs {
			bw.writeBits(0, bitsFracNumerator)
		}
	}
	// Array 6: content_stream_count_delta, width = field 3 (reused).
	for _, p := range pages {
		bw.writeBits(uint64(int64(p.ContentStreamCount)-minCSCount), bitsObjCountDelta)
	}
	// Array 7: content_stream_length_delta, width = field 9.
	for _, p := range pages {
		bw.writeBits(uint64(p.ContentStreamLength-minCSLength), bitsCSLenDelta)
	}

	bw.flush()
	return buf.Bytes()
}

func encodeSOHT(shared []sharedHint, firstSharedObjNum uint32, firstSharedOffset int64, firstPageSharedCount int) []byte {
	var buf bytes.Buffer
	bw := newBitWriter(&buf)

	minLen, maxLen := int64(0), int64(0)
	if len(shared) > 0 {
		minLen, maxLen = shared[0].Length, shared[0].Length
		for _, s := range shared[1:] {
			if s.Length < minLen {
				minLen = s.Length
			}
			if s.Length > maxLen {
				maxLen = s.Length
			}
		}
	}
	bitsLenDelta := bitsNeeded(maxLen - minLen)

	bw.writeU32(firstSharedObjNum)
	bw.writeU32(uint32(firstSharedOffset))
	bw.writeU32(uint32(firstPageSharedCount))
	bw.writeU32(uint32(len(shared)))
	bw.writeU32(uint32(minLen))
	bw.writeU16(uint16(bitsLenDelta))

	for _, s := range shared {
		bw.writeBits(uint64(s.Length-minLen), bitsLenDelta)
	}
	for range shared {
		bw.writeBits(0, 1) // is_signature: never a signature object
	}
	for range shared {
		bw.writeBits(0, 1) // group_size_flag: one object per group
	}
	bw.flush()
	return buf.Bytes()
}

func minMaxInt(pages []pageHint, f func(pageHint) int64) (min, max int64) {
	min, max = f(pages[0]), f(pages[0])
	for _, p := range pages[1:] {
		v := f(p)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
