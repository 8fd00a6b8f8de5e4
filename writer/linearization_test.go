package writer

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/wudi/linpdf/ir/semantic"
)

func helloWorldDoc() *semantic.Document {
	return &semantic.Document{
		Pages: []*semantic.Page{
			{
				MediaBox: semantic.Rectangle{URX: 612, URY: 792},
				Resources: &semantic.Resources{
					Fonts: map[string]*semantic.Font{
						"F1": {Subtype: "Type1", BaseFont: "Helvetica"},
					},
				},
				Contents: []semantic.ContentStream{
					{Operations: []semantic.Operation{
						{Operator: "BT"},
						{Operator: "Tf", Operands: []semantic.Operand{semantic.NameOperand{Value: "F1"}, semantic.NumberOperand{Value: 12}}},
						{Operator: "Td", Operands: []semantic.Operand{semantic.NumberOperand{Value: 100}, semantic.NumberOperand{Value: 700}}},
						{Operator: "Tj", Operands: []semantic.Operand{semantic.StringOperand{Value: []byte("Hi")}}},
						{Operator: "ET"},
					}},
				},
			},
		},
	}
}

// S1: hello-world, single page.
func TestLinearizeHelloWorld(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter()
	err := w.Write(context.Background(), helloWorldDoc(), &buf, Config{Version: PDF14, Linearize: true, Deterministic: true})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.Bytes()
	if !bytes.HasPrefix(out, []byte("%PDF-1.4\n%")) {
		t.Fatalf("unexpected header: %q", out[:20])
	}
	if !strings.Contains(string(out), "/Linearized 1") {
		t.Error("missing /Linearized 1")
	}
	if !bytes.HasPrefix(out, []byte("%PDF-1.4\n%\xE2\xE3\xCF\xD3\n1 0 obj")) {
		t.Error("object 1 must be the linearization dictionary, immediately after the header")
	}
	if got := strings.Count(string(out), "startxref"); got != 2 {
		t.Errorf("expected exactly 2 startxref terminators, found %d", got)
	}
	if got := strings.Count(string(out), "%%EOF"); got != 2 {
		t.Errorf("expected exactly 2 %%%%EOF terminators, found %d", got)
	}

	assertConsistentLayout(t, out)
}

// S2: two pages sharing one font.
func TestLinearizeTwoPageSharedFont(t *testing.T) {
	font := &semantic.Font{Subtype: "Type1", BaseFont: "Helvetica"}
	page := func() *semantic.Page {
		return &semantic.Page{
			MediaBox:  semantic.Rectangle{URX: 612, URY: 792},
			Resources: &semantic.Resources{Fonts: map[string]*semantic.Font{"F1": font}},
			Contents:  []semantic.ContentStream{{RawBytes: []byte("BT /F1 12 Tf ET\n")}},
		}
	}
	doc := &semantic.Document{Pages: []*semantic.Page{page(), page()}}

	var buf bytes.Buffer
	w := NewWriter()
	if err := w.Write(context.Background(), doc, &buf, Config{Linearize: true, Deterministic: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	if strings.Count(out, "/BaseFont /Helvetica") != 1 {
		t.Errorf("expected the shared font to be emitted exactly once, got %d occurrences", strings.Count(out, "/BaseFont /Helvetica"))
	}
	assertConsistentLayout(t, buf.Bytes())
}

// S3: zero-page document yields EmptyDocument and no output.
func TestLinearizeEmptyDocument(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter()
	err := w.Write(context.Background(), &semantic.Document{}, &buf, Config{Linearize: true})
	if err == nil {
		t.Fatal("expected an error for a zero-page document")
	}
	wErr, ok := err.(*Error)
	if !ok || wErr.Kind != KindEmptyDocument {
		t.Fatalf("expected KindEmptyDocument, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("sink should receive no bytes on EmptyDocument, got %d", buf.Len())
	}
}

// S4: BitWriter unit law (§8 property 10, worked example from §8 S4).
func TestBitWriterPacksMSBFirst(t *testing.T) {
	var buf bytes.Buffer
	bw := newBitWriter(&buf)
	bw.writeBits(0b101, 3)
	bw.writeBits(0b11, 2)
	bw.writeBits(0b0001, 4)
	bw.flush()

	got := buf.Bytes()
	want := []byte{0b10111000, 0b10000000}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %08b %08b, want %08b %08b", got[0], got[1], want[0], want[1])
	}
}

func TestBitWriterFlushIsNoOpWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	bw := newBitWriter(&buf)
	bw.flush()
	if buf.Len() != 0 {
		t.Fatalf("flush with no pending bits must not emit a byte, got %d bytes", buf.Len())
	}
}

// assertStableSize is exercised directly for S5 (layout-drift detection):
// any second-pass size disagreement is fatal, never silently tolerated.
func TestAssertStableSizeDetectsDrift(t *testing.T) {
	err := assertStableSize("probe", 10, 11)
	if err == nil {
		t.Fatal("expected a drift error")
	}
	wErr, ok := err.(*Error)
	if !ok || wErr.Kind != KindLayoutDrift {
		t.Fatalf("expected KindLayoutDrift, got %v", err)
	}
	if err := assertStableSize("probe", 10, 10); err != nil {
		t.Fatalf("equal sizes must not drift: %v", err)
	}
}

// S6: a length past the 10-digit fixed-width budget is FormatOverflow.
func TestFormatFixedOverflow(t *testing.T) {
	if _, err := formatFixed(maxFixedWidthValue); err != nil {
		t.Fatalf("value at the budget boundary must be accepted: %v", err)
	}
	_, err := formatFixed(maxFixedWidthValue + 1)
	if err == nil {
		t.Fatal("expected FormatOverflow")
	}
	wErr, ok := err.(*Error)
	if !ok || wErr.Kind != KindFormatOverflow {
		t.Fatalf("expected KindFormatOverflow, got %v", err)
	}
}

// assertConsistentLayout re-derives the properties from §8 by scanning the
// produced bytes directly, without a parser collaborator: every "N G obj"
// envelope start is located by byte offset and compared against the
// classical cross-reference table entries, and /L is checked against the
// file's actual length.
func assertConsistentLayout(t *testing.T, pdf []byte) {
	t.Helper()

	objOffsets := scanObjectOffsets(pdf)
	xrefOffsets := scanXRefEntries(t, pdf)
	for num, want := range xrefOffsets {
		got, ok := objOffsets[num]
		if !ok {
			t.Errorf("object %d has an xref entry but no envelope in the file", num)
			continue
		}
		if got != want {
			t.Errorf("object %d: xref says offset %d, envelope actually starts at %d", num, want, got)
		}
	}

	linStart := bytes.Index(pdf, []byte("/Linearized 1"))
	if linStart < 0 {
		t.Fatal("linearization dictionary not found")
	}
	lStart := bytes.Index(pdf[linStart:], []byte("/L "))
	if lStart < 0 {
		t.Fatal("/L entry not found")
	}
	lVal := readFixedWidthInt(t, pdf[linStart+lStart+len("/L "):])
	if lVal != int64(len(pdf)) {
		t.Errorf("/L = %d, actual file length = %d", lVal, len(pdf))
	}
}

func scanObjectOffsets(pdf []byte) map[int]int64 {
	offsets := make(map[int]int64)
	for i := 0; i < len(pdf); i++ {
		if pdf[i] < '0' || pdf[i] > '9' {
			continue
		}
		if i > 0 && pdf[i-1] != '\n' {
			continue
		}
		j := i
		for j < len(pdf) && pdf[j] >= '0' && pdf[j] <= '9' {
			j++
		}
		rest := pdf[j:]
		if !bytes.HasPrefix(rest, []byte(" ")) {
			continue
		}
		k := j + 1
		genStart := k
		for k < len(pdf) && pdf[k] >= '0' && pdf[k] <= '9' {
			k++
		}
		if k == genStart {
			continue
		}
		if !bytes.HasPrefix(pdf[k:], []byte(" obj")) {
			continue
		}
		num, err := strconv.Atoi(string(pdf[i:j]))
		if err != nil {
			continue
		}
		offsets[num] = int64(i)
	}
	return offsets
}

func scanXRefEntries(t *testing.T, pdf []byte) map[int]int64 {
	t.Helper()
	entries := make(map[int]int64)
	lines := bytes.Split(pdf, []byte("\n"))
	var curNum, curMax int
	inXRef := false
	for _, line := range lines {
		s := string(line)
		if s == "xref" {
			inXRef = true
			curNum, curMax = -1, -1
			continue
		}
		if !inXRef {
			continue
		}
		if s == "trailer" {
			inXRef = false
			continue
		}
		fields := strings.Fields(s)
		if curMax < 0 {
			if len(fields) != 2 {
				continue
			}
			start, err1 := strconv.Atoi(fields[0])
			count, err2 := strconv.Atoi(fields[1])
			if err1 != nil || err2 != nil {
				continue
			}
			curNum, curMax = start, start+count
			continue
		}
		if len(fields) != 3 {
			continue
		}
		off, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		if fields[2] == "n" {
			entries[curNum] = off
		}
		curNum++
	}
	return entries
}

func readFixedWidthInt(t *testing.T, rest []byte) int64 {
	t.Helper()
	if len(rest) < 10 {
		t.Fatal("fixed-width field truncated")
	}
	v, err := strconv.ParseInt(string(rest[:10]), 10, 64)
	if err != nil {
		t.Fatalf("fixed-width field not numeric: %v", err)
	}
	return v
}
