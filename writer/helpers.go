package writer

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"sort"
	"strings"

	"github.com/wudi/linpdf/ir/raw"
	"github.com/wudi/linpdf/ir/semantic"

	"golang.org/x/crypto/blake2b"
)

func pdfVersion(cfg Config) string {
	if cfg.Version == "" {
		return string(PDF17)
	}
	return string(cfg.Version)
}

// fileID produces the trailer /ID pair. When cfg.Deterministic is set, it
// hashes the document's visible content with blake2b rather than drawing
// from crypto/rand, so that re-linearizing an unchanged document
// reproduces byte-identical output (property 9, idempotence). Non-
// deterministic mode draws a fresh random ID every call, matching a
// reader's expectation that /ID changes whenever a document is actually
// re-saved with new content.
func fileID(doc *semantic.Document, cfg Config) [2][]byte {
	if !cfg.Deterministic {
		var id [16]byte
		_, _ = rand.Read(id[:])
		return [2][]byte{id[:], id[:]}
	}
	seed := deterministicIDSeed(doc, cfg)
	return [2][]byte{seed, seed}
}

func deterministicIDSeed(doc *semantic.Document, cfg Config) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(pdfVersion(cfg)))
	if doc.Info != nil {
		h.Write([]byte(doc.Info.Title))
		h.Write([]byte(doc.Info.Author))
		h.Write([]byte(doc.Info.Subject))
		h.Write([]byte(doc.Info.Creator))
		h.Write([]byte(doc.Info.Producer))
		if len(doc.Info.Keywords) > 0 {
			h.Write([]byte(strings.Join(doc.Info.Keywords, ",")))
		}
	}
	if doc.Metadata != nil {
		h.Write(doc.Metadata.Raw)
	}
	fmt.Fprintf(h, "%d", len(doc.Pages))
	for _, p := range doc.Pages {
		fmt.Fprintf(h, "%f-%f-%f-%f", p.MediaBox.LLX, p.MediaBox.LLY, p.MediaBox.URX, p.MediaBox.URY)
		for _, cs := range p.Contents {
			h.Write(serializeContentStream(cs))
		}
	}
	return h.Sum(nil)
}

func rectArray(r semantic.Rectangle) *raw.ArrayObj {
	return raw.NewArray(
		raw.NumberFloat(r.LLX), raw.NumberFloat(r.LLY),
		raw.NumberFloat(r.URX), raw.NumberFloat(r.URY),
	)
}

func serializeContentStream(cs semantic.ContentStream) []byte {
	if len(cs.RawBytes) > 0 {
		return cs.RawBytes
	}
	if len(cs.Operations) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, op := range cs.Operations {
		for i, operand := range op.Operands {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.Write(serializeOperand(operand))
		}
		if len(op.Operands) > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func serializeOperand(op semantic.Operand) []byte {
	switch v := op.(type) {
	case semantic.NumberOperand:
		return []byte(fmt.Sprintf("%g", v.Value))
	case semantic.NameOperand:
		return []byte("/" + v.Value)
	case semantic.StringOperand:
		return escapeLiteralString(v.Value)
	default:
		return []byte("null")
	}
}

func escapeLiteralString(rawBytes []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, ch := range rawBytes {
		switch ch {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		default:
			if ch < 0x20 || ch >= 0x80 {
				fmt.Fprintf(&b, "\\%03o", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}

// buildTrailer constructs a trailer dictionary. Linearized files never set
// /Prev on the main trailer (only the first-page trailer does, per §4.5).
func buildTrailer(size int, catalogRef raw.ObjectRef, infoRef *raw.ObjectRef, doc *semantic.Document, cfg Config, ids [2][]byte) *raw.DictObj {
	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(size)))
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(catalogRef.Num, catalogRef.Gen))
	if infoRef != nil {
		trailer.Set(raw.NameLiteral("Info"), raw.Ref(infoRef.Num, infoRef.Gen))
	}
	idArr := raw.NewArray(raw.HexStr(ids[0]), raw.HexStr(ids[1]))
	trailer.Set(raw.NameLiteral("ID"), idArr)
	return trailer
}

// serializePrimitive renders a raw.Object using the compact layout variant:
// minimal whitespace, dictionary keys sorted for deterministic byte output.
func serializePrimitive(o raw.Object) []byte {
	switch v := o.(type) {
	case raw.NameObj:
		return []byte("/" + v.Value())
	case raw.NumberObj:
		if v.IsInteger() {
			return []byte(fmt.Sprintf("%d", v.Int()))
		}
		return []byte(fmt.Sprintf("%g", v.Float()))
	case raw.BoolObj:
		if v.Value() {
			return []byte("true")
		}
		return []byte("false")
	case raw.NullObj:
		return []byte("null")
	case raw.StringObj:
		if v.IsHex() {
			return []byte("<" + fmt.Sprintf("%X", v.Value()) + ">")
		}
		return escapeLiteralString(v.Value())
	case *raw.ArrayObj:
		var b bytes.Buffer
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.Write(serializePrimitive(it))
		}
		b.WriteByte(']')
		return b.Bytes()
	case *raw.DictObj:
		var b bytes.Buffer
		b.WriteString("<<")
		keys := make([]string, 0, len(v.KV))
		for k := range v.KV {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString("/" + k + " ")
			b.Write(serializePrimitive(v.KV[k]))
		}
		b.WriteString(">>")
		return b.Bytes()
	case *raw.StreamObj:
		var b bytes.Buffer
		b.Write(serializePrimitive(v.Dict))
		b.WriteString("stream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
		return b.Bytes()
	case raw.RefObj:
		return []byte(fmt.Sprintf("%d %d R", v.Ref().Num, v.Ref().Gen))
	default:
		return []byte("null")
	}
}

// serializeObject writes the full indirect-object envelope: "N G obj ... endobj\n".
func serializeObject(ref raw.ObjectRef, obj raw.Object) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d %d obj\n", ref.Num, ref.Gen)
	b.Write(serializePrimitive(obj))
	b.WriteString("\nendobj\n")
	return b.Bytes()
}
