// Package semantic models the document-level shape the linearization core
// is handed: a page list, a catalog, optional info and outline roots. Font,
// color-space, annotation, form, structure-tree and similar subsystems live
// in the surrounding object-store library, not here.
package semantic

import "github.com/wudi/linpdf/ir/raw"

// Document is the semantic representation of a PDF fed to the writer.
type Document struct {
	Pages    []*Page
	Catalog  *Catalog
	Info     *DocumentInfo
	Outlines *OutlineRoot
	Metadata *XMPMetadata
}

// Page models a single PDF page.
type Page struct {
	Index     int
	MediaBox  Rectangle
	Resources *Resources
	Contents  []ContentStream
}

// ContentStream is a page content stream, already serialized to operators.
type ContentStream struct {
	Operations []Operation
	RawBytes   []byte
}

// Operation represents a single content-stream operator invocation.
type Operation struct {
	Operator string
	Operands []Operand
}

// Operand is a type-safe content-stream operand value.
type Operand interface {
	operand()
	Type() string
}

type NumberOperand struct{ Value float64 }

func (NumberOperand) operand()     {}
func (NumberOperand) Type() string { return "number" }

type NameOperand struct{ Value string }

func (NameOperand) operand()     {}
func (NameOperand) Type() string { return "name" }

type StringOperand struct{ Value []byte }

func (StringOperand) operand()     {}
func (StringOperand) Type() string { return "string" }

// Resources models the subset of a page's /Resources dictionary the writer
// needs to populate: fonts and XObjects, both addressed by name.
type Resources struct {
	Fonts    map[string]*Font
	XObjects map[string]*XObject
}

// Font is a minimal Type1/TrueType font resource description. The object
// builder emits one indirect object per distinct *Font pointer, so a value
// shared across pages is referenced from each; it neither reads nor sets Ref.
type Font struct {
	Subtype  string // Type1, TrueType, Type0
	BaseFont string
	Ref      raw.ObjectRef
}

// XObject models an embedded image or form resource (decoding its payload
// is an external concern; the writer treats Data as an opaque stream body).
type XObject struct {
	Subtype     string // Image, Form
	Width       int
	Height      int
	ColorSpace  string
	BitsPerComp int
	Filter      string
	Data        []byte
	Ref         raw.ObjectRef
}

// Rectangle is a PDF rectangle (llx, lly, urx, ury).
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// Catalog models the subset of /Root the writer cares about.
type Catalog struct {
	Lang   string
	Marked bool
}

// DocumentInfo models /Info dictionary values.
type DocumentInfo struct {
	Title    string
	Author   string
	Subject  string
	Creator  string
	Producer string
	Keywords []string
}

// XMPMetadata carries raw XMP bytes, when present, folded into the
// deterministic file-ID seed.
type XMPMetadata struct {
	Raw []byte
}

// OutlineRoot is the outline (bookmark) tree root, when the document has
// one. The object builder does not emit an outline tree, so a Document's
// Outlines value has no effect on the written file.
type OutlineRoot struct {
	Title string
}
