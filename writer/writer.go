package writer

import (
	"context"

	"github.com/wudi/linpdf/ir/raw"
	"github.com/wudi/linpdf/ir/semantic"
	"github.com/wudi/linpdf/observability"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF15 PDFVersion = "1.5"
	PDF16 PDFVersion = "1.6"
	PDF17 PDFVersion = "1.7"
)

// Config controls a single Write invocation. The core only implements the
// linearized layout (§1); Linearize must be true or Write reports
// ErrNotLinearized, since the non-linearized save path is a different
// collaborator's responsibility.
type Config struct {
	Version       PDFVersion
	Linearize     bool
	Deterministic bool
	Logger        observability.Logger
	Tracer        observability.Tracer
}

// Writer produces a byte stream from a semantic document.
type Writer interface {
	Write(ctx context.Context, doc *semantic.Document, w WriterAt, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

// NewWriter creates a new Writer with default configuration.
func NewWriter() Writer {
	return (&WriterBuilder{}).Build()
}

// Interceptor observes object emission; useful for metrics or audit logging
// hung off a Write call without changing its output.
type Interceptor interface {
	BeforeWrite(ctx context.Context, obj raw.Object) error
	AfterWrite(ctx context.Context, obj raw.Object, bytesWritten int64) error
}

type WriterBuilder struct {
	interceptors []Interceptor
}

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}

func (b *WriterBuilder) Build() Writer {
	return &impl{interceptors: b.interceptors}
}

// WriterAt is the byte sink the writer emits to. Despite the name it is
// used purely as a sequential append sink: the writer never seeks.
type WriterAt interface {
	Write(p []byte) (n int, err error)
}
