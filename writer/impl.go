package writer

import (
	"context"
	"errors"

	"github.com/wudi/linpdf/ir/raw"
	"github.com/wudi/linpdf/ir/semantic"
	"github.com/wudi/linpdf/observability"
)

// ErrNotLinearized is returned when Config.Linearize is false: the
// non-linearized save path is out of this core's scope (§1).
var ErrNotLinearized = errors.New("writer: only linearized output is implemented")

type impl struct {
	interceptors []Interceptor
}

func (w *impl) Write(ctx context.Context, doc *semantic.Document, out WriterAt, cfg Config) error {
	if !cfg.Linearize {
		return ErrNotLinearized
	}
	return w.writeLinearized(ctx, doc, out, cfg)
}

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	return serializeObject(ref, obj), nil
}

func loggerFromConfig(cfg Config) observability.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return observability.NopLogger{}
}

func tracerFromConfig(cfg Config) observability.Tracer {
	if cfg.Tracer != nil {
		return cfg.Tracer
	}
	return observability.NopTracer()
}
