package preview

import (
	"context"

	"openroom/internal/adjust"
)

// Trace records how one request was served. The HTTP layer attaches it to
// the request context and logs it; the service fills it in from the
// caller's goroutine.
type Trace struct {
	Kind    string // "preview" or "thumbnail"
	AssetID string
	Tier    Tier
	Grading adjust.Grading
}

type traceKey struct{}

// WithTrace returns ctx carrying a fresh Trace.
func WithTrace(ctx context.Context) (context.Context, *Trace) {
	t := &Trace{}
	return context.WithValue(ctx, traceKey{}, t), t
}

// TraceFrom returns the Trace on ctx, or nil.
func TraceFrom(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	return t
}

func (t *Trace) record(kind, assetID string, tier Tier, grading adjust.Grading) {
	if t == nil {
		return
	}
	t.Kind = kind
	t.AssetID = assetID
	t.Tier = tier
	t.Grading = grading
}
