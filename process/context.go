package process

import "context"

type procKey struct{}

// NewContext returns a copy of parent carrying p as the calling process.
func NewContext(parent context.Context, p *Proc) context.Context {
	return context.WithValue(parent, procKey{}, p)
}

// FromContext returns the process carried by ctx, if any.
func FromContext(ctx context.Context) (*Proc, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(procKey{}).(*Proc)
	return p, ok
}
