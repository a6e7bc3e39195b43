package dispatch

import "context"

// NavSink receives client-side navigation targets produced by navigate
// actions. The orchestrator attaches one per turn so targets flow back to
// the client without a server write.
type NavSink interface {
	Navigate(page string)
}

type navSinkContextKey struct{}

// WithNavSink attaches a navigation sink to the context.
func WithNavSink(ctx context.Context, sink NavSink) context.Context {
	if sink == nil {
		return ctx
	}
	return context.WithValue(ctx, navSinkContextKey{}, sink)
}

func navSinkFromContext(ctx context.Context) NavSink {
	val := ctx.Value(navSinkContextKey{})
	if val == nil {
		return nil
	}
	sink, _ := val.(NavSink)
	return sink
}
