// Package trace records a conversation run as an observability trace. Tracing
// is fire-and-forget: failures are logged by the implementation and never
// reach the caller.
package trace

import "context"

// Service is the tracing collaborator used by the simulation engine.
type Service interface {
	// StartTrace opens the trace for a run. Later calls attach to it.
	StartTrace(ctx context.Context, name string, input any, metadata map[string]any)
	StartSpan(ctx context.Context, name string, input any, metadata map[string]any) Span
	UpdateTrace(ctx context.Context, output any, metadata map[string]any, tags []string)
	Event(ctx context.Context, name string, input, output any)
	Flush(ctx context.Context)
}

// Span is an open unit of work inside a trace.
type Span interface {
	End(output any)
}

// Nop is a Service that records nothing.
type Nop struct{}

func (Nop) StartTrace(context.Context, string, any, map[string]any)     {}
func (Nop) StartSpan(context.Context, string, any, map[string]any) Span { return nopSpan{} }
func (Nop) UpdateTrace(context.Context, any, map[string]any, []string)  {}
func (Nop) Event(context.Context, string, any, any)                     {}
func (Nop) Flush(context.Context)                                       {}

type nopSpan struct{}

func (nopSpan) End(any) {}
