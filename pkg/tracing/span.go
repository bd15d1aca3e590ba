// Package tracing records in-process span trees for pipeline runs. A run
// opens a root span keyed by its run ID, every stage becomes a child span,
// and the finished tree is either logged through slog or returned as a
// Summary alongside the run result.
package tracing

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKey struct{}

// Span is one timed operation. Children and Attrs are safe to extend from
// concurrent goroutines.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Err       error
	Children  []*Span
	Attrs     map[string]any

	mu    sync.Mutex
	ended bool
}

func newSpan(name, traceID string) *Span {
	return &Span{Name: name, TraceID: traceID, StartTime: time.Now(), Attrs: make(map[string]any)}
}

// StartSpan opens a root span. An empty traceID gets a fresh UUID.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	span := newSpan(name, traceID)
	return context.WithValue(ctx, spanKey{}, span), span
}

// StartChildSpan opens a span under the one in ctx. Without a parent the
// span is detached and has no trace ID.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	child := newSpan(name, "")
	if parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.Children = append(parent.Children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, child), child
}

// Trace runs fn inside a child span of ctx and records its error.
func Trace(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := StartChildSpan(ctx, name)
	defer span.End()
	err := fn(ctx)
	span.Fail(err)
	return err
}

func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

// End fixes the span's duration. Later calls are no-ops.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.Duration = time.Since(s.StartTime)
}

// Fail records err on the span. A nil err is ignored.
func (s *Span) Fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.Err = err
	s.mu.Unlock()
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// Summary is a JSON-friendly snapshot of a span tree.
type Summary struct {
	Name       string         `json:"name"`
	DurationMs int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Attrs      map[string]any `json:"attrs,omitempty"`
	Children   []Summary      `json:"children,omitempty"`
}

// Summary snapshots s and its descendants.
func (s *Span) Summary() Summary {
	s.mu.Lock()
	out := Summary{Name: s.Name, DurationMs: s.Duration.Milliseconds()}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	if len(s.Attrs) > 0 {
		out.Attrs = maps.Clone(s.Attrs)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	for _, c := range children {
		out.Children = append(out.Children, c.Summary())
	}
	return out
}

// Log writes one record per span, depth first. A nil l logs to the default
// logger.
func (s *Span) Log(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	logSummary(l, s.TraceID, s.Summary(), 0)
}

func logSummary(l *slog.Logger, traceID string, sum Summary, depth int) {
	attrs := []any{"trace_id", traceID, "span", sum.Name, "duration_ms", sum.DurationMs, "depth", depth}
	for k, v := range sum.Attrs {
		attrs = append(attrs, k, v)
	}
	if sum.Error != "" {
		l.Error("span", append(attrs, "error", sum.Error)...)
	} else {
		l.Info("span", attrs...)
	}
	for _, c := range sum.Children {
		logSummary(l, traceID, c, depth+1)
	}
}
