package instrument

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/liveq-dev/liveq/pkg/liveq"
)

// Default tracer name for LiveQ clients.
const defaultTracerName = "liveq"

// TracingConfig configures the tracing decorator.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "liveq").
	TracerName string

	// Attributes are added to every span.
	Attributes []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TracingOption configures the tracing decorator.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithAttributes adds constant attributes to every span.
func WithAttributes(attrs ...attribute.KeyValue) TracingOption {
	return func(c *TracingConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

// TracedClient wraps a liveq.Client with OpenTelemetry spans around its
// remote operations. Everything else is the embedded client, untouched.
type TracedClient struct {
	*liveq.Client

	config TracingConfig
}

// Tracing decorates client. Spans cover Query, Mutation and Action; the
// subscription paths stay unwrapped since they never leave the process
// beyond the backend's own subscribe call.
func Tracing(client *liveq.Client, opts ...TracingOption) *TracedClient {
	config := TracingConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return &TracedClient{Client: client, config: config}
}

// Query runs the embedded client's Query inside a span.
func (t *TracedClient) Query(ctx context.Context, name string, args liveq.Value, opts ...liveq.Option) (liveq.Value, error) {
	ctx, span := t.startSpan(ctx, "liveq.query", name)
	defer span.End()

	v, err := t.Client.Query(ctx, name, args, opts...)
	t.finish(span, err)
	return v, err
}

// Mutation runs the embedded client's Mutation inside a span.
func (t *TracedClient) Mutation(ctx context.Context, name string, args liveq.Value, opts ...liveq.Option) (liveq.Value, error) {
	ctx, span := t.startSpan(ctx, "liveq.mutation", name)
	defer span.End()

	v, err := t.Client.Mutation(ctx, name, args, opts...)
	t.finish(span, err)
	return v, err
}

// Action runs the embedded client's Action inside a span.
func (t *TracedClient) Action(ctx context.Context, name string, args liveq.Value, opts ...liveq.Option) (liveq.Value, error) {
	ctx, span := t.startSpan(ctx, "liveq.action", name)
	defer span.End()

	v, err := t.Client.Action(ctx, name, args, opts...)
	t.finish(span, err)
	return v, err
}

func (t *TracedClient) startSpan(ctx context.Context, op, query string) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(t.config.Attributes)+1)
	attrs = append(attrs, attribute.String("liveq.query_name", query))
	attrs = append(attrs, t.config.Attributes...)

	return t.config.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func (t *TracedClient) finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
