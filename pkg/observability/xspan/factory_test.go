package xspan_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/evplanner/pkg/observability/xspan"
	"github.com/omeyang/evplanner/pkg/observability/xtrace"
)

const testTraceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func newFactory(t *testing.T, opts ...xspan.Option) (*xspan.Factory, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	f, err := xspan.New(append([]xspan.Option{xspan.WithSpanProcessor(rec)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Shutdown(context.Background()) })
	return f, rec
}

func TestFactory_StartWithParent(t *testing.T) {
	f, rec := newFactory(t)
	parent, ok := xtrace.ParseTraceparent(testTraceparent)
	require.True(t, ok)

	_, span := f.Start(context.Background(), "/plan", trace.SpanKindServer, parent)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, parent.TraceID(), got.SpanContext().TraceID(), "trace-id 继承自父上下文")
	assert.Equal(t, parent.SpanID(), got.Parent().SpanID(), "parent-span-id 等于父 span-id")
	assert.True(t, got.Parent().IsRemote())
	assert.NotEqual(t, parent.SpanID(), got.SpanContext().SpanID(), "span-id 必须新生成")
	assert.Equal(t, trace.SpanKindServer, got.SpanKind())
	assert.Equal(t, "/plan", got.Name())
}

func TestFactory_StartWithoutParent(t *testing.T) {
	f, rec := newFactory(t)

	_, span := f.Start(context.Background(), "/health", trace.SpanKindServer, trace.SpanContext{})
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.True(t, ended[0].SpanContext().TraceID().IsValid(), "新 trace-id 不能全零")
	assert.True(t, ended[0].SpanContext().SpanID().IsValid())
	assert.False(t, ended[0].Parent().IsValid())
}

func TestFactory_InvalidParentIgnoresAmbientSpan(t *testing.T) {
	f, rec := newFactory(t)

	ctx, outer := f.Start(context.Background(), "outer", trace.SpanKindInternal, trace.SpanContext{})
	_, inner := f.Start(ctx, "inner", trace.SpanKindServer, trace.SpanContext{})
	inner.End()
	outer.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.NotEqual(t, ended[0].SpanContext().TraceID(), ended[1].SpanContext().TraceID(),
		"无效 parent 时不应继承 ctx 中的 span")
}

func TestFactory_StartChild(t *testing.T) {
	f, rec := newFactory(t)

	ctx, server := f.Start(context.Background(), "/plan", trace.SpanKindServer, trace.SpanContext{})
	_, client := f.StartChild(ctx, "routing.fetch", trace.SpanKindClient)
	client.End()
	server.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	child, root := ended[0], ended[1]
	assert.Equal(t, root.SpanContext().TraceID(), child.SpanContext().TraceID())
	assert.Equal(t, root.SpanContext().SpanID(), child.Parent().SpanID())
	assert.False(t, child.Parent().IsRemote())
	assert.Equal(t, trace.SpanKindClient, child.SpanKind())
}

func TestFactory_NilContext(t *testing.T) {
	f, _ := newFactory(t)
	//nolint:staticcheck // 验证 nil ctx 不 panic
	ctx, span := f.Start(nil, "x", trace.SpanKindInternal, trace.SpanContext{})
	defer span.End()
	assert.NotNil(t, ctx)
}

func TestFactory_Resource(t *testing.T) {
	f, rec := newFactory(t,
		xspan.WithService("ev-planner", "valhalla", "1.2.3"),
		xspan.WithEnvironment("staging"),
	)
	_, span := f.Start(context.Background(), "r", trace.SpanKindInternal, trace.SpanContext{})
	span.End()

	attrs := rec.Ended()[0].Resource().Set()
	v, ok := attrs.Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "ev-planner", v.AsString())
	v, ok = attrs.Value(semconv.ServiceNamespaceKey)
	require.True(t, ok)
	assert.Equal(t, "valhalla", v.AsString())
	v, ok = attrs.Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	assert.Equal(t, "1.2.3", v.AsString())
	v, ok = attrs.Value(semconv.DeploymentEnvironmentKey)
	require.True(t, ok)
	assert.Equal(t, "staging", v.AsString())
}

func TestNewResource_MatchesFactory(t *testing.T) {
	opts := []xspan.Option{xspan.WithService("", "", "0.1.0"), nil}
	f, err := xspan.New(opts...)
	require.NoError(t, err)
	defer f.Shutdown(context.Background())

	res := xspan.NewResource(opts...)
	assert.True(t, res.Equal(f.Resource()))
	v, ok := res.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, xspan.DefaultServiceName, v.AsString())
}

func TestFactory_EmptyServiceName(t *testing.T) {
	_, err := xspan.New(xspan.WithService("   ", "", ""))
	assert.ErrorIs(t, err, xspan.ErrEmptyServiceName)
}

func TestFactory_SpanLimits(t *testing.T) {
	f, rec := newFactory(t, xspan.WithSpanLimits(5, 2))

	_, span := f.Start(context.Background(), "limited", trace.SpanKindInternal, trace.SpanContext{})
	span.SetAttributes(
		attribute.String("a", strings.Repeat("x", 20)),
		attribute.String("b", "ok"),
		attribute.String("c", "dropped"),
	)
	span.End()

	got := rec.Ended()[0]
	require.Len(t, got.Attributes(), 2)
	assert.Equal(t, "xxxxx", got.Attributes()[0].Value.AsString())
	assert.Equal(t, 1, got.DroppedAttributes())
}

func TestFactory_Unlimited(t *testing.T) {
	f, rec := newFactory(t, xspan.WithSpanLimits(0, 0))

	_, span := f.Start(context.Background(), "unlimited", trace.SpanKindInternal, trace.SpanContext{})
	for i := range 20 {
		span.SetAttributes(attribute.Int(string(rune('a'+i)), i))
	}
	span.End()
	assert.Len(t, rec.Ended()[0].Attributes(), 20)
}

func TestFactory_NeverSampler(t *testing.T) {
	f, rec := newFactory(t, xspan.WithSampler(sdktrace.NeverSample()))

	_, span := f.Start(context.Background(), "dropped", trace.SpanKindServer, trace.SpanContext{})
	assert.False(t, span.IsRecording())
	assert.True(t, span.SpanContext().IsValid(), "未采样的 span 仍有合法上下文")
	span.End()
	assert.Empty(t, rec.Ended())
}

func TestFactory_ShutdownIdempotent(t *testing.T) {
	f, err := xspan.New()
	require.NoError(t, err)
	require.NoError(t, f.ForceFlush(context.Background()))
	require.NoError(t, f.Shutdown(context.Background()))
	assert.NoError(t, f.Shutdown(context.Background()))
	assert.NotNil(t, f.TracerProvider())
	assert.NotNil(t, f.IDGenerator())
}
