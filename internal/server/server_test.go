package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/omeyang/evplanner/internal/pipeline"
	"github.com/omeyang/evplanner/internal/routing"
	"github.com/omeyang/evplanner/pkg/observability/xspan"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

var hex32 = regexp.MustCompile(`^[0-9a-f]{32}$`)

func newHandler(t *testing.T, withRouting func(f *xspan.Factory) *routing.Client) (http.Handler, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	f, err := xspan.New(xspan.WithSpanProcessor(rec))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Shutdown(context.Background()) })

	d := Deps{Factory: f, ServiceName: "ev-planner"}
	if withRouting != nil {
		d.Routing = withRouting(f)
	}
	h, err := NewHandler(d)
	require.NoError(t, err)
	return h, rec
}

func do(h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewHandler_Errors(t *testing.T) {
	_, err := NewHandler(Deps{})
	assert.ErrorIs(t, err, ErrEmptyServiceName)

	_, err = NewHandler(Deps{ServiceName: "ev-planner"})
	assert.ErrorIs(t, err, pipeline.ErrNilFactory)
}

func TestHealth(t *testing.T) {
	h, rec := newHandler(t, nil)
	w := do(h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, RouteHealth, spans[0].Name())
	assert.False(t, spans[0].Parent().IsValid())
	assert.Regexp(t, hex32, spans[0].SpanContext().TraceID().String())
}

func TestPlan_WithTraceparent(t *testing.T) {
	h, rec := newHandler(t, nil)
	w := do(h, http.MethodGet, "/plan", map[string]string{
		"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"from":"ev-planner","status":"success","trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"}`, w.Body.String())

	s := rec.Ended()[0]
	assert.Equal(t, RoutePlan, s.Name())
	assert.Equal(t, "00f067aa0ba902b7", s.Parent().SpanID().String())
}

func TestPlan_WithoutTraceparent(t *testing.T) {
	h, rec := newHandler(t, nil)
	w := do(h, http.MethodGet, "/plan", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ev-planner", body.From)
	assert.Equal(t, "success", body.Status)
	assert.Regexp(t, hex32, body.TraceID)
	assert.NotEqual(t, "00000000000000000000000000000000", body.TraceID)
	assert.Nil(t, body.Route)
	assert.Equal(t, rec.Ended()[0].SpanContext().TraceID().String(), body.TraceID)
	assert.Equal(t, body.TraceID, w.Header().Get("X-Trace-ID"))
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h, rec := newHandler(t, nil)

	w := do(h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	s := rec.Ended()[0]
	assert.Equal(t, "HTTP GET", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)
	require.NotEmpty(t, s.Events())
	assert.Equal(t, pipeline.EventNotFound, s.Events()[0].Name)

	w = do(h, http.MethodPost, "/plan", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "HTTP POST", rec.Ended()[1].Name())
}

func TestPlan_WithRouting(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"from":"valhalla","result":"ok"}`))
	}))
	defer upstream.Close()

	h, rec := newHandler(t, func(f *xspan.Factory) *routing.Client {
		c, err := routing.New(upstream.URL+"/data", f)
		require.NoError(t, err)
		t.Cleanup(c.Close)
		return c
	})

	w := do(h, http.MethodGet, "/plan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Route)
	assert.Equal(t, "valhalla", body.Route.From)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestPlan_RoutingFailureIs502(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	h, rec := newHandler(t, func(f *xspan.Factory) *routing.Client {
		c, err := routing.New(upstream.URL, f)
		require.NoError(t, err)
		t.Cleanup(c.Close)
		return c
	})

	w := do(h, http.MethodGet, "/plan", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "routing engine unavailable")

	server := rec.Ended()[1]
	assert.Equal(t, RoutePlan, server.Name())
	assert.Equal(t, codes.Error, server.Status().Code)
}
