// Package server 注册 ev-planner 的 HTTP 路由，并用请求管线包住整个路由器。
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/evplanner/internal/pipeline"
	"github.com/omeyang/evplanner/internal/routing"
	"github.com/omeyang/evplanner/pkg/observability/xlog"
	"github.com/omeyang/evplanner/pkg/observability/xmetrics"
	"github.com/omeyang/evplanner/pkg/observability/xspan"
)

// 路由模板
const (
	RouteHealth = "/health"
	RoutePlan   = "/plan"
)

// ErrEmptyServiceName Deps.ServiceName 为空
var ErrEmptyServiceName = errors.New("server: empty service name")

// Deps 构造处理器所需的依赖。Routing 可为 nil，此时 /plan 不调用下游。
type Deps struct {
	Factory     *xspan.Factory
	HTTPMetrics *xmetrics.HTTPMetrics
	Routing     *routing.Client
	ServiceName string
	Logger      xlog.Logger
}

// PlanResponse /plan 的响应体
type PlanResponse struct {
	From    string         `json:"from"`
	Status  string         `json:"status"`
	TraceID string         `json:"trace_id"`
	Route   *routing.Route `json:"route,omitempty"`
}

// NewHandler 返回带请求管线的根处理器
func NewHandler(d Deps) (http.Handler, error) {
	if d.ServiceName == "" {
		return nil, ErrEmptyServiceName
	}
	if d.Logger == nil {
		d.Logger = xlog.Discard()
	}

	r := mux.NewRouter()
	r.HandleFunc(RouteHealth, health).Methods(http.MethodGet)
	r.Handle(RoutePlan, pipeline.Handle(planHandler(d))).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(http.NotFound)

	p, err := pipeline.New(d.Factory,
		pipeline.WithRouteNamer(routeNamer(r)),
		pipeline.WithMetrics(d.HTTPMetrics),
		pipeline.WithLogger(d.Logger),
	)
	if err != nil {
		return nil, err
	}
	return p.Middleware(r), nil
}

// routeNamer 在路由前用 Match 解析路由模板，供管线命名 span
func routeNamer(r *mux.Router) pipeline.RouteNamer {
	return func(req *http.Request) string {
		var m mux.RouteMatch
		if !r.Match(req, &m) || m.Route == nil || m.MatchErr != nil {
			return ""
		}
		tpl, err := m.Route.GetPathTemplate()
		if err != nil {
			return ""
		}
		return tpl
	}
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "OK")
}

func planHandler(d Deps) pipeline.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		ctx := r.Context()
		resp := PlanResponse{
			From:    d.ServiceName,
			Status:  "success",
			TraceID: trace.SpanContextFromContext(ctx).TraceID().String(),
		}
		d.Logger.Debug(ctx, "handling plan request")

		if d.Routing != nil {
			route, err := d.Routing.Fetch(ctx)
			if err != nil {
				return err
			}
			resp.Route = &route
		}

		w.Header().Set("Content-Type", "application/json")
		return json.NewEncoder(w).Encode(resp)
	}
}
