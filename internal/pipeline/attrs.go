package pipeline

// span 属性名
const (
	AttrHTTPMethod        = "http.method"
	AttrHTTPTarget        = "http.target"
	AttrHTTPRoute         = "http.route"
	AttrHTTPHost          = "http.host"
	AttrRequestID         = "request.id"
	AttrHeaderTraceparent = "http.header.traceparent"
	AttrHTTPStatusCode    = "http.status_code"
	AttrServerDuration    = "http.server.duration_ms"
	AttrError             = "error"
)

// EventNotFound 404 响应时添加的 span 事件
const EventNotFound = "resource not found"
