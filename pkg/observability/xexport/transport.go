package xexport

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"google.golang.org/grpc/credentials/insecure"
)

// OTLP 传输协议，取值与 OTEL_EXPORTER_OTLP_PROTOCOL 一致
const (
	ProtocolHTTP = "http/protobuf"
	ProtocolGRPC = "grpc"
)

// TransportConfig OTLP 导出器配置
type TransportConfig struct {
	// Protocol http/protobuf（默认）或 grpc
	Protocol string
	// Endpoint 采集端地址。HTTP 为完整 URL（含 /v1/traces），gRPC 为 scheme://host:port
	Endpoint string
	// Timeout 单次请求超时
	Timeout time.Duration
	// Headers 附加请求头（如鉴权）
	Headers map[string]string
}

// NewOTLPExporter 按协议创建 OTLP span 导出器。
//
// 不会建立连接，采集端不可达时构造仍然成功，错误在导出时出现。
// 内置重试被关闭，重试和熔断由 Batcher 负责。
func NewOTLPExporter(ctx context.Context, cfg TransportConfig) (*otlptrace.Exporter, error) {
	u, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	var client otlptrace.Client
	switch strings.ToLower(strings.TrimSpace(cfg.Protocol)) {
	case "", ProtocolHTTP, "http":
		client = newHTTPClient(u, cfg)
	case ProtocolGRPC:
		client = newGRPCClient(u, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, cfg.Protocol)
	}

	exp, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("xexport: create otlp exporter: %w", err)
	}
	return exp, nil
}

func parseEndpoint(endpoint string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	return u, nil
}

func newHTTPClient(u *url.URL, cfg TransportConfig) otlptrace.Client {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(u.Host),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	}
	if u.Path != "" && u.Path != "/" {
		opts = append(opts, otlptracehttp.WithURLPath(u.Path))
	}
	if u.Scheme == "http" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(cfg.Timeout))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	return otlptracehttp.NewClient(opts...)
}

func newGRPCClient(u *url.URL, cfg TransportConfig) otlptrace.Client {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(u.Host),
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{Enabled: false}),
	}
	if u.Scheme == "http" {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.Timeout))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.NewClient(opts...)
}
