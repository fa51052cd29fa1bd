package xexport

import "errors"

var (
	// ErrNilExporter 导出器为 nil
	ErrNilExporter = errors.New("xexport: exporter cannot be nil")

	// ErrUnknownProtocol 不支持的 OTLP 协议
	ErrUnknownProtocol = errors.New("xexport: unknown otlp protocol")

	// ErrInvalidEndpoint 采集端地址无法解析
	ErrInvalidEndpoint = errors.New("xexport: invalid collector endpoint")
)
