package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Headers 附加到导出请求的头部。
//
// 环境变量格式与 OTEL_EXPORTER_OTLP_HEADERS 一致：k1=v1,k2=v2，值可以是 URL 编码。
type Headers map[string]string

// Decode 实现 envconfig.Decoder
func (h *Headers) Decode(value string) error {
	out := Headers{}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return fmt.Errorf("invalid header %q: want key=value", pair)
		}
		decoded, err := url.QueryUnescape(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid header %q: %w", pair, err)
		}
		out[k] = decoded
	}
	*h = out
	return nil
}
