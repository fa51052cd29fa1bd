package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/omeyang/evplanner/pkg/observability/xexport"
	"github.com/omeyang/evplanner/pkg/observability/xlog"
	"github.com/omeyang/evplanner/pkg/observability/xspan"
)

// Validate 检查配置一致性，返回所有问题的合并错误（匹配 ErrInvalid）。
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		add("server.addr %q: %v", c.Server.Addr, err)
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("server.shutdown_timeout must be positive")
	}
	if c.Service.Name == "" {
		add("service.name is empty")
	}
	if c.Exporter.Endpoint == "" {
		add("exporter.endpoint is empty")
	}
	if c.Exporter.Timeout <= 0 {
		add("exporter.timeout must be positive")
	}
	switch c.Exporter.Protocol {
	case xexport.ProtocolHTTP, xexport.ProtocolGRPC:
	default:
		add("exporter.protocol %q: want %s or %s", c.Exporter.Protocol, xexport.ProtocolHTTP, xexport.ProtocolGRPC)
	}
	if c.Batch.MaxQueueSize <= 0 {
		add("batch.max_queue_size must be positive")
	}
	if c.Batch.MaxExportBatchSize <= 0 {
		add("batch.max_export_batch_size must be positive")
	}
	if c.Batch.MaxExportBatchSize > c.Batch.MaxQueueSize {
		add("batch.max_export_batch_size %d exceeds max_queue_size %d", c.Batch.MaxExportBatchSize, c.Batch.MaxQueueSize)
	}
	if c.Batch.ScheduleDelay <= 0 {
		add("batch.schedule_delay must be positive")
	}
	if c.Batch.MaxRetries < 0 {
		add("batch.max_retries must not be negative")
	}
	if _, err := xspan.NewSampler(c.Sampler.Name, c.Sampler.Ratio); err != nil {
		add("sampler: %v", err)
	}
	if c.Metrics.Enabled && c.Metrics.Interval <= 0 {
		add("metrics.interval must be positive")
	}
	if c.Routing.URL != "" && c.Routing.Timeout <= 0 {
		add("routing.timeout must be positive")
	}
	if _, err := xlog.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		add("log.format %q: want text or json", c.Log.Format)
	}
	return errors.Join(errs...)
}
