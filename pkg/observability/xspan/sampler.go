package xspan

import (
	"fmt"
	"strings"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// 采样器名称
const (
	SamplerAlways       = "always"
	SamplerNever        = "never"
	SamplerRatio        = "ratio"
	SamplerParentAlways = "parent_always"
	SamplerParentRatio  = "parent_ratio"
)

// NewSampler 根据名称创建采样器。ratio 仅对 ratio 类采样器生效。
//
// always 不看上游的 sampled 标志，全部记录；需要尊重上游决定时使用 parent_* 系列。
func NewSampler(name string, ratio float64) (sdktrace.Sampler, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SamplerAlways:
		return sdktrace.AlwaysSample(), nil
	case SamplerNever:
		return sdktrace.NeverSample(), nil
	case SamplerRatio:
		if ratio < 0 || ratio > 1 {
			return nil, fmt.Errorf("%w: got %v", ErrInvalidRatio, ratio)
		}
		return sdktrace.TraceIDRatioBased(ratio), nil
	case SamplerParentAlways:
		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	case SamplerParentRatio:
		if ratio < 0 || ratio > 1 {
			return nil, fmt.Errorf("%w: got %v", ErrInvalidRatio, ratio)
		}
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSampler, name)
	}
}
