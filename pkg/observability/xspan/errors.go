package xspan

import "errors"

var (
	// ErrEmptyServiceName 服务名为空
	ErrEmptyServiceName = errors.New("xspan: empty service name")

	// ErrUnknownSampler 不支持的采样器名称
	ErrUnknownSampler = errors.New("xspan: unknown sampler")

	// ErrInvalidRatio 采样比例不在 [0, 1] 区间
	ErrInvalidRatio = errors.New("xspan: sample ratio must be within [0, 1]")
)
