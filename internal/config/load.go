package config

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/omeyang/evplanner/pkg/config/xconf"
)

var (
	// ErrInvalid 配置校验失败
	ErrInvalid = errors.New("config: invalid")
)

// Load 依次叠加默认值、配置文件（path 为空时跳过）和环境变量，然后校验。
//
// 环境变量只覆盖已设置的项，未设置的保持文件或默认值。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := xconf.New(path)
		if err != nil {
			return nil, fmt.Errorf("config: load file: %w", err)
		}
		if err := file.Unmarshal("", &cfg); err != nil {
			return nil, fmt.Errorf("config: load file: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
