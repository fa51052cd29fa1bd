package xconf

import "github.com/knadh/koanf/v2"

// Format 配置文件格式
type Format string

const (
	// FormatYAML YAML 格式，适合挂载 K8s ConfigMap
	FormatYAML Format = "yaml"
	// FormatJSON JSON 格式
	FormatJSON Format = "json"
)

// Config 只读配置。基础取值直接使用 Client() 返回的 koanf 实例。
type Config interface {
	// Client 返回底层 koanf 实例
	Client() *koanf.Koanf

	// Unmarshal 将 path 下的配置解到 target；path 为空时解整个配置。
	// 配置中不存在的键保持 target 原值，可以先填默认值再 Unmarshal。
	Unmarshal(path string, target any) error

	// Path 返回文件路径，从字节创建时为空
	Path() string

	// Format 返回配置格式
	Format() Format
}
