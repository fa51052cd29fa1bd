package xid

import "time"

// options 内部配置结构
type options struct {
	machineID func() (uint16, error)
	startTime time.Time
}

// Option 配置选项函数
type Option func(*options)

// WithMachineID 设置自定义机器 ID 获取函数。
//
// 默认使用 [DefaultMachineID]。函数返回错误时 Sonyflake 不可用，
// 生成器直接使用计数器路径。
func WithMachineID(fn func() (uint16, error)) Option {
	return func(c *options) {
		c.machineID = fn
	}
}

// WithStartTime 设置 Sonyflake 的纪元时间，零值使用 Sonyflake 默认值。
// 纪元晚于当前时间会导致 Sonyflake 初始化失败，生成器退化为计数器路径。
func WithStartTime(t time.Time) Option {
	return func(c *options) {
		c.startTime = t
	}
}
