// Package xconf 基于 koanf 加载 YAML/JSON 配置文件。
//
// 只负责文件层，环境变量和命令行参数由调用方在其后覆盖：
//
//	cfg := defaults()
//	c, err := xconf.New("/etc/evplanner/config.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := c.Unmarshal("", &cfg); err != nil {
//	    return err
//	}
package xconf
