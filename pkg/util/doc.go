// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xid: 分布式唯一 ID，基于 sonyflake，时钟回拨等失败场景降级为随机数加 xxhash
package util
