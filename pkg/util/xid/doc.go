// Package xid 为链路追踪提供不依赖系统熵源的本地唯一 ID。
//
// # 设计理念
//
// trace-id/span-id 正常由 crypto/rand 生成。当熵源读取失败时（容器 seccomp
// 限制、早期启动阶段等），xid 保证仍能拿到语法合法、进程内唯一的 ID：
//   - 首选 Sonyflake：时间戳 + 序列号 + 机器 ID，进程内单调且唯一
//   - 再退化为原子计数器：Sonyflake 不可用（初始化失败或时间分量溢出）时使用
//
// 每个 ID 都与进程指纹（主机名、PID、启动时间的 xxhash）做异或，
// 使共享同一机器 ID 的多个进程产生的 ID 仍然不同。
// 异或常量是双射，不破坏单个进程内的唯一性。
//
// # ID 结构
//
//	Uint64  : sonyflake(63 bits) ^ 指纹，保证非零
//	TraceID : [指纹(8 字节)][Uint64(8 字节)]
//	SpanID  : Uint64
//
// # 机器 ID 获取策略
//
//  1. XID_MACHINE_ID 环境变量（直接指定数字 0-65535）
//  2. POD_NAME 环境变量的哈希值（K8s Downward API）
//  3. HOSTNAME 环境变量的哈希值
//  4. os.Hostname() 的哈希值
//
// 全部失败时使用 0。哈希方式存在碰撞概率，但 ID 与进程指纹混合后，
// 碰撞只会退化为"概率唯一"，不会产生非法 ID。
package xid
