package xid

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// =============================================================================
// 环境变量
// =============================================================================

const (
	// EnvMachineID 直接指定机器 ID 的环境变量（0-65535）
	EnvMachineID = "XID_MACHINE_ID"

	// EnvPodName K8s Pod 名称环境变量（通过 Downward API 注入）
	EnvPodName = "POD_NAME"

	// EnvHostname 主机名环境变量
	EnvHostname = "HOSTNAME"
)

// ErrNoMachineID 所有机器 ID 获取策略均失败
var ErrNoMachineID = errors.New("xid: no machine id source available")

// DefaultMachineID 获取机器 ID，按以下优先级尝试：
//
//  1. XID_MACHINE_ID 环境变量（直接指定数字 0-65535）
//  2. POD_NAME 环境变量的哈希值
//  3. HOSTNAME 环境变量的哈希值
//  4. os.Hostname() 的哈希值
func DefaultMachineID() (uint16, error) {
	if s := os.Getenv(EnvMachineID); s != "" {
		id, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("xid: invalid %s value %q: %w", EnvMachineID, s, err)
		}
		return uint16(id), nil
	}

	for _, env := range []string{EnvPodName, EnvHostname} {
		if v := os.Getenv(env); v != "" {
			return hashToMachineID(v), nil
		}
	}

	hostname, err := osHostname()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNoMachineID, err)
	}
	if hostname == "" {
		return 0, ErrNoMachineID
	}
	return hashToMachineID(hostname), nil
}

// hashToMachineID 将字符串哈希为 16 位机器 ID。
// 对 64 位 xxhash 做 XOR 折叠，比直接截断分布更均匀。
func hashToMachineID(s string) uint16 {
	h := xxhash.Sum64String(s)
	h ^= h >> 32
	h ^= h >> 16
	return uint16(h)
}
