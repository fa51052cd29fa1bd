package xid

import (
	"encoding/binary"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sony/sonyflake/v2"
)

// 测试注入点
var (
	osHostname = os.Hostname
	osGetpid   = os.Getpid
	timeNow    = time.Now
)

// counterMix 奇数常量，乘法在 mod 2^64 下是双射，用于打散计数器的低位
const counterMix = 0x9E3779B97F4A7C15

// Generator 本地唯一 ID 生成器。
//
// 所有方法并发安全。零值不可用，请使用 NewGenerator 创建。
type Generator struct {
	fingerprint uint64
	counter     atomic.Uint64
	// next 生成下一个 Sonyflake ID；Sonyflake 初始化失败时为 nil
	next func() (int64, error)
}

// NewGenerator 创建生成器。
//
// 从不返回错误：Sonyflake 初始化失败时生成器仍然可用，只是走计数器路径。
// 可通过 [Generator.SonyflakeEnabled] 判断实际使用的路径。
func NewGenerator(opts ...Option) *Generator {
	cfg := &options{machineID: DefaultMachineID}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	g := &Generator{fingerprint: processFingerprint()}

	machineIDFn := cfg.machineID
	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: cfg.startTime,
		MachineID: func() (int, error) {
			id, err := machineIDFn()
			return int(id), err
		},
	})
	if err == nil {
		g.next = sf.NextID
	}
	return g
}

// SonyflakeEnabled 返回生成器是否使用 Sonyflake 路径
func (g *Generator) SonyflakeEnabled() bool {
	return g.next != nil
}

// Uint64 返回一个非零的进程内唯一 64 位值。
func (g *Generator) Uint64() uint64 {
	if g.next != nil {
		if id, err := g.next(); err == nil && id > 0 {
			if v := uint64(id) ^ g.fingerprint; v != 0 {
				return v
			}
		}
	}
	return g.fromCounter()
}

// fromCounter 计数器路径，不依赖时钟和外部状态
func (g *Generator) fromCounter() uint64 {
	for {
		v := (g.counter.Add(1) * counterMix) ^ g.fingerprint
		if v != 0 {
			return v
		}
	}
}

// SpanID 返回 8 字节 span ID，保证非零
func (g *Generator) SpanID() [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], g.Uint64())
	return b
}

// TraceID 返回 16 字节 trace ID，保证非零。
// 高 8 字节是进程指纹，低 8 字节是 Uint64。
func (g *Generator) TraceID() [16]byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], g.fingerprint)
	binary.BigEndian.PutUint64(b[8:], g.Uint64())
	return b
}

// processFingerprint 计算进程指纹：主机名、PID 和启动时间的 xxhash。
func processFingerprint() uint64 {
	d := xxhash.New()
	if host, err := osHostname(); err == nil {
		_, _ = d.WriteString(host)
	}
	_, _ = d.WriteString("/")
	_, _ = d.WriteString(strconv.Itoa(osGetpid()))
	_, _ = d.WriteString("/")
	_, _ = d.WriteString(strconv.FormatInt(timeNow().UnixNano(), 10))
	return d.Sum64()
}
