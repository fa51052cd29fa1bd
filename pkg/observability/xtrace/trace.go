package xtrace

import (
	"encoding/hex"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// W3C Traceparent 解析与生成
// =============================================================================

const (
	// traceparentLen W3C traceparent 固定长度：00-{32}-{16}-{2} = 55 字符
	traceparentLen = 55

	// supportedVersion 本包生成的 traceparent 版本
	supportedVersion = "00"

	zeroTraceID = "00000000000000000000000000000000"
	zeroSpanID  = "0000000000000000"
)

// hasTraceparentSeparators 验证 traceparent 分隔符位于正确位置。
// 调用方保证 len(s) >= 55。
func hasTraceparentSeparators(s string) bool {
	return s[2] == '-' && s[35] == '-' && s[52] == '-'
}

// validateTraceparentStructure 验证 traceparent 的结构（长度、分隔符、版本、版本长度约束）。
func validateTraceparentStructure(traceparent string) bool {
	if len(traceparent) < traceparentLen || !hasTraceparentSeparators(traceparent) {
		return false
	}
	version := traceparent[0:2]
	if !isValidTraceparentVersion(version) {
		return false
	}
	// version 00 不允许额外字段
	if version == supportedVersion {
		return len(traceparent) == traceparentLen
	}
	// 未知版本的扩展字段必须以 '-' 开头
	return len(traceparent) == traceparentLen || traceparent[traceparentLen] == '-'
}

// parseTraceparent 按固定索引切分 traceparent，避免 strings.SplitN 的堆分配。
// 输入应已 trim 并转为小写。
func parseTraceparent(traceparent string) (traceID, spanID, traceFlags string, ok bool) {
	if !validateTraceparentStructure(traceparent) {
		return "", "", "", false
	}

	traceID = traceparent[3:35]
	if !isValidTraceID(traceID) {
		return "", "", "", false
	}

	spanID = traceparent[36:52]
	if !isValidSpanID(spanID) {
		return "", "", "", false
	}

	traceFlags = traceparent[53:55]
	if !isValidTraceFlags(traceFlags) {
		return "", "", "", false
	}

	return traceID, spanID, traceFlags, true
}

// ParseTraceparent 将 traceparent 头的值解析为远端 SpanContext。
//
// 解析失败时返回 (trace.SpanContext{}, false)，不区分失败原因。
func ParseTraceparent(value string) (trace.SpanContext, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	traceIDHex, spanIDHex, flagsHex, ok := parseTraceparent(value)
	if !ok {
		return trace.SpanContext{}, false
	}

	traceID, err := trace.TraceIDFromHex(traceIDHex)
	if err != nil {
		return trace.SpanContext{}, false
	}
	spanID, err := trace.SpanIDFromHex(spanIDHex)
	if err != nil {
		return trace.SpanContext{}, false
	}
	var flags [1]byte
	if _, err := hex.Decode(flags[:], []byte(flagsHex)); err != nil {
		return trace.SpanContext{}, false
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
		// 只保留 sampled 位，其余位在 version 00 中没有定义
		TraceFlags: trace.TraceFlags(flags[0]) & trace.FlagsSampled,
		Remote:     true,
	})
	return sc, sc.IsValid()
}

// FormatTraceparent 生成 version 00 的 traceparent。
// sc 无效时返回空字符串。
//
// 无论上游使用什么版本，输出始终是 00：本包只实现 version 00 的语义。
func FormatTraceparent(sc trace.SpanContext) string {
	if !sc.IsValid() {
		return ""
	}
	traceID := sc.TraceID()
	spanID := sc.SpanID()
	flags := sc.TraceFlags() & trace.FlagsSampled

	// 使用固定大小的缓冲区减少分配，hex.Encode 输出即为小写
	var buf [traceparentLen]byte
	copy(buf[0:3], supportedVersion+"-")
	hex.Encode(buf[3:35], traceID[:])
	buf[35] = '-'
	hex.Encode(buf[36:52], spanID[:])
	buf[52] = '-'
	hex.Encode(buf[53:55], []byte{byte(flags)})
	return string(buf[:])
}

// isValidTraceparentVersion 验证 traceparent 版本格式
func isValidTraceparentVersion(version string) bool {
	if len(version) != 2 || !isValidHex(version) {
		return false
	}
	// 版本 "ff" 保留，始终无效
	return !strings.EqualFold(version, "ff")
}

// isValidTraceFlags 验证 trace-flags 格式（2个十六进制字符）
func isValidTraceFlags(flags string) bool {
	return len(flags) == 2 && isValidHex(flags)
}

// isValidHex 验证字符串是否为有效的十六进制。
// 同时接受大写和小写；ParseTraceparent 在进入这里之前已统一转成小写。
func isValidHex(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}

// isValidTraceID 验证 trace ID 格式（32位十六进制，非全零）
func isValidTraceID(id string) bool {
	if len(id) != 32 || !isValidHex(id) {
		return false
	}
	return id != zeroTraceID
}

// isValidSpanID 验证 span ID 格式（16位十六进制，非全零）
func isValidSpanID(id string) bool {
	if len(id) != 16 || !isValidHex(id) {
		return false
	}
	return id != zeroSpanID
}
