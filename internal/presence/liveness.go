// Package presence 在线状态与输入状态推断。
//
// 客户端断线时服务端往往收不到任何通知，所以"在线"不能只看存储的标志位：
// 标志位需要由最近一次心跳的时间戳佐证。输入状态同理，由写入时间推断是否过期。
// 所有过期判断都在读取时根据当前时间计算，不做后台清理。
package presence

import "time"

const (
	// HeartbeatInterval 客户端心跳周期
	HeartbeatInterval = 20 * time.Second
	// OnlineThreshold 在线判定的最大心跳间隔，必须大于 HeartbeatInterval
	OnlineThreshold = 30 * time.Second
	// TypingThreshold 输入状态的有效期，由按键驱动，与心跳无关
	TypingThreshold = 2 * time.Second
)

// Policy 一组过期阈值
type Policy struct {
	OnlineThreshold time.Duration
	TypingThreshold time.Duration
}

// DefaultPolicy 默认阈值
func DefaultPolicy() Policy {
	return Policy{
		OnlineThreshold: OnlineThreshold,
		TypingThreshold: TypingThreshold,
	}
}

// NewPolicy 毫秒配置转换为 Policy，非正数取默认值
func NewPolicy(onlineMs, typingMs int64) Policy {
	p := DefaultPolicy()
	if onlineMs > 0 {
		p.OnlineThreshold = time.Duration(onlineMs) * time.Millisecond
	}
	if typingMs > 0 {
		p.TypingThreshold = time.Duration(typingMs) * time.Millisecond
	}
	return p
}

// IsLive 按默认阈值判断用户当前是否在线，时间单位均为毫秒
func IsLive(isOnline bool, lastSeen, now int64) bool {
	return IsLiveWithin(isOnline, lastSeen, now, OnlineThreshold)
}

// IsLiveWithin isOnline 为真、lastSeen 有值且距今严格小于 threshold 时为在线
func IsLiveWithin(isOnline bool, lastSeen, now int64, threshold time.Duration) bool {
	if !isOnline || lastSeen <= 0 {
		return false
	}
	return now-lastSeen < threshold.Milliseconds()
}

// IsLive 按 Policy 的阈值判断
func (p Policy) IsLive(isOnline bool, lastSeen, now int64) bool {
	return IsLiveWithin(isOnline, lastSeen, now, p.OnlineThreshold)
}
