package presence

import "time"

// TypingActive 按默认阈值判断输入状态是否仍然有效
func TypingActive(isTyping bool, updatedAt, now int64) bool {
	return TypingActiveWithin(isTyping, updatedAt, now, TypingThreshold)
}

// TypingActiveWithin 客户端崩溃或离开页面时不保证有停止事件，超过 threshold 未刷新即视为已停止
func TypingActiveWithin(isTyping bool, updatedAt, now int64, threshold time.Duration) bool {
	if !isTyping {
		return false
	}
	return now-updatedAt <= threshold.Milliseconds()
}

// TypingActive 按 Policy 的阈值判断
func (p Policy) TypingActive(isTyping bool, updatedAt, now int64) bool {
	return TypingActiveWithin(isTyping, updatedAt, now, p.TypingThreshold)
}
