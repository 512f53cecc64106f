package consts

const (
	IMUserKey     = "im:user:"     // 用户个人推送频道
	IMTypingKey   = "im:typing:"   // 会话输入状态 hash
	IMSessionsKey = "im:sessions:" // 用户在线会话计数
)
