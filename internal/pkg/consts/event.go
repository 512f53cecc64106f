package consts

// 用户频道推送事件类型
const (
	EventMessageNew     = "message.new"
	EventMessageDeleted = "message.deleted"
	EventReadReceipt    = "read_receipt"
	EventTyping         = "typing"
	EventPresence       = "presence"
)

// WebSocket 上行帧类型
const (
	FrameVisibility = "visibility"
	FrameTyping     = "typing"
	FramePing       = "ping"
)

// 身份提供方回调事件
const (
	WebhookUserCreated = "user.created"
	WebhookUserUpdated = "user.updated"
)
