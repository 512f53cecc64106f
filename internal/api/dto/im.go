package dto

// CreateConversationReq 发起单聊
type CreateConversationReq struct {
	OtherUserID uint64 `json:"other_user_id" binding:"required"`
}

// CreateGroupReq 创建群聊
type CreateGroupReq struct {
	GroupName  string   `json:"group_name" binding:"required" validate:"min=1,max=64"`
	MemberIDs  []uint64 `json:"member_ids" binding:"required" validate:"min=1,max=200"`
	GroupImage *string  `json:"group_image" validate:"omitempty,url"`
}

// SendMessageReq 发送消息请求体
type SendMessageReq struct {
	ConversationID uint64 `json:"conversation_id" binding:"required"`
	Content        string `json:"content" binding:"required" validate:"max=4000"`
	MessageType    string `json:"message_type"` // text / image / emoji，缺省为 text
}

// TypingReq 输入状态上报
type TypingReq struct {
	IsTyping *bool `json:"is_typing" binding:"required"`
}

// MessageDTO 消息明细响应
type MessageDTO struct {
	ID             string   `json:"id"`
	ConversationID uint64   `json:"conversation_id"`
	SenderID       uint64   `json:"sender_id"`
	Sender         *UserDTO `json:"sender,omitempty"`
	Content        string   `json:"content"`
	MessageType    string   `json:"message_type"`
	IsDeleted      bool     `json:"is_deleted"`
	IsMe           bool     `json:"is_me"`
	ReadBy         []uint64 `json:"read_by"`
	ReadByAll      bool     `json:"read_by_all"`
	CreatedAt      int64    `json:"created_at"`
}

// ConversationDTO 会话列表项 / 会话详情
type ConversationDTO struct {
	ID              uint64      `json:"id"`
	IsGroup         bool        `json:"is_group"`
	GroupName       *string     `json:"group_name,omitempty"`
	GroupImage      *string     `json:"group_image,omitempty"`
	Participants    []uint64    `json:"participants"`
	OtherUsers      []*UserDTO  `json:"other_users"`
	LastMessage     *MessageDTO `json:"last_message,omitempty"`
	LastMessageTime int64       `json:"last_message_time"`
	UnreadCount     int         `json:"unread_count"`
}

// TypingDTO 当前正在输入的用户
type TypingDTO struct {
	User      *UserDTO `json:"user"`
	UserID    string   `json:"user_id"`
	IsTyping  bool     `json:"is_typing"`
	UpdatedAt int64    `json:"updated_at"`
}

// ReadReceiptDTO 已读回执推送
type ReadReceiptDTO struct {
	ConversationID uint64 `json:"conversation_id"`
	UserID         uint64 `json:"user_id"`
	ReadAt         int64  `json:"read_at"`
}

// MessageDeletedDTO 撤回推送
type MessageDeletedDTO struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

// Event 用户频道推送包
type Event struct {
	Type           string      `json:"type"`
	ConversationID uint64      `json:"conversation_id,omitempty"`
	Data           interface{} `json:"data"`
}

// ClientFrame WebSocket 上行帧
type ClientFrame struct {
	Type           string `json:"type"` // visibility / typing / ping
	Visible        *bool  `json:"visible,omitempty"`
	ConversationID uint64 `json:"conversation_id,omitempty"`
	IsTyping       bool   `json:"is_typing,omitempty"`
}
