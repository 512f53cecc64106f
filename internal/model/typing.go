package model

// TypingState 每个会话最多一条，后写覆盖前写；过期在读取时计算
type TypingState struct {
	ConversationID uint64 `json:"conversationId"`
	UserID         string `json:"userId"` // externalId
	IsTyping       bool   `json:"isTyping"`
	UpdatedAt      int64  `json:"updatedAt"`
}
