package mongo

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeEmoji = "emoji"
)

// DeletedPlaceholder 撤回后的固定展示内容
const DeletedPlaceholder = "This message was deleted"

// Message MongoDB 消息明细模型
type Message struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	ConversationID uint64             `bson:"conversation_id" json:"conversationId"` // 关联 MySQL 的会话 ID
	SenderID       uint64             `bson:"sender_id" json:"senderId"`
	Content        string             `bson:"content" json:"content"`
	MessageType    string             `bson:"message_type" json:"messageType"` // text | image | emoji
	IsDeleted      bool               `bson:"is_deleted" json:"isDeleted"`     // 软删除，不可恢复
	ReadBy         []uint64           `bson:"read_by" json:"readBy"`           // 创建时即包含发送者
	CreatedAt      int64              `bson:"created_at" json:"createdAt"`     // 毫秒时间戳
}

// IsValidMessageType 消息类型校验
func IsValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeEmoji:
		return true
	}
	return false
}

// ReadByOthers 除发送者外至少有一人已读
func (m *Message) ReadByOthers() bool {
	return len(m.ReadBy) > 1
}

// HasRead 用户是否已读
func (m *Message) HasRead(userID uint64) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
