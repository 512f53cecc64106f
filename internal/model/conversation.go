package model

import "time"

// Conversation 会话主表
type Conversation struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	IsGroup         bool           `gorm:"type:tinyint(1);not null;default:0" json:"isGroup"`
	PeerKey         *string        `gorm:"uniqueIndex;type:varchar(64)" json:"peerKey"` // 单聊 uid1_uid2，群聊为空
	GroupName       *string        `gorm:"type:varchar(128)" json:"groupName"`
	GroupImage      *string        `gorm:"type:varchar(512)" json:"groupImage"`
	Participants    []uint64       `gorm:"serializer:json;type:json" json:"participants"`
	LastMessageID   *string        `gorm:"type:varchar(32)" json:"lastMessageId"`
	LastMessageTime int64          `gorm:"not null;default:0;index" json:"lastMessageTime"`
	UnreadCounts    map[uint64]int `gorm:"serializer:json;type:json" json:"unreadCounts"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (Conversation) TableName() string { return "conversations" }

// OtherParticipants 除 userID 以外的成员
func (c *Conversation) OtherParticipants(userID uint64) []uint64 {
	res := make([]uint64, 0, len(c.Participants))
	for _, id := range c.Participants {
		if id != userID {
			res = append(res, id)
		}
	}
	return res
}

// HasParticipant 是否为会话成员
func (c *Conversation) HasParticipant(userID uint64) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// ConversationMember 会话成员表，与 Participants 一一对应
type ConversationMember struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"uniqueIndex:idx_conv_user" json:"conversationId"`
	UserID         uint64    `gorm:"uniqueIndex:idx_conv_user;index" json:"userId"`
	JoinedAt       time.Time `json:"joinedAt"`
}

func (ConversationMember) TableName() string { return "conversation_members" }
