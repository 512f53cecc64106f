package repository

import (
	"Parley/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRepo interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error)
	GetConversationByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error)
	GetUserConversations(ctx context.Context, userID uint64) ([]*model.Conversation, error)
	GetPeerIDs(ctx context.Context, userID uint64) ([]uint64, error)

	RecordMessage(ctx context.Context, convID, senderID uint64, msgID string, at int64, persist func(ctx context.Context) error) (*model.Conversation, error)
	ResetUnread(ctx context.Context, convID, userID uint64) (*model.Conversation, error)
}

type conversationRepoImpl struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepoImpl{db: db}
}

// CreateConversation 开启事务创建会话及成员行，成员行与 Participants 一一对应
func (s *conversationRepoImpl) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	if conv.UnreadCounts == nil {
		conv.UnreadCounts = map[uint64]int{}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		now := time.Now()
		members := make([]*model.ConversationMember, 0, len(conv.Participants))
		for _, uid := range conv.Participants {
			members = append(members, &model.ConversationMember{
				ConversationID: conv.ID,
				UserID:         uid,
				JoinedAt:       now,
			})
		}
		return tx.Create(&members).Error
	})
	return translateError(err)
}

// GetConversation 根据会话 ID 获取会话，不存在返回 nil
func (s *conversationRepoImpl) GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).First(&conv, convID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetConversationByPeerKey 根据单聊标识获取会话，不存在返回 nil
func (s *conversationRepoImpl) GetConversationByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Where("peer_key = ?", peerKey).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetUserConversations 用户参与的全部会话
func (s *conversationRepoImpl) GetUserConversations(ctx context.Context, userID uint64) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := s.db.WithContext(ctx).Table("conversations c").
		Select("c.*").
		Joins("JOIN conversation_members m ON m.conversation_id = c.id").
		Where("m.user_id = ?", userID).
		Order("c.last_message_time DESC").
		Find(&convs).Error
	return convs, err
}

// GetPeerIDs 与用户同处任一会话的其他用户
func (s *conversationRepoImpl) GetPeerIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).Table("conversation_members m").
		Distinct("p.user_id").
		Joins("JOIN conversation_members p ON p.conversation_id = m.conversation_id").
		Where("m.user_id = ? AND p.user_id <> ?", userID, userID).
		Pluck("p.user_id", &ids).Error
	return ids, err
}

// RecordMessage 行锁内完成未读数读改写与最后消息更新，persist 在同一事务内执行，失败则整体回滚
func (s *conversationRepoImpl) RecordMessage(ctx context.Context, convID, senderID uint64, msgID string, at int64, persist func(ctx context.Context) error) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&conv, convID).Error; err != nil {
			return err
		}

		if conv.UnreadCounts == nil {
			conv.UnreadCounts = map[uint64]int{}
		}
		for _, uid := range conv.Participants {
			if uid != senderID {
				conv.UnreadCounts[uid]++
			}
		}
		conv.LastMessageID = &msgID
		conv.LastMessageTime = at

		err := tx.Model(&conv).Select("unread_counts", "last_message_id", "last_message_time").
			Updates(&conv).Error
		if err != nil {
			return err
		}

		return persist(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ResetUnread 清零用户在会话中的未读数
func (s *conversationRepoImpl) ResetUnread(ctx context.Context, convID, userID uint64) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&conv, convID).Error; err != nil {
			return err
		}
		if conv.UnreadCounts == nil {
			conv.UnreadCounts = map[uint64]int{}
		}
		if n, ok := conv.UnreadCounts[userID]; ok && n == 0 {
			return nil
		}
		conv.UnreadCounts[userID] = 0
		return tx.Model(&conv).Select("unread_counts").Updates(&conv).Error
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
