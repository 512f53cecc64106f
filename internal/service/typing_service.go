package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/redis"
	"Parley/internal/presence"
	"Parley/internal/repository"
	"context"
	"time"
)

// TypingService 输入状态，每个会话只保留最后一个输入者
type TypingService interface {
	SetTyping(ctx context.Context, externalID string, convID uint64, isTyping bool) error
	GetTyping(ctx context.Context, externalID string, convID uint64) (*dto.TypingDTO, error)
}

type typingServiceImpl struct {
	userRepo   repository.UserRepo
	convRepo   repository.ConversationRepo
	typingRepo redis.TypingRepo
	publisher  EventPublisher
	policy     presence.Policy
	now        func() time.Time
}

func NewTypingService(userRepo repository.UserRepo, convRepo repository.ConversationRepo, typingRepo redis.TypingRepo, publisher EventPublisher, policy presence.Policy) TypingService {
	return &typingServiceImpl{
		userRepo:   userRepo,
		convRepo:   convRepo,
		typingRepo: typingRepo,
		publisher:  publisher,
		policy:     policy,
		now:        time.Now,
	}
}

// SetTyping 整条覆盖会话的输入记录，并通知其他成员
func (s *typingServiceImpl) SetTyping(ctx context.Context, externalID string, convID uint64, isTyping bool) error {
	me, conv, err := s.loadMember(ctx, externalID, convID)
	if err != nil {
		return err
	}

	now := s.now().UnixMilli()
	state := &model.TypingState{
		ConversationID: convID,
		UserID:         externalID,
		IsTyping:       isTyping,
		UpdatedAt:      now,
	}
	if err = s.typingRepo.SetTyping(ctx, state); err != nil {
		return err
	}

	publishEvent(ctx, s.publisher, conv.OtherParticipants(me.ID), &dto.Event{
		Type:           consts.EventTyping,
		ConversationID: convID,
		Data: &dto.TypingDTO{
			User:      toUserDTO(me, s.policy, now),
			UserID:    externalID,
			IsTyping:  isTyping,
			UpdatedAt: now,
		},
	})
	return nil
}

// GetTyping 仅会话成员可查；无记录、已停止或超过输入过期窗口时返回 nil
func (s *typingServiceImpl) GetTyping(ctx context.Context, externalID string, convID uint64) (*dto.TypingDTO, error) {
	if _, _, err := s.loadMember(ctx, externalID, convID); err != nil {
		return nil, err
	}
	state, err := s.typingRepo.GetTyping(ctx, convID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}
	now := s.now().UnixMilli()
	if !s.policy.TypingActive(state.IsTyping, state.UpdatedAt, now) {
		return nil, nil
	}

	res := &dto.TypingDTO{
		UserID:    state.UserID,
		IsTyping:  state.IsTyping,
		UpdatedAt: state.UpdatedAt,
	}
	user, err := s.userRepo.GetUserByExternalID(ctx, state.UserID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		res.User = toUserDTO(user, s.policy, now)
	}
	return res, nil
}

// loadMember 校验调用者是会话成员
func (s *typingServiceImpl) loadMember(ctx context.Context, externalID string, convID uint64) (*model.User, *model.Conversation, error) {
	if externalID == "" {
		return nil, nil, UnauthorizedError
	}
	me, err := s.userRepo.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, nil, err
	}
	if me == nil {
		return nil, nil, ErrUserNotFound
	}
	conv, err := s.convRepo.GetConversation(ctx, convID)
	if err != nil {
		return nil, nil, err
	}
	if conv == nil {
		return nil, nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(me.ID) {
		return nil, nil, ErrNotMember
	}
	return me, conv, nil
}
