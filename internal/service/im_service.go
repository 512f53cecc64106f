package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/mongo"
	"Parley/internal/presence"
	"Parley/internal/repository"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IMService 即时通讯服务接口定义
type IMService interface {
	GetOrCreateConversation(ctx context.Context, externalID string, otherUserID uint64) (uint64, error)
	CreateGroupConversation(ctx context.Context, externalID string, req *dto.CreateGroupReq) (uint64, error)
	GetMyConversations(ctx context.Context, externalID string) ([]*dto.ConversationDTO, error)
	GetConversation(ctx context.Context, externalID string, convID uint64) (*dto.ConversationDTO, error)
	SendMessage(ctx context.Context, externalID string, req *dto.SendMessageReq) (string, error)
	DeleteMessage(ctx context.Context, externalID string, messageID string) error
	MarkAsRead(ctx context.Context, convID uint64, externalID string) error
	GetMessages(ctx context.Context, externalID string, convID uint64) ([]*dto.MessageDTO, error)
	GetUnreadCount(ctx context.Context, externalID string, convID uint64) (int64, error)
}

type imServiceImpl struct {
	userRepo    repository.UserRepo
	convRepo    repository.ConversationRepo
	messageRepo mongo.MessageRepo
	publisher   EventPublisher
	policy      presence.Policy
	now         func() time.Time
}

func NewIMService(userRepo repository.UserRepo, convRepo repository.ConversationRepo, messageRepo mongo.MessageRepo, publisher EventPublisher, policy presence.Policy) IMService {
	return &imServiceImpl{
		userRepo:    userRepo,
		convRepo:    convRepo,
		messageRepo: messageRepo,
		publisher:   publisher,
		policy:      policy,
		now:         time.Now,
	}
}

// GetOrCreateConversation 单聊按 peer_key 去重，同一对用户至多一个会话
func (s *imServiceImpl) GetOrCreateConversation(ctx context.Context, externalID string, otherUserID uint64) (uint64, error) {
	me, err := s.resolveUser(ctx, externalID)
	if err != nil {
		return 0, err
	}
	if otherUserID == 0 || otherUserID == me.ID {
		return 0, ErrTargetUserInvalid
	}
	other, err := s.userRepo.GetUserById(ctx, otherUserID)
	if err != nil {
		return 0, err
	}
	if other == nil {
		return 0, ErrUserNotFound
	}

	peerKey := buildPeerKey(me.ID, other.ID)
	conv, err := s.convRepo.GetConversationByPeerKey(ctx, peerKey)
	if err != nil {
		return 0, err
	}
	if conv != nil {
		return conv.ID, nil
	}

	newConv := &model.Conversation{
		IsGroup:         false,
		PeerKey:         &peerKey,
		Participants:    []uint64{me.ID, other.ID},
		LastMessageTime: s.now().UnixMilli(),
		UnreadCounts:    map[uint64]int{},
	}
	err = s.convRepo.CreateConversation(ctx, newConv)
	if err == nil {
		return newConv.ID, nil
	}
	if !errors.Is(err, repository.ErrDuplicateKey) {
		return 0, err
	}

	// 并发创建，对方已写入
	conv, err = s.convRepo.GetConversationByPeerKey(ctx, peerKey)
	if err != nil {
		return 0, err
	}
	if conv == nil {
		return 0, fmt.Errorf("conversation %s: %w", peerKey, UnExpectedError)
	}
	return conv.ID, nil
}

// CreateGroupConversation 成员为调用方加 memberIDs，去重且保持顺序
func (s *imServiceImpl) CreateGroupConversation(ctx context.Context, externalID string, req *dto.CreateGroupReq) (uint64, error) {
	me, err := s.resolveUser(ctx, externalID)
	if err != nil {
		return 0, err
	}
	groupName := strings.TrimSpace(req.GroupName)
	if groupName == "" {
		return 0, ErrParamInvalid
	}

	participants := make([]uint64, 0, len(req.MemberIDs)+1)
	seen := map[uint64]struct{}{me.ID: {}}
	participants = append(participants, me.ID)
	for _, id := range req.MemberIDs {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		participants = append(participants, id)
	}
	if len(participants) < 2 {
		return 0, ErrTargetUserInvalid
	}

	members, err := s.userRepo.GetUserByIds(ctx, participants[1:])
	if err != nil {
		return 0, err
	}
	if len(members) != len(participants)-1 {
		return 0, ErrUserNotFound
	}

	conv := &model.Conversation{
		IsGroup:         true,
		GroupName:       &groupName,
		GroupImage:      req.GroupImage,
		Participants:    participants,
		LastMessageTime: s.now().UnixMilli(),
		UnreadCounts:    map[uint64]int{},
	}
	if err = s.convRepo.CreateConversation(ctx, conv); err != nil {
		return 0, err
	}
	return conv.ID, nil
}

// GetMyConversations 按最后消息时间倒序，调用方未建档时返回空列表
func (s *imServiceImpl) GetMyConversations(ctx context.Context, externalID string) ([]*dto.ConversationDTO, error) {
	me, err := s.userRepo.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if me == nil {
		return []*dto.ConversationDTO{}, nil
	}

	convs, err := s.convRepo.GetUserConversations(ctx, me.ID)
	if err != nil {
		return nil, err
	}
	res, err := s.buildConversationDTOs(ctx, me, convs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].LastMessageTime > res[j].LastMessageTime
	})
	return res, nil
}

func (s *imServiceImpl) GetConversation(ctx context.Context, externalID string, convID uint64) (*dto.ConversationDTO, error) {
	me, conv, err := s.loadMembership(ctx, externalID, convID)
	if err != nil {
		return nil, err
	}
	res, err := s.buildConversationDTOs(ctx, me, []*model.Conversation{conv})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

// SendMessage 消息写入与未读数递增在同一事务内完成
func (s *imServiceImpl) SendMessage(ctx context.Context, externalID string, req *dto.SendMessageReq) (string, error) {
	messageType := req.MessageType
	if messageType == "" {
		messageType = mongo.MessageTypeText
	}
	if !mongo.IsValidMessageType(messageType) {
		return "", ErrMessageTypeInvalid
	}
	if strings.TrimSpace(req.Content) == "" {
		return "", ErrParamInvalid
	}

	me, conv, err := s.loadMembership(ctx, externalID, req.ConversationID)
	if err != nil {
		return "", err
	}

	now := s.now().UnixMilli()
	msg := &mongo.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: conv.ID,
		SenderID:       me.ID,
		Content:        req.Content,
		MessageType:    messageType,
		IsDeleted:      false,
		ReadBy:         []uint64{me.ID},
		CreatedAt:      now,
	}

	updated, err := s.convRepo.RecordMessage(ctx, conv.ID, me.ID, msg.ID.Hex(), now, func(ctx context.Context) error {
		return s.messageRepo.SaveMessage(ctx, msg)
	})
	if err != nil {
		return "", err
	}

	msgDTO := toMessageDTO(msg, 0, toUserDTO(me, s.policy, now))
	publishEvent(ctx, s.publisher, updated.Participants, &dto.Event{
		Type:           consts.EventMessageNew,
		ConversationID: conv.ID,
		Data:           msgDTO,
	})
	return msgDTO.ID, nil
}

// DeleteMessage 仅发送者可撤回，重复撤回不改变状态
func (s *imServiceImpl) DeleteMessage(ctx context.Context, externalID string, messageID string) error {
	me, err := s.resolveUser(ctx, externalID)
	if err != nil {
		return err
	}
	msg, err := s.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.SenderID != me.ID {
		return UnauthorizedError
	}
	if msg.IsDeleted {
		return nil
	}

	if err = s.messageRepo.MarkDeleted(ctx, messageID); err != nil {
		return err
	}

	conv, err := s.convRepo.GetConversation(ctx, msg.ConversationID)
	if err == nil && conv != nil {
		publishEvent(ctx, s.publisher, conv.Participants, &dto.Event{
			Type:           consts.EventMessageDeleted,
			ConversationID: conv.ID,
			Data:           &dto.MessageDeletedDTO{MessageID: messageID, Content: mongo.DeletedPlaceholder},
		})
	}
	return nil
}

// MarkAsRead 清零调用方未读数，并把调用方加入会话内所有消息的已读集合
func (s *imServiceImpl) MarkAsRead(ctx context.Context, convID uint64, externalID string) error {
	me, conv, err := s.loadMembership(ctx, externalID, convID)
	if err != nil {
		return err
	}
	if _, err = s.convRepo.ResetUnread(ctx, conv.ID, me.ID); err != nil {
		return err
	}
	modified, err := s.messageRepo.MarkConversationRead(ctx, conv.ID, me.ID)
	if err != nil {
		return err
	}

	if modified > 0 {
		publishEvent(ctx, s.publisher, conv.OtherParticipants(me.ID), &dto.Event{
			Type:           consts.EventReadReceipt,
			ConversationID: conv.ID,
			Data: &dto.ReadReceiptDTO{
				ConversationID: conv.ID,
				UserID:         me.ID,
				ReadAt:         s.now().UnixMilli(),
			},
		})
	}
	return nil
}

// GetMessages 按时间升序返回，附带发送者信息
func (s *imServiceImpl) GetMessages(ctx context.Context, externalID string, convID uint64) ([]*dto.MessageDTO, error) {
	me, err := s.userRepo.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if me == nil {
		return []*dto.MessageDTO{}, nil
	}
	if _, err = s.loadConversation(ctx, me, convID); err != nil {
		return nil, err
	}

	msgs, err := s.messageRepo.ListByConversation(ctx, convID)
	if err != nil {
		return nil, err
	}

	senderIDs := make([]uint64, 0)
	seen := make(map[uint64]struct{})
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	now := s.now().UnixMilli()
	senders, err := s.loadUserDTOs(ctx, senderIDs, now)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, toMessageDTO(m, me.ID, senders[m.SenderID]))
	}
	return res, nil
}

// GetUnreadCount 基于消息已读集合统计，不含自己发送的消息
func (s *imServiceImpl) GetUnreadCount(ctx context.Context, externalID string, convID uint64) (int64, error) {
	me, err := s.userRepo.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return 0, err
	}
	if me == nil {
		return 0, nil
	}
	if _, err = s.loadConversation(ctx, me, convID); err != nil {
		return 0, err
	}
	return s.messageRepo.CountUnread(ctx, convID, me.ID)
}

func (s *imServiceImpl) resolveUser(ctx context.Context, externalID string) (*model.User, error) {
	if externalID == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.userRepo.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// loadMembership 解析调用方并校验其为会话成员
func (s *imServiceImpl) loadMembership(ctx context.Context, externalID string, convID uint64) (*model.User, *model.Conversation, error) {
	me, err := s.resolveUser(ctx, externalID)
	if err != nil {
		return nil, nil, err
	}
	conv, err := s.loadConversation(ctx, me, convID)
	if err != nil {
		return nil, nil, err
	}
	return me, conv, nil
}

func (s *imServiceImpl) loadConversation(ctx context.Context, me *model.User, convID uint64) (*model.Conversation, error) {
	if convID == 0 {
		return nil, ErrConversationNotFound
	}
	conv, err := s.convRepo.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(me.ID) {
		return nil, ErrNotMember
	}
	return conv, nil
}

func (s *imServiceImpl) buildConversationDTOs(ctx context.Context, me *model.User, convs []*model.Conversation) ([]*dto.ConversationDTO, error) {
	userIDs := make([]uint64, 0)
	seen := make(map[uint64]struct{})
	msgIDs := make([]string, 0, len(convs))
	for _, c := range convs {
		for _, id := range c.OtherParticipants(me.ID) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				userIDs = append(userIDs, id)
			}
		}
		if c.LastMessageID != nil {
			msgIDs = append(msgIDs, *c.LastMessageID)
		}
	}

	now := s.now().UnixMilli()
	users, err := s.loadUserDTOs(ctx, userIDs, now)
	if err != nil {
		return nil, err
	}
	users[me.ID] = toUserDTO(me, s.policy, now)

	lastMessages, err := s.messageRepo.GetMessagesByIDs(ctx, msgIDs)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ConversationDTO, 0, len(convs))
	for _, c := range convs {
		item := &dto.ConversationDTO{
			ID:              c.ID,
			IsGroup:         c.IsGroup,
			GroupName:       c.GroupName,
			GroupImage:      c.GroupImage,
			Participants:    c.Participants,
			OtherUsers:      make([]*dto.UserDTO, 0, len(c.Participants)),
			LastMessageTime: c.LastMessageTime,
			UnreadCount:     c.UnreadCounts[me.ID],
		}
		for _, id := range c.OtherParticipants(me.ID) {
			if u, ok := users[id]; ok {
				item.OtherUsers = append(item.OtherUsers, u)
			}
		}
		if c.LastMessageID != nil {
			if m, ok := lastMessages[*c.LastMessageID]; ok {
				item.LastMessage = toMessageDTO(m, me.ID, users[m.SenderID])
			}
		}
		res = append(res, item)
	}
	return res, nil
}

func (s *imServiceImpl) loadUserDTOs(ctx context.Context, ids []uint64, now int64) (map[uint64]*dto.UserDTO, error) {
	users, err := s.userRepo.GetUserByIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	res := make(map[uint64]*dto.UserDTO, len(users)+1)
	for _, u := range users {
		res[u.ID] = toUserDTO(u, s.policy, now)
	}
	return res, nil
}

func toMessageDTO(m *mongo.Message, viewerID uint64, sender *dto.UserDTO) *dto.MessageDTO {
	return &dto.MessageDTO{
		ID:             m.ID.Hex(),
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Sender:         sender,
		Content:        m.Content,
		MessageType:    m.MessageType,
		IsDeleted:      m.IsDeleted,
		IsMe:           viewerID != 0 && m.SenderID == viewerID,
		ReadBy:         m.ReadBy,
		ReadByAll:      m.ReadByOthers(),
		CreatedAt:      m.CreatedAt,
	}
}

// buildPeerKey 单聊唯一键，小 ID 在前
func buildPeerKey(a, b uint64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}
