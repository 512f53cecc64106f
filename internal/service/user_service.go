package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/presence"
	"Parley/internal/repository"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"
)

// UserIndex 用户目录搜索索引
type UserIndex interface {
	IndexUser(ctx context.Context, user *model.User) error
	SearchUserIDs(ctx context.Context, keyword string, excludeID uint64, limit int) ([]uint64, error)
}

type UserService interface {
	UpsertUser(ctx context.Context, identity *dto.IdentityDTO) (uint64, error)
	SetOnlineStatus(ctx context.Context, externalID string, isOnline bool) error
	GetMe(ctx context.Context, externalID string) (*dto.UserDTO, error)
	ListUsers(ctx context.Context, externalID string) ([]*dto.UserDTO, error)
	SearchUsers(ctx context.Context, externalID string, keyword string) ([]*dto.UserDTO, error)
	ResolveUser(ctx context.Context, externalID string) (*model.User, error)
	SweepStalePresence(ctx context.Context) (int64, error)
}

type UserServiceImpl struct {
	userRepo  repository.UserRepo
	convRepo  repository.ConversationRepo
	userIndex UserIndex
	publisher EventPublisher
	policy    presence.Policy
	now       func() time.Time
}

// NewUserService userIndex 为 nil 时搜索走数据库
func NewUserService(userRepo repository.UserRepo, convRepo repository.ConversationRepo, userIndex UserIndex, publisher EventPublisher, policy presence.Policy) UserService {
	return &UserServiceImpl{
		userRepo:  userRepo,
		convRepo:  convRepo,
		userIndex: userIndex,
		publisher: publisher,
		policy:    policy,
		now:       time.Now,
	}
}

// UpsertUser 首次同步创建用户，之后刷新资料；两种情况都视为上线
func (s *UserServiceImpl) UpsertUser(ctx context.Context, identity *dto.IdentityDTO) (uint64, error) {
	if identity == nil || strings.TrimSpace(identity.ExternalID) == "" {
		return 0, ErrParamInvalid
	}
	now := s.now().UnixMilli()

	user, err := s.userRepo.GetUserByExternalID(ctx, identity.ExternalID)
	if err != nil {
		return 0, err
	}

	if user == nil {
		user = &model.User{
			ExternalID: identity.ExternalID,
			Name:       identity.Name,
			Email:      identity.Email,
			ImageURL:   identity.ImageURL,
			IsOnline:   true,
			LastSeen:   now,
		}
		err = s.userRepo.CreateUser(ctx, user)
		if err == nil {
			s.indexUser(ctx, user)
			return user.ID, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return 0, err
		}
		// 并发首次同步，对方已建档，转为更新
		user, err = s.userRepo.GetUserByExternalID(ctx, identity.ExternalID)
		if err != nil {
			return 0, err
		}
		if user == nil {
			return 0, fmt.Errorf("upsert user %s: %w", identity.ExternalID, UnExpectedError)
		}
	}
	wasLive := s.policy.IsLive(user.IsOnline, user.LastSeen, now)

	if err = s.userRepo.UpdateProfile(ctx, user.ID, identity.Name, identity.Email, identity.ImageURL, now); err != nil {
		return 0, err
	}
	user.Name = identity.Name
	user.Email = identity.Email
	user.ImageURL = identity.ImageURL
	user.IsOnline = true
	if now > user.LastSeen {
		user.LastSeen = now
	}
	s.indexUser(ctx, user)

	if !wasLive {
		s.publishPresence(ctx, user.ID, true, user.LastSeen)
	}
	return user.ID, nil
}

// SetOnlineStatus 上线刷新 last_seen，离线只改标记；只有状态真正变化时才扇出
func (s *UserServiceImpl) SetOnlineStatus(ctx context.Context, externalID string, isOnline bool) error {
	user, err := s.ResolveUser(ctx, externalID)
	if err != nil {
		return err
	}
	now := s.now().UnixMilli()
	wasLive := s.policy.IsLive(user.IsOnline, user.LastSeen, now)

	if err = s.userRepo.UpdateOnlineStatus(ctx, user.ID, isOnline, now); err != nil {
		return err
	}

	if wasLive != isOnline {
		lastSeen := user.LastSeen
		if isOnline && now > lastSeen {
			lastSeen = now
		}
		s.publishPresence(ctx, user.ID, isOnline, lastSeen)
	}
	return nil
}

func (s *UserServiceImpl) GetMe(ctx context.Context, externalID string) (*dto.UserDTO, error) {
	user, err := s.ResolveUser(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return toUserDTO(user, s.policy, s.now().UnixMilli()), nil
}

// ListUsers 除自己以外的用户，调用方未建档时返回空列表
func (s *UserServiceImpl) ListUsers(ctx context.Context, externalID string) ([]*dto.UserDTO, error) {
	me, err := s.userRepo.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if me == nil {
		return []*dto.UserDTO{}, nil
	}
	users, err := s.userRepo.ListUsers(ctx, me.ID, consts.MaxUserListSize)
	if err != nil {
		return nil, err
	}
	return toUserDTOs(users, s.policy, s.now().UnixMilli()), nil
}

// SearchUsers 名称或邮箱子串匹配，忽略大小写；关键字为空等同于列表
func (s *UserServiceImpl) SearchUsers(ctx context.Context, externalID string, keyword string) ([]*dto.UserDTO, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return s.ListUsers(ctx, externalID)
	}
	me, err := s.userRepo.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if me == nil {
		return []*dto.UserDTO{}, nil
	}

	users, err := s.searchFromIndex(ctx, keyword, me.ID)
	if err != nil {
		log.WarnContext(ctx, "user index search failed, fallback to db", "err", err)
		users = nil
	}
	if users == nil {
		users, err = s.userRepo.SearchUsers(ctx, keyword, me.ID, consts.SearchLimit)
		if err != nil {
			return nil, err
		}
	}
	return toUserDTOs(users, s.policy, s.now().UnixMilli()), nil
}

// ResolveUser 按 externalId 查找用户，不存在返回 ErrUserNotFound
func (s *UserServiceImpl) ResolveUser(ctx context.Context, externalID string) (*model.User, error) {
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

// SweepStalePresence 将心跳已过期的在线标记置为离线，与存活判定使用同一边界，不修改 last_seen
func (s *UserServiceImpl) SweepStalePresence(ctx context.Context) (int64, error) {
	before := s.now().Add(-s.policy.OnlineThreshold).UnixMilli() + 1
	return s.userRepo.MarkStaleOffline(ctx, before)
}

// searchFromIndex 未配置索引时返回 nil, nil
func (s *UserServiceImpl) searchFromIndex(ctx context.Context, keyword string, excludeID uint64) ([]*model.User, error) {
	if s.userIndex == nil {
		return nil, nil
	}
	ids, err := s.userIndex.SearchUserIDs(ctx, keyword, excludeID, consts.SearchLimit)
	if err != nil {
		return nil, err
	}
	found, err := s.userRepo.GetUserByIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	// 保持索引的相关度排序
	byID := make(map[uint64]*model.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	users := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (s *UserServiceImpl) indexUser(ctx context.Context, user *model.User) {
	if s.userIndex == nil {
		return
	}
	if err := s.userIndex.IndexUser(ctx, user); err != nil {
		log.WarnContext(ctx, "index user failed", "user_id", user.ID, "err", err)
	}
}

func (s *UserServiceImpl) publishPresence(ctx context.Context, userID uint64, isOnline bool, lastSeen int64) {
	if s.convRepo == nil || s.publisher == nil {
		return
	}
	peers, err := s.convRepo.GetPeerIDs(ctx, userID)
	if err != nil {
		log.WarnContext(ctx, "load peers for presence failed", "user_id", userID, "err", err)
		return
	}
	publishEvent(ctx, s.publisher, peers, &dto.Event{
		Type: consts.EventPresence,
		Data: &dto.PresenceEventDTO{UserID: userID, IsOnline: isOnline, LastSeen: lastSeen},
	})
}
