package repository

import (
	"Parley/internal/model"
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

type UserRepo interface {
	GetUserById(ctx context.Context, id uint64) (*model.User, error)
	GetUserByIds(ctx context.Context, ids []uint64) ([]*model.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UpdateProfile(ctx context.Context, id uint64, name, email string, imageURL *string, lastSeen int64) error
	UpdateOnlineStatus(ctx context.Context, id uint64, isOnline bool, lastSeen int64) error
	ListUsers(ctx context.Context, excludeID uint64, limit int) ([]*model.User, error)
	SearchUsers(ctx context.Context, keyword string, excludeID uint64, limit int) ([]*model.User, error)
	MarkStaleOffline(ctx context.Context, before int64) (int64, error)
}

type UserRepoImpl struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepo {
	return &UserRepoImpl{db: db}
}

func (s *UserRepoImpl) GetUserById(ctx context.Context, id uint64) (*model.User, error) {
	user := &model.User{}
	result := s.db.WithContext(ctx).First(user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return user, nil
}

func (s *UserRepoImpl) GetUserByIds(ctx context.Context, ids []uint64) ([]*model.User, error) {
	users := make([]*model.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	result := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

func (s *UserRepoImpl) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	user := &model.User{}
	result := s.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return user, nil
}

func (s *UserRepoImpl) CreateUser(ctx context.Context, user *model.User) error {
	return translateError(s.db.WithContext(ctx).Create(user).Error)
}

// UpdateProfile 身份同步：刷新资料并视为上线
func (s *UserRepoImpl) UpdateProfile(ctx context.Context, id uint64, name, email string, imageURL *string, lastSeen int64) error {
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"name":      name,
			"email":     email,
			"image_url": imageURL,
			"is_online": true,
			"last_seen": gorm.Expr("GREATEST(last_seen, ?)", lastSeen),
		}).Error
}

// UpdateOnlineStatus 上线时 last_seen 只增不减，离线时保留最后一次在线时间
func (s *UserRepoImpl) UpdateOnlineStatus(ctx context.Context, id uint64, isOnline bool, lastSeen int64) error {
	updates := map[string]interface{}{"is_online": isOnline}
	if isOnline {
		updates["last_seen"] = gorm.Expr("GREATEST(last_seen, ?)", lastSeen)
	}
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *UserRepoImpl) ListUsers(ctx context.Context, excludeID uint64, limit int) ([]*model.User, error) {
	users := make([]*model.User, 0)
	result := s.db.WithContext(ctx).
		Where("id <> ?", excludeID).
		Order("name asc").
		Limit(limit).
		Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

// SearchUsers 按名称或邮箱模糊匹配，忽略大小写
func (s *UserRepoImpl) SearchUsers(ctx context.Context, keyword string, excludeID uint64, limit int) ([]*model.User, error) {
	users := make([]*model.User, 0)
	pattern := "%" + escapeLike(strings.ToLower(keyword)) + "%"
	result := s.db.WithContext(ctx).
		Where("id <> ?", excludeID).
		Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern).
		Order("name asc").
		Limit(limit).
		Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

// MarkStaleOffline 将心跳已过期但仍标记在线的用户置为离线，不修改 last_seen
func (s *UserRepoImpl) MarkStaleOffline(ctx context.Context, before int64) (int64, error) {
	result := s.db.WithContext(ctx).Model(&model.User{}).
		Where("is_online = ? AND last_seen < ?", true, before).
		Update("is_online", false)
	return result.RowsAffected, result.Error
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
