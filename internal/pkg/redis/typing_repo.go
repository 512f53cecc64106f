package redis

import (
	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// typingHousekeepingTTL 仅用于回收废弃的键，输入状态的过期仍在读取时判断
const typingHousekeepingTTL = time.Hour

type TypingRepo interface {
	SetTyping(ctx context.Context, state *model.TypingState) error
	GetTyping(ctx context.Context, convID uint64) (*model.TypingState, error)
}

type typingRepoImpl struct {
	rdb *redis.Client
}

func NewTypingRepo(rdb *redis.Client) TypingRepo {
	return &typingRepoImpl{rdb: rdb}
}

func typingKey(convID uint64) string {
	return consts.IMTypingKey + strconv.FormatUint(convID, 10)
}

// SetTyping 每个会话一条记录，整条覆盖
func (s *typingRepoImpl) SetTyping(ctx context.Context, state *model.TypingState) error {
	key := typingKey(state.ConversationID)
	isTyping := "0"
	if state.IsTyping {
		isTyping = "1"
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"user_id", state.UserID,
		"is_typing", isTyping,
		"updated_at", strconv.FormatInt(state.UpdatedAt, 10),
	)
	pipe.Expire(ctx, key, typingHousekeepingTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetTyping 记录不存在返回 nil
func (s *typingRepoImpl) GetTyping(ctx context.Context, convID uint64) (*model.TypingState, error) {
	values, err := s.rdb.HGetAll(ctx, typingKey(convID)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	updatedAt, err := strconv.ParseInt(values["updated_at"], 10, 64)
	if err != nil {
		return nil, nil
	}
	return &model.TypingState{
		ConversationID: convID,
		UserID:         values["user_id"],
		IsTyping:       values["is_typing"] == "1",
		UpdatedAt:      updatedAt,
	}, nil
}
