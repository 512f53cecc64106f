package redis

import (
	"Parley/internal/pkg/consts"
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// UserChannel 用户个人推送频道
func UserChannel(userID uint64) string {
	return consts.IMUserKey + strconv.FormatUint(userID, 10)
}

// Publisher 向用户频道扇出推送
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// PublishToUsers 同一负载发布到多个用户频道，走 pipeline
func (s *Publisher) PublishToUsers(ctx context.Context, userIDs []uint64, payload []byte) error {
	if len(userIDs) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for _, uid := range userIDs {
		pipe.Publish(ctx, UserChannel(uid), payload)
	}
	_, err := pipe.Exec(ctx)
	return err
}
