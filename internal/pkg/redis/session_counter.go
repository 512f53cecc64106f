package redis

import (
	"Parley/internal/pkg/consts"
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionCounterTTL 进程被强杀时计数无法递减，依靠过期兜底
const sessionCounterTTL = 2 * time.Minute

// SessionCounter 统计同一用户当前打开的实时会话数（多标签页）
type SessionCounter struct {
	rdb *redis.Client
}

func NewSessionCounter(rdb *redis.Client) *SessionCounter {
	return &SessionCounter{rdb: rdb}
}

func sessionKey(userID uint64) string {
	return consts.IMSessionsKey + strconv.FormatUint(userID, 10)
}

// Acquire 会话建立
func (s *SessionCounter) Acquire(ctx context.Context, userID uint64) (int64, error) {
	key := sessionKey(userID)
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, sessionCounterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Refresh 心跳时续期
func (s *SessionCounter) Refresh(ctx context.Context, userID uint64) error {
	return s.rdb.Expire(ctx, sessionKey(userID), sessionCounterTTL).Err()
}

// Release 会话结束，返回剩余会话数
func (s *SessionCounter) Release(ctx context.Context, userID uint64) (int64, error) {
	key := sessionKey(userID)
	n, err := s.rdb.Decr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		_ = s.rdb.Del(ctx, key).Err()
		return 0, nil
	}
	return n, nil
}
