package kafka

import (
	"Parley/internal/pkg/logger"
	"context"
	log "log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

const (
	batchSize    = 32
	batchTimeout = 1 * time.Second
)

// ErrMalformedMessage 消息体无法解析，重试没有意义，记录后跳过
var ErrMalformedMessage = errors.New("malformed message")

type LogicFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// pullMessageBatch 拉取一批消息并执行业务逻辑
func pullMessageBatch(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim, logic LogicFunc) error {
	batch := make([]*sarama.ConsumerMessage, 0, batchSize)
	ticker := time.NewTicker(batchTimeout)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				if len(batch) > 0 {
					processBatch(session, batch, logic)
				}
				return nil
			}
			batch = append(batch, msg)
			if len(batch) >= batchSize {
				processBatch(session, batch, logic)
				// 清空缓冲区 & 重值定时器
				batch = make([]*sarama.ConsumerMessage, 0, batchSize)
				ticker.Reset(batchTimeout)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				processBatch(session, batch, logic)
				batch = make([]*sarama.ConsumerMessage, 0, batchSize)
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// processBatch 按消息 key 分组：同一用户的事件串行保证先后顺序，不同用户之间并发
func processBatch(session sarama.ConsumerGroupSession, messages []*sarama.ConsumerMessage, logic LogicFunc) {
	var wg sync.WaitGroup

	for _, group := range groupByKey(messages) {
		wg.Add(1)

		go func(ms []*sarama.ConsumerMessage) {
			defer wg.Done()
			for _, m := range ms {
				ctx := logger.WithTraceID(session.Context(), "mq-")
				runWithRetry(ctx, m, logic)
			}
		}(group)
	}

	wg.Wait()

	if len(messages) > 0 {
		lastMsg := messages[len(messages)-1]
		session.MarkMessage(lastMsg, "")
		session.Commit()
	}
}

// groupByKey 保持组内相对顺序
func groupByKey(messages []*sarama.ConsumerMessage) [][]*sarama.ConsumerMessage {
	index := make(map[string]int, len(messages))
	groups := make([][]*sarama.ConsumerMessage, 0, len(messages))
	for _, m := range messages {
		k := string(m.Key)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], m)
	}
	return groups
}

// runWithRetry 指数退避重试直到成功、消息无法解析或会话结束
func runWithRetry(ctx context.Context, m *sarama.ConsumerMessage, logic LogicFunc) {
	var retryInterval = 100 * time.Millisecond

	for {
		err := logic(ctx, m)
		if err == nil {
			return
		}
		if errors.Is(err, ErrMalformedMessage) {
			log.WarnContext(ctx, "skip malformed message", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "err", err)
			return
		}

		log.ErrorContext(ctx, "process message error", "topic", m.Topic, "offset", m.Offset, "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryInterval):
		}

		retryInterval *= 2
		if retryInterval > 5*time.Second {
			retryInterval = 5 * time.Second
		}
	}
}
