package kafka

import (
	"Parley/internal/api/config"
	"Parley/internal/service"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// ConsumerManager 管理所有 Kafka 消费者
type ConsumerManager struct {
	identityConsumer sarama.ConsumerGroup
	identityHandler  sarama.ConsumerGroupHandler
	identityTopic    string
}

// NewConsumerManager 构造函数
func NewConsumerManager(cfg *config.Config, userSvc service.UserService) (*ConsumerManager, error) {
	saramaCfg := newSaramaConfig(cfg.Kafka)

	identityConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaIdentity.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}

	return &ConsumerManager{
		identityConsumer: identityConsumer,
		identityHandler:  NewIdentityHandler(userSvc),
		identityTopic:    cfg.KafkaIdentity.Topic,
	}, nil
}

// Start 启动所有消费者，阻塞到 ctx 结束
func (m *ConsumerManager) Start(ctx context.Context) error {
	go func() {
		log.Info("Identity consumer started", "topic", m.identityTopic)
		for {
			if err := m.identityConsumer.Consume(ctx, []string{m.identityTopic}, m.identityHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for err := range m.identityConsumer.Errors() {
			log.Error("identity consumer group error", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.identityConsumer.Close(); err != nil {
		log.Error("Failed to close identity consumer", "err", err)
	}
	return nil
}
