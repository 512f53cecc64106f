package kafka

import (
	"Parley/internal/api/config"
	"Parley/internal/api/dto"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// IdentityProducer 将身份同步事件写入队列，以 externalId 为 key 保证同一用户有序
type IdentityProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewIdentityProducer(cfg *config.Config) (*IdentityProducer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, newProducerConfig(cfg.Kafka))
	if err != nil {
		return nil, err
	}
	return newIdentityProducer(producer, cfg.KafkaIdentity.Topic), nil
}

func newIdentityProducer(producer sarama.SyncProducer, topic string) *IdentityProducer {
	return &IdentityProducer{producer: producer, topic: topic}
}

// Dispatch 实现 service.IdentitySink
func (s *IdentityProducer) Dispatch(ctx context.Context, identity *dto.IdentityDTO) error {
	value, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	partition, offset, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(identity.ExternalID),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return errors.WithMessage(err, "produce identity event")
	}
	log.DebugContext(ctx, "identity event produced", "external_id", identity.ExternalID, "partition", partition, "offset", offset)
	return nil
}

func (s *IdentityProducer) Close() error {
	return s.producer.Close()
}
