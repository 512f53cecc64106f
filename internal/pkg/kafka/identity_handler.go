package kafka

import (
	"Parley/internal/api/dto"
	"Parley/internal/service"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// IdentityHandler 消费身份同步事件并落库
type IdentityHandler struct {
	userSvc service.UserService
}

func NewIdentityHandler(userSvc service.UserService) *IdentityHandler {
	return &IdentityHandler{
		userSvc: userSvc,
	}
}

func (s *IdentityHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("identity consumer setup")
	return nil
}

func (s *IdentityHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("identity consumer cleanup")
	return nil
}

func (s *IdentityHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log.Info("topic-identity consume claim")
	err := pullMessageBatch(session, claim, s.logic)
	if err != nil {
		log.Error("process batch error", "err", err)
		return err
	}
	log.Info("topic-identity consume claim end")
	return nil
}

func (s *IdentityHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	identity, err := decodeIdentity(msg)
	if err != nil {
		return err
	}
	_, err = s.userSvc.UpsertUser(ctx, identity)
	if errors.Is(err, service.ErrParamInvalid) {
		return errors.WithMessage(ErrMalformedMessage, err.Error())
	}
	return errors.WithMessagef(err, "upsert identity %s", identity.ExternalID)
}

func decodeIdentity(msg *sarama.ConsumerMessage) (*dto.IdentityDTO, error) {
	var identity dto.IdentityDTO
	if err := json.Unmarshal(msg.Value, &identity); err != nil {
		return nil, errors.WithMessage(ErrMalformedMessage, err.Error())
	}
	if identity.ExternalID == "" {
		identity.ExternalID = string(msg.Key)
	}
	if identity.ExternalID == "" {
		return nil, errors.WithMessage(ErrMalformedMessage, "missing external_id")
	}
	return &identity, nil
}
