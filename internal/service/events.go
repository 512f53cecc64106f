package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/model"
	"Parley/internal/presence"
	"context"
	log "log/slog"

	"github.com/goccy/go-json"
	"github.com/jinzhu/copier"
)

// EventPublisher 用户频道推送
type EventPublisher interface {
	PublishToUsers(ctx context.Context, userIDs []uint64, payload []byte) error
}

// publishEvent 推送失败只记日志，不影响主流程
func publishEvent(ctx context.Context, pub EventPublisher, userIDs []uint64, event *dto.Event) {
	if pub == nil || len(userIDs) == 0 {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.ErrorContext(ctx, "marshal event failed", "type", event.Type, "err", err)
		return
	}
	if err = pub.PublishToUsers(ctx, userIDs, payload); err != nil {
		log.WarnContext(ctx, "publish event failed", "type", event.Type, "users", len(userIDs), "err", err)
	}
}

func toUserDTO(user *model.User, policy presence.Policy, now int64) *dto.UserDTO {
	res := &dto.UserDTO{}
	_ = copier.Copy(res, user)
	res.IsOnline = policy.IsLive(user.IsOnline, user.LastSeen, now)
	return res
}

func toUserDTOs(users []*model.User, policy presence.Policy, now int64) []*dto.UserDTO {
	res := make([]*dto.UserDTO, 0, len(users))
	for _, u := range users {
		res = append(res, toUserDTO(u, policy, now))
	}
	return res
}
