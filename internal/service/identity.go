package service

import (
	"Parley/internal/api/dto"
	"context"
	"strings"
)

// IdentitySink 身份同步事件的投递目标
type IdentitySink interface {
	Dispatch(ctx context.Context, identity *dto.IdentityDTO) error
}

// directIdentitySink 未配置消息队列时直接落库
type directIdentitySink struct {
	userService UserService
}

func NewDirectIdentitySink(userService UserService) IdentitySink {
	return &directIdentitySink{userService: userService}
}

func (s *directIdentitySink) Dispatch(ctx context.Context, identity *dto.IdentityDTO) error {
	_, err := s.userService.UpsertUser(ctx, identity)
	return err
}

// IdentityFromWebhook 姓名由名和姓拼接，缺省时退回邮箱；邮箱取第一个地址
func IdentityFromWebhook(data *dto.WebhookUserData) *dto.IdentityDTO {
	email := ""
	if len(data.EmailAddresses) > 0 {
		email = data.EmailAddresses[0].EmailAddress
	}
	parts := make([]string, 0, 2)
	for _, p := range []*string{data.FirstName, data.LastName} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	name := strings.Join(parts, " ")
	if name == "" {
		name = email
	}
	return &dto.IdentityDTO{
		ExternalID: data.ID,
		Name:       name,
		Email:      email,
		ImageURL:   data.ImageURL,
	}
}
