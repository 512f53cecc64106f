package dto

// IdentityDTO 身份提供方同步过来的用户资料，同时作为 Kafka 消息体
type IdentityDTO struct {
	ExternalID string  `json:"external_id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	ImageURL   *string `json:"image_url,omitempty"`
}

// WebhookEvent 身份提供方回调
type WebhookEvent struct {
	Type string          `json:"type"`
	Data WebhookUserData `json:"data"`
}

// WebhookUserData user.created / user.updated 的载荷
type WebhookUserData struct {
	ID             string               `json:"id"`
	FirstName      *string              `json:"first_name"`
	LastName       *string              `json:"last_name"`
	ImageURL       *string              `json:"image_url"`
	EmailAddresses []WebhookEmailAddress `json:"email_addresses"`
}

type WebhookEmailAddress struct {
	EmailAddress string `json:"email_address"`
}
