package security

import (
	"errors"
	"fmt"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"
)

var (
	ErrWebhookSecretMissing    = errors.New("Missing webhook secret")
	ErrWebhookHeadersMissing   = errors.New("Missing svix headers")
	ErrWebhookSignatureInvalid = errors.New("Invalid webhook signature")
)

// WebhookHeaders 签名校验必需的请求头
var WebhookHeaders = []string{"svix-id", "svix-timestamp", "svix-signature"}

// WebhookVerifier 身份提供方回调签名校验
type WebhookVerifier struct {
	wh *svix.Webhook
}

func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	if secret == "" {
		return nil, ErrWebhookSecretMissing
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("init webhook verifier: %w", err)
	}
	return &WebhookVerifier{wh: wh}, nil
}

// Verify 请求头缺失或签名不符都拒绝
func (v *WebhookVerifier) Verify(payload []byte, headers http.Header) error {
	for _, h := range WebhookHeaders {
		if headers.Get(h) == "" {
			return ErrWebhookHeadersMissing
		}
	}
	if err := v.wh.Verify(payload, headers); err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookSignatureInvalid, err)
	}
	return nil
}
