package handler

import (
	"Parley/internal/api/dto"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/response"
	"Parley/internal/pkg/security"
	"Parley/internal/service"
	"errors"
	"io"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

const maxWebhookBody = 1 << 20

// WebhookHandler 身份提供方用户变更回调，前置校验失败直接返回 HTTP 400
type WebhookHandler struct {
	verifier *security.WebhookVerifier
	sink     service.IdentitySink
}

// NewWebhookHandler secret 为空时处理器仍可注册，但每个请求都会被拒绝
func NewWebhookHandler(secret string, sink service.IdentitySink) (*WebhookHandler, error) {
	h := &WebhookHandler{sink: sink}
	if secret == "" {
		return h, nil
	}
	verifier, err := security.NewWebhookVerifier(secret)
	if err != nil {
		return nil, err
	}
	h.verifier = verifier
	return h, nil
}

func (s *WebhookHandler) Identity(c *gin.Context) {
	ctx := c.Request.Context()
	if s.verifier == nil {
		c.String(http.StatusBadRequest, security.ErrWebhookSecretMissing.Error())
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.String(http.StatusBadRequest, "Error reading body")
		return
	}

	if err = s.verifier.Verify(payload, c.Request.Header); err != nil {
		log.WarnContext(ctx, "webhook verify failed", "err", err)
		if errors.Is(err, security.ErrWebhookHeadersMissing) {
			c.String(http.StatusBadRequest, security.ErrWebhookHeadersMissing.Error())
			return
		}
		c.String(http.StatusBadRequest, security.ErrWebhookSignatureInvalid.Error())
		return
	}

	var event dto.WebhookEvent
	if err = json.Unmarshal(payload, &event); err != nil {
		c.String(http.StatusBadRequest, "Invalid payload")
		return
	}

	switch event.Type {
	case consts.WebhookUserCreated, consts.WebhookUserUpdated:
	default:
		log.DebugContext(ctx, "webhook event ignored", "type", event.Type)
		response.Success(c, nil)
		return
	}

	if event.Data.ID == "" {
		c.String(http.StatusBadRequest, "Missing user id")
		return
	}

	identity := service.IdentityFromWebhook(&event.Data)
	if err = s.sink.Dispatch(ctx, identity); err != nil {
		log.ErrorContext(ctx, "dispatch identity failed", "external_id", identity.ExternalID, "err", err)
		c.String(http.StatusInternalServerError, "Error processing webhook")
		return
	}
	response.Success(c, nil)
}
