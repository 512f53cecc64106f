package api

import "Parley/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	UserHandler    *handler.UserHandler
	IMHandler      *handler.IMHandler
	WSHandler      *handler.WsHandler
	WebhookHandler *handler.WebhookHandler
	MediaHandler   *handler.MediaHandler
}
