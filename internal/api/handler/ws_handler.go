package handler

import (
	"Parley/internal/api/dto"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/redis"
	"Parley/internal/pkg/response"
	"Parley/internal/pkg/security"
	"Parley/internal/presence"
	"Parley/internal/service"
	"context"
	log "log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait    = 10 * time.Second
	wsMaxFrameSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionTracker 同一用户的实时会话计数，*redis.SessionCounter 实现
type SessionTracker interface {
	Acquire(ctx context.Context, userID uint64) (int64, error)
	Refresh(ctx context.Context, userID uint64) error
	Release(ctx context.Context, userID uint64) (int64, error)
}

type WsHandler struct {
	userSvc   service.UserService
	typingSvc service.TypingService
	sessions  SessionTracker
	interval  time.Duration
}

func NewWsHandler(userSvc service.UserService, typingSvc service.TypingService, sessions SessionTracker, interval time.Duration) *WsHandler {
	return &WsHandler{
		userSvc:   userSvc,
		typingSvc: typingSvc,
		sessions:  sessions,
		interval:  interval,
	}
}

// Connect 建立推送通道，同时作为该客户端的在线会话：连接即上线，断开即离线
func (s *WsHandler) Connect(c *gin.Context) {
	// 鉴权
	token := c.Query("token")
	if token == "" {
		response.Error(c, service.UnauthorizedError)
		return
	}
	claims, err := security.ValidateToken(token)
	if err != nil {
		log.WarnContext(c.Request.Context(), "WS 鉴权失败", "err", err)
		response.Error(c, service.UnauthorizedError)
		return
	}
	externalID := claims.Subject

	user, err := s.userSvc.ResolveUser(c.Request.Context(), externalID)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "WS 协议升级失败", "err", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	// 升级后请求 ctx 不再随连接关闭而取消，保留 trace 信息另起生命周期
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	sess := &wsSession{
		handler:    s,
		conn:       conn,
		userID:     user.ID,
		externalID: externalID,
	}
	sess.run(ctx)
}

type wsSession struct {
	handler    *WsHandler
	conn       *websocket.Conn
	userID     uint64
	externalID string

	writeMu   sync.Mutex
	remaining int64
}

func (s *wsSession) run(ctx context.Context) {
	// 计数失败时不参与 Release，避免扣掉其他标签页的会话
	acquired := true
	if _, err := s.handler.sessions.Acquire(ctx, s.userID); err != nil {
		acquired = false
		log.WarnContext(ctx, "session acquire failed", "user_id", s.userID, "err", err)
	}

	emitter := presence.NewEmitter(s.writeStatus,
		presence.WithInterval(s.handler.interval),
		presence.WithKeepOnline(func(ctx context.Context) bool { return s.remaining > 0 }),
		presence.WithLogAttrs("user_id", s.userID),
	)
	if err := emitter.Start(ctx); err != nil {
		log.ErrorContext(ctx, "presence emitter start failed", "user_id", s.userID, "err", err)
		return
	}
	defer func() {
		// 其他会话数未知时按无处理，照常写离线，由其他标签页的下一次心跳恢复
		s.remaining = 0
		if acquired {
			remaining, err := s.handler.sessions.Release(ctx, s.userID)
			if err != nil {
				log.WarnContext(ctx, "session release failed", "user_id", s.userID, "err", err)
			}
			s.remaining = remaining
		}
		emitter.Stop(ctx)
	}()

	// 订阅 Redis 总线
	pubsub := redis.Subscribe(ctx, redis.UserChannel(s.userID))
	defer func() {
		_ = pubsub.Close()
	}()

	log.InfoContext(ctx, "用户 WS 连接已建立", "user_id", s.userID)

	stopChan := make(chan struct{})

	// 读循环：处理上行帧并监听客户端断开
	go func() {
		defer close(stopChan)
		s.conn.SetReadLimit(wsMaxFrameSize)
		for {
			_, data, err := s.conn.ReadMessage()
			if err != nil {
				return
			}
			s.handleFrame(ctx, emitter, data)
		}
	}()

	// 写循环：监听 Redis 并推送至客户端
	redisCh := pubsub.Channel()
	for {
		select {
		case msg, ok := <-redisCh:
			if !ok {
				return
			}
			if err := s.write([]byte(msg.Payload)); err != nil {
				log.WarnContext(ctx, "WS 推送失败", "user_id", s.userID, "err", err)
				return
			}
		case <-stopChan:
			log.InfoContext(ctx, "用户 WS 连接已断开", "user_id", s.userID)
			return
		}
	}
}

func (s *wsSession) handleFrame(ctx context.Context, emitter *presence.Emitter, data []byte) {
	var frame dto.ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.DebugContext(ctx, "ignore malformed ws frame", "user_id", s.userID, "err", err)
		return
	}

	switch frame.Type {
	case consts.FrameVisibility:
		if frame.Visible == nil {
			return
		}
		if *frame.Visible {
			emitter.Visible(ctx)
		} else {
			emitter.Hidden(ctx)
		}
	case consts.FrameTyping:
		if frame.ConversationID == 0 {
			return
		}
		if err := s.handler.typingSvc.SetTyping(ctx, s.externalID, frame.ConversationID, frame.IsTyping); err != nil {
			log.WarnContext(ctx, "ws typing failed", "user_id", s.userID, "conversation_id", frame.ConversationID, "err", err)
		}
	case consts.FramePing:
		if err := s.write([]byte(`{"type":"pong"}`)); err != nil {
			log.DebugContext(ctx, "ws pong failed", "user_id", s.userID, "err", err)
		}
	}
}

// writeStatus 心跳上报：写库并续期会话计数
func (s *wsSession) writeStatus(ctx context.Context, online bool) error {
	if err := s.handler.userSvc.SetOnlineStatus(ctx, s.externalID, online); err != nil {
		return err
	}
	if online {
		return s.handler.sessions.Refresh(ctx, s.userID)
	}
	return nil
}

// write gorilla 连接不支持并发写
func (s *wsSession) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}
