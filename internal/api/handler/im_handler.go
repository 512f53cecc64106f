package handler

import (
	"Parley/internal/api/dto"
	"Parley/internal/api/middleware"
	"Parley/internal/pkg/response"
	"Parley/internal/pkg/util"
	"Parley/internal/service"
	"strings"

	"github.com/gin-gonic/gin"
)

type IMHandler struct {
	imService     service.IMService
	typingService service.TypingService
}

func NewIMHandler(imService service.IMService, typingService service.TypingService) *IMHandler {
	return &IMHandler{imService: imService, typingService: typingService}
}

// CreateConversation 获取或创建私聊会话
func (s *IMHandler) CreateConversation(c *gin.Context) {
	var req dto.CreateConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	convID, err := s.imService.GetOrCreateConversation(c.Request.Context(), middleware.ExternalID(c), req.OtherUserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"conversation_id": convID})
}

// CreateGroup 创建群聊
func (s *IMHandler) CreateGroup(c *gin.Context) {
	var req dto.CreateGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Fail(c, response.BadRequest, err.Error())
		return
	}

	convID, err := s.imService.CreateGroupConversation(c.Request.Context(), middleware.ExternalID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"conversation_id": convID})
}

// GetConversationList 获取会话列表
func (s *IMHandler) GetConversationList(c *gin.Context) {
	res, err := s.imService.GetMyConversations(c.Request.Context(), middleware.ExternalID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *IMHandler) GetConversation(c *gin.Context) {
	convID, ok := conversationID(c)
	if !ok {
		return
	}
	res, err := s.imService.GetConversation(c.Request.Context(), middleware.ExternalID(c), convID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetMessages 会话内全部消息，按发送时间升序
func (s *IMHandler) GetMessages(c *gin.Context) {
	convID, ok := conversationID(c)
	if !ok {
		return
	}
	res, err := s.imService.GetMessages(c.Request.Context(), middleware.ExternalID(c), convID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *IMHandler) GetUnreadCount(c *gin.Context) {
	convID, ok := conversationID(c)
	if !ok {
		return
	}
	count, err := s.imService.GetUnreadCount(c.Request.Context(), middleware.ExternalID(c), convID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"unread": count})
}

// MarkAsRead 标记已读接口
func (s *IMHandler) MarkAsRead(c *gin.Context) {
	convID, ok := conversationID(c)
	if !ok {
		return
	}
	if err := s.imService.MarkAsRead(c.Request.Context(), convID, middleware.ExternalID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// SendMessage 发送消息接口
func (s *IMHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Fail(c, response.BadRequest, err.Error())
		return
	}

	msgID, err := s.imService.SendMessage(c.Request.Context(), middleware.ExternalID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message_id": msgID})
}

func (s *IMHandler) DeleteMessage(c *gin.Context) {
	msgID := strings.TrimSpace(c.Param("id"))
	if msgID == "" {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := s.imService.DeleteMessage(c.Request.Context(), middleware.ExternalID(c), msgID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// SetTyping 上报输入状态
func (s *IMHandler) SetTyping(c *gin.Context) {
	convID, ok := conversationID(c)
	if !ok {
		return
	}
	var req dto.TypingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := s.typingService.SetTyping(c.Request.Context(), middleware.ExternalID(c), convID, *req.IsTyping); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// GetTyping 当前正在输入的用户，无人输入时 data 为 null
func (s *IMHandler) GetTyping(c *gin.Context) {
	convID, ok := conversationID(c)
	if !ok {
		return
	}
	res, err := s.typingService.GetTyping(c.Request.Context(), middleware.ExternalID(c), convID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func conversationID(c *gin.Context) (uint64, bool) {
	convID, err := util.ParseID(c.Param("id"))
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return 0, false
	}
	return convID, true
}
