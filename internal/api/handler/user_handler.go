package handler

import (
	"Parley/internal/api/dto"
	"Parley/internal/api/middleware"
	"Parley/internal/pkg/response"
	"Parley/internal/pkg/util"
	"Parley/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userSvc service.UserService
}

func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// Sync 登录后把身份提供方资料同步到本地用户表
func (s *UserHandler) Sync(c *gin.Context) {
	var req dto.SyncUserDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Fail(c, response.BadRequest, err.Error())
		return
	}

	identity := &dto.IdentityDTO{
		ExternalID: middleware.ExternalID(c),
		Name:       req.Name,
		Email:      req.Email,
		ImageURL:   req.ImageURL,
	}
	if claims := middleware.Claims(c); claims != nil {
		if identity.Email == "" {
			identity.Email = claims.Email
		}
		if identity.ImageURL == nil {
			identity.ImageURL = claims.ImageURL
		}
	}

	if _, err := s.userSvc.UpsertUser(c.Request.Context(), identity); err != nil {
		response.Error(c, err)
		return
	}
	me, err := s.userSvc.GetMe(c.Request.Context(), identity.ExternalID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, me)
}

func (s *UserHandler) GetMe(c *gin.Context) {
	me, err := s.userSvc.GetMe(c.Request.Context(), middleware.ExternalID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, me)
}

func (s *UserHandler) ListUsers(c *gin.Context) {
	users, err := s.userSvc.ListUsers(c.Request.Context(), middleware.ExternalID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

func (s *UserHandler) SearchUsers(c *gin.Context) {
	var req dto.SearchUserDTO
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, err)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Fail(c, response.BadRequest, err.Error())
		return
	}
	users, err := s.userSvc.SearchUsers(c.Request.Context(), middleware.ExternalID(c), req.Keyword)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

// SetPresence HTTP 心跳，cmd/heartbeat 与不支持 WebSocket 的客户端使用
func (s *UserHandler) SetPresence(c *gin.Context) {
	var req dto.PresenceDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := s.userSvc.SetOnlineStatus(c.Request.Context(), middleware.ExternalID(c), *req.IsOnline); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
