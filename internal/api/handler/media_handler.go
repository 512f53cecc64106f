package handler

import (
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/response"
	"Parley/internal/service"
	"io"
	log "log/slog"

	"github.com/gin-gonic/gin"
)

type MediaHandler struct {
	mediaSvc service.MediaService
}

func NewMediaHandler(mediaSvc service.MediaService) *MediaHandler {
	return &MediaHandler{mediaSvc: mediaSvc}
}

// Upload 上传聊天图片，返回原图与缩略图地址
func (s *MediaHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if file.Size > consts.MaxUploadSize {
		response.Fail(c, response.BadRequest, "文件过大")
		return
	}

	reader, err := file.Open()
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(io.LimitReader(reader, consts.MaxUploadSize+1))
	if err != nil {
		log.WarnContext(c.Request.Context(), "read upload failed", "err", err)
		response.Error(c, service.ErrParamInvalid)
		return
	}

	res, err := s.mediaSvc.UploadImage(c.Request.Context(), file.Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
