package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/util"
	"bytes"
	"context"
	"io"
	log "log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectStorage 图片对象存储
type ObjectStorage interface {
	PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
	PublicURL(objectName string) string
}

// MediaService 聊天图片上传，消息体里只保存返回的地址
type MediaService interface {
	UploadImage(ctx context.Context, filename string, data []byte) (*dto.MediaUploadDTO, error)
}

type mediaServiceImpl struct {
	storage ObjectStorage
	now     func() time.Time
}

func NewMediaService(storage ObjectStorage) MediaService {
	return &mediaServiceImpl{storage: storage, now: time.Now}
}

func (s *mediaServiceImpl) UploadImage(ctx context.Context, filename string, data []byte) (*dto.MediaUploadDTO, error) {
	if len(data) == 0 || len(data) > consts.MaxUploadSize {
		return nil, ErrParamInvalid
	}
	contentType, err := util.GetSafeContentType(bytes.NewReader(data))
	if err != nil || !strings.HasPrefix(contentType, consts.MimePrefixImage) {
		return nil, ErrFileNotSupported
	}

	thumb, size, err := util.MakeThumbnail(data, consts.ThumbnailWidth)
	if err != nil {
		log.WarnContext(ctx, "decode image failed", "content_type", contentType, "err", err)
		return nil, ErrFileNotSupported
	}

	base := consts.UploadPathPrefix + s.now().Format("2006/01/02/") + uuid.NewString()
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = "." + strings.TrimPrefix(contentType, consts.MimePrefixImage+"/")
	}

	key, err := s.storage.PutObject(ctx, base+ext, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return nil, err
	}
	thumbKey, err := s.storage.PutObject(ctx, base+"_thumb.jpg", bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg")
	if err != nil {
		return nil, err
	}

	return &dto.MediaUploadDTO{
		URL:          s.storage.PublicURL(key),
		ThumbnailURL: s.storage.PublicURL(thumbKey),
		MimeType:     contentType,
		Width:        size.X,
		Height:       size.Y,
		Size:         int64(len(data)),
	}, nil
}
