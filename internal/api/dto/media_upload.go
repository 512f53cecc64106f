package dto

// MediaUploadDTO 图片上传结果
type MediaUploadDTO struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	MimeType     string `json:"mime_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int64  `json:"size"`
}
