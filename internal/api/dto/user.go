package dto

// UserDTO 用户信息，IsOnline 为存活判定结果而非库内原始标记
type UserDTO struct {
	ID         uint64  `json:"id"`
	ExternalID string  `json:"external_id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	ImageURL   *string `json:"image_url,omitempty"`
	IsOnline   bool    `json:"is_online"`
	LastSeen   int64   `json:"last_seen"`
}

// SyncUserDTO 客户端登录后同步身份资料
type SyncUserDTO struct {
	Name     string  `json:"name" binding:"required" validate:"min=1,max=128"`
	Email    string  `json:"email" validate:"omitempty,email"`
	ImageURL *string `json:"image_url" validate:"omitempty,url"`
}

// PresenceDTO 在线状态上报
type PresenceDTO struct {
	IsOnline *bool `json:"is_online" binding:"required"`
}

// SearchUserDTO 用户搜索
type SearchUserDTO struct {
	Keyword string `form:"keyword" validate:"max=64"`
}

// PresenceEventDTO 在线状态变更推送
type PresenceEventDTO struct {
	UserID   uint64 `json:"user_id"`
	IsOnline bool   `json:"is_online"`
	LastSeen int64  `json:"last_seen"`
}
